// Package config loads seclink session settings from YAML. Command-line flags override
// file values in the commands.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/observe-l/seclink/aead"
	"github.com/observe-l/seclink/fec"
	"github.com/observe-l/seclink/internal/sim"
)

type Config struct {
	// Key is 32 hex digits. Empty means the key is resolved at run time.
	Key           string        `yaml:"key"`
	Suite         string        `yaml:"suite"`
	Code          string        `yaml:"code"`
	MaxIterations int           `yaml:"max_iterations"`
	Retries       int           `yaml:"retries"`
	MessageLen    int           `yaml:"message_len"`
	LogLevel      string        `yaml:"log_level"`
	MetricsAddr   string        `yaml:"metrics_addr"`
	Channel       ChannelConfig `yaml:"channel"`
	Link          LinkConfig    `yaml:"link"`
}

// ChannelConfig selects the corruption model. At most one of Pattern, Weight and BER is set.
type ChannelConfig struct {
	Pattern string  `yaml:"pattern"`
	Weight  int     `yaml:"weight"`
	BER     float64 `yaml:"ber"`
	Seed    int64   `yaml:"seed"`
}

type LinkConfig struct {
	Serial    string        `yaml:"serial"`
	Baud      int           `yaml:"baud"`
	Remote    string        `yaml:"remote"`
	Timeout   time.Duration `yaml:"timeout"`
	Heartbeat time.Duration `yaml:"heartbeat"`
}

func Default() Config {
	return Config{
		Suite:         string(aead.AES128GCM),
		Code:          fec.DefaultParams.Name,
		MaxIterations: 20,
		MessageLen:    100,
		LogLevel:      "info",
		Channel:       ChannelConfig{Pattern: "1:0x00,5:0x00", Seed: 1},
		Link:          LinkConfig{Baud: 115200, Timeout: 30 * time.Second},
	}
}

// Load reads path over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error
	if _, err := aead.ParseSuite(c.Suite); err != nil {
		errs = append(errs, err)
	}
	p, err := fec.Lookup(c.Code)
	if err != nil {
		errs = append(errs, err)
	} else if limit := p.DataLen() - aead.Overhead; c.MessageLen < 0 || c.MessageLen > limit {
		errs = append(errs, fmt.Errorf("config: message_len %d outside [0, %d] for %s", c.MessageLen, limit, p.Name))
	}
	if c.MaxIterations < 0 {
		errs = append(errs, errors.New("config: max_iterations must not be negative"))
	}
	if c.Retries < 0 {
		errs = append(errs, errors.New("config: retries must not be negative"))
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("config: %w", err))
	}
	set := 0
	if c.Channel.Pattern != "" {
		set++
		if _, err := sim.ParsePattern(c.Channel.Pattern); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Channel.Weight != 0 {
		set++
		if c.Channel.Weight < 0 {
			errs = append(errs, errors.New("config: channel.weight must not be negative"))
		}
	}
	if c.Channel.BER != 0 {
		set++
		if c.Channel.BER < 0 || c.Channel.BER > 1 {
			errs = append(errs, errors.New("config: channel.ber must be within [0, 1]"))
		}
	}
	if set > 1 {
		errs = append(errs, errors.New("config: set only one of channel.pattern, channel.weight, channel.ber"))
	}
	if c.Link.Serial != "" && c.Link.Remote != "" {
		errs = append(errs, errors.New("config: set only one of link.serial, link.remote"))
	}
	if c.Link.Timeout < 0 || c.Link.Heartbeat < 0 {
		errs = append(errs, errors.New("config: link durations must not be negative"))
	}
	return errors.Join(errs...)
}

// Params returns the selected code.
func (c Config) Params() (fec.Params, error) { return fec.Lookup(c.Code) }

func (c Config) AEADSuite() (aead.Suite, error) { return aead.ParseSuite(c.Suite) }

// NewLogger returns a stderr logger at the configured level.
func (c Config) NewLogger() (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(lvl)
	return log, nil
}

// NewChannel builds the channel model named by the Channel section.
func (c Config) NewChannel() (sim.Channel, error) {
	switch {
	case c.Channel.Pattern != "":
		p, err := sim.ParsePattern(c.Channel.Pattern)
		if err != nil {
			return nil, err
		}
		return sim.Fixed{Pattern: p}, nil
	case c.Channel.Weight > 0:
		return sim.NewFixedWeight(c.Channel.Weight, c.Channel.Seed), nil
	case c.Channel.BER > 0:
		return sim.NewBSC(c.Channel.BER, c.Channel.Seed), nil
	}
	return sim.Noiseless{}, nil
}
