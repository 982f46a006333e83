package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/observe-l/seclink/internal/config"
	"github.com/observe-l/seclink/internal/keys"
	"github.com/observe-l/seclink/pipeline"
)

// settings is the merged view of the config file and the command line.
type settings struct {
	cfg     config.Config
	key     string
	demoKey bool
	json    bool
}

// flagVars receives flag values before they are merged over the config file.
type flagVars struct {
	configPath string
	cfg        config.Config
}

func newFlagSet(name string, s *settings, v *flagVars) *flag.FlagSet {
	d := config.Default()
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&v.configPath, "config", "", "YAML session config")
	fs.StringVar(&s.key, "key", "", "session key, 32 hex digits (default $"+keys.EnvVar+", then prompt)")
	fs.BoolVar(&s.demoKey, "demo-key", false, "use the fixed demonstration key")
	fs.BoolVar(&s.json, "json", false, "print reports as JSON")
	fs.StringVar(&v.cfg.Suite, "suite", d.Suite, "aes-128-gcm|chacha20-poly1305")
	fs.StringVar(&v.cfg.Code, "code", d.Code, "FEC code name")
	fs.IntVar(&v.cfg.MaxIterations, "max-iterations", d.MaxIterations, "decoder flip budget")
	fs.IntVar(&v.cfg.Retries, "retries", d.Retries, "extra attempts after a failed round trip")
	fs.IntVar(&v.cfg.MessageLen, "message-len", d.MessageLen, "fixed plaintext length on the link")
	fs.StringVar(&v.cfg.LogLevel, "log-level", d.LogLevel, "debug|info|warn|error")
	fs.StringVar(&v.cfg.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	return fs
}

func addChannelFlags(fs *flag.FlagSet, v *flagVars) {
	d := config.Default().Channel
	fs.StringVar(&v.cfg.Channel.Pattern, "pattern", d.Pattern, "flips as byte:mask,byte:mask")
	fs.IntVar(&v.cfg.Channel.Weight, "weight", 0, "flip this many random bits per codeword")
	fs.Float64Var(&v.cfg.Channel.BER, "ber", 0, "flip each bit with this probability")
	fs.Int64Var(&v.cfg.Channel.Seed, "seed", d.Seed, "channel random seed")
}

func addLinkFlags(fs *flag.FlagSet, v *flagVars) {
	d := config.Default().Link
	fs.StringVar(&v.cfg.Link.Serial, "serial", "", "serial device, e.g. /dev/ttyUSB0")
	fs.IntVar(&v.cfg.Link.Baud, "baud", d.Baud, "serial baud rate")
	fs.StringVar(&v.cfg.Link.Remote, "remote", "", "channel emulator address")
	fs.DurationVar(&v.cfg.Link.Timeout, "timeout", d.Timeout, "receive deadline per codeword")
	fs.DurationVar(&v.cfg.Link.Heartbeat, "heartbeat", 0, "send a heartbeat on the serial link at this interval")
}

// merge loads the config file, if any, and applies every flag the user set on top of it.
func merge(fs *flag.FlagSet, s *settings, v *flagVars) error {
	cfg := config.Default()
	if v.configPath != "" {
		var err error
		if cfg, err = config.Load(v.configPath); err != nil {
			return err
		}
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "suite":
			cfg.Suite = v.cfg.Suite
		case "code":
			cfg.Code = v.cfg.Code
		case "max-iterations":
			cfg.MaxIterations = v.cfg.MaxIterations
		case "retries":
			cfg.Retries = v.cfg.Retries
		case "message-len":
			cfg.MessageLen = v.cfg.MessageLen
		case "log-level":
			cfg.LogLevel = v.cfg.LogLevel
		case "metrics-addr":
			cfg.MetricsAddr = v.cfg.MetricsAddr
		case "pattern":
			cfg.Channel = config.ChannelConfig{Pattern: v.cfg.Channel.Pattern, Seed: cfg.Channel.Seed}
		case "weight":
			cfg.Channel = config.ChannelConfig{Weight: v.cfg.Channel.Weight, Seed: cfg.Channel.Seed}
		case "ber":
			cfg.Channel = config.ChannelConfig{BER: v.cfg.Channel.BER, Seed: cfg.Channel.Seed}
		case "serial":
			cfg.Link.Serial, cfg.Link.Remote = v.cfg.Link.Serial, ""
		case "baud":
			cfg.Link.Baud = v.cfg.Link.Baud
		case "remote":
			cfg.Link.Remote, cfg.Link.Serial = v.cfg.Link.Remote, ""
		case "timeout":
			cfg.Link.Timeout = v.cfg.Link.Timeout
		case "heartbeat":
			cfg.Link.Heartbeat = v.cfg.Link.Heartbeat
		}
	})
	// seed applies to whichever model was selected
	if fs.Changed("seed") {
		cfg.Channel.Seed = v.cfg.Channel.Seed
	}
	if s.key == "" {
		s.key = cfg.Key
	}
	s.cfg = cfg
	return cfg.Validate()
}

func (s *settings) resolveKey() ([]byte, error) {
	if s.demoKey {
		return append([]byte(nil), keys.Demo...), nil
	}
	k, err := keys.Resolve(keys.Source{Flag: s.key, Prompt: keys.TerminalPrompt(os.Stderr)})
	if errors.Is(err, keys.ErrNoKey) {
		return nil, fmt.Errorf("%w: pass --key, set %s or use --demo-key", err, keys.EnvVar)
	}
	return k, err
}

// newPipeline builds the session pipeline and, when configured, starts the metrics endpoint.
func (s *settings) newPipeline(log *logrus.Logger) (*pipeline.Pipeline, error) {
	key, err := s.resolveKey()
	if err != nil {
		return nil, err
	}
	defer keys.Zero(key)
	params, err := s.cfg.Params()
	if err != nil {
		return nil, err
	}
	suite, err := s.cfg.AEADSuite()
	if err != nil {
		return nil, err
	}
	pc := pipeline.Config{
		Suite:         suite,
		Code:          params,
		MaxIterations: s.cfg.MaxIterations,
		Retries:       s.cfg.Retries,
		Logger:        log,
	}
	if s.cfg.MaxIterations == 0 {
		pc.MaxIterations = -1
	}
	if s.cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		if pc.Metrics, err = pipeline.NewMetrics(reg); err != nil {
			return nil, err
		}
		go serveMetrics(s.cfg.MetricsAddr, reg, log)
	}
	return pipeline.New(key, pc)
}

func serveMetrics(addr string, reg *prometheus.Registry, log *logrus.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	log.WithField("addr", addr).Info("serving metrics")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.WithError(err).Error("metrics server stopped")
	}
}
