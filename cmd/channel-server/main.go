package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
	"google.golang.org/grpc"

	"github.com/observe-l/seclink/internal/chanserver"
)

func main() {
	var (
		addr     = flag.String("addr", ":50061", "listen address")
		ber      = flag.Float64("ber", 0, "initial bit error rate 0..1")
		seed     = flag.Int64("seed", 1, "channel random seed")
		depth    = flag.Int("depth", 16, "codewords queued for the receiver")
		logLevel = flag.String("log-level", "info", "debug|info|warn|error")
	)
	flag.Parse()

	log := logrus.New()
	lvl, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		fatalf("%v", err)
	}
	log.SetLevel(lvl)

	srv, err := chanserver.New(*ber, *seed, *depth, log)
	if err != nil {
		fatalf("%v", err)
	}

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		fatalf("listen: %v", err)
	}
	grpcSrv := grpc.NewServer()
	chanserver.Register(grpcSrv, srv)

	// Trap signals to drain in-flight calls
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-c
		frames, flipped := srv.Stats()
		log.WithFields(logrus.Fields{"frames": frames, "flipped": flipped}).Info("shutting down")
		grpcSrv.GracefulStop()
	}()

	log.WithFields(logrus.Fields{"addr": ln.Addr().String(), "ber": *ber}).Info("channel emulator listening")
	if err := grpcSrv.Serve(ln); err != nil {
		fatalf("grpc serve: %v", err)
	}
}

func fatalf(f string, a ...any) {
	fmt.Fprintf(os.Stderr, f+"\n", a...)
	os.Exit(1)
}
