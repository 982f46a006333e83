package main

import (
	"context"
	"fmt"
	"os"
	"time"

	flag "github.com/spf13/pflag"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/observe-l/seclink/fec"
	"github.com/observe-l/seclink/internal/chanserver"
)

func main() {
	var (
		addr    = flag.String("addr", "127.0.0.1:50061", "channel emulator address")
		cmd     = flag.String("cmd", "configure", "command: configure|probe")
		ber     = flag.Float64("ber", 0, "bit error rate 0..1")
		size    = flag.Int("size", 256, "probe codeword bytes")
		timeout = flag.Duration("timeout", 3*time.Second, "call deadline")
	)
	flag.Parse()

	conn, err := grpc.Dial(*addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		fatalf("dial: %v", err)
	}
	defer conn.Close()
	client := chanserver.NewClient(conn)
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch *cmd {
	case "configure":
		if err := client.Configure(ctx, *ber); err != nil {
			fatalf("configure: %v", err)
		}
		fmt.Println("configured")
	case "probe":
		// An all-zero codeword comes back with exactly the flipped bits set.
		if err := client.Transmit(ctx, make([]byte, *size)); err != nil {
			fatalf("transmit: %v", err)
		}
		got, err := client.Receive(ctx)
		if err != nil {
			fatalf("receive: %v", err)
		}
		flips := fec.HammingDistance(make([]byte, len(got)), got)
		fmt.Printf("flipped %d of %d bits (%.5f)\n", flips, len(got)*8, float64(flips)/float64(len(got)*8))
	default:
		fatalf("unknown cmd %q", *cmd)
	}
}

func fatalf(f string, a ...any) {
	fmt.Fprintf(os.Stderr, f+"\n", a...)
	os.Exit(1)
}
