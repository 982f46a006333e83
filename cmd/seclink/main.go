// Command seclink sends short messages over a noisy link, encrypted and protected by an LDPC code.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	flag "github.com/spf13/pflag"
)

const usage = `usage: seclink <command> [flags]

commands:
  demo   encrypt, encode, corrupt, decode and decrypt one message in process
  send   send messages over a serial or remote link
  recv   receive messages from a serial or remote link

run "seclink <command> --help" for flags
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fatalf("error: %v", err)
	}
}

func run(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return errors.New("missing command")
	}
	switch args[0] {
	case "demo":
		return runDemo(args[1:], stdout)
	case "send":
		return runSend(args[1:], stdout)
	case "recv":
		return runRecv(args[1:], stdout)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	}
	return fmt.Errorf("unknown command %q", args[0])
}

func fatalf(f string, a ...any) {
	fmt.Fprintf(os.Stderr, f+"\n", a...)
	os.Exit(1)
}
