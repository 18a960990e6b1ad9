package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/danmuck/darrayctl/internal/client"
)

const helpText = `
Commands:
  create-int <array_id> <size> - Create integer array
  create-double <array_id> <size> - Create double array
  apply <array_id> <operation> - Apply operation (example1 or example2)
  get <array_id> - Get result
  exit - Quit
`

// Shell is the line-oriented command loop. Each command is one exchange with
// the coordinator; replies are printed as received.
type Shell struct {
	client *client.Client
	reader *bufio.Reader
	out    io.Writer
}

func NewShell(c *client.Client, in io.Reader, out io.Writer) *Shell {
	return &Shell{
		client: c,
		reader: bufio.NewReader(in),
		out:    out,
	}
}

type readResult struct {
	line string
	err  error
}

// Run reads commands until exit, end of input, or ctx cancellation. Input is
// read on its own goroutine so cancellation is seen at an idle prompt.
func (s *Shell) Run(ctx context.Context) error {
	fmt.Fprintf(s.out, "Connected to coordinator at %s\n", s.client.Config().Transport.Address())
	fmt.Fprintln(s.out, "Enter commands (type 'help' for usage, 'exit' to quit):")

	lines := make(chan readResult)
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			line, err := s.reader.ReadString('\n')
			select {
			case lines <- readResult{line: line, err: err}:
			case <-done:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		fmt.Fprint(s.out, "> ")
		var next readResult
		select {
		case <-ctx.Done():
			fmt.Fprintln(s.out)
			return nil
		case next = <-lines:
		}
		if ctx.Err() != nil {
			return nil
		}
		if s.Exec(ctx, next.line) {
			return nil
		}
		if next.err != nil {
			if errors.Is(next.err, io.EOF) {
				fmt.Fprintln(s.out)
				return nil
			}
			return next.err
		}
	}
}

// Exec runs one command line and reports whether the shell should stop.
func (s *Shell) Exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	args := fields[1:]
	switch fields[0] {
	case "create-int":
		if len(args) < 2 {
			fmt.Fprintln(s.out, "Usage: create-int <array_id> <size>")
			return false
		}
		size, ok := s.parseSize(args[1])
		if !ok {
			return false
		}
		s.print("Create array response", func() (client.Reply, error) {
			return s.client.CreateIntArray(ctx, args[0], client.RandomInts(size))
		})
	case "create-double":
		if len(args) < 2 {
			fmt.Fprintln(s.out, "Usage: create-double <array_id> <size>")
			return false
		}
		size, ok := s.parseSize(args[1])
		if !ok {
			return false
		}
		s.print("Create array response", func() (client.Reply, error) {
			return s.client.CreateDoubleArray(ctx, args[0], client.RandomDoubles(size))
		})
	case "apply":
		if len(args) < 2 {
			fmt.Fprintln(s.out, "Usage: apply <array_id> <operation>")
			return false
		}
		s.print("Apply operation response", func() (client.Reply, error) {
			return s.client.ApplyOperation(ctx, args[0], args[1])
		})
	case "get":
		if len(args) < 1 {
			fmt.Fprintln(s.out, "Usage: get <array_id>")
			return false
		}
		s.print("Get result response", func() (client.Reply, error) {
			return s.client.GetResult(ctx, args[0])
		})
	case "help":
		fmt.Fprint(s.out, helpText)
	case "exit", "quit":
		fmt.Fprintln(s.out, "Goodbye!")
		return true
	default:
		fmt.Fprintln(s.out, "Unknown command. Type 'help' for usage.")
	}
	return false
}

func (s *Shell) parseSize(raw string) (int, bool) {
	size, err := strconv.Atoi(raw)
	if err != nil || size < 0 {
		fmt.Fprintf(s.out, "Error: invalid size %q\n", raw)
		return 0, false
	}
	return size, true
}

func (s *Shell) print(label string, call func() (client.Reply, error)) {
	reply, err := call()
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "%s: %s\n", label, reply.Raw)
}
