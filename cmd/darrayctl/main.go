package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/danmuck/darrayctl/internal/client"
	"github.com/danmuck/darrayctl/internal/config"
	"github.com/danmuck/darrayctl/internal/logging"
	"github.com/rs/zerolog/log"
)

const usage = `Usage: darrayctl [-config path] [-timeout d] <coordinator_host> <coordinator_port>

Commands:
  create-int <array_id> <size>
  create-double <array_id> <size>
  apply <array_id> <operation>
  get <array_id>
`

func main() {
	configPath := flag.String("config", "", "client config file (toml)")
	timeout := flag.Duration("timeout", 0, "per-command timeout (overrides config)")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	logging.ConfigureRuntime()

	cfg, err := resolveConfig(*configPath, *timeout, flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "darrayctl: %v\n\n%s", err, usage)
		os.Exit(1)
	}
	c, err := client.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "darrayctl: %v\n\n%s", err, usage)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		// a second signal falls through to the default handler
		<-ctx.Done()
		stop()
	}()

	log.Debug().Str("coordinator", cfg.Transport.Address()).Msg("darrayctl start")
	shell := NewShell(c, os.Stdin, os.Stdout)
	if err := shell.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "darrayctl: %v\n", err)
		os.Exit(1)
	}
}

// resolveConfig layers positional host/port and -timeout over the config
// file, which itself sits over the client defaults.
func resolveConfig(path string, timeout time.Duration, args []string) (client.Config, error) {
	cfg := client.DefaultConfig()
	if strings.TrimSpace(path) != "" {
		loaded, err := config.LoadClientConfig(path)
		if err != nil {
			return client.Config{}, err
		}
		cfg = loaded
	}
	switch len(args) {
	case 0:
	case 2:
		port, err := strconv.Atoi(args[1])
		if err != nil {
			return client.Config{}, fmt.Errorf("invalid port %q", args[1])
		}
		cfg.Transport.Host = args[0]
		cfg.Transport.Port = port
	default:
		return client.Config{}, fmt.Errorf("expected <coordinator_host> <coordinator_port>")
	}
	if timeout > 0 {
		cfg.Transport.Timeout = timeout
	}
	return cfg, nil
}
