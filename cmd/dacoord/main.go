package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/danmuck/darrayctl/internal/config"
	"github.com/danmuck/darrayctl/internal/coordinator"
	"github.com/danmuck/darrayctl/internal/logging"
	"github.com/gin-gonic/gin"
)

func main() {
	configPath := flag.String("config", "", "coordinator config file (toml)")
	listen := flag.String("listen", "", "line protocol listen address (overrides config)")
	admin := flag.String("admin", "", "admin http listen address (overrides config)")
	flag.Parse()

	logging.ConfigureRuntime()
	gin.SetMode(gin.ReleaseMode)

	cfg, err := resolveConfig(*configPath, *listen, *admin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dacoord: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := coordinator.NewService(cfg).Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "dacoord: %v\n", err)
		os.Exit(1)
	}
}

func resolveConfig(path, listen, admin string) (coordinator.Config, error) {
	cfg := coordinator.DefaultConfig()
	if strings.TrimSpace(path) != "" {
		loaded, err := config.LoadCoordinatorConfig(path)
		if err != nil {
			return coordinator.Config{}, err
		}
		cfg = loaded
	}
	if v := strings.TrimSpace(listen); v != "" {
		cfg.ListenAddr = v
	}
	if v := strings.TrimSpace(admin); v != "" {
		cfg.AdminAddr = v
	}
	if err := config.ValidateCoordinatorConfig(cfg); err != nil {
		return coordinator.Config{}, err
	}
	return cfg, nil
}
