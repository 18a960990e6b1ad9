package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danmuck/darrayctl/internal/config"
	"github.com/danmuck/darrayctl/internal/logging"
	"github.com/rs/zerolog/log"
)

func main() {
	kind := flag.String("kind", config.KindClient, "config kind: client|coordinator")
	output := flag.String("output", "", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "", "config path for validation (defaults to per-kind cmd path)")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	logging.ConfigureRuntime()

	path, err := defaultPath(*kind)
	if err != nil {
		log.Fatal().Err(err).Msg("configgen")
	}

	if *validate {
		if *input != "" {
			path = *input
		}
		if err := validateFile(*kind, path); err != nil {
			log.Fatal().Err(err).Msg("configgen")
		}
		log.Info().Str("kind", *kind).Str("path", path).Msg("validated config")
		return
	}

	if *output != "" {
		path = *output
	}
	if err := config.WriteTemplate(path, *kind, *force); err != nil {
		log.Fatal().Err(err).Msg("configgen")
	}
	log.Info().Str("kind", *kind).Str("path", path).Msg("wrote config template")
}

func defaultPath(kind string) (string, error) {
	switch kind {
	case config.KindClient:
		return "cmd/darrayctl/config.toml", nil
	case config.KindCoordinator:
		return "cmd/dacoord/config.toml", nil
	default:
		return "", fmt.Errorf("unknown kind: %s", kind)
	}
}

func validateFile(kind, path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	switch kind {
	case config.KindClient:
		_, err := config.LoadClientConfig(path)
		return err
	case config.KindCoordinator:
		_, err := config.LoadCoordinatorConfig(path)
		return err
	default:
		return fmt.Errorf("unknown kind: %s", kind)
	}
}
