package main

import (
	"os"
	"path/filepath"

	"github.com/danmuck/mpvpresence/internal/config"
	"github.com/danmuck/mpvpresence/internal/logging"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

func main() {
	logging.ConfigureRuntime()

	output := pflag.StringP("output", "o", "", "output path for config template (defaults to the user config dir)")
	validate := pflag.Bool("validate", false, "validate an existing config file")
	input := pflag.StringP("input", "i", "", "config path for validation (defaults to --output path)")
	force := pflag.Bool("force", false, "overwrite existing config file")
	stdout := pflag.Bool("stdout", false, "print the template instead of writing it")
	pflag.Parse()

	if *stdout {
		template, err := config.Template()
		if err != nil {
			log.Fatal().Err(err).Msg("configgen render")
		}
		_, _ = os.Stdout.Write(template)
		return
	}

	target := *output
	if target == "" {
		target = defaultPath()
	}

	if *validate {
		path := *input
		if path == "" {
			path = target
		}
		if _, err := config.Load(path); err != nil {
			log.Fatal().Err(err).Msg("configgen validate")
		}
		log.Info().Str("path", path).Msg("validated mpvpresence config")
		return
	}

	if err := config.WriteTemplate(target, *force); err != nil {
		log.Fatal().Err(err).Msg("configgen write")
	}
	log.Info().Str("path", target).Msg("wrote mpvpresence config template")
}

func defaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(dir, "mpvpresence", "config.toml")
}
