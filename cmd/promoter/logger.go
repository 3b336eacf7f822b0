package main

import (
	"io"

	log "github.com/sirupsen/logrus"

	"model-stage-promoter/internal/config"
)

// initLogger keeps diagnostics on stderr so stdout only carries the report.
func initLogger(cfg *config.Config, out io.Writer) {
	log.SetOutput(out)

	level, err := log.ParseLevel(cfg.Logger.Level)
	if err != nil {
		level = log.WarnLevel
	}
	log.SetLevel(level)

	if cfg.Logger.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}
