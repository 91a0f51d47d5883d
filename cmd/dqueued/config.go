package main

import (
	"time"

	"github.com/rise-and-shine/durablequeue/dqueue"
	"github.com/rise-and-shine/durablequeue/http/server"
	"github.com/rise-and-shine/durablequeue/observability/alert"
	"github.com/rise-and-shine/durablequeue/observability/logger"
	"github.com/rise-and-shine/durablequeue/observability/tracing"
	"github.com/rise-and-shine/durablequeue/pg"
)

// config is the top-level configuration for the dqueued service, loaded once at
// startup by cfgloader.MustLoad from ./config/${ENVIRONMENT}.yaml.
type config struct {
	ServiceName    string `yaml:"service_name"    validate:"required" default:"dqueued"`
	ServiceVersion string `yaml:"service_version"                     default:"dev"`

	DB      pg.Config      `yaml:"db"`
	Logger  logger.Config  `yaml:"logger"`
	Tracing tracing.Config `yaml:"tracing"`
	Alert   alert.Config   `yaml:"alert"`
	Queue   dqueue.Config  `yaml:"queue"`
	HTTP    server.Config  `yaml:"http"`

	// ExampleQueueEnabled starts the built-in example subscription described in
	// examples.go. Off by default so embedding this binary's composition root in a
	// real deployment doesn't also spin up sample traffic.
	ExampleQueueEnabled bool `yaml:"example_queue_enabled" default:"false"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"required" default:"15s"`
}
