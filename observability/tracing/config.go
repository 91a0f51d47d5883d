package tracing

import "time"

const reconnectionPeriod = 30 * time.Second

// Config holds the configuration for the tracing system.
// It is typically loaded from a configuration file (e.g., YAML) and passed to
// InitGlobalTracer at startup.
type Config struct {
	// Disable, if true, completely disables tracing. No spans will be collected or exported.
	Disable bool `yaml:"disable" default:"false"`

	// SampleRate determines the sampling rate for traces.
	// It should be a value between 0.0 (no traces) and 1.0 (all traces).
	SampleRate float64 `yaml:"sample_rate" default:"1"`

	// ExporterHost is the hostname or IP address of the OTLP exporter.
	ExporterHost string `yaml:"exporter_host" validate:"required"`

	// ExporterPort is the port number of the OTLP exporter.
	ExporterPort int `yaml:"exporter_port" validate:"required"`

	// Tags is a map of custom key-value pairs added as resource attributes to all spans.
	Tags map[string]string `yaml:"tags"`
}
