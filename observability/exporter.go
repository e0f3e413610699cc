package observability

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// DefaultEndpoint is the OTLP HTTP port of a local collector.
const DefaultEndpoint = "localhost:4318"

// ExporterConfig is shared by the trace and metric exporters.
type ExporterConfig struct {
	// ServiceName, ServiceVersion and Environment end up on the resource.
	ServiceName    string
	ServiceVersion string
	Environment    string
	// Endpoint is the OTLP HTTP collector as host:port.
	Endpoint string
	// Insecure sends plain HTTP.
	Insecure bool
}

func defaultExporterConfig(serviceName string) ExporterConfig {
	return ExporterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "dev",
		Environment:    "development",
		Endpoint:       DefaultEndpoint,
		Insecure:       true,
	}
}

// newResource describes the process sending telemetry. The service
// attributes are schemaless so they merge with the SDK default resource
// regardless of its schema version.
func newResource(c ExporterConfig) (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceName(c.ServiceName),
			semconv.ServiceVersion(c.ServiceVersion),
			attribute.String("environment", c.Environment),
		),
	)
}
