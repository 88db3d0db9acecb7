package internal

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"runtime/trace"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	otrace "go.opentelemetry.io/otel/trace"
)

const tracerName = "contentai-dashboard"

// Span covers one session or REST operation in both the runtime tracer (go tool trace)
// and the OTLP exporter, when one is configured.
type Span struct {
	region *trace.Region
	span   otrace.Span
}

func (s *Span) End() {
	s.region.End()
	s.span.End()
}

// RecordError marks the span as failed. Safe to call with a nil error.
func (s *Span) RecordError(err error) {
	if err == nil {
		return
	}
	s.span.RecordError(err)
}

func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	region := trace.StartRegion(ctx, name)
	ctx, span := otel.Tracer(tracerName).Start(ctx, name)
	return ctx, &Span{
		region: region,
		span:   span,
	}
}

// OTLPConfig says where spans are exported to. URL is scheme://host[:port] with no path;
// http URLs are exported without TLS.
type OTLPConfig struct {
	URL      string
	User     string
	Password string
	Version  string
}

func (c OTLPConfig) clientOptions() ([]otlptracehttp.Option, error) {
	u, err := url.Parse(c.URL)
	if err != nil {
		return nil, err
	}
	if u.Host == "" {
		return nil, fmt.Errorf("OTLP URL %q has no host", c.URL)
	}
	if u.Path != "" && u.Path != "/" {
		return nil, fmt.Errorf("OTLP URL %s cannot contain any path segments", c.URL)
	}
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(u.Host),
	}
	if u.Scheme == "http" {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if c.User != "" && c.Password != "" {
		creds := base64.StdEncoding.EncodeToString([]byte(c.User + ":" + c.Password))
		opts = append(opts, otlptracehttp.WithHeaders(map[string]string{
			"Authorization": "Basic " + creds,
		}))
	}
	return opts, nil
}

// ConfigureOTLP installs a global tracer provider exporting to cfg.URL. Call the returned
// function before exiting to flush buffered spans.
func ConfigureOTLP(cfg OTLPConfig) (shutdown func(context.Context) error, err error) {
	opts, err := cfg.clientOptions()
	if err != nil {
		return nil, err
	}
	exp, err := otlptrace.New(context.Background(), otlptracehttp.NewClient(opts...))
	if err != nil {
		return nil, err
	}
	logger.Info().Str("url", cfg.URL).Msg("exporting traces over OTLP")
	tp := tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exp),
		tracesdk.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(tracerName),
			attribute.String("version", cfg.Version),
		)),
	)
	otel.SetTracerProvider(tp)
	// pass traceparent and baggage on to the backend
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.Baggage{}, propagation.TraceContext{},
	))
	return tp.Shutdown, nil
}
