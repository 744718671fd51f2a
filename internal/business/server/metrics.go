package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/felixge/httpsnoop"
	"github.com/google/uuid"
	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/openkcm/common-sdk/pkg/otlp"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/app-gateway/internal/config"
)

// Operations reported for the route groups of the gateway.
const (
	operationRoot   = "root"
	operationStatic = "static"
	operationAPI    = "api"
	operationAuth   = "auth"
)

// instrumentationName names the meter and tracer of the gateway.
func instrumentationName(cfg *config.Config) string {
	return "app-gateway/" + cfg.Application.Name
}

type meters struct {
	counter metric.Int64Counter
	hist    metric.Int64Histogram
}

func initMeters(ctx context.Context, cfg *config.Config) (*meters, error) {
	meter := otel.Meter(
		instrumentationName(cfg),
		metric.WithInstrumentationVersion(otel.Version()),
		metric.WithInstrumentationAttributes(otlp.CreateAttributesFrom(cfg.Application)...),
	)

	counter, err := meter.Int64Counter(
		"http.request_count",
		metric.WithDescription("Incoming request count"),
		metric.WithUnit("request"),
	)
	if err != nil {
		return nil, oops.In("HTTP Server").
			WithContext(ctx).
			Wrapf(err, "creating request_count meter")
	}

	hist, err := meter.Int64Histogram(
		"http.duration",
		metric.WithDescription("Incoming end to end duration"),
		metric.WithUnit("milliseconds"),
	)
	if err != nil {
		return nil, oops.In("HTTP Server").
			WithContext(ctx).
			Wrapf(err, "creating duration meter")
	}

	return &meters{counter: counter, hist: hist}, nil
}

// operationFor maps a request path onto the route group serving it.
func operationFor(appName, path string) string {
	segment, _, _ := strings.Cut(strings.TrimPrefix(path, "/"), "/")

	switch segment {
	case "api":
		return operationAPI
	case "auth":
		return operationAuth
	case appName:
		return operationStatic
	default:
		return operationRoot
	}
}

// newObserveMiddleware traces every request, records the request metrics and
// writes the access log line once the response is complete.
func newObserveMiddleware(cfg *config.Config, m *meters) func(http.Handler) http.Handler {
	tracer := otel.Tracer(instrumentationName(cfg), trace.WithInstrumentationAttributes(otlp.CreateAttributesFrom(cfg.Application)...))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			operation := operationFor(cfg.Gateway.AppName, r.URL.Path)

			ctx := slogctx.With(r.Context(),
				commoncfg.AttrRequestID, uuid.NewString(),
				commoncfg.AttrOperation, operation,
			)

			parentCtx := otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(r.Header))

			ctx, span := tracer.Start(parentCtx, operation+"-span",
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String(commoncfg.AttrOperation, operation),
					attribute.String("http.method", r.Method),
				),
			)
			defer span.End()

			stats := httpsnoop.CaptureMetrics(next, w, r.WithContext(ctx))

			span.SetAttributes(attribute.Int("http.status_code", stats.Code))

			attrs := metric.WithAttributes(
				otlp.CreateAttributesFrom(cfg.Application,
					attribute.String("userAgent", r.UserAgent()),
					attribute.String(commoncfg.AttrOperation, operation),
					attribute.String("status", strconv.Itoa(stats.Code)),
				)...,
			)
			m.counter.Add(ctx, 1, attrs)
			m.hist.Record(ctx, stats.Duration.Milliseconds(), attrs)

			slogctx.Info(ctx, "Request served",
				"method", r.Method,
				"path", r.URL.Path,
				"status", stats.Code,
				"bytes", stats.Written,
				"duration", stats.Duration,
			)
		})
	}
}
