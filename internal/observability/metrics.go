package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/docshield/view-session-service/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

const meterName = "view-session-service"

type viewMetrics struct {
	manifestCounter     metric.Int64Counter
	tileCounter         metric.Int64Counter
	rateLimitCounter    metric.Int64Counter
	repositoryCounter   metric.Int64Counter
	auditDropCounter    metric.Int64Counter
	storageFetchCounter metric.Int64Counter
	watermarkHistogram  metric.Float64Histogram
}

var (
	viewMetricsOnce sync.Once
	viewMetricsInst *viewMetrics
)

func InitMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	if !cfg.OTELMetricsEnabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		logger.Info("otel metrics disabled")
		return mp, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
	if cfg.OTELExporterOTLPInsecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.OTELServiceName),
			attribute.String("deployment.environment", cfg.OTELEnvironment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create metric resource: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OTELMetricsExportInterval))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp)

	logger.Info("otel metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	return mp, nil
}

func metrics() *viewMetrics {
	viewMetricsOnce.Do(func() {
		meter := otel.Meter(meterName)
		m := &viewMetrics{}
		var err error
		if m.manifestCounter, err = meter.Int64Counter("view.manifest.requests"); err != nil {
			return
		}
		if m.tileCounter, err = meter.Int64Counter("view.tile.requests"); err != nil {
			return
		}
		if m.rateLimitCounter, err = meter.Int64Counter("view.ratelimit.decisions"); err != nil {
			return
		}
		if m.repositoryCounter, err = meter.Int64Counter("repository.operations"); err != nil {
			return
		}
		if m.auditDropCounter, err = meter.Int64Counter("view.audit.dropped"); err != nil {
			return
		}
		if m.storageFetchCounter, err = meter.Int64Counter("view.storage.fetches"); err != nil {
			return
		}
		if m.watermarkHistogram, err = meter.Float64Histogram("view.watermark.duration_ms"); err != nil {
			return
		}
		viewMetricsInst = m
	})
	return viewMetricsInst
}

func RecordManifestRequest(ctx context.Context, identityType, outcome string) {
	m := metrics()
	if m == nil {
		return
	}
	m.manifestCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("identity_type", identityType),
		attribute.String("outcome", outcome),
	))
}

func RecordTileRequest(ctx context.Context, outcome string) {
	m := metrics()
	if m == nil {
		return
	}
	m.tileCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func RecordRateLimitDecision(ctx context.Context, scope, decision string) {
	m := metrics()
	if m == nil {
		return
	}
	m.rateLimitCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("decision", decision),
	))
}

func RecordRepositoryOperation(ctx context.Context, entity, operation, outcome string) {
	m := metrics()
	if m == nil {
		return
	}
	m.repositoryCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("entity", entity),
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
}

func RecordAuditDrop(ctx context.Context, reason string) {
	m := metrics()
	if m == nil {
		return
	}
	m.auditDropCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func RecordStorageFetch(ctx context.Context, outcome string) {
	m := metrics()
	if m == nil {
		return
	}
	m.storageFetchCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func RecordWatermarkDuration(ctx context.Context, d time.Duration, outcome string) {
	m := metrics()
	if m == nil {
		return
	}
	m.watermarkHistogram.Record(ctx, float64(d)/float64(time.Millisecond),
		metric.WithAttributes(attribute.String("outcome", outcome)))
}
