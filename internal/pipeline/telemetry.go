package pipeline

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/peteski22/prior-consent/internal/pipeline"

// instruments holds the orchestrator's counters.
type instruments struct {
	rewrites     metric.Int64Counter
	suppressions metric.Int64Counter
	faults       metric.Int64Counter
}

func newInstruments(meter metric.Meter) (*instruments, error) {
	rewrites, err := meter.Int64Counter(
		"consent.rewrites",
		metric.WithDescription("Embeds neutralized until consent is given."),
	)
	if err != nil {
		return nil, fmt.Errorf("creating rewrites counter: %w", err)
	}

	suppressions, err := meter.Int64Counter(
		"consent.suppressions",
		metric.WithDescription("Scheduled third-party callbacks cancelled for missing consent."),
	)
	if err != nil {
		return nil, fmt.Errorf("creating suppressions counter: %w", err)
	}

	faults, err := meter.Int64Counter(
		"consent.addon_faults",
		metric.WithDescription("Addon evaluations that failed and were skipped."),
	)
	if err != nil {
		return nil, fmt.Errorf("creating faults counter: %w", err)
	}

	return &instruments{
		rewrites:     rewrites,
		suppressions: suppressions,
		faults:       faults,
	}, nil
}

func addonAttr(key string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("addon", key))
}

func (i *instruments) rewrote(ctx context.Context, key string, n int) {
	if n > 0 {
		i.rewrites.Add(ctx, int64(n), addonAttr(key))
	}
}

func (i *instruments) suppressed(ctx context.Context, key string, n int) {
	if n > 0 {
		i.suppressions.Add(ctx, int64(n), addonAttr(key))
	}
}

func (i *instruments) fault(ctx context.Context, key string) {
	i.faults.Add(ctx, 1, addonAttr(key))
}
