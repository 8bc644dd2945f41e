package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tnop "go.opentelemetry.io/otel/trace/noop"

	"github.com/peteski22/prior-consent/internal/addons"
	"github.com/peteski22/prior-consent/internal/consent"
	"github.com/peteski22/prior-consent/internal/lifecycle"
	"github.com/peteski22/prior-consent/internal/placeholder"
	"github.com/peteski22/prior-consent/internal/settings"
	"github.com/peteski22/prior-consent/pkg/contract/addon"
)

type recordedSpan struct {
	tnop.Span

	name   string
	errs   []error
	status codes.Code
	ended  bool
}

func (s *recordedSpan) RecordError(err error, _ ...trace.EventOption) {
	s.errs = append(s.errs, err)
}

func (s *recordedSpan) SetStatus(code codes.Code, _ string) {
	s.status = code
}

func (s *recordedSpan) End(...trace.SpanEndOption) {
	s.ended = true
}

type recordingTracer struct {
	tnop.Tracer

	spans []*recordedSpan
}

func (t *recordingTracer) Start(ctx context.Context, name string, _ ...trace.SpanStartOption) (context.Context, trace.Span) {
	s := &recordedSpan{name: name}
	t.spans = append(t.spans, s)
	return trace.ContextWithSpan(ctx, s), s
}

func (t *recordingTracer) named(name string) []*recordedSpan {
	var out []*recordedSpan
	for _, s := range t.spans {
		if s.name == name {
			out = append(out, s)
		}
	}
	return out
}

type panickingLanguage struct{}

func (panickingLanguage) CurrentLanguage(bool) (string, error) {
	panic("language lookup exploded")
}

func TestRewriteFilterFaultRecordedOnOwnSpan(t *testing.T) {
	store := settings.NewMemoryStore(siteOptions())
	svc := settings.NewService(store, nil)
	registry, err := addons.NewRegistry(addons.DefaultCatalog(), svc, settings.NewPluginState(store), nil)
	require.NoError(t, err)

	tracer := &recordingTracer{}
	host := lifecycle.NewHost(nil)
	orch, err := NewOrchestrator(
		host,
		registry,
		consent.NewEvaluator(consent.NewStaticSource(), nil),
		placeholder.NewEngine(svc, panickingLanguage{}, nil),
		nil,
		WithTracer(tracer),
	)
	require.NoError(t, err)

	orch.Load(context.Background())
	host.Do(addon.HookLoaded, nil)

	for _, s := range tracer.named("consent.addon") {
		require.True(t, s.ended)
		assert.Empty(t, s.errs, "activation itself succeeded")
	}

	assert.Equal(t, youtubeEmbed, host.ApplyFilters(addon.SurfaceContent, youtubeEmbed), "faulty filter leaves content as is")

	spans := tracer.named("consent.rewrite")
	require.Len(t, spans, 1)
	require.Len(t, spans[0].errs, 1)
	assert.ErrorIs(t, spans[0].errs[0], ErrAddonFault)
	assert.Equal(t, codes.Error, spans[0].status)
	assert.True(t, spans[0].ended)
}
