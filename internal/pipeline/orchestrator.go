package pipeline

import (
	"context"
	"fmt"
	"io"

	"github.com/hashicorp/go-hclog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	mnop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tnop "go.opentelemetry.io/otel/trace/noop"

	"github.com/peteski22/prior-consent/internal/addons"
	"github.com/peteski22/prior-consent/internal/consent"
	"github.com/peteski22/prior-consent/internal/placeholder"
	"github.com/peteski22/prior-consent/internal/rewrite"
	"github.com/peteski22/prior-consent/internal/suppress"
	"github.com/peteski22/prior-consent/pkg/contract/addon"
)

// entryOwner is the owner name of every callback the orchestrator schedules.
const entryOwner = "prior-consent"

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTracer sets the tracer used for per-addon spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *Orchestrator) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithMeter sets the meter used for the orchestrator's counters.
func WithMeter(meter metric.Meter) Option {
	return func(o *Orchestrator) {
		if meter != nil {
			o.meter = meter
		}
	}
}

// Orchestrator wires every active addon into one page render.
// NOTE: Use NewOrchestrator to create an Orchestrator.
type Orchestrator struct {
	host         addon.LifecycleHost
	registry     *addons.Registry
	consent      *consent.Evaluator
	placeholders *placeholder.Engine
	suppressor   *suppress.Suppressor
	tracer       trace.Tracer
	meter        metric.Meter
	instruments  *instruments
	logger       hclog.Logger
}

// NewOrchestrator creates an Orchestrator scheduling addons on host.
// A nil evaluator has no consent source and so fails open.
func NewOrchestrator(
	host addon.LifecycleHost,
	registry *addons.Registry,
	evaluator *consent.Evaluator,
	engine *placeholder.Engine,
	logger hclog.Logger,
	opts ...Option,
) (*Orchestrator, error) {
	if host == nil {
		return nil, fmt.Errorf("lifecycle host is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("addon registry is required")
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if evaluator == nil {
		evaluator = consent.NewEvaluator(nil, logger)
	}

	o := &Orchestrator{
		host:         host,
		registry:     registry,
		consent:      evaluator,
		placeholders: engine,
		tracer:       tnop.NewTracerProvider().Tracer(instrumentationName),
		meter:        mnop.NewMeterProvider().Meter(instrumentationName),
		logger:       logger.Named("pipeline"),
	}
	for _, opt := range opts {
		opt(o)
	}

	inst, err := newInstruments(o.meter)
	if err != nil {
		return nil, err
	}
	o.instruments = inst
	o.suppressor = suppress.New(host, evaluator, logger)

	return o, nil
}

// Load schedules the entry point of every active addon and returns how many were scheduled.
func (o *Orchestrator) Load(ctx context.Context) int {
	active := o.registry.Active()
	for _, d := range active {
		ref := addon.CallbackRef{
			Hook:     d.EntryHook,
			Owner:    entryOwner,
			Method:   d.Key,
			Priority: d.EntryPriority,
		}
		o.host.AddAction(ref, func(io.Writer) {
			o.activate(ctx, d)
		})
		o.logger.Debug("scheduled addon", "addon", d.Key, "kind", d.Kind, "hook", d.EntryHook, "priority", d.EntryPriority)
	}

	o.logger.Info("loaded addons", "active", len(active))
	return len(active)
}

// activate runs one addon's mechanism. Consent is checked once here, not per surface.
func (o *Orchestrator) activate(ctx context.Context, d addon.Descriptor) {
	ctx, span := o.tracer.Start(ctx, "consent.addon", trace.WithAttributes(
		attribute.String("addon", d.Key),
		attribute.String("kind", d.Kind.String()),
	))
	defer span.End()
	defer o.recoverFault(ctx, d.Key)

	switch d.Kind {
	case addon.KindRewriter:
		cats := o.registry.Categories(d)
		if o.accepted(cats) {
			span.SetAttributes(attribute.Bool("accepted", true))
			return
		}
		o.registerRewriter(ctx, d, cats)

	case addon.KindSuppressor:
		cats := o.registry.Categories(d)
		if o.accepted(cats) {
			span.SetAttributes(attribute.Bool("accepted", true))
			return
		}
		o.suppress(ctx, d, cats)

	case addon.KindComposite:
		o.activateWidgets(ctx, d)

	default:
		o.logger.Error("unsupported addon kind", "addon", d.Key, "kind", d.Kind)
	}
}

// registerRewriter adds the addon's rewrite filter to both text surfaces, after every other filter.
func (o *Orchestrator) registerRewriter(ctx context.Context, d addon.Descriptor, cats addon.CategorySet) {
	// Consent was already refused for this render, the filter gates every match.
	rw := rewrite.New(nil, o.addonPlaceholder(d), o.logger)
	rules := rewrite.EmbedRules(cats)

	for _, surface := range addon.TextSurfaces {
		o.host.AddFilter(surface, addon.LastPriority, o.rewriteFilter(ctx, d.Key, rw, rules))
	}
	o.logger.Debug("registered rewriter", "addon", d.Key, "categories", cats.DisplayToken())
}

func (o *Orchestrator) rewriteFilter(ctx context.Context, key string, rw *rewrite.Rewriter, rules []rewrite.Rule) addon.Filter {
	return func(content string) string {
		out := content
		o.callback(ctx, "consent.rewrite", key, func(ctx context.Context) {
			rewritten, n := rw.Apply(content, rules)
			o.instruments.rewrote(ctx, key, n)
			out = rewritten
		})
		return out
	}
}

// callback runs fn, invoked by the host after activation, in its own span.
// The activation span has ended by then, so faults are recorded here.
func (o *Orchestrator) callback(ctx context.Context, name, key string, fn func(ctx context.Context)) {
	ctx, span := o.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("addon", key)))
	defer span.End()
	defer o.recoverFault(ctx, key)

	fn(ctx)
}

// suppress cancels the addon's callbacks and tags its enqueued scripts inert.
func (o *Orchestrator) suppress(ctx context.Context, d addon.Descriptor, cats addon.CategorySet) {
	n := o.suppressor.Cancel(d.Callbacks...)
	o.instruments.suppressed(ctx, d.Key, n)
	o.logger.Debug("suppressed addon", "addon", d.Key, "cancelled", n, "categories", cats.DisplayToken())

	if len(d.ScriptHandles) == 0 {
		return
	}
	rules := make([]rewrite.Rule, 0, len(d.ScriptHandles))
	for _, handle := range d.ScriptHandles {
		rules = append(rules, rewrite.ScriptHandleRule(handle, cats))
	}
	o.host.AddFilter(addon.SurfaceScriptTag, addon.LastPriority, o.rewriteFilter(ctx, d.Key, rewrite.New(nil, nil, o.logger), rules))
}

// activateWidgets gates each widget of a composite addon that is on the page and switched on.
func (o *Orchestrator) activateWidgets(ctx context.Context, d addon.Descriptor) {
	for _, w := range d.Widgets {
		if !o.host.WidgetActive(w.Key) {
			o.logger.Trace("widget not on page", "addon", d.Key, "widget", w.Key)
			continue
		}
		if !o.registry.WidgetEnabled(d, w) {
			o.logger.Debug("widget disabled", "addon", d.Key, "widget", w.Key)
			continue
		}

		cats := o.registry.WidgetCategories(d, w)
		if o.accepted(cats) {
			continue
		}

		o.host.AddAction(addon.CallbackRef{
			Hook:     w.SuppressHook,
			Owner:    entryOwner,
			Method:   d.Key + "/" + w.Key,
			Priority: w.SuppressPriority,
		}, func(io.Writer) {
			o.callback(ctx, "consent.widget", d.Key, func(ctx context.Context) {
				n := o.suppressor.SuppressIfNotAccepted(o.registry.WidgetCategories(d, w), w.Callbacks...)
				o.instruments.suppressed(ctx, d.Key, n)
			})
		})

		if w.DisplayHook == "" {
			continue
		}
		o.host.AddAction(addon.CallbackRef{
			Hook:     w.DisplayHook,
			Owner:    entryOwner,
			Method:   d.Key + "/" + w.Key + "/placeholder",
			Priority: addon.DefaultPriority,
		}, func(out io.Writer) {
			o.callback(ctx, "consent.widget_placeholder", d.Key, func(context.Context) {
				o.writeWidgetPlaceholder(out, d, w)
			})
		})
	}
}

func (o *Orchestrator) writeWidgetPlaceholder(out io.Writer, d addon.Descriptor, w addon.WidgetDescriptor) {
	if o.placeholders == nil {
		return
	}
	cats := o.registry.WidgetCategories(d, w)
	rep, ok := cats.Representative()
	if !ok {
		return
	}
	text, ok := o.placeholders.ResolveWidget(d.WidgetOption, w.Key, w.DefaultPlaceholder, cats.DisplayToken())
	if !ok {
		return
	}
	_, _ = fmt.Fprintf(out, `<div class="cookieconsent-optout-%s">%s</div>`, rep, text)
}

// RewriteContent rewrites content with the rules of the rewriter addon key.
// Content is returned unchanged when the addon's categories are accepted.
func (o *Orchestrator) RewriteContent(ctx context.Context, key, content string) (string, error) {
	d, err := o.registry.Get(key)
	if err != nil {
		return content, err
	}
	if d.Kind != addon.KindRewriter {
		return content, fmt.Errorf("%w: '%s' is a %s addon", addons.ErrWrongKind, key, d.Kind)
	}

	cats := o.registry.Categories(d)
	if o.accepted(cats) {
		return content, nil
	}

	out, n := rewrite.New(nil, o.addonPlaceholder(d), o.logger).Apply(content, rewrite.EmbedRules(cats))
	o.instruments.rewrote(ctx, key, n)
	return out, nil
}

// Suppress cancels the scheduled callbacks of the suppressor addon key
// unless its categories are accepted, and returns how many were cancelled.
func (o *Orchestrator) Suppress(ctx context.Context, key string) (int, error) {
	d, err := o.registry.Get(key)
	if err != nil {
		return 0, err
	}
	if d.Kind != addon.KindSuppressor {
		return 0, fmt.Errorf("%w: '%s' is a %s addon", addons.ErrWrongKind, key, d.Kind)
	}

	n := o.suppressor.SuppressIfNotAccepted(o.registry.Categories(d), d.Callbacks...)
	o.instruments.suppressed(ctx, key, n)
	return n, nil
}

func (o *Orchestrator) accepted(cats addon.CategorySet) bool {
	return o.consent.IsAccepted(cats)
}

func (o *Orchestrator) addonPlaceholder(d addon.Descriptor) rewrite.PlaceholderFunc {
	return func(cats addon.CategorySet) (string, bool) {
		if o.placeholders == nil {
			return "", false
		}
		return o.placeholders.ResolveAddon(d.Key, d.DefaultPlaceholder, cats.DisplayToken())
	}
}

// recoverFault contains a panicking addon so the rest of the page still renders.
func (o *Orchestrator) recoverFault(ctx context.Context, key string) {
	r := recover()
	if r == nil {
		return
	}

	err := fmt.Errorf("%w: %s: %v", ErrAddonFault, key, r)
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	o.instruments.fault(ctx, key)
	o.logger.Error("addon failed, rendering without it", "addon", key, "error", err)
}
