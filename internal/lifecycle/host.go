package lifecycle

import (
	"cmp"
	"fmt"
	"io"
	"math"
	"slices"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/peteski22/prior-consent/pkg/contract/addon"
)

var _ addon.LifecycleHost = (*Host)(nil)

type action struct {
	ref addon.CallbackRef
	fn  addon.Action
	seq uint64
}

type filter struct {
	priority int
	fn       addon.Filter
	seq      uint64
}

// Host runs prioritized callbacks at the lifecycle hooks of one page render.
// Callbacks on the same hook run in ascending priority, ties in registration order.
// NOTE: Use NewHost to create a Host.
type Host struct {
	mu      sync.Mutex
	logger  hclog.Logger
	seq     uint64
	actions map[string][]*action
	filters map[addon.Surface][]*filter
	widgets map[string]bool
}

// NewHost constructs an empty Host.
func NewHost(logger hclog.Logger) *Host {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Host{
		logger:  logger.Named("lifecycle"),
		actions: make(map[string][]*action),
		filters: make(map[addon.Surface][]*filter),
		widgets: make(map[string]bool),
	}
}

// AddAction schedules fn at ref.Hook with ref.Priority.
func (h *Host) AddAction(ref addon.CallbackRef, fn addon.Action) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq++
	h.actions[ref.Hook] = append(h.actions[ref.Hook], &action{ref: ref, fn: fn, seq: h.seq})
}

// Cancel removes the first scheduled action matching ref on every field.
func (h *Host) Cancel(ref addon.CallbackRef) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	list := h.actions[ref.Hook]
	i := slices.IndexFunc(list, func(a *action) bool { return a.ref == ref })
	if i < 0 {
		return false
	}
	h.actions[ref.Hook] = slices.Delete(list, i, i+1)
	return true
}

// Scheduled reports whether an action matching ref is still scheduled.
func (h *Host) Scheduled(ref addon.CallbackRef) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.ContainsFunc(h.actions[ref.Hook], func(a *action) bool { return a.ref == ref })
}

// Actions returns the references scheduled on hook in execution order.
func (h *Host) Actions(hook string) []addon.CallbackRef {
	h.mu.Lock()
	list := slices.Clone(h.actions[hook])
	h.mu.Unlock()

	slices.SortStableFunc(list, compareActions)
	refs := make([]addon.CallbackRef, 0, len(list))
	for _, a := range list {
		refs = append(refs, a.ref)
	}
	return refs
}

// Do runs the actions scheduled on hook, writing their output to w, and
// returns how many ran. Actions may cancel or schedule others on the same
// hook while it runs; removals take effect for anything not yet run and
// additions run if their priority has not been passed.
func (h *Host) Do(hook string, w io.Writer) int {
	if w == nil {
		w = io.Discard
	}

	ran := make(map[uint64]struct{})
	floor := minPriority
	var n int
	for {
		next := h.next(hook, ran, floor)
		if next == nil {
			return n
		}
		ran[next.seq] = struct{}{}
		floor = next.ref.Priority
		h.run(next, w)
		n++
	}
}

const minPriority = math.MinInt

func (h *Host) next(hook string, ran map[uint64]struct{}, floor int) *action {
	h.mu.Lock()
	defer h.mu.Unlock()

	var best *action
	for _, a := range h.actions[hook] {
		if _, ok := ran[a.seq]; ok || a.ref.Priority < floor {
			continue
		}
		if best == nil || compareActions(a, best) < 0 {
			best = a
		}
	}
	return best
}

// run executes one action. A panicking callback is logged and skipped so the
// rest of the render continues.
func (h *Host) run(a *action, w io.Writer) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("callback panicked", "callback", a.ref.String(), "panic", fmt.Sprint(r))
		}
	}()
	a.fn(w)
}

// AddFilter registers fn against surface with the given priority.
func (h *Host) AddFilter(surface addon.Surface, priority int, fn addon.Filter) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq++
	h.filters[surface] = append(h.filters[surface], &filter{priority: priority, fn: fn, seq: h.seq})
}

// ApplyFilters passes content through every filter registered on surface.
func (h *Host) ApplyFilters(surface addon.Surface, content string) string {
	h.mu.Lock()
	list := slices.Clone(h.filters[surface])
	h.mu.Unlock()

	slices.SortStableFunc(list, func(a, b *filter) int {
		if c := cmp.Compare(a.priority, b.priority); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})

	for _, f := range list {
		content = h.applyFilter(surface, f, content)
	}
	return content
}

func (h *Host) applyFilter(surface addon.Surface, f *filter, content string) (out string) {
	out = content
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("filter panicked", "surface", surface, "priority", f.priority, "panic", fmt.Sprint(r))
			out = content
		}
	}()
	return f.fn(content)
}

// SetWidgetActive marks a widget as placed on the page being rendered.
func (h *Host) SetWidgetActive(widget string, active bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if active {
		h.widgets[widget] = true
		return
	}
	delete(h.widgets, widget)
}

// WidgetActive reports whether the widget is placed on the page being rendered.
func (h *Host) WidgetActive(widget string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.widgets[widget]
}

func compareActions(a, b *action) int {
	if c := cmp.Compare(a.ref.Priority, b.ref.Priority); c != 0 {
		return c
	}
	return cmp.Compare(a.seq, b.seq)
}
