package pipeline

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net/http"
	"strconv"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/peteski22/prior-consent/internal/addons"
	"github.com/peteski22/prior-consent/internal/consent"
	"github.com/peteski22/prior-consent/internal/lifecycle"
	"github.com/peteski22/prior-consent/internal/placeholder"
	"github.com/peteski22/prior-consent/pkg/contract/addon"
)

type renderKey struct{}

// Render is the consent pipeline of a single request.
type Render struct {
	Host         *lifecycle.Host
	Orchestrator *Orchestrator

	loaded sync.Once
}

// Loaded fires the loaded hook, activating every scheduled addon. Only the first call has an effect.
func (r *Render) Loaded() {
	r.loaded.Do(func() {
		r.Host.Do(addon.HookLoaded, io.Discard)
	})
}

// WithRender returns a copy of ctx carrying render.
func WithRender(ctx context.Context, render *Render) context.Context {
	return context.WithValue(ctx, renderKey{}, render)
}

// RenderFrom returns the render stored in ctx.
func RenderFrom(ctx context.Context) (*Render, error) {
	r, ok := ctx.Value(renderKey{}).(*Render)
	if !ok || r == nil {
		return nil, ErrNoRender
	}
	return r, nil
}

// Factory builds request-scoped renders over a shared registry.
// NOTE: Use NewFactory to create a Factory.
type Factory struct {
	registry     *addons.Registry
	hostLanguage string
	logger       hclog.Logger
	opts         []Option
	setup        []func(*http.Request, *lifecycle.Host)
}

// NewFactory creates a Factory. hostLanguage is the site language used when
// the visitor states no preference.
func NewFactory(registry *addons.Registry, hostLanguage string, logger hclog.Logger, opts ...Option) *Factory {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Factory{
		registry:     registry,
		hostLanguage: hostLanguage,
		logger:       logger,
		opts:         opts,
	}
}

// OnRender registers fn to prepare every new host, e.g. to schedule the site's own callbacks.
func (f *Factory) OnRender(fn func(*http.Request, *lifecycle.Host)) {
	f.setup = append(f.setup, fn)
}

// New builds the render for r: consent from the consent cookie, language from Accept-Language.
func (f *Factory) New(ctx context.Context, r *http.Request) (*Render, error) {
	host := lifecycle.NewHost(f.logger)
	for _, fn := range f.setup {
		fn(r, host)
	}

	evaluator := consent.NewEvaluator(consent.FromRequest(r), f.logger)
	lang := placeholder.FromAcceptLanguage(r.Header.Get("Accept-Language"), f.hostLanguage)
	engine := placeholder.NewEngine(f.registry.Settings(), lang, f.logger)

	orch, err := NewOrchestrator(host, f.registry, evaluator, engine, f.logger, f.opts...)
	if err != nil {
		return nil, err
	}
	orch.Load(ctx)

	return &Render{Host: host, Orchestrator: orch}, nil
}

// Middleware returns a Chi-compatible middleware attaching a Render to each request.
// When the render cannot be built the request is served without consent gating.
func (f *Factory) Middleware() func(next http.Handler) http.Handler {
	logger := f.logger.Named("middleware")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			render, err := f.New(r.Context(), r)
			if err != nil {
				logger.Error("failed to build consent render, serving ungated", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithRender(r.Context(), render)))
		})
	}
}

// FilterHTML returns a middleware passing HTML responses through the render's
// content filters. It must be mounted after Middleware.
func FilterHTML(logger hclog.Logger) func(next http.Handler) http.Handler {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	logger = logger.Named("filter-html")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			render, err := RenderFrom(r.Context())
			if err != nil {
				logger.Warn("no render, response left unfiltered", "path", r.URL.Path)
				next.ServeHTTP(w, r)
				return
			}

			// 1. Capture the handler response.
			status, header, body := Capture(next, r)

			// 2. Filter HTML bodies only.
			if IsHTML(header.Get("Content-Type")) {
				render.Loaded()
				body = []byte(render.Host.ApplyFilters(addon.SurfaceContent, string(body)))
			}

			// 3. Write the final response.
			header.Set("Content-Length", strconv.Itoa(len(body)))
			WriteResponse(w, status, header, body)
		})
	}
}

// WriteResponse writes a buffered response to w.
func WriteResponse(w http.ResponseWriter, status int, header http.Header, body []byte) {
	for k, v := range header {
		w.Header()[k] = v
	}
	if status > 0 {
		w.WriteHeader(status)
	}
	if len(body) > 0 {
		_, _ = w.Write(body)
	}
}

// IsHTML reports whether contentType names an HTML document.
func IsHTML(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html"
}

// Capture serves r with next and returns the buffered response.
func Capture(next http.Handler, r *http.Request) (int, http.Header, []byte) {
	recorder := newResponseRecorder()
	next.ServeHTTP(recorder, r)
	return recorder.statusCode, recorder.header, recorder.body.Bytes()
}

// responseRecorder buffers a handler's response so it can be rewritten before sending.
type responseRecorder struct {
	header     http.Header
	statusCode int
	body       bytes.Buffer
}

// newResponseRecorder creates a new responseRecorder.
func newResponseRecorder() *responseRecorder {
	return &responseRecorder{
		header:     make(http.Header),
		statusCode: http.StatusOK,
	}
}

// Header returns the buffered response headers.
func (r *responseRecorder) Header() http.Header {
	return r.header
}

// WriteHeader captures the status code.
func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
}

// Write captures the response body.
func (r *responseRecorder) Write(b []byte) (int, error) {
	return r.body.Write(b)
}
