package grpcplugin

import (
	"context"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"
	pb "github.com/mozilla-ai/mcpd-plugins-sdk-go/pkg/plugins/v1/plugins"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/peteski22/prior-consent/internal/addons"
	"github.com/peteski22/prior-consent/internal/consent"
	"github.com/peteski22/prior-consent/internal/lifecycle"
	"github.com/peteski22/prior-consent/internal/pipeline"
	"github.com/peteski22/prior-consent/internal/placeholder"
	"github.com/peteski22/prior-consent/pkg/contract/addon"
)

const (
	// PluginName is the name the consent gate reports in its metadata.
	PluginName = "consent-gate"

	// DefaultConsentHeader carries the visitor's consent cookie value on the response.
	DefaultConsentHeader = "X-Cookie-Consent"

	// configConsentHeader and configHostLanguage are the CustomConfig keys the gate understands.
	configConsentHeader = "consent_header"
	configHostLanguage  = "host_language"
)

var _ pb.PluginServer = (*Server)(nil)

// Server is the consent gate exposed as an out-of-process plugin. It gates
// third-party embeds in HTML response bodies using the consent value the
// upstream handler copies into a response header.
// NOTE: Use NewServer to create a Server.
type Server struct {
	pb.UnimplementedPluginServer

	mu           sync.RWMutex
	registry     *addons.Registry
	header       string
	hostLanguage string
	version      string
	onStop       func()
	logger       hclog.Logger
}

// NewServer creates a consent gate plugin over registry.
func NewServer(registry *addons.Registry, version string, logger hclog.Logger) *Server {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Server{
		registry: registry,
		header:   DefaultConsentHeader,
		version:  version,
		logger:   logger.Named(PluginName),
	}
}

func (s *Server) GetMetadata(_ context.Context, _ *emptypb.Empty) (*pb.Metadata, error) {
	return &pb.Metadata{
		Name:        PluginName,
		Version:     s.version,
		Description: "Holds back third-party embeds in HTML responses until the visitor consents",
	}, nil
}

func (s *Server) GetCapabilities(_ context.Context, _ *emptypb.Empty) (*pb.Capabilities, error) {
	return &pb.Capabilities{
		Flows: []pb.Flow{pb.Flow_FLOW_RESPONSE},
	}, nil
}

func (s *Server) CheckHealth(_ context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	return &emptypb.Empty{}, nil
}

func (s *Server) CheckReady(_ context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	return &emptypb.Empty{}, nil
}

// Configure applies consent_header and host_language from the custom config.
func (s *Server) Configure(_ context.Context, cfg *pb.PluginConfig) (*emptypb.Empty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h := strings.TrimSpace(cfg.GetCustomConfig()[configConsentHeader]); h != "" {
		s.header = h
	}
	if l := strings.TrimSpace(cfg.GetCustomConfig()[configHostLanguage]); l != "" {
		s.hostLanguage = l
	}
	s.logger.Info("configured", "consent_header", s.header, "host_language", s.hostLanguage)

	return &emptypb.Empty{}, nil
}

// OnStop sets fn to run in the background when the host asks the plugin to stop.
func (s *Server) OnStop(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStop = fn
}

func (s *Server) Stop(_ context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	s.mu.RLock()
	fn := s.onStop
	s.mu.RUnlock()

	s.logger.Info("stop requested")
	if fn != nil {
		go fn()
	}
	return &emptypb.Empty{}, nil
}

// HandleRequest passes requests through, the gate only acts on responses.
func (s *Server) HandleRequest(_ context.Context, _ *pb.HTTPRequest) (*pb.HTTPResponse, error) {
	return &pb.HTTPResponse{Continue: true}, nil
}

// HandleResponse gates embeds in HTML bodies. The consent header is always
// removed from the response; any failure leaves the body as it was.
func (s *Server) HandleResponse(ctx context.Context, resp *pb.HTTPResponse) (*pb.HTTPResponse, error) {
	s.mu.RLock()
	headerName, hostLanguage := s.header, s.hostLanguage
	s.mu.RUnlock()

	headers := make(map[string]string, len(resp.GetHeaders()))
	for k, v := range resp.GetHeaders() {
		headers[k] = v
	}
	raw, hasConsent := popHeader(headers, headerName)

	out := &pb.HTTPResponse{
		StatusCode: resp.GetStatusCode(),
		Headers:    headers,
		Body:       resp.GetBody(),
		Continue:   true,
	}

	contentType, _ := lookupHeader(headers, "Content-Type")
	if !pipeline.IsHTML(contentType) || len(out.Body) == 0 {
		return out, nil
	}

	source := consentSource(raw, hasConsent)
	contentLanguage, _ := lookupHeader(headers, "Content-Language")

	body, err := s.gate(ctx, string(out.Body), source, contentLanguage, hostLanguage)
	if err != nil {
		s.logger.Error("gating failed, body left unchanged", "error", err)
		return out, nil
	}

	out.Body = []byte(body)
	if k, ok := headerKey(headers, "Content-Length"); ok {
		headers[k] = strconv.Itoa(len(out.Body))
	}
	return out, nil
}

func (s *Server) gate(ctx context.Context, body string, source addon.ConsentSource, contentLanguage, hostLanguage string) (string, error) {
	host := lifecycle.NewHost(s.logger)
	evaluator := consent.NewEvaluator(source, s.logger)
	engine := placeholder.NewEngine(s.registry.Settings(), placeholder.FromAcceptLanguage(contentLanguage, hostLanguage), s.logger)

	orch, err := pipeline.NewOrchestrator(host, s.registry, evaluator, engine, s.logger)
	if err != nil {
		return "", err
	}
	orch.Load(ctx)
	host.Do(addon.HookLoaded, io.Discard)

	return host.ApplyFilters(addon.SurfaceContent, body), nil
}

// consentSource parses the forwarded cookie value. A missing header means the
// visitor has not answered; an unparsable one fails open.
func consentSource(raw string, present bool) addon.ConsentSource {
	if !present {
		return consent.NewStaticSource()
	}
	src, err := consent.ParseCookie(raw)
	if err != nil {
		return consent.SourceFunc(func([]addon.Category) (bool, error) {
			return false, err
		})
	}
	return src
}

func headerKey(headers map[string]string, name string) (string, bool) {
	for k := range headers {
		if strings.EqualFold(k, name) {
			return k, true
		}
	}
	return "", false
}

func lookupHeader(headers map[string]string, name string) (string, bool) {
	k, ok := headerKey(headers, name)
	if !ok {
		return "", false
	}
	return headers[k], true
}

func popHeader(headers map[string]string, name string) (string, bool) {
	k, ok := headerKey(headers, name)
	if !ok {
		return "", false
	}
	v := headers[k]
	delete(headers, k)
	return v, true
}
