package grpcplugin

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	pb "github.com/mozilla-ai/mcpd-plugins-sdk-go/pkg/plugins/v1/plugins"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/peteski22/prior-consent/internal/addons"
	"github.com/peteski22/prior-consent/internal/consent"
	"github.com/peteski22/prior-consent/internal/settings"
)

const (
	youtubeEmbed = `<p><iframe src="https://www.youtube.com/embed/abc123"></iframe></p>`
	declined     = "{necessary:true,preferences:true,statistics:true,marketing:false}"
	accepted     = "{necessary:true,preferences:true,statistics:true,marketing:true}"
)

func newServer(t *testing.T) *Server {
	t.Helper()
	store := settings.NewMemoryStore(map[string]any{
		settings.OptionAvailableAddons: map[string]any{
			addons.KeyEmbedAutocorrect: map[string]any{"enabled": true},
		},
	})
	registry, err := addons.NewRegistry(addons.DefaultCatalog(), settings.NewService(store, nil), settings.NewPluginState(store), nil)
	require.NoError(t, err)
	return NewServer(registry, "test", nil)
}

func htmlResponse(consentValue string) *pb.HTTPResponse {
	headers := map[string]string{
		"Content-Type":   "text/html; charset=utf-8",
		"Content-Length": strconv.Itoa(len(youtubeEmbed)),
	}
	if consentValue != "" {
		headers[DefaultConsentHeader] = consentValue
	}
	return &pb.HTTPResponse{
		StatusCode: http.StatusOK,
		Headers:    headers,
		Body:       []byte(youtubeEmbed),
		Continue:   true,
	}
}

func TestServer_Metadata(t *testing.T) {
	s := newServer(t)

	meta, err := s.GetMetadata(context.Background(), &emptypb.Empty{})
	require.NoError(t, err)
	assert.Equal(t, PluginName, meta.GetName())
	assert.Equal(t, "test", meta.GetVersion())

	caps, err := s.GetCapabilities(context.Background(), &emptypb.Empty{})
	require.NoError(t, err)
	assert.Equal(t, []pb.Flow{pb.Flow_FLOW_RESPONSE}, caps.GetFlows())
}

func TestServer_HandleRequestContinues(t *testing.T) {
	resp, err := newServer(t).HandleRequest(context.Background(), &pb.HTTPRequest{})
	require.NoError(t, err)
	assert.True(t, resp.GetContinue())
}

func TestServer_HandleResponse_GatesWithoutConsent(t *testing.T) {
	out, err := newServer(t).HandleResponse(context.Background(), htmlResponse(declined))
	require.NoError(t, err)

	body := string(out.GetBody())
	assert.Contains(t, body, `data-src="https://www.youtube.com/embed/abc123"`)
	assert.NotContains(t, out.GetHeaders(), DefaultConsentHeader)
	assert.Equal(t, strconv.Itoa(len(body)), out.GetHeaders()["Content-Length"])
	assert.True(t, out.GetContinue())
}

func TestServer_HandleResponse_AcceptedUnchanged(t *testing.T) {
	out, err := newServer(t).HandleResponse(context.Background(), htmlResponse(accepted))
	require.NoError(t, err)

	assert.Equal(t, youtubeEmbed, string(out.GetBody()))
	assert.NotContains(t, out.GetHeaders(), DefaultConsentHeader)
}

func TestServer_HandleResponse_MissingHeaderAcceptsNothing(t *testing.T) {
	out, err := newServer(t).HandleResponse(context.Background(), htmlResponse(""))
	require.NoError(t, err)

	assert.Contains(t, string(out.GetBody()), "data-src=")
}

func TestServer_HandleResponse_MalformedFailsOpen(t *testing.T) {
	out, err := newServer(t).HandleResponse(context.Background(), htmlResponse("garbage"))
	require.NoError(t, err)

	assert.Equal(t, youtubeEmbed, string(out.GetBody()))
}

func TestServer_HandleResponse_NonHTMLUntouched(t *testing.T) {
	resp := htmlResponse(declined)
	resp.Headers["Content-Type"] = "application/json"

	out, err := newServer(t).HandleResponse(context.Background(), resp)
	require.NoError(t, err)

	assert.Equal(t, youtubeEmbed, string(out.GetBody()))
	assert.NotContains(t, out.GetHeaders(), DefaultConsentHeader)
}

func TestServer_Configure_ConsentHeader(t *testing.T) {
	s := newServer(t)
	_, err := s.Configure(context.Background(), &pb.PluginConfig{
		CustomConfig: map[string]string{configConsentHeader: "X-Consent"},
	})
	require.NoError(t, err)

	resp := htmlResponse("")
	resp.Headers["x-consent"] = accepted

	out, err := s.HandleResponse(context.Background(), resp)
	require.NoError(t, err)

	assert.Equal(t, youtubeEmbed, string(out.GetBody()))
	assert.NotContains(t, out.GetHeaders(), "x-consent")
}

type failingHandler struct{}

func (failingHandler) HandleResponse(context.Context, *pb.HTTPResponse) (*pb.HTTPResponse, error) {
	return nil, errors.New("plugin unavailable")
}

func newPluginRouter(plugin ResponseHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(Middleware(plugin, "", nil))
	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, youtubeEmbed)
	})
	return r
}

func TestMiddleware_ForwardsConsentCookie(t *testing.T) {
	router := newPluginRouter(newServer(t))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: consent.CookieName, Value: url.QueryEscape(accepted)})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, youtubeEmbed, rec.Body.String())
	assert.Empty(t, rec.Header().Get(DefaultConsentHeader))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Contains(t, rec.Body.String(), "data-src=")
}

func TestMiddleware_PluginFailureWritesOriginal(t *testing.T) {
	rec := httptest.NewRecorder()
	newPluginRouter(failingHandler{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, youtubeEmbed, rec.Body.String())
	assert.Equal(t, "text/html", rec.Header().Get("Content-Type"))
}

func TestServer_StopRunsHook(t *testing.T) {
	s := newServer(t)
	stopped := make(chan struct{})
	s.OnStop(func() { close(stopped) })

	_, err := s.Stop(context.Background(), &emptypb.Empty{})
	require.NoError(t, err)

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("stop hook not called")
	}
}
