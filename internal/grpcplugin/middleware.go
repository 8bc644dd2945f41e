package grpcplugin

import (
	"context"
	"net/http"

	"github.com/hashicorp/go-hclog"
	pb "github.com/mozilla-ai/mcpd-plugins-sdk-go/pkg/plugins/v1/plugins"

	"github.com/peteski22/prior-consent/internal/consent"
	"github.com/peteski22/prior-consent/internal/pipeline"
)

// ResponseHandler processes an outbound response. Both Client and Server implement it.
type ResponseHandler interface {
	HandleResponse(ctx context.Context, resp *pb.HTTPResponse) (*pb.HTTPResponse, error)
}

// Middleware returns a Chi-compatible middleware sending every response through
// plugin. The request's consent cookie is forwarded in consentHeader. If the
// plugin fails the original response is written.
func Middleware(plugin ResponseHandler, consentHeader string, logger hclog.Logger) func(next http.Handler) http.Handler {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	logger = logger.Named("plugin-middleware")
	if consentHeader == "" {
		consentHeader = DefaultConsentHeader
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			status, header, body := pipeline.Capture(next, r)

			resp := &pb.HTTPResponse{
				StatusCode: int32(status),
				Headers:    flattenHeader(header),
				Body:       body,
				Continue:   true,
			}
			if c, err := r.Cookie(consent.CookieName); err == nil {
				resp.Headers[consentHeader] = c.Value
			}

			final, err := plugin.HandleResponse(r.Context(), resp)
			if err != nil {
				logger.Error("plugin response flow failed, writing original response", "error", err)
				pipeline.WriteResponse(w, status, header, body)
				return
			}

			pipeline.WriteResponse(w, int(final.GetStatusCode()), expandHeader(final.GetHeaders()), final.GetBody())
		})
	}
}

// flattenHeader keeps the first value of each header, the plugin wire format carries one.
func flattenHeader(h http.Header) map[string]string {
	m := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			m[k] = v[0]
		}
	}
	return m
}

func expandHeader(m map[string]string) http.Header {
	h := make(http.Header, len(m))
	for k, v := range m {
		h.Set(k, v)
	}
	return h
}
