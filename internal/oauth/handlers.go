// Package oauth provides the HTTP boundary: provider callbacks, health checks and metrics.
package oauth

import (
	"context"
	"errors"
	"html/template"
	"net"
	"net/http"

	"go.uber.org/zap"

	"github.com/parsascontentcorner/linkgate/internal/auth"
	"github.com/parsascontentcorner/linkgate/internal/metrics"
	"github.com/parsascontentcorner/linkgate/internal/models"
	"github.com/parsascontentcorner/linkgate/internal/ratelimit"
)

// CallbackFlow completes a provider callback
type CallbackFlow interface {
	HandleCallback(ctx context.Context, providerName, code, token string) (*auth.CallbackResult, error)
}

// Handlers contains all HTTP handlers
type Handlers struct {
	flow    CallbackFlow
	limiter *ratelimit.ClientLimiter
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewHandlers creates a new handlers instance. limiter and m may be nil.
func NewHandlers(flow CallbackFlow, limiter *ratelimit.ClientLimiter, m *metrics.Metrics, logger *zap.Logger) *Handlers {
	return &Handlers{
		flow:    flow,
		limiter: limiter,
		metrics: m,
		logger:  logger,
	}
}

// HealthHandler handles health check requests
func (h *Handlers) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		h.logger.Error("failed to write health check response", zap.Error(err))
	}
}

// CallbackHandler handles GET /link/{provider}/callback
func (h *Handlers) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	provider := r.PathValue("provider")

	if h.limiter != nil && !h.limiter.Allow(clientKey(r)) {
		h.logger.Warn("callback rate limited",
			zap.String("provider", provider),
			zap.String("remote_addr", r.RemoteAddr),
		)
		h.renderError(w, provider, http.StatusTooManyRequests, "Too many requests", "Please wait a minute before trying again.")
		return
	}

	query := r.URL.Query()

	// The user declined or the provider failed before redirecting back
	if errParam := query.Get("error"); errParam != "" {
		errDesc := query.Get("error_description")
		h.logger.Info("oauth error from provider",
			zap.String("provider", provider),
			zap.String("error", errParam),
			zap.String("description", errDesc),
		)
		if errDesc == "" {
			errDesc = errParam
		}
		h.renderError(w, provider, http.StatusBadRequest, "Authorization failed", "The provider returned an error: "+errDesc)
		return
	}

	result, err := h.flow.HandleCallback(r.Context(), provider, query.Get("code"), query.Get("state"))
	if err != nil {
		status, title, message := describeError(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("failed to handle callback", zap.String("provider", provider), zap.Error(err))
		} else {
			h.logger.Info("rejected callback", zap.String("provider", provider), zap.Error(err))
		}
		h.renderError(w, provider, status, title, message)
		return
	}

	switch res := result.Result.(type) {
	case models.LinkRejected:
		h.renderError(w, provider, http.StatusConflict, "Link rejected", "This account is "+string(res.Reason)+".")
	case models.LinkSuccess:
		h.renderSuccess(w, provider, res)
	default:
		h.logger.Error("callback produced no result", zap.String("provider", provider))
		h.renderError(w, provider, http.StatusInternalServerError, "Something went wrong", "Failed to complete linking. Please try again.")
	}
}

// describeError maps a link flow error to a status and page text
func describeError(err error) (int, string, string) {
	switch {
	case errors.Is(err, auth.ErrUnknownProvider):
		return http.StatusBadRequest, "Invalid request", "This provider is not supported."
	case errors.Is(err, auth.ErrMissingCode), errors.Is(err, auth.ErrInvalidState):
		return http.StatusBadRequest, "Invalid request", "The link is invalid. Request a new one in game."
	case errors.Is(err, auth.ErrStateExpired):
		return http.StatusBadRequest, "Link expired", "This link has expired. Request a new one in game."
	case errors.Is(err, auth.ErrIdentityMismatch):
		return http.StatusConflict, "Wrong account", "You signed in with a different account than the one you are linking."
	default:
		return http.StatusInternalServerError, "Something went wrong", "Failed to complete linking. Please try again."
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type pageData struct {
	Title   string
	Message string
	Detail  string
	Success bool
}

// renderSuccess renders the confirmation page
func (h *Handlers) renderSuccess(w http.ResponseWriter, provider string, res models.LinkSuccess) {
	data := pageData{
		Title:   "Account linked!",
		Message: "Your account has been linked successfully.",
		Detail:  "You can now close this window and return to the game.",
		Success: true,
	}
	if res.Ticket != nil && res.Ticket.Status == models.TicketStatusPending {
		data.Title = "Link submitted"
		data.Message = "Your link request is waiting for review."
		data.Detail = "You will be let in once it is approved."
	}
	h.render(w, provider, http.StatusOK, data)
}

// renderError renders an error page with the given status
func (h *Handlers) renderError(w http.ResponseWriter, provider string, status int, title, message string) {
	h.render(w, provider, status, pageData{
		Title:   title,
		Message: message,
		Detail:  "Please close this window and try again.",
	})
}

func (h *Handlers) render(w http.ResponseWriter, provider string, status int, data pageData) {
	h.metrics.RecordCallback(provider, status)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := page.Execute(w, data); err != nil {
		h.logger.Error("failed to write callback page", zap.Error(err))
	}
}

var page = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Oxygen, Ubuntu, Cantarell, sans-serif;
            display: flex;
            justify-content: center;
            align-items: center;
            min-height: 100vh;
            margin: 0;
            background: linear-gradient(135deg, #2b5876 0%, #4e4376 100%);
        }
        .container {
            background: white;
            padding: 3rem;
            border-radius: 10px;
            box-shadow: 0 10px 40px rgba(0,0,0,0.2);
            text-align: center;
            max-width: 400px;
        }
        .icon {
            width: 80px;
            height: 80px;
            margin: 0 auto 1rem;
            border-radius: 50%;
            display: flex;
            align-items: center;
            justify-content: center;
        }
        .icon.ok { background: #4caf50; }
        .icon.fail { background: #f44336; }
        .icon svg {
            width: 50px;
            height: 50px;
            stroke: white;
            stroke-width: 3;
            fill: none;
        }
        h1 { color: #333; margin: 0 0 1rem; }
        p { color: #666; margin: 0; line-height: 1.6; }
    </style>
</head>
<body>
    <div class="container">
        {{if .Success}}
        <div class="icon ok"><svg viewBox="0 0 52 52"><path d="M14 27l7.5 7.5L38 18"/></svg></div>
        {{else}}
        <div class="icon fail"><svg viewBox="0 0 52 52"><path d="M16 16l20 20M36 16l-20 20"/></svg></div>
        {{end}}
        <h1>{{.Title}}</h1>
        <p>{{.Message}}</p>
        <p style="margin-top: 1rem;">{{.Detail}}</p>
    </div>
</body>
</html>
`))
