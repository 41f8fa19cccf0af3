package gateway

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/larsjoon/joonify/pkg/analytics"
	"github.com/larsjoon/joonify/pkg/httputil"
	"github.com/larsjoon/joonify/pkg/observability"
	"github.com/larsjoon/joonify/pkg/relay"
)

const maxContactBody = 64 << 10

func (g *Gateway) handleContact(w http.ResponseWriter, r *http.Request) {
	logger := observability.FromContext(r.Context())

	var req relay.ContactRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxContactBody)
	if err := httputil.ParseJSON(r, &req); err != nil {
		g.countContact("invalid")
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := req.Validate(); err != nil {
		g.countContact("invalid")
		httputil.WriteBadRequest(w, "Missing fields")
		return
	}

	if err := g.sender.Send(r.Context(), req); err != nil {
		g.countContact("failed")
		logger.WithError(err).Error("Failed to relay contact message")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "Failed to send email")
		return
	}

	g.countContact("ok")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	httputil.WriteSuccess(w, map[string]bool{"success": true})
}

func handleContactPreflight(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Access-Control-Max-Age", "3600")
	httputil.WriteNoContent(w)
}

func (g *Gateway) handleForceUpdate(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if subtle.ConstantTimeCompare([]byte(key), []byte(g.secret)) != 1 {
		httputil.WriteUnauthorized(w, "Unauthorized")
		return
	}

	result, err := g.aggregator.Run(r.Context())
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("Forced update failed")

		var upstream *analytics.UpstreamError
		if errors.As(err, &upstream) {
			httputil.WriteErrorMessage(w, http.StatusBadGateway, "Update Failed: analytics provider error")
			return
		}
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "Update Failed")
		return
	}

	httputil.WriteSuccess(w, result)
}
