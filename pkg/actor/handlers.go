package actor

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/larsjoon/joonify/pkg/signature"
)

// SecretHeader carries the shared secret on privileged reads.
const SecretHeader = "X-Internal-Secret"

// maxUpdateBody bounds the size of a signed update.
const maxUpdateBody = 1 << 20

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Viewers are anonymous browsers on any origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler returns the actor's HTTP surface.
func (a *Actor) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/get-stats", a.handleGetStats).Methods(http.MethodGet)
	r.HandleFunc("/api/update", a.handleUpdate).Methods(http.MethodPost)
	r.MatcherFunc(isWebSocketUpgrade).HandlerFunc(a.handleSubscribe)

	r.NotFoundHandler = http.HandlerFunc(notFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)
	return r
}

func (a *Actor) handleGetStats(w http.ResponseWriter, r *http.Request) {
	snap, err := a.Stats(r.Context(), r.Header.Get(SecretHeader))
	if errors.Is(err, ErrForbidden) {
		writeText(w, http.StatusForbidden, "Forbidden")
		return
	}
	if err != nil {
		a.logger.WithError(err).Error("Failed to read stats")
		writeText(w, http.StatusInternalServerError, "Internal error")
		return
	}

	data, err := snap.Encode()
	if err != nil {
		a.logger.WithError(err).Error("Failed to encode stats")
		writeText(w, http.StatusInternalServerError, "Internal error")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (a *Actor) handleUpdate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUpdateBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeText(w, http.StatusRequestEntityTooLarge, "Payload too large")
			return
		}
		writeText(w, http.StatusBadRequest, "Failed to read body")
		return
	}

	err = a.Update(r.Context(), body, r.Header.Get(signature.Header))
	switch {
	case err == nil:
		writeText(w, http.StatusOK, "Stats updated")
	case errors.Is(err, ErrInvalidSignature):
		writeText(w, http.StatusUnauthorized, "Invalid signature")
	case errors.Is(err, ErrInvalidPayload):
		writeText(w, http.StatusBadRequest, "Invalid payload")
	case errors.Is(err, ErrClosed):
		writeText(w, http.StatusServiceUnavailable, "Shutting down")
	default:
		a.logger.WithError(err).Error("Failed to update stats")
		writeText(w, http.StatusInternalServerError, "Internal error")
	}
}

func (a *Actor) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		a.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}

	if _, err := a.Subscribe(r.Context(), conn); err != nil {
		a.logger.WithError(err).Error("Failed to open subscription")
	}
}

func isWebSocketUpgrade(r *http.Request, _ *mux.RouteMatch) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusNotFound, "Not found")
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusMethodNotAllowed, "Method not allowed")
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	io.WriteString(w, body)
}
