package actor

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/larsjoon/joonify/pkg/signature"
)

func doRequest(t *testing.T, h http.Handler, req *http.Request) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return rec.Code, string(body)
}

func TestHandler_GetStats(t *testing.T) {
	a := newTestActor(t, nil)
	h := a.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/get-stats", nil)
	code, body := doRequest(t, h, req)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "Forbidden", body)

	req = httptest.NewRequest(http.MethodGet, "/api/get-stats", nil)
	req.Header.Set(SecretHeader, "wrong")
	code, _ = doRequest(t, h, req)
	assert.Equal(t, http.StatusForbidden, code)

	req = httptest.NewRequest(http.MethodGet, "/api/get-stats", nil)
	req.Header.Set(SecretHeader, testSecret)
	code, body = doRequest(t, h, req)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "{}", body)
}

func TestHandler_Update(t *testing.T) {
	a := newTestActor(t, nil)
	h := a.Handler()
	payload := `{"visitors-count":12}`

	tests := []struct {
		name     string
		body     string
		tag      string
		wantCode int
		wantBody string
	}{
		{
			name:     "missing signature",
			body:     payload,
			wantCode: http.StatusUnauthorized,
			wantBody: "Invalid signature",
		},
		{
			name:     "signature over other body",
			body:     payload,
			tag:      signature.Sign(testSecret, []byte(`{"visitors-count":13}`)),
			wantCode: http.StatusUnauthorized,
			wantBody: "Invalid signature",
		},
		{
			name:     "signed but invalid payload",
			body:     `{"visitors-count":-4}`,
			tag:      signature.Sign(testSecret, []byte(`{"visitors-count":-4}`)),
			wantCode: http.StatusBadRequest,
			wantBody: "Invalid payload",
		},
		{
			name:     "valid",
			body:     payload,
			tag:      signature.Sign(testSecret, []byte(payload)),
			wantCode: http.StatusOK,
			wantBody: "Stats updated",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/update", strings.NewReader(tt.body))
			if tt.tag != "" {
				req.Header.Set(signature.Header, tt.tag)
			}
			code, body := doRequest(t, h, req)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantBody, body)
		})
	}

	snap, err := a.Stats(context.Background(), testSecret)
	require.NoError(t, err)
	assert.JSONEq(t, `12`, string(snap["visitors-count"]))
}

func TestHandler_UpdateBodyErrors(t *testing.T) {
	h := newTestActor(t, nil).Handler()

	t.Run("too large", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/update", strings.NewReader(strings.Repeat("1", maxUpdateBody+1)))
		code, body := doRequest(t, h, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, code)
		assert.Equal(t, "Payload too large", body)
	})

	t.Run("read failure", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/update", iotest.ErrReader(errors.New("connection reset")))
		code, body := doRequest(t, h, req)
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "Failed to read body", body)
	})
}

func TestHandler_NotFound(t *testing.T) {
	a := newTestActor(t, nil)

	code, body := doRequest(t, a.Handler(), httptest.NewRequest(http.MethodGet, "/somewhere", nil))
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Not found", body)
}

func TestHandler_WebSocketSubscription(t *testing.T) {
	a := newTestActor(t, nil)
	server := httptest.NewServer(a.Handler())
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/live"
	dial := func() *websocket.Conn {
		conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
		t.Cleanup(func() { conn.Close() })
		return conn
	}
	read := func(conn *websocket.Conn) string {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		return string(msg)
	}

	viewerA := dial()
	viewerB := dial()
	assert.Equal(t, "{}", read(viewerA))
	assert.Equal(t, "{}", read(viewerB))

	payload := `{"countries-count":2,"visitors-count":12}`
	req, err := http.NewRequest(http.MethodPost, server.URL+"/api/update", strings.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set(signature.Header, signature.Sign(testSecret, []byte(payload)))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	gotA := read(viewerA)
	gotB := read(viewerB)
	assert.JSONEq(t, payload, gotA)
	assert.Equal(t, gotA, gotB)

	viewerB.Close()
	require.Eventually(t, func() bool { return a.SubscriberCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	late := dial()
	assert.JSONEq(t, payload, read(late))
}
