package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGraphQLServer(t *testing.T, status int, body string) (*httptest.Server, *graphQLRequest) {
	t.Helper()
	var captured graphQLRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer cf-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, &captured))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)
	return server, &captured
}

func newTestProvider(endpoint string) *CloudflareProvider {
	return NewCloudflareProvider(CloudflareConfig{
		Endpoint: endpoint,
		Token:    "cf-token",
		Timeout:  2 * time.Second,
	})
}

func TestCloudflareProvider_Query(t *testing.T) {
	server, captured := newGraphQLServer(t, http.StatusOK, `{
		"data": {"viewer": {"zones": [{
			"httpRequests1dGroups": [{"uniq": {"uniques": 70}}, {"uniq": {"uniques": 50}}],
			"httpRequestsAdaptiveGroups": [
				{"count": 10, "dimensions": {"clientCountryName": "US"}},
				{"count": 4, "dimensions": {"clientCountryName": "XX"}}
			]
		}]}},
		"errors": null
	}`)

	w := Windows{VisitorsSince: "2026-03-01", CountriesSince: "2026-03-30T13:30:00Z"}
	zone, err := newTestProvider(server.URL).Query(context.Background(), "zone-123", w)
	require.NoError(t, err)

	assert.Equal(t, int64(120), SumUniques(zone.DailyGroups))
	assert.Len(t, zone.AdaptiveGroups, 2)
	assert.Equal(t, "US", zone.AdaptiveGroups[0].Dimensions.ClientCountryName)

	assert.Contains(t, captured.Query, "httpRequests1dGroups(limit: 30")
	assert.Contains(t, captured.Query, "httpRequestsAdaptiveGroups(limit: 5000")
	assert.Equal(t, "zone-123", captured.Variables["zoneTag"])
	assert.Equal(t, "2026-03-01", captured.Variables["visitorsSince"])
	assert.Equal(t, "2026-03-30T13:30:00Z", captured.Variables["countriesSince"])
}

func TestCloudflareProvider_UpstreamErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{
			name:    "graphql errors",
			status:  http.StatusOK,
			body:    `{"data": null, "errors": [{"message": "zone not found"}]}`,
			wantMsg: "zone not found",
		},
		{
			name:    "missing data",
			status:  http.StatusOK,
			body:    `{"errors": []}`,
			wantMsg: "no data.viewer",
		},
		{
			name:    "missing viewer",
			status:  http.StatusOK,
			body:    `{"data": {}}`,
			wantMsg: "no data.viewer",
		},
		{
			name:    "no zones",
			status:  http.StatusOK,
			body:    `{"data": {"viewer": {"zones": []}}}`,
			wantMsg: "no zones",
		},
		{
			name:    "not json",
			status:  http.StatusOK,
			body:    `<html>`,
			wantMsg: "upstream decode",
		},
		{
			name:    "http error",
			status:  http.StatusUnauthorized,
			body:    `{"errors":[{"message":"bad token"}]}`,
			wantMsg: "status 401",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := newGraphQLServer(t, tt.status, tt.body)

			_, err := newTestProvider(server.URL).Query(context.Background(), "zone", Windows{})
			require.Error(t, err)

			var upstream *UpstreamError
			require.True(t, errors.As(err, &upstream), "want UpstreamError, got %T", err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestCloudflareProvider_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	provider := NewCloudflareProvider(CloudflareConfig{
		Endpoint: server.URL,
		Token:    "cf-token",
		Timeout:  50 * time.Millisecond,
	})

	_, err := provider.Query(context.Background(), "zone", Windows{})
	var upstream *UpstreamError
	assert.True(t, errors.As(err, &upstream))
}

func TestUpstreamError_Error(t *testing.T) {
	err := &UpstreamError{Op: "query", StatusCode: 502, Messages: []string{"a", "b"}, Err: errors.New("boom")}
	assert.Equal(t, "upstream query (status 502): a; b: boom", err.Error())
	assert.EqualError(t, errors.Unwrap(err), "boom")
}
