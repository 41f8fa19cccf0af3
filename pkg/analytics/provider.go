package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
)

// DefaultCloudflareEndpoint is Cloudflare's GraphQL analytics API.
const DefaultCloudflareEndpoint = "https://api.cloudflare.com/client/v4/graphql"

const maxResponseSize = 10 << 20

const statsQuery = `query JoonifyStats($zoneTag: string!, $visitorsSince: Date!, $countriesSince: Time!) {
  viewer {
    zones(filter: {zoneTag: $zoneTag}) {
      httpRequests1dGroups(limit: 30, filter: {date_gt: $visitorsSince}) {
        uniq { uniques }
      }
      httpRequestsAdaptiveGroups(limit: 5000, filter: {datetime_gt: $countriesSince}) {
        count
        dimensions { clientCountryName }
      }
    }
  }
}`

// Provider answers analytics queries for one zone.
type Provider interface {
	Query(ctx context.Context, zoneTag string, w Windows) (*Zone, error)
}

// Zone is the provider's answer for one zone.
type Zone struct {
	DailyGroups    []DailyGroup    `json:"httpRequests1dGroups"`
	AdaptiveGroups []AdaptiveGroup `json:"httpRequestsAdaptiveGroups"`
}

// DailyGroup is one day of unique-visitor data.
type DailyGroup struct {
	Uniq Uniq `json:"uniq"`
}

// Uniq holds the unique-visitor count of a daily group.
type Uniq struct {
	Uniques int64 `json:"uniques"`
}

// AdaptiveGroup is a request count for one set of dimensions.
type AdaptiveGroup struct {
	Count      int64      `json:"count"`
	Dimensions Dimensions `json:"dimensions"`
}

// Dimensions of an adaptive group.
type Dimensions struct {
	ClientCountryName string `json:"clientCountryName"`
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data *struct {
		Viewer *struct {
			Zones []Zone `json:"zones"`
		} `json:"viewer"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

// CloudflareConfig configures a CloudflareProvider.
type CloudflareConfig struct {
	// Endpoint defaults to DefaultCloudflareEndpoint.
	Endpoint string
	// Token is the API token sent as a bearer token.
	Token string
	// Timeout bounds one query. Zero means no client-side limit.
	Timeout time.Duration
}

// CloudflareProvider queries Cloudflare's GraphQL analytics API.
type CloudflareProvider struct {
	endpoint   string
	httpClient *http.Client
}

// NewCloudflareProvider creates a provider authenticating with cfg.Token.
func NewCloudflareProvider(cfg CloudflareConfig) *CloudflareProvider {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultCloudflareEndpoint
	}

	base := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: cfg.Token,
		TokenType:   "Bearer",
	}))
	client.Timeout = cfg.Timeout

	return &CloudflareProvider{
		endpoint:   endpoint,
		httpClient: client,
	}
}

// Query implements Provider.
func (p *CloudflareProvider) Query(ctx context.Context, zoneTag string, w Windows) (*Zone, error) {
	ctx, span := tracer.Start(ctx, "Cloudflare.Query",
		trace.WithAttributes(
			attribute.String("zone.tag", zoneTag),
			attribute.String("window.visitors_since", w.VisitorsSince),
			attribute.String("window.countries_since", w.CountriesSince),
		),
	)
	defer span.End()

	zone, err := p.query(ctx, zoneTag, w)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "analytics query failed")
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("daily_groups", len(zone.DailyGroups)),
		attribute.Int("adaptive_groups", len(zone.AdaptiveGroups)),
	)
	span.SetStatus(codes.Ok, "")
	return zone, nil
}

func (p *CloudflareProvider) query(ctx context.Context, zoneTag string, w Windows) (*Zone, error) {
	payload, err := json.Marshal(graphQLRequest{
		Query: statsQuery,
		Variables: map[string]interface{}{
			"zoneTag":        zoneTag,
			"visitorsSince":  w.VisitorsSince,
			"countriesSince": w.CountriesSince,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, &UpstreamError{Op: "request", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &UpstreamError{Op: "read", StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{
			Op:         "request",
			StatusCode: resp.StatusCode,
			Err:        errors.New(truncate(string(body), 256)),
		}
	}

	return decodeZone(body)
}

// decodeZone validates a GraphQL response and returns its first zone.
func decodeZone(body []byte) (*Zone, error) {
	var out graphQLResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &UpstreamError{Op: "decode", Err: err}
	}

	if len(out.Errors) > 0 {
		msgs := make([]string, 0, len(out.Errors))
		for _, e := range out.Errors {
			msgs = append(msgs, e.Message)
		}
		return nil, &UpstreamError{Op: "query", Messages: msgs}
	}

	if out.Data == nil || out.Data.Viewer == nil {
		return nil, &UpstreamError{Op: "decode", Messages: []string{"response has no data.viewer"}}
	}
	if len(out.Data.Viewer.Zones) == 0 {
		return nil, &UpstreamError{Op: "decode", Messages: []string{"response has no zones"}}
	}

	zone := out.Data.Viewer.Zones[0]
	return &zone, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
