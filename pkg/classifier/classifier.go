// Package classifier is the HTTP client for the external behavioral
// classification service used in delegated-mode scoring. The caller bounds
// each request with its own context; transport-level failures surface as
// errors and are handled fail-closed upstream.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	otelobs "aegis/pkg/observability/otel"
	"aegis/pkg/profiler"
	"aegis/pkg/threat"
)

// Client talks to the classifier service.
type Client struct {
	baseURL    string
	httpClient *http.Client

	calls   *prometheus.CounterVec
	latency prometheus.Histogram
}

// New builds a client for the classifier at baseURL. reg may be nil to skip
// metric registration; the client timeout is a transport ceiling above the
// per-call context deadline.
func New(baseURL string, reg prometheus.Registerer) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelobs.WrapHTTPTransport(nil),
		},
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aegis_classifier_calls_total",
			Help: "Classifier calls by outcome",
		}, []string{"outcome"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "aegis_classifier_call_duration_seconds",
			Help:    "Classifier call latency",
			Buckets: prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(c.calls, c.latency)
	}
	return c
}

// classifyRequest is the feature vector sent to the service.
type classifyRequest struct {
	SessionID         string   `json:"session_id"`
	Path              string   `json:"path"`
	Method            string   `json:"method"`
	RequestCount      int64    `json:"request_count"`
	TrustScore        float64  `json:"trust_score"`
	NewIP             bool     `json:"new_ip"`
	NewUserAgent      bool     `json:"new_user_agent"`
	NewPath           bool     `json:"new_path"`
	NewMethod         bool     `json:"new_method"`
	RequestsPerSecond float64  `json:"requests_per_second"`
	SizeRatio         float64  `json:"size_ratio"`
	AdminPathNoAccess bool     `json:"admin_path_no_access"`
	InjectionPatterns []string `json:"injection_patterns,omitempty"`
	AuthPerMinute     int      `json:"auth_per_minute"`
}

// Classify sends the observation's feature vector to the service and returns
// its assessment.
func (c *Client) Classify(ctx context.Context, obs profiler.Observation) (threat.Assessment, error) {
	payload := classifyRequest{
		SessionID:         obs.SessionID,
		Path:              obs.Path,
		Method:            obs.Method,
		RequestCount:      obs.RequestCount,
		TrustScore:        obs.Profile.TrustScore,
		NewIP:             obs.NewIP,
		NewUserAgent:      obs.NewUserAgent,
		NewPath:           obs.NewPath,
		NewMethod:         obs.NewMethod,
		RequestsPerSecond: obs.RequestsPerSecond,
		SizeRatio:         obs.SizeRatio,
		AdminPathNoAccess: obs.AdminPathNoAccess,
		InjectionPatterns: obs.InjectionPatterns,
		AuthPerMinute:     obs.AuthPerMinute,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return threat.Assessment{}, fmt.Errorf("marshal classify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/classify", bytes.NewReader(body))
	if err != nil {
		return threat.Assessment{}, fmt.Errorf("build classify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.latency.Observe(time.Since(start).Seconds())
	if err != nil {
		c.calls.WithLabelValues("transport_error").Inc()
		return threat.Assessment{}, fmt.Errorf("classify call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.calls.WithLabelValues("http_error").Inc()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return threat.Assessment{}, fmt.Errorf("classify call failed with status %d: %s", resp.StatusCode, msg)
	}

	var a threat.Assessment
	if err := json.NewDecoder(resp.Body).Decode(&a); err != nil {
		c.calls.WithLabelValues("decode_error").Inc()
		return threat.Assessment{}, fmt.Errorf("decode classify response: %w", err)
	}
	c.calls.WithLabelValues("ok").Inc()
	return a, nil
}

// Health checks service liveness.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("classifier health check: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("classifier unhealthy: status %d", resp.StatusCode)
	}
	return nil
}
