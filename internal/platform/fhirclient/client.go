package fhirclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/healthprep/healthprep/internal/platform/corerr"
)

// CallRecorder persists FHIRApiCall rows for rate-limit bookkeeping and
// audit (spec §3 FHIRApiCall, §4.3 "every outbound FHIR call records an
// FHIRApiCall").
type CallRecorder interface {
	RecordCall(ctx context.Context, tenantID, providerID uuid.UUID, resourceType string, status int, durationMS int) error
}

// Client is the FHIR R4 HTTP client: token-authenticated, rate-limited,
// retrying. One Client instance serves every tenant/provider; per-call
// state lives in its arguments, not in the struct.
type Client struct {
	baseURL      string
	tokens       *TokenManager
	limiter      *RateLimiter
	recorder     CallRecorder
	hourlyLimit  int
	httpClient   *http.Client
}

// NewClient creates a FHIR client against baseURL (the EMR's FHIR R4
// service root), authenticating through tokens and rate-limiting against
// limiter using hourlyLimit as the tenant's configured cap.
func NewClient(baseURL string, tokens *TokenManager, limiter *RateLimiter, recorder CallRecorder, hourlyLimit int, timeout time.Duration) *Client {
	return &Client{
		baseURL:     baseURL,
		tokens:      tokens,
		limiter:     limiter,
		recorder:    recorder,
		hourlyLimit: hourlyLimit,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// backoff implements spec §5's retry policy: immediate retry once, then
// exponential backoff with jitter (base 1s, cap 60s, max 5 attempts).
func backoff(attempt int) time.Duration {
	if attempt <= 2 {
		return 0
	}
	base := time.Second << uint(attempt-3) // attempt 3 -> 1s, 4 -> 2s, 5 -> 4s...
	if base > 60*time.Second {
		base = 60 * time.Second
	}
	jitter := time.Duration(rand.Int63n(int64(base) + 1))
	return base/2 + jitter/2
}

const maxAttempts = 5

// do executes a single authenticated FHIR request with the retry/backoff
// policy, rate-limit reservation, and call recording common to every
// fetch/write operation below.
func (c *Client) do(ctx context.Context, tenantID, providerID uuid.UUID, resourceType string, req func(accessToken string) (*http.Request, error)) (*http.Response, error) {
	if err := c.limiter.Reserve(tenantID, c.hourlyLimit, 1); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff(attempt)):
			}
		}

		accessToken, err := c.tokens.AccessToken(ctx, tenantID, providerID)
		if err != nil {
			return nil, err
		}

		httpReq, err := req(accessToken)
		if err != nil {
			return nil, fmt.Errorf("fhirclient: build request: %w", err)
		}

		start := time.Now()
		resp, err := c.httpClient.Do(httpReq)
		duration := time.Since(start)

		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		if c.recorder != nil {
			_ = c.recorder.RecordCall(ctx, tenantID, providerID, resourceType, status, int(duration.Milliseconds()))
		}

		if err != nil {
			lastErr = corerr.Wrap(corerr.KindTransient, "FHIR request failed", err)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			resp.Body.Close()
			newToken, refreshErr := c.tokens.RefreshAfterUnauthorized(ctx, tenantID, providerID)
			if refreshErr != nil {
				return nil, refreshErr
			}
			retryReq, err := req(newToken)
			if err != nil {
				return nil, fmt.Errorf("fhirclient: build retry request: %w", err)
			}
			retryResp, err := c.httpClient.Do(retryReq)
			if err != nil {
				return nil, corerr.Wrap(corerr.KindTransient, "FHIR retry after 401 failed", err)
			}
			if retryResp.StatusCode == http.StatusUnauthorized {
				retryResp.Body.Close()
				return nil, corerr.New(corerr.KindReauthRequired, "second 401 after refresh")
			}
			return retryResp, nil
		case resp.StatusCode == http.StatusTooManyRequests:
			resp.Body.Close()
			lastErr = corerr.New(corerr.KindRateLimitExceeded, "EMR returned 429")
			continue
		case resp.StatusCode >= 500:
			resp.Body.Close()
			lastErr = corerr.New(corerr.KindTransient, fmt.Sprintf("EMR returned %d", resp.StatusCode))
			continue
		case resp.StatusCode >= 400:
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return nil, corerr.New(corerr.KindPermanent, fmt.Sprintf("EMR returned %d: %s", resp.StatusCode, string(body)))
		default:
			return resp, nil
		}
	}
	return nil, lastErr
}

func (c *Client) get(ctx context.Context, tenantID, providerID uuid.UUID, resourceType, path string) (json.RawMessage, error) {
	resp, err := c.do(ctx, tenantID, providerID, resourceType, func(token string) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/fhir+json")
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fhirclient: read response body: %w", err)
	}
	return json.RawMessage(body), nil
}

// GetPatient fetches Patient/{id}.
func (c *Client) GetPatient(ctx context.Context, tenantID, providerID uuid.UUID, epicPatientID string) (json.RawMessage, error) {
	return c.get(ctx, tenantID, providerID, "Patient", "/Patient/"+url.PathEscape(epicPatientID))
}

// GetConditions fetches Condition?patient={id}.
func (c *Client) GetConditions(ctx context.Context, tenantID, providerID uuid.UUID, epicPatientID string) (json.RawMessage, error) {
	return c.get(ctx, tenantID, providerID, "Condition", "/Condition?patient="+url.QueryEscape(epicPatientID))
}

// GetObservations fetches Observation?patient={id}&date=ge{cutoff}.
func (c *Client) GetObservations(ctx context.Context, tenantID, providerID uuid.UUID, epicPatientID string, cutoff time.Time) (json.RawMessage, error) {
	path := fmt.Sprintf("/Observation?patient=%s&date=ge%s", url.QueryEscape(epicPatientID), cutoff.Format("2006-01-02"))
	return c.get(ctx, tenantID, providerID, "Observation", path)
}

// GetImagingReports fetches DiagnosticReport?patient={id}&category=imaging&date=ge{cutoff}.
func (c *Client) GetImagingReports(ctx context.Context, tenantID, providerID uuid.UUID, epicPatientID string, cutoff time.Time) (json.RawMessage, error) {
	path := fmt.Sprintf("/DiagnosticReport?patient=%s&category=imaging&date=ge%s", url.QueryEscape(epicPatientID), cutoff.Format("2006-01-02"))
	return c.get(ctx, tenantID, providerID, "DiagnosticReport", path)
}

// GetDocumentReferences fetches DocumentReference?patient={id}&date=ge{cutoff}.
func (c *Client) GetDocumentReferences(ctx context.Context, tenantID, providerID uuid.UUID, epicPatientID string, cutoff time.Time) (json.RawMessage, error) {
	path := fmt.Sprintf("/DocumentReference?patient=%s&date=ge%s", url.QueryEscape(epicPatientID), cutoff.Format("2006-01-02"))
	return c.get(ctx, tenantID, providerID, "DocumentReference", path)
}

// GetBinary fetches Binary/{id}, the attachment payload behind a
// DocumentReference content element.
func (c *Client) GetBinary(ctx context.Context, tenantID, providerID uuid.UUID, binaryID string) ([]byte, error) {
	raw, err := c.get(ctx, tenantID, providerID, "Binary", "/Binary/"+url.PathEscape(binaryID))
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// GetEncounters fetches Encounter?patient={id}.
func (c *Client) GetEncounters(ctx context.Context, tenantID, providerID uuid.UUID, epicPatientID string) (json.RawMessage, error) {
	return c.get(ctx, tenantID, providerID, "Encounter", "/Encounter?patient="+url.QueryEscape(epicPatientID))
}

// GetUpcomingAppointments fetches Appointment?patient={id}&date=ge{today}&date=le{today+window}&status=booked.
func (c *Client) GetUpcomingAppointments(ctx context.Context, tenantID, providerID uuid.UUID, epicPatientID string, window time.Duration) (json.RawMessage, error) {
	today := time.Now().UTC()
	until := today.Add(window)
	path := fmt.Sprintf("/Appointment?patient=%s&date=ge%s&date=le%s&status=booked",
		url.QueryEscape(epicPatientID), today.Format("2006-01-02"), until.Format("2006-01-02"))
	return c.get(ctx, tenantID, providerID, "Appointment", path)
}

// GetImmunizations fetches Immunization?patient={id}&vaccine-code={codes}.
func (c *Client) GetImmunizations(ctx context.Context, tenantID, providerID uuid.UUID, epicPatientID string, vaccineCodes []string) (json.RawMessage, error) {
	path := fmt.Sprintf("/Immunization?patient=%s", url.QueryEscape(epicPatientID))
	for _, code := range vaccineCodes {
		path += "&vaccine-code=" + url.QueryEscape(code)
	}
	return c.get(ctx, tenantID, providerID, "Immunization", path)
}

// PostDocumentReference writes a prep sheet back to the EMR as a
// DocumentReference (spec §4.6), returning the created resource's id.
func (c *Client) PostDocumentReference(ctx context.Context, tenantID, providerID uuid.UUID, resource json.RawMessage) (string, error) {
	resp, err := c.do(ctx, tenantID, providerID, "DocumentReference", func(token string) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/DocumentReference", bytes.NewReader(resource))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/fhir+json")
		return req, nil
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("fhirclient: decode created DocumentReference: %w", err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("fhirclient: created DocumentReference response missing id")
	}
	return created.ID, nil
}

// EstimatedCallCount is the "5 x patient count" default from spec §4.5
// used to decide whether a batch submission would exceed the tenant's
// remaining hourly allowance.
func EstimatedCallCount(patientCount int) int {
	return 5 * patientCount
}

// ParseLimit converts a tenant's configured limit string/column into an
// int, defaulting defensively if empty (used by cmd/tenant create flows).
func ParseLimit(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
