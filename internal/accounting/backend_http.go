package accounting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"mealplan-backend/internal/activity"
)

const defaultHTTPTimeout = 10 * time.Second

// HTTPBackend talks to the activity API over HTTP.
type HTTPBackend struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPBackend returns a backend rooted at baseURL, e.g.
// "https://api.example.com". A nil client gets a default with a timeout.
func NewHTTPBackend(baseURL string, client *http.Client) *HTTPBackend {
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &HTTPBackend{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
	}
}

type activityEnvelope struct {
	Activity     activity.Record `json:"activity"`
	ResetApplied bool            `json:"resetApplied"`
	Counted      bool            `json:"counted"`
}

func (b *HTTPBackend) GetActivity(ctx context.Context, id Identity) (activity.Record, error) {
	env, err := b.do(ctx, id, http.MethodGet, "/api/v1/activity")
	return env.Activity, err
}

func (b *HTTPBackend) CheckReset(ctx context.Context, id Identity) (activity.Record, bool, error) {
	env, err := b.do(ctx, id, http.MethodPost, "/api/v1/activity/reset-check")
	return env.Activity, env.ResetApplied, err
}

func (b *HTTPBackend) Create(ctx context.Context, id Identity) (activity.Record, error) {
	env, err := b.do(ctx, id, http.MethodPost, "/api/v1/activity")
	return env.Activity, err
}

func (b *HTTPBackend) IncrementMeals(ctx context.Context, id Identity) (activity.IncrementResult, error) {
	env, err := b.do(ctx, id, http.MethodPost, "/api/v1/activity/meals")
	if err != nil {
		return activity.IncrementResult{}, err
	}
	return activity.IncrementResult{
		Record:       env.Activity,
		ResetApplied: env.ResetApplied,
		Counted:      env.Counted,
	}, nil
}

func (b *HTTPBackend) AdjustSavedRecipes(ctx context.Context, id Identity, delta int) (activity.Record, error) {
	method := http.MethodPost
	if delta < 0 {
		method = http.MethodDelete
	}
	env, err := b.do(ctx, id, method, "/api/v1/activity/saved-recipes")
	return env.Activity, err
}

func (b *HTTPBackend) do(ctx context.Context, id Identity, method, path string) (activityEnvelope, error) {
	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, bytes.NewReader(nil))
	if err != nil {
		return activityEnvelope{}, err
	}
	req.Header.Set("Accept", "application/json")
	if token := strings.TrimSpace(id.Token); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	} else {
		req.Header.Set("X-User-Id", id.UserID)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return activityEnvelope{}, classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return activityEnvelope{}, classifyTransportError(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return activityEnvelope{}, statusError(resp.StatusCode, body)
	}

	var env activityEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return activityEnvelope{}, fmt.Errorf("%w: decode response: %w", activity.ErrStoreUnavailable, err)
	}
	return env, nil
}

// errorCode extracts the error code from either response shape the API
// uses: {"error":{"code":"..."}} or the rate limiter's {"error":"..."}.
func errorCode(body []byte) string {
	var raw struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &raw); err != nil || len(raw.Error) == 0 {
		return ""
	}
	var code string
	if err := json.Unmarshal(raw.Error, &code); err == nil {
		return code
	}
	var obj struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(raw.Error, &obj); err == nil {
		return obj.Code
	}
	return ""
}

// statusError maps an API failure onto the activity error kinds by status
// and error code.
func statusError(status int, body []byte) error {
	code := errorCode(body)
	switch {
	case status == http.StatusTooManyRequests || code == "rate_limited":
		return activity.ErrRateLimited
	case status == http.StatusNotFound:
		return activity.ErrNotFound
	case code == "limit_reached":
		return activity.ErrLimitReached
	case status == http.StatusUnauthorized:
		return activity.ErrInvalidUser
	case status == http.StatusGatewayTimeout || code == "unknown_outcome":
		return activity.ErrUnknownOutcome
	default:
		return fmt.Errorf("%w: status %d code %q", activity.ErrStoreUnavailable, status, code)
	}
}

func classifyTransportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %w", activity.ErrUnknownOutcome, err)
	}
	return fmt.Errorf("%w: %w", activity.ErrStoreUnavailable, err)
}
