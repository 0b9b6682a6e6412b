package checker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/saaga0h/curator-platform/e2e/internal/scenario"
)

// APIChecker validates recommender HTTP responses
type APIChecker struct {
	baseURL string
	client  *http.Client
}

// NewAPIChecker creates a checker against the recommender at baseURL
func NewAPIChecker(baseURL string) *APIChecker {
	return &APIChecker{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Check issues GET exp.API and matches status and body. A missing status
// means 200.
func (a *APIChecker) Check(ctx context.Context, exp scenario.Expectation) (bool, string, interface{}) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+exp.API, nil)
	if err != nil {
		return false, fmt.Sprintf("invalid request: %v", err), nil
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return false, fmt.Sprintf("request failed: %v", err), nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Sprintf("failed to read body: %v", err), nil
	}

	var decoded interface{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &decoded); err != nil {
			return false, fmt.Sprintf("response is not JSON: %v", err), string(body)
		}
	}

	wantStatus := exp.Status
	if wantStatus == 0 {
		wantStatus = http.StatusOK
	}
	if resp.StatusCode != wantStatus {
		return false, fmt.Sprintf("expected status %d, got %d", wantStatus, resp.StatusCode), decoded
	}

	if len(exp.Response) == 0 {
		return true, "", decoded
	}

	matches, reason := MatchesExpectation(decoded, exp.Response)
	return matches, reason, decoded
}
