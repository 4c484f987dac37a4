package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/roundtable/internal/model"
)

// HTTPClient implements SessionClient using the backend's HTTP/JSON REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8000/api"). When token is non-empty, an
// Authorization header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

func sessionPath(id string) string {
	return "/sessions/" + url.PathEscape(id)
}

// --- Sessions ---

func (c *HTTPClient) GetSession(ctx context.Context, id string) (*model.Session, error) {
	var s model.Session
	if err := c.doJSON(ctx, http.MethodGet, sessionPath(id), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *HTTPClient) ListSessions(ctx context.Context, userID string) ([]*model.Session, error) {
	path := "/sessions"
	if userID != "" {
		q := url.Values{}
		q.Set("user_id", userID)
		path += "?" + q.Encode()
	}
	var sessions []*model.Session
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (c *HTTPClient) CreateSession(ctx context.Context, req *CreateSessionRequest) (*CreateSessionResponse, error) {
	var resp CreateSessionResponse
	if err := c.doJSON(ctx, http.MethodPost, "/sessions", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Messages ---

// LoadHistory returns the persisted messages of a session in creation order.
func (c *HTTPClient) LoadHistory(ctx context.Context, sessionID string) ([]model.MessageRecord, error) {
	var resp struct {
		Messages []model.MessageRecord `json:"messages"`
	}
	if err := c.doJSON(ctx, http.MethodGet, sessionPath(sessionID)+"/messages", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

func (c *HTTPClient) SendMessage(ctx context.Context, sessionID, text string) (*SendMessageResponse, error) {
	body := map[string]string{"message": text}
	var resp SendMessageResponse
	if err := c.doJSON(ctx, http.MethodPost, sessionPath(sessionID)+"/messages", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Lifecycle ---

func (c *HTTPClient) Finalize(ctx context.Context, sessionID string) error {
	return c.doJSON(ctx, http.MethodPost, sessionPath(sessionID)+"/finalize", nil, nil)
}

func (c *HTTPClient) ConfirmStop(ctx context.Context, sessionID string, confirmed bool) error {
	path := sessionPath(sessionID) + "/confirm-stop?confirmed=" + strconv.FormatBool(confirmed)
	return c.doJSON(ctx, http.MethodPost, path, nil, nil)
}

// --- Steering ---

func (c *HTTPClient) ApplySteering(ctx context.Context, sessionID string, req *model.SteeringRequest) (*model.SteeringResult, error) {
	var res model.SteeringResult
	if err := c.doJSON(ctx, http.MethodPost, sessionPath(sessionID)+"/steering", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPClient) ApplyLegalSteering(ctx context.Context, sessionID string, req *model.LegalSteeringRequest) (*model.SteeringResult, error) {
	var res model.SteeringResult
	if err := c.doJSON(ctx, http.MethodPost, sessionPath(sessionID)+"/legal-steering", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPClient) SubmitFacts(ctx context.Context, sessionID string, req *model.FactsRequest) (*model.FactsResponse, error) {
	var res model.FactsResponse
	if err := c.doJSON(ctx, http.MethodPost, sessionPath(sessionID)+"/facts", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// --- Reports ---

func (c *HTTPClient) GetReport(ctx context.Context, sessionID string) (*model.FinalReport, error) {
	var r model.FinalReport
	if err := c.doJSON(ctx, http.MethodGet, sessionPath(sessionID)+"/report", nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *HTTPClient) GenerateReport(ctx context.Context, sessionID string) (*model.FinalReport, error) {
	var r model.FinalReport
	if err := c.doJSON(ctx, http.MethodPost, sessionPath(sessionID)+"/report/generate", nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// FetchReport returns the stored report, asking the backend to generate one
// when none exists yet.
func FetchReport(ctx context.Context, c SessionClient, sessionID string) (*model.FinalReport, error) {
	r, err := c.GetReport(ctx, sessionID)
	if err == nil {
		return r, nil
	}
	if !IsNotFound(err) {
		return nil, err
	}
	return c.GenerateReport(ctx, sessionID)
}

// --- Event streams ---

// StreamURL is the main event stream: speaker changes, message streaming,
// round boundaries and lifecycle events.
func (c *HTTPClient) StreamURL(sessionID string) string {
	return c.baseURL + sessionPath(sessionID) + "/stream"
}

// EventsURL is the gate event stream carrying ROUND_START and ROUND_END.
func (c *HTTPClient) EventsURL(sessionID string) string {
	return c.baseURL + sessionPath(sessionID) + "/events"
}

// --- internal helpers ---

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	// 204 No Content: success, no body.
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error  string `json:"error"`
			Detail string `json:"detail"`
		}
		if json.Unmarshal(respBody, &errResp) == nil {
			if errResp.Error != "" {
				return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
			}
			if errResp.Detail != "" {
				return &APIError{StatusCode: resp.StatusCode, Message: errResp.Detail}
			}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if result != nil && len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
