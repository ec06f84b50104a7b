package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/dreamtools/dream-background-remover/internal/config"
	"github.com/dreamtools/dream-background-remover/internal/i18n"
	"github.com/dreamtools/dream-background-remover/internal/model"
)

// BackgroundRemover defines the remote contract the controller drives.
// Every call blocks and is only ever made from a worker goroutine.
type BackgroundRemover interface {
	Submit(ctx context.Context, image []byte, modelVersion, credential string) (*RemoteRef, error)
	Poll(ctx context.Context, ref *RemoteRef, credential string) (*RemoteStatus, error)
	Abort(ctx context.Context, ref *RemoteRef, credential string) error
}

// RemoteRef identifies one in-flight prediction.
type RemoteRef struct {
	ID        string
	GetURL    string
	CancelURL string
}

// RemotePhase is the coarse state reported by one poll.
type RemotePhase string

const (
	PhaseRunning RemotePhase = "running"
	PhaseDone    RemotePhase = "done"
	PhaseFailed  RemotePhase = "failed"
)

// RemoteStatus is the result of one poll. Output is populated only for
// PhaseDone; Reason only for PhaseFailed.
type RemoteStatus struct {
	Phase  RemotePhase
	Output []byte
	Reason string
}

// ReplicateClient implements BackgroundRemover against the Replicate
// predictions API.
type ReplicateClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewReplicateClient creates a Replicate API client. Credentials travel
// per call because each job carries its own key.
func NewReplicateClient(cfg *config.ReplicateConfig) *ReplicateClient {
	return &ReplicateClient{
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
	}
}

type predictionRequest struct {
	Version string         `json:"version,omitempty"`
	Input   map[string]any `json:"input"`
}

type predictionResponse struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output,omitempty"`
	Error  string          `json:"error,omitempty"`
	URLs   struct {
		Get    string `json:"get"`
		Cancel string `json:"cancel"`
	} `json:"urls"`
}

// Submit creates a prediction for the given model and image. Pinned
// models ("owner/name:version") go through /v1/predictions; unpinned ones
// ("owner/name") through the model-scoped endpoint.
func (c *ReplicateClient) Submit(ctx context.Context, image []byte, modelVersion, credential string) (*RemoteRef, error) {
	if len(image) == 0 {
		return nil, model.NewJobError(model.ErrKindPayload, i18n.KeyErrPayload,
			map[string]string{"reason": "empty image"})
	}

	input := map[string]any{
		"image": "data:image/png;base64," + base64.StdEncoding.EncodeToString(image),
	}

	endpoint := c.baseURL + "/v1/predictions"
	reqBody := predictionRequest{Input: input}
	if idx := strings.LastIndex(modelVersion, ":"); idx >= 0 {
		reqBody.Version = modelVersion[idx+1:]
	} else {
		endpoint = fmt.Sprintf("%s/v1/models/%s/predictions", c.baseURL, modelVersion)
	}

	var result predictionResponse
	if err := c.doJSON(ctx, http.MethodPost, endpoint, credential, &reqBody, &result); err != nil {
		return nil, err
	}
	if result.ID == "" {
		return nil, model.NewJobError(model.ErrKindRemote, i18n.KeyErrRemote,
			map[string]string{"reason": "no prediction id in response"})
	}

	return &RemoteRef{
		ID:        result.ID,
		GetURL:    result.URLs.Get,
		CancelURL: result.URLs.Cancel,
	}, nil
}

// Poll fetches the prediction state once. When the prediction has
// succeeded, the output is downloaded and returned as raw image bytes.
func (c *ReplicateClient) Poll(ctx context.Context, ref *RemoteRef, credential string) (*RemoteStatus, error) {
	endpoint := ref.GetURL
	if endpoint == "" {
		endpoint = fmt.Sprintf("%s/v1/predictions/%s", c.baseURL, ref.ID)
	}

	var result predictionResponse
	if err := c.doJSON(ctx, http.MethodGet, endpoint, credential, nil, &result); err != nil {
		return nil, err
	}

	log.Printf("[Replicate] Prediction %s — status: %s", ref.ID, result.Status)

	switch result.Status {
	case "starting", "processing", "queued":
		return &RemoteStatus{Phase: PhaseRunning}, nil
	case "succeeded":
		data, err := c.downloadOutput(ctx, result.Output)
		if err != nil {
			return nil, err
		}
		return &RemoteStatus{Phase: PhaseDone, Output: data}, nil
	case "failed", "canceled":
		reason := result.Error
		if reason == "" {
			reason = result.Status
		}
		return &RemoteStatus{Phase: PhaseFailed, Reason: reason}, nil
	default:
		return nil, model.NewJobError(model.ErrKindRemote, i18n.KeyErrRemote,
			map[string]string{"reason": "unknown prediction status " + result.Status})
	}
}

// Abort asks the API to cancel the prediction. Best effort; local state
// does not depend on this succeeding.
func (c *ReplicateClient) Abort(ctx context.Context, ref *RemoteRef, credential string) error {
	endpoint := ref.CancelURL
	if endpoint == "" {
		endpoint = fmt.Sprintf("%s/v1/predictions/%s/cancel", c.baseURL, ref.ID)
	}
	var result predictionResponse
	return c.doJSON(ctx, http.MethodPost, endpoint, credential, nil, &result)
}

// downloadOutput fetches the prediction output. The API returns either a
// single file URL or a list of URL chunks; chunks are concatenated in
// order, as the result is one image.
func (c *ReplicateClient) downloadOutput(ctx context.Context, raw json.RawMessage) ([]byte, error) {
	if len(raw) == 0 {
		return nil, model.NewJobError(model.ErrKindRemote, i18n.KeyErrRemote,
			map[string]string{"reason": "no output in API response"})
	}

	var urls []string
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		urls = []string{single}
	} else if err := json.Unmarshal(raw, &urls); err != nil {
		return nil, model.NewJobError(model.ErrKindRemote, i18n.KeyErrRemote,
			map[string]string{"reason": "unrecognized output format"})
	}

	var buf bytes.Buffer
	for _, u := range urls {
		if err := c.fetch(ctx, u, &buf); err != nil {
			return nil, err
		}
	}
	if buf.Len() == 0 {
		return nil, model.NewJobError(model.ErrKindRemote, i18n.KeyErrRemote,
			map[string]string{"reason": "no image data in API response"})
	}
	return buf.Bytes(), nil
}

func (c *ReplicateClient) fetch(ctx context.Context, url string, buf *bytes.Buffer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return model.WrapJobError(model.ErrKindNetwork, i18n.KeyErrNetwork, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.WrapJobError(model.ErrKindNetwork, i18n.KeyErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return model.NewJobError(model.ErrKindNetwork, i18n.KeyErrNetwork,
			map[string]string{"reason": fmt.Sprintf("output download returned %d", resp.StatusCode)})
	}
	if _, err := io.Copy(buf, resp.Body); err != nil {
		return model.WrapJobError(model.ErrKindNetwork, i18n.KeyErrNetwork, err)
	}
	return nil
}

// doJSON executes a JSON request. The credential goes into the bearer
// header and is never logged.
func (c *ReplicateClient) doJSON(ctx context.Context, method, endpoint, credential string, body, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return model.WrapJobError(model.ErrKindPayload, i18n.KeyErrPayload, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return model.WrapJobError(model.ErrKindNetwork, i18n.KeyErrNetwork, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(credential))

	log.Printf("[Replicate] → %s %s", method, endpoint)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[Replicate] ✗ %s %s — request failed: %v", method, endpoint, err)
		return model.WrapJobError(model.ErrKindNetwork, i18n.KeyErrNetwork, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.WrapJobError(model.ErrKindNetwork, i18n.KeyErrNetwork, err)
	}

	log.Printf("[Replicate] ← %d %s %s", resp.StatusCode, method, endpoint)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiError(resp.StatusCode, respBody)
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return model.NewJobError(model.ErrKindRemote, i18n.KeyErrRemote,
			map[string]string{"reason": "unparseable API response"})
	}
	return nil
}

// apiError maps an HTTP failure to the job error taxonomy. 5xx counts as
// transient; the user may retry with a fresh start.
func apiError(status int, body []byte) *model.JobError {
	detail := apiDetail(body)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden || status == http.StatusPaymentRequired:
		return model.NewJobError(model.ErrKindAuth, i18n.KeyErrAuth, nil)
	case status == http.StatusRequestEntityTooLarge || status == http.StatusUnprocessableEntity:
		return model.NewJobError(model.ErrKindPayload, i18n.KeyErrPayload,
			map[string]string{"reason": detail})
	case status >= 500:
		return model.NewJobError(model.ErrKindNetwork, i18n.KeyErrNetwork,
			map[string]string{"reason": fmt.Sprintf("API returned %d", status)})
	default:
		return model.NewJobError(model.ErrKindRemote, i18n.KeyErrRemote,
			map[string]string{"reason": detail})
	}
}

func apiDetail(body []byte) string {
	var payload struct {
		Detail string `json:"detail"`
		Title  string `json:"title"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Detail != "" {
			return payload.Detail
		}
		if payload.Title != "" {
			return payload.Title
		}
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return strings.TrimSpace(string(body))
}
