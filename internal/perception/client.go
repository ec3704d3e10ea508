package perception

// client.go talks to the perception backend over JSON/HTTP. Every
// sub-estimation is one POST; the backend reports typed failures as a
// non-2xx response with a {module, code, warnings, message} body.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// HTTPClient implements Service against a perception REST backend.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPClient creates a client for the backend at baseURL. A zero timeout
// selects 30 seconds.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

var _ Service = (*HTTPClient)(nil)

// --- Wire types ---

type imageRequest struct {
	ImageRef  string        `json:"imageRef"`
	FaceBox   *BoundingBox  `json:"faceBox,omitempty"`
	Landmarks []Point2D     `json:"landmarks,omitempty"`
	Masks     *Segmentation `json:"masks,omitempty"`
}

type errorBody struct {
	Module   string   `json:"module"`
	Code     string   `json:"code"`
	Warnings []string `json:"warnings"`
	Message  string   `json:"message"`
}

// --- Service methods ---

func (c *HTTPClient) EstimateFace(ctx context.Context, imageRef string) (FaceEstimate, error) {
	var out FaceEstimate
	err := c.post(ctx, "/v1/face", "face", imageRequest{ImageRef: imageRef}, &out)
	return out, err
}

func (c *HTTPClient) EstimateBody(ctx context.Context, imageRef string) (BodyEstimate, error) {
	var out BodyEstimate
	err := c.post(ctx, "/v1/body", "body", imageRequest{ImageRef: imageRef}, &out)
	return out, err
}

func (c *HTTPClient) Segment(ctx context.Context, imageRef string, faceBox BoundingBox) (Segmentation, error) {
	var out Segmentation
	err := c.post(ctx, "/v1/segment", "segmentation", imageRequest{ImageRef: imageRef, FaceBox: &faceBox}, &out)
	return out, err
}

func (c *HTTPClient) Photometrics(ctx context.Context, imageRef string, masks Segmentation) (Photometric, error) {
	var out Photometric
	err := c.post(ctx, "/v1/photometrics", "photometrics", imageRequest{ImageRef: imageRef, Masks: &masks}, &out)
	return out, err
}

func (c *HTTPClient) GeometryRisk(ctx context.Context, imageRef string, landmarks []Point2D, masks Segmentation) (GeometryRisk, error) {
	var out GeometryRisk
	req := imageRequest{ImageRef: imageRef, Landmarks: landmarks, Masks: &masks}
	err := c.post(ctx, "/v1/geometry-risk", "geometry_risk", req, &out)
	return out, err
}

func (c *HTTPClient) Inspect(ctx context.Context, imageRef string, masks Segmentation) (Inspection, error) {
	var out Inspection
	err := c.post(ctx, "/v1/inspect", "inspect", imageRequest{ImageRef: imageRef, Masks: &masks}, &out)
	return out, err
}

func (c *HTTPClient) post(ctx context.Context, path, module string, payload imageRequest, out any) error {
	startTime := time.Now()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", module, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", module, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &Error{Module: module, Code: CodeUnavailable, Err: fmt.Errorf("HTTP request failed: %w", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Module: module, Code: CodeUnavailable, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	log.Debug().
		Str("module", module).
		Int("status_code", resp.StatusCode).
		Dur("duration", time.Since(startTime)).
		Msg("Perception call completed")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(module, resp.StatusCode, respBody)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return &Error{Module: module, Code: CodeUnavailable, Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	return nil
}

func decodeError(module string, status int, body []byte) error {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil || eb.Code == "" {
		return &Error{
			Module: module,
			Code:   CodeUnavailable,
			Err:    fmt.Errorf("backend returned status %d: %s", status, truncate(string(body), 200)),
		}
	}
	if eb.Module == "" {
		eb.Module = module
	}
	msg := eb.Message
	if msg == "" {
		msg = fmt.Sprintf("backend returned status %d", status)
	}
	return &Error{
		Module:   eb.Module,
		Code:     ErrorCode(eb.Code),
		Warnings: eb.Warnings,
		Err:      fmt.Errorf("%s", msg),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
