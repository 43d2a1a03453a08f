package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// HTTPInvoker calls an external specialist execution service. One POST per
// turn: the request carries the specialist ID and the accumulated context,
// the response body is the specialist's output text. JSON responses with
// an "output" field are unwrapped; any other body is taken verbatim.
type HTTPInvoker struct {
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

type invokeRequest struct {
	SpecialistID string         `json:"specialist_id"`
	Context      map[string]any `json:"context"`
}

type invokeResponse struct {
	Output string `json:"output"`
}

// NewHTTPInvoker creates an invoker POSTing to endpoint. The timeout caps
// one turn; the orchestrator treats an expired turn as an invocation
// failure, never as "no handoff".
func NewHTTPInvoker(endpoint string, timeout time.Duration, logger *zap.Logger) *HTTPInvoker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPInvoker{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With(zap.String("component", "http_invoker")),
	}
}

func (i *HTTPInvoker) Invoke(ctx context.Context, specialistID string, turnContext map[string]any) (string, error) {
	payload, err := json.Marshal(invokeRequest{SpecialistID: specialistID, Context: turnContext})
	if err != nil {
		return "", fmt.Errorf("encode invoke request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build invoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := i.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("invoke %s: %w", specialistID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read invoke response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("invoke %s: status %d: %s", specialistID, resp.StatusCode, truncate(string(body), 200))
	}

	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		var decoded invokeResponse
		if err := json.Unmarshal(body, &decoded); err != nil {
			return "", fmt.Errorf("decode invoke response: %w", err)
		}
		return decoded.Output, nil
	}
	return string(body), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
