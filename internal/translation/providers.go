package translation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"rpgm-translator/internal/textutil"
)

// RequestError is a failed HTTP exchange with a backend. Status is zero
// when the request never produced a response.
type RequestError struct {
	Endpoint string
	Status   int
	Err      error
}

func (e *RequestError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Endpoint, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Endpoint, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// RateLimited reports whether the backend pushed back with 429. Rate
// limiting is backpressure, not endpoint failure, and never counts
// toward a ban.
func (e *RequestError) RateLimited() bool {
	return e.Status == http.StatusTooManyRequests
}

// Transient reports whether retrying the same request could succeed.
// Network failures, throttling and server errors are transient; any
// other status means the backend rejected the request itself.
func (e *RequestError) Transient() bool {
	return e.Status == 0 || e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// Provider performs one translation exchange against one endpoint.
type Provider interface {
	Name() string
	Translate(ctx context.Context, endpoint, content, source, target string) (string, error)
}

// SugoiProvider speaks the Sugoi offline translator protocol: a POST of
// {"content": ..., "message": "translate sentences"} answered with a
// JSON string. The server pair is fixed, so source and target are
// ignored.
type SugoiProvider struct {
	client *http.Client
}

func NewSugoiProvider(client *http.Client) *SugoiProvider {
	return &SugoiProvider{client: client}
}

func (p *SugoiProvider) Name() string { return "sugoi" }

type sugoiRequest struct {
	Content string `json:"content"`
	Message string `json:"message"`
}

func (p *SugoiProvider) Translate(ctx context.Context, endpoint, content, source, target string) (string, error) {
	body, err := json.Marshal(sugoiRequest{Content: content, Message: "translate sentences"})
	if err != nil {
		return "", fmt.Errorf("marshal sugoi request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", &RequestError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &RequestError{Endpoint: endpoint, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &RequestError{
			Endpoint: endpoint,
			Status:   resp.StatusCode,
			Err:      fmt.Errorf("%s", textutil.Truncate(string(respBody), 200)),
		}
	}

	var out string
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", &RequestError{Endpoint: endpoint, Err: fmt.Errorf("decode response: %w", err)}
	}
	return out, nil
}

// LingvaProvider calls a Lingva Translate instance, the public fallback
// when every self-hosted endpoint is banned.
type LingvaProvider struct {
	client *http.Client
}

func NewLingvaProvider(client *http.Client) *LingvaProvider {
	return &LingvaProvider{client: client}
}

func (p *LingvaProvider) Name() string { return "lingva" }

type lingvaResponse struct {
	Translation string `json:"translation"`
	Error       string `json:"error"`
}

func (p *LingvaProvider) Translate(ctx context.Context, endpoint, content, source, target string) (string, error) {
	u := fmt.Sprintf("%s/api/v1/%s/%s/%s", endpoint, source, target, url.PathEscape(content))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", &RequestError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &RequestError{Endpoint: endpoint, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &RequestError{
			Endpoint: endpoint,
			Status:   resp.StatusCode,
			Err:      fmt.Errorf("%s", textutil.Truncate(string(respBody), 200)),
		}
	}

	var out lingvaResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", &RequestError{Endpoint: endpoint, Err: fmt.Errorf("decode response: %w", err)}
	}
	if out.Error != "" {
		return "", &RequestError{Endpoint: endpoint, Err: fmt.Errorf("lingva: %s", out.Error)}
	}
	return out.Translation, nil
}
