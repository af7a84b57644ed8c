package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPSynthesizer proxies Answer to a real collaborator process reachable
// over HTTP. cmd/node does not wire it; the node uses NoopSynthesizer.
type HTTPSynthesizer struct {
	baseURL string
	client  *http.Client
}

// NewHTTPSynthesizer returns a Synthesizer that POSTs queries to
// baseURL+"/answer".
func NewHTTPSynthesizer(baseURL string) *HTTPSynthesizer {
	return &HTTPSynthesizer{baseURL: baseURL, client: &http.Client{Timeout: 10 * time.Second}}
}

func (s *HTTPSynthesizer) Answer(ctx context.Context, query string) ([]Result, error) {
	body, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/answer", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("collaborator request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("collaborator returned %d", resp.StatusCode)
	}
	var out struct {
		Results []Result `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode collaborator response: %w", err)
	}
	return out.Results, nil
}
