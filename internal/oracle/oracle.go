// Package oracle provides the external language-identification capability
// consulted when the character heuristic cannot resolve a text. Callers treat
// every failure as inconclusive; the oracle is never load-bearing for
// correctness.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"feedsift/internal/config"
	"feedsift/internal/logging"
)

// Candidate is one identified language with its confidence percentage.
type Candidate struct {
	Language   string `json:"language"`
	Percentage int    `json:"percentage"`
}

// Detection is an identification result, candidates ordered by confidence.
type Detection struct {
	Languages []Candidate `json:"languages"`
	Reliable  bool        `json:"reliable"`
}

// Top returns the highest-confidence candidate, if any.
func (d Detection) Top() (Candidate, bool) {
	if len(d.Languages) == 0 {
		return Candidate{}, false
	}
	return d.Languages[0], true
}

// Detector identifies the language of a short text.
type Detector interface {
	Detect(ctx context.Context, text string) (Detection, error)
}

// ErrUnavailable indicates no identification service is configured.
var ErrUnavailable = errors.New("language identification service not configured")

// HTTPDetector calls a remote identification service over HTTP. The service
// accepts {"q": <text>} and responds with a Detection document.
type HTTPDetector struct {
	endpoint string
	apiKey   string
	client   *http.Client
	logger   *slog.Logger
}

// NewHTTPDetector builds a detector from oracle configuration. An empty
// endpoint yields a detector whose calls always fail with ErrUnavailable.
func NewHTTPDetector(cfg config.Oracle, logger *slog.Logger) *HTTPDetector {
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPDetector{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: timeout},
		logger:   logging.NewComponentLogger(logger, "oracle"),
	}
}

// Detect sends the text to the identification service.
func (d *HTTPDetector) Detect(ctx context.Context, text string) (Detection, error) {
	if d.endpoint == "" {
		return Detection{}, ErrUnavailable
	}

	payload, err := json.Marshal(map[string]string{"q": text})
	if err != nil {
		return Detection{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(payload))
	if err != nil {
		return Detection{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if d.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.apiKey)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return Detection{}, fmt.Errorf("identify language: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		d.logger.Debug("identification request rejected",
			logging.Int("status", resp.StatusCode),
			logging.String("body", string(body)))
		return Detection{}, fmt.Errorf("identify language: unexpected status %d", resp.StatusCode)
	}

	var detection Detection
	if err := json.NewDecoder(resp.Body).Decode(&detection); err != nil {
		return Detection{}, fmt.Errorf("decode response: %w", err)
	}
	return detection, nil
}
