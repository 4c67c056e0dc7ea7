// Package classifier provides the real InjectionClassifier implementation:
// an HTTP call to a text-classification sidecar, following the same
// lazy-probe-then-call shape as the embedding provider's Ollama client.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	domainclassifier "github.com/CherryPod/sentinel-sub000/internal/domain/classifier"
	"github.com/CherryPod/sentinel-sub000/internal/domain/valueobject"
	"go.uber.org/zap"
)

const maxChunkChars = 2000

// benignLabels mirrors both Prompt Guard v1 ("BENIGN") and v2 ("LABEL_0")
// label vocabularies, since the sidecar model is swappable.
var benignLabels = map[string]bool{
	"BENIGN":  true,
	"LABEL_0": true,
}

type classifyRequest struct {
	Text string `json:"text"`
}

type classifyResponse struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// HTTPClassifier calls an external text-classification endpoint (a model
// server fronting something like Llama Prompt Guard). It probes the
// endpoint once at construction; if the probe fails, Loaded() reports
// false for the lifetime of the process and the pipeline falls back to
// deterministic scanners alone (or fails closed, if configured to require
// the classifier).
type HTTPClassifier struct {
	endpoint string
	client   *http.Client
	logger   *zap.Logger
	loaded   bool
}

func NewHTTPClassifier(ctx context.Context, endpoint string, logger *zap.Logger) *HTTPClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &HTTPClassifier{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
	}

	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := c.classifyChunk(probeCtx, "probe"); err != nil {
		logger.Warn("injection classifier endpoint not available",
			zap.String("endpoint", endpoint), zap.Error(err))
		c.loaded = false
		return c
	}
	c.loaded = true
	logger.Info("injection classifier loaded", zap.String("endpoint", endpoint))
	return c
}

func (c *HTTPClassifier) Loaded() bool { return c.loaded }

// Classify chunks text to the model's context window and flags it if any
// chunk scores malicious above threshold.
func (c *HTTPClassifier) Classify(ctx context.Context, text string, threshold float64) (valueobject.ScanResult, error) {
	if !c.loaded {
		return valueobject.CleanResult(domainclassifier.ScannerName), nil
	}

	var matches []valueobject.ScanMatch
	for i, chunk := range segmentText(text, maxChunkChars) {
		resp, err := c.classifyChunk(ctx, chunk)
		if err != nil {
			c.logger.Warn("injection classifier request failed", zap.Error(err))
			continue
		}
		if !benignLabels[resp.Label] && resp.Score >= threshold {
			preview := chunk
			if len(preview) > 200 {
				preview = preview[:200]
			}
			matches = append(matches, valueobject.ScanMatch{
				PatternName: "prompt_guard_" + strings.ToLower(resp.Label),
				MatchedText: preview,
				Position:    i * maxChunkChars,
			})
		}
	}

	return valueobject.DirtyResult(domainclassifier.ScannerName, matches), nil
}

func (c *HTTPClassifier) classifyChunk(ctx context.Context, text string) (classifyResponse, error) {
	body, err := json.Marshal(classifyRequest{Text: text})
	if err != nil {
		return classifyResponse{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return classifyResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return classifyResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return classifyResponse{}, fmt.Errorf("classifier returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var out classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return classifyResponse{}, err
	}
	return out, nil
}

func segmentText(text string, maxChars int) []string {
	if len(text) <= maxChars {
		return []string{text}
	}
	var chunks []string
	for i := 0; i < len(text); i += maxChars {
		end := i + maxChars
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, text[i:end])
	}
	return chunks
}
