// Package ai talks to the external categorization service. The service is a
// best-effort collaborator: callers must treat any error as "no answer" and
// fall back to the local rule engine.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/finsmart/finsmart-server/internal/models"
)

// Client is the external categorizer contract.
type Client interface {
	Categorize(ctx context.Context, txns []models.TxnPayload) ([]Prediction, error)
}

// Prediction is one category guess from the service.
type Prediction struct {
	GuessCategory string  `json:"guessCategory"`
	Score         float64 `json:"score"`
	Reason        string  `json:"-"`
}

type categorizeRequest struct {
	Transactions []models.TxnPayload `json:"transactions"`
}

type categorizeResponse struct {
	Predictions []struct {
		GuessCategory string  `json:"guessCategory"`
		Score         float64 `json:"score"`
		Reason        struct {
			Details string `json:"details"`
		} `json:"reason"`
	} `json:"predictions"`
}

// HTTPClient calls the categorization service over HTTP with a hard timeout.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a client for the service at baseURL. An empty
// baseURL yields a client whose calls always fail, which callers already
// handle via the rule fallback.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Categorize posts the transactions to the service and returns one
// prediction per transaction, in input order.
func (c *HTTPClient) Categorize(ctx context.Context, txns []models.TxnPayload) ([]Prediction, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("categorizer service not configured")
	}

	body, err := json.Marshal(categorizeRequest{Transactions: txns})
	if err != nil {
		return nil, fmt.Errorf("error encoding categorize request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/categorize", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("error building categorize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error calling categorizer service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("categorizer service returned status %d", resp.StatusCode)
	}

	var decoded categorizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("error decoding categorize response: %w", err)
	}

	predictions := make([]Prediction, 0, len(decoded.Predictions))
	for _, p := range decoded.Predictions {
		predictions = append(predictions, Prediction{
			GuessCategory: p.GuessCategory,
			Score:         p.Score,
			Reason:        p.Reason.Details,
		})
	}

	return predictions, nil
}
