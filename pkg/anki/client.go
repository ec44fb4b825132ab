// Package anki is a client for the AnkiConnect HTTP API running alongside a
// local Anki instance.
package anki

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	DefaultURL = "http://localhost:8765"

	apiVersion = 6
)

// ErrUnavailable wraps connection-level failures: Anki is not running or
// AnkiConnect is not installed.
var ErrUnavailable = errors.New("anki: connect unavailable")

type Client struct {
	url        string
	httpClient *http.Client
}

func NewClient(url string) *Client {
	if url == "" {
		url = DefaultURL
	}
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// CheckConnection verifies that AnkiConnect answers at all.
func (c *Client) CheckConnection(ctx context.Context) error {
	var version int
	if err := c.invoke(ctx, "version", nil, &version); err != nil {
		return fmt.Errorf("check connection: %w", err)
	}
	return nil
}

// ImportDeck pulls a complete deck from Anki: metadata, cards and reviews.
func (c *Client) ImportDeck(ctx context.Context, deckName string) (*DeckExport, error) {
	params := map[string]any{"deck": deckName}

	var export DeckExport
	if err := c.invoke(ctx, "importDeck", params, &export); err != nil {
		return nil, fmt.Errorf("import deck (deck: %s): %w", deckName, err)
	}

	return &export, nil
}

// AddCard creates a note in the named Anki deck and returns its card id.
func (c *Client) AddCard(ctx context.Context, deckName, front, back, hint string, tags []string) (int64, error) {
	params := map[string]any{
		"deck":  deckName,
		"front": front,
		"back":  back,
		"hint":  hint,
		"tags":  tags,
	}

	var cardID int64
	if err := c.invoke(ctx, "addCard", params, &cardID); err != nil {
		return 0, fmt.Errorf("add card (deck: %s): %w", deckName, err)
	}

	return cardID, nil
}

// PushProgress writes review progress into Anki for already-mapped cards.
// Connection-level failures are retried with fibonacci backoff before giving up.
func (c *Client) PushProgress(ctx context.Context, mappings []ProgressMapping, reviews []ReviewInfo) error {
	params := map[string]any{
		"mappings": mappings,
		"reviews":  reviews,
	}

	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := c.invoke(ctx, "pushProgress", params, nil); err != nil {
			if errors.Is(err, ErrUnavailable) {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("push progress (%d reviews): %w", len(reviews), err)
	}

	return nil
}

// SyncProgress runs the merge routine on the Anki side, handing it the local
// review set and the id mapping list, and returns its summary.
func (c *Client) SyncProgress(ctx context.Context, deckName string, reviews []ReviewInfo, mappings []ProgressMapping) (*SyncSummary, error) {
	params := map[string]any{
		"deck":     deckName,
		"reviews":  reviews,
		"mappings": mappings,
	}

	var summary SyncSummary
	if err := c.invoke(ctx, "syncProgress", params, &summary); err != nil {
		return nil, fmt.Errorf("sync progress (deck: %s): %w", deckName, err)
	}

	return &summary, nil
}

func (c *Client) invoke(ctx context.Context, action string, params, result any) error {
	body, err := json.Marshal(request{Action: action, Version: apiVersion, Params: params})
	if err != nil {
		return fmt.Errorf("marshal request (action: %s): %w", action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request (action: %s): %w", action, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w (action: %s): %v", ErrUnavailable, action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("request failed (action: %s, status: %d): %s", action, resp.StatusCode, string(respBody))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body (action: %s): %w", action, err)
	}

	var envelope response
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decode response (action: %s): %w", action, err)
	}

	if envelope.Error != nil && *envelope.Error != "" {
		return fmt.Errorf("anki error (action: %s): %s", action, *envelope.Error)
	}

	if result != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("decode result (action: %s): %w", action, err)
		}
	}

	return nil
}
