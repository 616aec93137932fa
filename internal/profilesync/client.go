package profilesync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/session-seat-reservation/internal/model"
)

// TokenSource yields bearer tokens for outgoing calls.
type TokenSource interface {
	Token() (string, error)
}

// Client calls the profile service: POST {base}/{operation} with a JSON body
// of userId, sessionId and timestampUTC (epoch millis as a string).
type Client struct {
	base   string
	tokens TokenSource
	http   *http.Client
}

// NewClient returns a client for the service rooted at base.
func NewClient(base string, tokens TokenSource, timeout time.Duration) *Client {
	return &Client{
		base:   strings.TrimRight(base, "/"),
		tokens: tokens,
		http:   &http.Client{Timeout: timeout},
	}
}

type callBody struct {
	UserID       string `json:"userId"`
	SessionID    string `json:"sessionId"`
	TimestampUTC string `json:"timestampUTC"`
}

// Call performs op for profileID.  Any non-2xx answer is an error.
func (c *Client) Call(ctx context.Context, op model.SyncOperation, profileID, sessionID string, at int64) error {
	if !op.Valid() {
		return fmt.Errorf("profilesync: unknown operation %q", op)
	}
	token, err := c.tokens.Token()
	if err != nil {
		return err
	}
	body, err := json.Marshal(callBody{UserID: profileID, SessionID: sessionID, TimestampUTC: strconv.FormatInt(at, 10)})
	if err != nil {
		return fmt.Errorf("profilesync: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/"+string(op), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("profilesync: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("profilesync: %s: %w", op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("profilesync: %s: status %d: %s", op, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
