package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"golang.org/x/oauth2"
)

// TokenFunc supplies the current bearer token, or nil when logged out.
type TokenFunc func() *oauth2.Token

// Client speaks the document-store wire protocol: documents are addressed
// as /v1/docs/{path} over HTTP (PUT to overwrite, DELETE to remove) and
// watched as /v1/watch/{path} over WebSocket, where the server pushes one
// snapshot frame immediately and another on every change.
type Client struct {
	baseURL string
	http    *http.Client
	token   TokenFunc
	logger  *slog.Logger
}

// NewClient creates a wire client for the document store at baseURL.
func NewClient(baseURL string, httpClient *http.Client, token TokenFunc, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    httpClient,
		token:   token,
		logger:  logger,
	}
}

// watchFrame is one server push on a watch stream. Data is null when the
// document does not exist or was deleted.
type watchFrame struct {
	ID   string         `json:"id"`
	Data map[string]any `json:"data"`
}

// Subscribe dials a watch stream for path and reads frames until
// canceled. The returned CancelFunc closes the stream; the callback never
// fires after it returns. A read failure ends the stream with a warning
// and no retry.
func (c *Client) Subscribe(ctx context.Context, path string, fn WatchFunc) (CancelFunc, error) {
	conn, _, err := websocket.Dial(ctx, c.baseURL+"/v1/watch/"+path, &websocket.DialOptions{
		HTTPClient: c.http,
		HTTPHeader: c.authHeader(),
	})
	if err != nil {
		return nil, fmt.Errorf("remote: watch %s: %w", path, err)
	}

	readCtx, stop := context.WithCancel(context.Background())

	var canceled atomic.Bool

	go func() {
		for {
			var frame watchFrame
			if err := wsjson.Read(readCtx, conn, &frame); err != nil {
				if !canceled.Load() {
					c.logger.Warn("watch stream ended",
						slog.String("path", path),
						slog.String("error", err.Error()),
					)
				}

				return
			}

			if canceled.Load() {
				return
			}

			if frame.ID == "" {
				frame.ID = DocID(path)
			}

			fn(frame.ID, frame.Data)
		}
	}()

	cancel := func() {
		canceled.Store(true)
		stop()
		_ = conn.Close(websocket.StatusNormalClosure, "unsubscribe")
	}

	return cancel, nil
}

// Set overwrites the document at path with data.
func (c *Client) Set(ctx context.Context, path string, data map[string]any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("remote: encoding doc %s: %w", path, err)
	}

	return c.do(ctx, http.MethodPut, path, body)
}

// Delete removes the document at path. An already-absent document is not
// an error.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/v1/docs/"+path, reader)
	if err != nil {
		return fmt.Errorf("remote: %s %s: %w", method, path, err)
	}

	for k, v := range c.authHeader() {
		req.Header[k] = v
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("remote: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	// Deleting what is already gone achieves the goal.
	if method == http.MethodDelete && resp.StatusCode == http.StatusNotFound {
		return nil
	}

	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("remote: %s %s: server returned %s: %s",
			method, path, resp.Status, bytes.TrimSpace(msg))
	}

	return nil
}

func (c *Client) authHeader() http.Header {
	header := http.Header{}

	if token := c.token(); token != nil {
		token.SetAuthHeader(&http.Request{Header: header})
	}

	return header
}
