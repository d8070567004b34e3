package relay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"duet/internal/codec"
	"duet/internal/domain"
)

// HTTP is the client side of the relay API.
type HTTP struct {
	Base  string
	HTTP  *http.Client
	Codec codec.Codec
}

// NewHTTP returns a client for the relay at base. A nil hc selects
// http.DefaultClient; a nil c selects JSON.
func NewHTTP(base string, hc *http.Client, c codec.Codec) *HTTP {
	if hc == nil {
		hc = http.DefaultClient
	}
	if c == nil {
		c = codec.JSON
	}
	return &HTTP{Base: strings.TrimRight(base, "/"), HTTP: hc, Codec: c}
}

// Upload publishes bundle.
func (c *HTTP) Upload(ctx context.Context, bundle domain.PreKeyBundle) error {
	return c.do(ctx, http.MethodPost, "/register", bundle, nil)
}

// Download fetches a peer's bundle with one one-time pre-key.
func (c *HTTP) Download(ctx context.Context, username domain.Username) (domain.FetchedBundle, error) {
	var out domain.FetchedBundle
	if err := c.do(ctx, http.MethodGet, "/prekey/"+url.PathEscape(username.String()), nil, &out); err != nil {
		return domain.FetchedBundle{}, err
	}
	return out, nil
}

// Post queues msg for msg.To.
func (c *HTTP) Post(ctx context.Context, msg domain.RelayMessage) error {
	return c.do(ctx, http.MethodPost, "/msg/"+url.PathEscape(msg.To.String()), msg, nil)
}

// Fetch returns up to limit queued messages for username.
func (c *HTTP) Fetch(ctx context.Context, username domain.Username, limit int) ([]domain.RelayMessage, error) {
	path := "/msg/" + url.PathEscape(username.String())
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var msgs []domain.RelayMessage
	if err := c.do(ctx, http.MethodGet, path, nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// Ack drops the first count queued messages for username.
func (c *HTTP) Ack(ctx context.Context, username domain.Username, count int) error {
	return c.do(ctx, http.MethodPost, "/msg/"+url.PathEscape(username.String())+"/ack", ackRequest{Count: count}, nil)
}

func (c *HTTP) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := c.Codec.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.Base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", c.Codec.ContentType())
	}
	req.Header.Set("Accept", c.Codec.ContentType())

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if resp.StatusCode/100 != 2 {
		return c.statusError(method, path, resp, raw)
	}
	if out == nil {
		return nil
	}
	return codec.ByContentType(resp.Header.Get("Content-Type")).Unmarshal(raw, out)
}

// statusError maps a non-2xx reply back onto the domain sentinel the server
// started from, keeping the server's message for context.
func (c *HTTP) statusError(method, path string, resp *http.Response, raw []byte) error {
	var er errorResponse
	msg := resp.Status
	if err := codec.ByContentType(resp.Header.Get("Content-Type")).Unmarshal(raw, &er); err == nil && er.Error != "" {
		msg = er.Error
	}

	var sentinel error
	switch resp.StatusCode {
	case http.StatusNotFound:
		sentinel = domain.ErrNotFound
	case http.StatusConflict:
		sentinel = domain.ErrPreKeysExhausted
	case http.StatusBadRequest:
		sentinel = domain.ErrInvalidMessage
	default:
		return fmt.Errorf("relay %s %s: %s", method, path, msg)
	}
	return fmt.Errorf("relay %s %s: %w", method, path, errors.Join(sentinel, errors.New(msg)))
}

var _ domain.RelayClient = (*HTTP)(nil)
