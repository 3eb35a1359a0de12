package sse

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/starford/dddot/internal/apperr"
	"github.com/starford/dddot/internal/bridge"
)

var _ bridge.Transport = (*Client)(nil)

// Client is the panel side of the HTTP transport: it reads envelopes from
// the host's event stream and posts its own to the host.
type Client struct {
	baseURL string
	token   string
	http    *http.Client

	in     chan []byte
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Dial opens the event stream at baseURL+"/events". token, if set, is sent
// as a Bearer token on every request.
func Dial(ctx context.Context, baseURL, token string, httpClient *http.Client) (*Client, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	streamCtx, cancel := context.WithCancel(context.Background())
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		http:    httpClient,
		in:      make(chan []byte, 64),
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, c.baseURL+"/events", nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("sse: new request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	c.authorize(req)

	type result struct {
		resp *http.Response
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		resp, err := c.http.Do(req)
		ch <- result{resp, err}
	}()

	var res result
	select {
	case res = <-ch:
	case <-ctx.Done():
		cancel()
		if r := <-ch; r.resp != nil {
			r.resp.Body.Close()
		}
		return nil, ctx.Err()
	}
	if res.err != nil {
		cancel()
		return nil, fmt.Errorf("sse: connect: %w", res.err)
	}
	if res.resp.StatusCode != http.StatusOK {
		res.resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("sse: connect: unexpected status %d", res.resp.StatusCode)
	}

	go c.read(res.resp.Body)
	return c, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// read parses the event stream and forwards the data of bridge events.
func (c *Client) read(body io.ReadCloser) {
	defer body.Close()
	defer c.Close()

	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), maxEnvelopeBytes)

	var event string
	var data bytes.Buffer
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if event == EventName && data.Len() > 0 {
				payload := bytes.Clone(data.Bytes())
				select {
				case c.in <- payload:
				case <-c.done:
					return
				}
			}
			event = ""
			data.Reset()
		case strings.HasPrefix(line, ":"):
			// comment, used for keep-alive
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
}

// Send posts an encoded envelope to baseURL+"/bridge".
func (c *Client) Send(ctx context.Context, data []byte) error {
	select {
	case <-c.done:
		return apperr.ErrClosed
	default:
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/bridge", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("sse: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sse: post: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("sse: post: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Recv returns the next envelope from the event stream.
func (c *Client) Recv(ctx context.Context) ([]byte, error) {
	select {
	case data := <-c.in:
		return data, nil
	case <-c.done:
		return nil, apperr.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close ends the event stream.
func (c *Client) Close() error {
	c.once.Do(func() {
		close(c.done)
		c.cancel()
	})
	return nil
}

// Done is closed once the stream has ended.
func (c *Client) Done() <-chan struct{} {
	return c.done
}
