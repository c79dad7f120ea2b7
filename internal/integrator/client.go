package integrator

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/eytandecker/flightsim-client/pkg/types"
)

const maxRetryBackoff = time.Second

// Config holds integrator connection settings.
type Config struct {
	Host    string
	Port    int
	Path    string
	Timeout time.Duration

	// Retries is the number of extra attempts made after a network failure.
	// Zero disables retry.
	Retries      int
	RetryBackoff time.Duration
}

// DefaultConfig returns the settings of a local integrator on port 8000.
func DefaultConfig() Config {
	return Config{
		Host:         "localhost",
		Port:         8000,
		Path:         DefaultPath,
		Timeout:      2 * time.Second,
		RetryBackoff: 10 * time.Millisecond,
	}
}

// Client sends snapshots to the remote integrator over HTTP.
type Client struct {
	config     Config
	url        string
	httpClient *http.Client

	latest   atomic.Uint64 // highest sequence number handed to Send
	inFlight atomic.Int32
}

// NewClient creates a new integrator client.
func NewClient(cfg Config) *Client {
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	return &Client{
		config:     cfg,
		url:        "http://" + net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)) + cfg.Path,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// URL returns the update endpoint.
func (c *Client) URL() string {
	return c.url
}

// InFlight returns the number of requests started by Send that have not completed.
func (c *Client) InFlight() int {
	return int(c.inFlight.Load())
}

// Update performs one blocking round trip. ok is false when the integrator
// answered 2xx with an empty body.
func (c *Client) Update(ctx context.Context, snap types.Snapshot) (res types.SyncResult, ok bool, err error) {
	body, err := EncodeSnapshot(snap)
	if err != nil {
		return types.SyncResult{}, false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return types.SyncResult{}, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", ContentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return types.SyncResult{}, false, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return types.SyncResult{}, false, &ServerError{StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.SyncResult{}, false, fmt.Errorf("%w: read body: %w", ErrNetwork, err)
	}

	res, ok, err = DecodeResult(data)
	if err != nil || !ok {
		return types.SyncResult{}, false, err
	}
	res.Seq = snap.Seq
	return res, true, nil
}

// Send starts a round trip for snap on its own goroutine and returns
// immediately. The outcome is collected with Pending.Poll.
func (c *Client) Send(ctx context.Context, snap types.Snapshot) *Pending {
	p := NewPending(snap.Seq)
	c.markDispatched(snap.Seq)
	c.inFlight.Add(1)

	go func() {
		defer c.inFlight.Add(-1)
		p.Resolve(c.roundTrip(ctx, snap, p.IssueTime))
	}()
	return p
}

func (c *Client) markDispatched(seq uint64) {
	for {
		cur := c.latest.Load()
		if seq <= cur || c.latest.CompareAndSwap(cur, seq) {
			return
		}
	}
}

// superseded reports whether a newer snapshot than seq has been dispatched.
func (c *Client) superseded(seq uint64) bool {
	return c.latest.Load() > seq
}

// roundTrip runs Update, retrying network failures with exponential backoff
// until the retry budget is spent or a newer step has been dispatched.
func (c *Client) roundTrip(ctx context.Context, snap types.Snapshot, start time.Time) Outcome {
	backoff := c.config.RetryBackoff
	if backoff <= 0 {
		backoff = 10 * time.Millisecond
	}

	for attempt := 1; ; attempt++ {
		res, ok, err := c.Update(ctx, snap)
		done := err == nil ||
			Classify(err) != KindNetwork ||
			attempt > c.config.Retries ||
			c.superseded(snap.Seq) ||
			ctx.Err() != nil
		if done {
			return Outcome{
				Seq:      snap.Seq,
				Result:   res,
				Empty:    err == nil && !ok,
				Err:      err,
				Attempts: attempt,
				Latency:  time.Since(start),
			}
		}

		select {
		case <-ctx.Done():
			return Outcome{
				Seq:      snap.Seq,
				Err:      fmt.Errorf("%w: %w", ErrNetwork, ctx.Err()),
				Attempts: attempt,
				Latency:  time.Since(start),
			}
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxRetryBackoff {
			backoff = maxRetryBackoff
		}
	}
}
