package daemon

import (
	"bufio"
	"context"
	"net"
	"sync"
	"time"

	greperrors "github.com/greppy/greppy/internal/errors"
)

// FallbackSearcher executes a search directly against an on-disk index,
// bypassing the daemon entirely. The CLI supplies one backed by
// internal/index so the client can still answer queries when no daemon
// is reachable (§4.9's fallback path). Fallback mode has no access to
// the daemon's L1/L2 caches.
type FallbackSearcher interface {
	Search(ctx context.Context, req SearchRequest) (SearchResponse, error)
}

// Client is the IPC client described in §4.9: it prefers a pooled
// connection to a running daemon, and falls back to an in-process
// search when the daemon is unreachable or misbehaves.
type Client struct {
	socketPath string
	timeout    time.Duration
	fallback   FallbackSearcher

	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
}

// NewClient creates an IPC client. fallback may be nil, in which case
// daemon errors are returned to the caller unchanged.
func NewClient(socketPath string, timeout time.Duration, fallback FallbackSearcher) *Client {
	return &Client{socketPath: socketPath, timeout: timeout, fallback: fallback}
}

// IsRunning reports whether a daemon is currently accepting
// connections on the client's socket.
func (c *Client) IsRunning() bool {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Search runs a query. It tries the pooled daemon connection first; on
// any network or protocol failure it discards the connection and, if a
// fallback searcher was configured, answers the query in-process.
func (c *Client) Search(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	var resp SearchResponse
	err := c.roundTrip(ctx, KindSearch, req, &resp)
	if err == nil {
		return resp, nil
	}
	if !c.shouldFallback(err) {
		return SearchResponse{}, err
	}
	return c.fallback.Search(ctx, req)
}

// Index asks the daemon to (re)index a project. No in-process fallback
// exists: indexing requires the daemon's single-writer discipline.
func (c *Client) Index(ctx context.Context, req IndexRequest) (IndexResponse, error) {
	var resp IndexResponse
	err := c.roundTrip(ctx, KindIndex, req, &resp)
	return resp, err
}

// IndexWatch asks the daemon to start watching a project.
func (c *Client) IndexWatch(ctx context.Context, req IndexWatchRequest) error {
	var resp OKResponse
	return c.roundTrip(ctx, KindIndexWatch, req, &resp)
}

// Status retrieves daemon health.
func (c *Client) Status(ctx context.Context) (StatusResponse, error) {
	var resp StatusResponse
	err := c.roundTrip(ctx, KindStatus, StatusRequest{}, &resp)
	return resp, err
}

// List retrieves the registered project list.
func (c *Client) List(ctx context.Context) (ListResponse, error) {
	var resp ListResponse
	err := c.roundTrip(ctx, KindList, ListRequest{}, &resp)
	return resp, err
}

// Forget asks the daemon to drop a project.
func (c *Client) Forget(ctx context.Context, req ForgetRequest) error {
	var resp OKResponse
	return c.roundTrip(ctx, KindForget, req, &resp)
}

// Stop asks the daemon to shut down gracefully.
func (c *Client) Stop(ctx context.Context) error {
	var resp OKResponse
	return c.roundTrip(ctx, KindStop, StopRequest{}, &resp)
}

// Close releases the pooled connection, if any.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeConnLocked()
}

func (c *Client) closeConnLocked() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.reader = nil
	return err
}

// shouldFallback reports whether err warrants trying the in-process
// fallback: any transport/protocol failure, but not an error the
// daemon itself returned deliberately (e.g. a bad query).
func (c *Client) shouldFallback(err error) bool {
	if c.fallback == nil {
		return false
	}
	code := greperrors.Code(err)
	return code == "" || code == greperrors.CodeDaemonNotRunning || code == greperrors.CodeDaemonError
}

// roundTrip sends one request over the pooled connection (dialing
// lazily) and decodes the response into out. On any I/O or protocol
// error the pooled connection is discarded so the next call redials.
func (c *Client) roundTrip(ctx context.Context, kind Kind, req interface{}, out interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, reader, err := c.connLocked()
	if err != nil {
		return greperrors.DaemonNotRunning(c.socketPath)
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		_ = c.closeConnLocked()
		return greperrors.DaemonError("set connection deadline", err)
	}

	if err := writeFrame(conn, kind, req); err != nil {
		_ = c.closeConnLocked()
		return greperrors.DaemonError("send request", err)
	}

	env, err := readFrame(reader)
	if err != nil {
		_ = c.closeConnLocked()
		return greperrors.DaemonError("receive response", err)
	}

	if env.Kind == KindError {
		var errResp ErrorResponse
		if decodeErr := decodePayload(env, &errResp); decodeErr != nil {
			return greperrors.DaemonError("decode error response", decodeErr)
		}
		return greperrors.New(errResp.Code, errResp.Message, nil)
	}

	if err := decodePayload(env, out); err != nil {
		_ = c.closeConnLocked()
		return greperrors.DaemonError("decode response", err)
	}
	return nil
}

// connLocked returns the pooled connection and its buffered reader,
// dialing one if none is open. Caller must hold c.mu.
func (c *Client) connLocked() (net.Conn, *bufio.Reader, error) {
	if c.conn != nil {
		return c.conn, c.reader, nil
	}
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, nil, err
	}
	c.conn = conn
	c.reader = bufio.NewReader(conn)
	return conn, c.reader, nil
}
