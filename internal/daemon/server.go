package daemon

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	greperrors "github.com/greppy/greppy/internal/errors"
)

// Handler implements the daemon's request surface (§4.8, §4.9). It is
// satisfied by the top-level daemon coordinator that owns the project
// registry and one open index.Writer/index.Reader pair per project.
type Handler interface {
	Search(ctx context.Context, req SearchRequest) (SearchResponse, error)
	Index(ctx context.Context, req IndexRequest) (IndexResponse, error)
	IndexWatch(ctx context.Context, req IndexWatchRequest) error
	Status(ctx context.Context) (StatusResponse, error)
	List(ctx context.Context) (ListResponse, error)
	Forget(ctx context.Context, req ForgetRequest) error
}

// Server listens on a Unix socket and serves persistent, multiplexed
// connections carrying the §6.2 wire protocol.
type Server struct {
	socketPath string
	cfg        Config
	handler    Handler
	listener   net.Listener
	started    time.Time
	sem        *semaphore.Weighted

	mu       sync.Mutex
	shutdown bool
	wg       sync.WaitGroup

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewServer creates a server that will listen on socketPath once
// ListenAndServe is called.
func NewServer(socketPath string, handler Handler, cfg Config) *Server {
	return &Server{
		socketPath: socketPath,
		cfg:        cfg,
		handler:    handler,
		sem:        semaphore.NewWeighted(int64(cfg.MaxConcurrentRequests)),
		stopCh:     make(chan struct{}),
	}
}

// StopRequested is closed once a client has asked the daemon to stop
// (§6.3's `stop` command). The caller (cmd/greppy/cmd) selects on it
// alongside signal handling.
func (s *Server) StopRequested() <-chan struct{} {
	return s.stopCh
}

// ListenAndServe binds the Unix socket and serves connections until
// ctx is cancelled, then drains in-flight requests for up to
// cfg.ShutdownGrace before returning.
func (s *Server) ListenAndServe(ctx context.Context) error {
	_ = os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return greperrors.IO("listen on daemon socket", err)
	}
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		slog.Warn("failed to restrict socket permissions", slog.String("error", err.Error()))
	}

	s.listener = listener
	s.started = time.Now()

	defer func() {
		_ = listener.Close()
		_ = os.Remove(s.socketPath)
	}()

	slog.Info("daemon listening", slog.String("socket", s.socketPath))

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			shutdown := s.shutdown
			s.mu.Unlock()
			if shutdown {
				break
			}
			slog.Error("accept error", slog.String("error", err.Error()))
			continue
		}

		connID := uuid.NewString()
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn, connID)
		}()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.cfg.ShutdownGrace):
		slog.Warn("shutdown grace period elapsed with requests still in flight")
	}

	return ctx.Err()
}

// handleConnection serves frames from one client connection until it
// errors, closes, or a Stop request arrives. connID correlates every log
// line emitted while serving this connection, since one persistent client
// can issue many requests before disconnecting.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn, connID string) {
	defer conn.Close()

	log := slog.With(slog.String("conn", connID))
	log.Debug("connection accepted")
	defer log.Debug("connection closed")

	r := bufio.NewReader(conn)
	var writeMu sync.Mutex

	for {
		if s.cfg.RequestTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.cfg.RequestTimeout))
		}

		env, err := readFrame(r)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Debug("connection read error", slog.String("error", err.Error()))
			}
			return
		}

		if err := s.sem.Acquire(ctx, 1); err != nil {
			return
		}

		func() {
			defer s.sem.Release(1)
			s.dispatch(ctx, conn, &writeMu, env, log)
		}()

		if env.Kind == KindStop {
			return
		}
	}
}

// dispatch decodes one request envelope, runs it against the handler,
// and writes the response frame back to conn.
func (s *Server) dispatch(ctx context.Context, conn net.Conn, writeMu *sync.Mutex, env Envelope, log *slog.Logger) {
	write := func(kind Kind, v interface{}) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := writeFrame(conn, kind, v); err != nil {
			log.Debug("failed to write response frame", slog.String("error", err.Error()))
		}
	}
	writeErr := func(err error) {
		write(KindError, ErrorResponse{
			Code:    greperrors.Code(err),
			Message: err.Error(),
		})
	}

	switch env.Kind {
	case KindSearch:
		var req SearchRequest
		if err := decodePayload(env, &req); err != nil {
			writeErr(err)
			return
		}
		resp, err := s.handler.Search(ctx, req)
		if err != nil {
			writeErr(err)
			return
		}
		write(KindSearchResult, resp)

	case KindIndex:
		var req IndexRequest
		if err := decodePayload(env, &req); err != nil {
			writeErr(err)
			return
		}
		resp, err := s.handler.Index(ctx, req)
		if err != nil {
			writeErr(err)
			return
		}
		write(KindIndexResult, resp)

	case KindIndexWatch:
		var req IndexWatchRequest
		if err := decodePayload(env, &req); err != nil {
			writeErr(err)
			return
		}
		if err := s.handler.IndexWatch(ctx, req); err != nil {
			writeErr(err)
			return
		}
		write(KindOK, OKResponse{})

	case KindStatus:
		resp, err := s.handler.Status(ctx)
		if err != nil {
			writeErr(err)
			return
		}
		write(KindStatusResult, resp)

	case KindList:
		resp, err := s.handler.List(ctx)
		if err != nil {
			writeErr(err)
			return
		}
		write(KindListResult, resp)

	case KindForget:
		var req ForgetRequest
		if err := decodePayload(env, &req); err != nil {
			writeErr(err)
			return
		}
		if err := s.handler.Forget(ctx, req); err != nil {
			writeErr(err)
			return
		}
		write(KindOK, OKResponse{})

	case KindStop:
		write(KindOK, OKResponse{})
		s.stopOnce.Do(func() { close(s.stopCh) })

	default:
		writeErr(greperrors.IO("dispatch", errInvalidKind))
	}
}

var errInvalidKind = &kindError{}

type kindError struct{}

func (*kindError) Error() string { return "unrecognized request kind" }

// Close stops the server immediately without waiting for in-flight
// requests.
func (s *Server) Close() error {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}
