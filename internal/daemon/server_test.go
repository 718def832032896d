package daemon

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	greperrors "github.com/greppy/greppy/internal/errors"
)

// serverTestSocketPath creates a unique socket path for server tests.
func serverTestSocketPath(t *testing.T) string {
	t.Helper()
	socketPath := filepath.Join(t.TempDir(), fmt.Sprintf("greppy-server-test-%d.sock", time.Now().UnixNano()))
	return socketPath
}

type fakeHandler struct {
	searchFn func(ctx context.Context, req SearchRequest) (SearchResponse, error)
}

func (f *fakeHandler) Search(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	if f.searchFn != nil {
		return f.searchFn(ctx, req)
	}
	return SearchResponse{}, nil
}

func (f *fakeHandler) Index(ctx context.Context, req IndexRequest) (IndexResponse, error) {
	return IndexResponse{FilesIndexed: 1, ChunksStored: 1}, nil
}

func (f *fakeHandler) IndexWatch(ctx context.Context, req IndexWatchRequest) error {
	return nil
}

func (f *fakeHandler) Status(ctx context.Context) (StatusResponse, error) {
	return StatusResponse{PID: os.Getpid(), ProjectCount: 1}, nil
}

func (f *fakeHandler) List(ctx context.Context) (ListResponse, error) {
	return ListResponse{Projects: []WireProject{{Root: "/proj"}}}, nil
}

func (f *fakeHandler) Forget(ctx context.Context, req ForgetRequest) error {
	return nil
}

func startTestServer(t *testing.T, h Handler) (*Server, string) {
	t.Helper()
	socketPath := serverTestSocketPath(t)
	srv := NewServer(socketPath, h, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-errCh
	})

	require.Eventually(t, func() bool {
		_, err := os.Stat(socketPath)
		return err == nil
	}, 2*time.Second, 5*time.Millisecond)

	return srv, socketPath
}

func roundTrip(t *testing.T, conn net.Conn, kind Kind, req interface{}) Envelope {
	t.Helper()
	require.NoError(t, writeFrame(conn, kind, req))
	env, err := readFrame(bufio.NewReader(conn))
	require.NoError(t, err)
	return env
}

func TestServer_ListenAndServeCreatesSocket(t *testing.T) {
	_, socketPath := startTestServer(t, &fakeHandler{})
	_, err := os.Stat(socketPath)
	require.NoError(t, err)
}

func TestServer_HandleStatus(t *testing.T) {
	_, socketPath := startTestServer(t, &fakeHandler{})

	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	env := roundTrip(t, conn, KindStatus, StatusRequest{})
	assert.Equal(t, KindStatusResult, env.Kind)

	var resp StatusResponse
	require.NoError(t, decodePayload(env, &resp))
	assert.Equal(t, 1, resp.ProjectCount)
}

func TestServer_HandleSearch(t *testing.T) {
	h := &fakeHandler{searchFn: func(ctx context.Context, req SearchRequest) (SearchResponse, error) {
		return SearchResponse{Results: []WireResult{{Path: req.ProjectRoot, Score: 1}}}, nil
	}}
	_, socketPath := startTestServer(t, h)

	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	env := roundTrip(t, conn, KindSearch, SearchRequest{ProjectRoot: "/proj", Query: "foo"})
	assert.Equal(t, KindSearchResult, env.Kind)

	var resp SearchResponse
	require.NoError(t, decodePayload(env, &resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "/proj", resp.Results[0].Path)
}

func TestServer_HandleSearchError(t *testing.T) {
	h := &fakeHandler{searchFn: func(ctx context.Context, req SearchRequest) (SearchResponse, error) {
		return SearchResponse{}, greperrors.NoIndex(req.ProjectRoot)
	}}
	_, socketPath := startTestServer(t, h)

	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	env := roundTrip(t, conn, KindSearch, SearchRequest{ProjectRoot: "/proj", Query: "foo"})
	assert.Equal(t, KindError, env.Kind)

	var errResp ErrorResponse
	require.NoError(t, decodePayload(env, &errResp))
	assert.Equal(t, greperrors.CodeNoIndex, errResp.Code)
}

func TestServer_HandlesMultipleRequestsOnOneConnection(t *testing.T) {
	_, socketPath := startTestServer(t, &fakeHandler{})

	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	r := bufio.NewReader(conn)

	require.NoError(t, writeFrame(conn, KindStatus, StatusRequest{}))
	env1, err := readFrame(r)
	require.NoError(t, err)
	assert.Equal(t, KindStatusResult, env1.Kind)

	require.NoError(t, writeFrame(conn, KindList, ListRequest{}))
	env2, err := readFrame(r)
	require.NoError(t, err)
	assert.Equal(t, KindListResult, env2.Kind)
}

func TestServer_ConcurrentConnections(t *testing.T) {
	_, socketPath := startTestServer(t, &fakeHandler{})

	const numClients = 5
	done := make(chan bool, numClients)

	for i := 0; i < numClients; i++ {
		go func(id int) {
			conn, err := net.Dial("unix", socketPath)
			if err != nil {
				done <- false
				return
			}
			defer conn.Close()

			if err := writeFrame(conn, KindStatus, StatusRequest{}); err != nil {
				done <- false
				return
			}
			env, err := readFrame(bufio.NewReader(conn))
			done <- err == nil && env.Kind == KindStatusResult
		}(i)
	}

	successCount := 0
	for i := 0; i < numClients; i++ {
		if <-done {
			successCount++
		}
	}
	assert.Equal(t, numClients, successCount, "all clients should succeed")
}

func TestServer_CleansUpSocketOnShutdown(t *testing.T) {
	socketPath := serverTestSocketPath(t)
	srv := NewServer(socketPath, &fakeHandler{}, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx) }()

	require.Eventually(t, func() bool {
		_, err := os.Stat(socketPath)
		return err == nil
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-errCh

	_, err := os.Stat(socketPath)
	assert.True(t, os.IsNotExist(err), "socket should be cleaned up")
}

func TestServer_StopRequestClosesStopChannel(t *testing.T) {
	socketPath := serverTestSocketPath(t)
	srv := NewServer(socketPath, &fakeHandler{}, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = srv.ListenAndServe(ctx) }()

	require.Eventually(t, func() bool {
		_, err := os.Stat(socketPath)
		return err == nil
	}, 2*time.Second, 5*time.Millisecond)

	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	env := roundTrip(t, conn, KindStop, StopRequest{})
	assert.Equal(t, KindOK, env.Kind)

	select {
	case <-srv.StopRequested():
	case <-time.After(2 * time.Second):
		t.Fatal("stop channel was not closed")
	}
}
