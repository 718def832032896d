package daemon

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// MaxFrameBytes bounds a single message's length prefix (§6.2). A
// client or server reading a frame larger than this treats the
// connection as corrupt and closes it.
const MaxFrameBytes = 100 * 1024 * 1024

// Kind discriminates the request/response tagged union carried over
// the wire (§6.2, §4.8.3).
type Kind uint8

const (
	KindSearch Kind = iota + 1
	KindIndex
	KindIndexWatch
	KindStatus
	KindList
	KindForget
	KindStop
	KindOK
	KindError
	KindSearchResult
	KindStatusResult
	KindListResult
	KindIndexResult
)

// Envelope is the outer wire frame: a Kind discriminator plus an
// opaque msgpack-encoded payload whose shape depends on Kind.
type Envelope struct {
	Kind    Kind
	Payload msgpack.RawMessage
}

// SearchRequest asks the daemon to run a query against one project's
// index (§4.5, §4.9).
type SearchRequest struct {
	ProjectRoot string
	Query       string
	Limit       int
	PathFilter  string
}

// SearchResponse carries ranked results for a SearchRequest (§3.2).
type SearchResponse struct {
	Results []WireResult
}

// WireResult is the over-the-wire form of a ranked chunk match.
type WireResult struct {
	Path       string
	StartLine  int
	EndLine    int
	Content    string
	SymbolName string
	SymbolKind string
	Language   string
	Score      float64
}

// IndexRequest asks the daemon to (re)index a project (§4.4, and the
// `index` command of §6.3).
type IndexRequest struct {
	ProjectRoot string
	Force       bool
}

// IndexResponse reports the outcome of an IndexRequest.
type IndexResponse struct {
	FilesIndexed int
	ChunksStored int
	DurationMS   int64
}

// IndexWatchRequest asks the daemon to start (or confirm) watching a
// project for incremental reindexing (§4.7).
type IndexWatchRequest struct {
	ProjectRoot string
}

// StatusRequest asks for the daemon's own health and project summary
// (the `status` command of §6.3).
type StatusRequest struct{}

// StatusResponse reports daemon health.
type StatusResponse struct {
	PID             int
	UptimeSeconds   float64
	ProjectCount    int
	OpenIndexCount  int
	ResultCacheSize int
	QueryCacheSize  int

	// Query telemetry, aggregated across every project since daemon
	// start (§6.4).
	TotalQueries         int64
	ZeroResultCount      int64
	ZeroResultPercentage float64
}

// ListRequest asks for all registered projects (the `list` command of
// §6.3).
type ListRequest struct{}

// ListResponse carries the registered project list.
type ListResponse struct {
	Projects []WireProject
}

// WireProject is the over-the-wire form of a registry entry (§3.3).
type WireProject struct {
	Root        string
	Hash        string
	LastIndexed string
	ChunkCount  int
	FileCount   int
	IndexBytes  int64
}

// ForgetRequest asks the daemon to drop a project from the registry
// and delete its index (the `forget` command of §6.3).
type ForgetRequest struct {
	ProjectRoot string
}

// StopRequest asks the daemon to shut down gracefully (the `stop`
// command of §6.3).
type StopRequest struct{}

// OKResponse is an empty success acknowledgement, used for requests
// with no payload of their own (IndexWatch, Forget, Stop).
type OKResponse struct{}

// ErrorResponse carries a structured failure back to the client,
// mirroring internal/errors's taxonomy so the CLI can map it onto the
// §7 exit code scheme without losing the error code.
type ErrorResponse struct {
	Code    string
	Message string
}

// writeFrame encodes v as msgpack, wraps it with a Kind-tagged
// envelope, prefixes the result with its 4-byte little-endian length,
// and writes it to w.
func writeFrame(w io.Writer, kind Kind, v interface{}) error {
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	framed, err := msgpack.Marshal(Envelope{Kind: kind, Payload: payload})
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	if len(framed) > MaxFrameBytes {
		return fmt.Errorf("frame too large: %d bytes", len(framed))
	}

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(framed)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("write frame length: %w", err)
	}
	if _, err := w.Write(framed); err != nil {
		return fmt.Errorf("write frame body: %w", err)
	}
	return nil
}

// readFrame reads one length-prefixed frame from r and decodes its
// envelope. The caller further decodes env.Payload according to
// env.Kind via decodePayload.
func readFrame(r *bufio.Reader) (Envelope, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return Envelope{}, err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n > MaxFrameBytes {
		return Envelope{}, fmt.Errorf("frame exceeds %d bytes", MaxFrameBytes)
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Envelope{}, fmt.Errorf("read frame body: %w", err)
	}

	var env Envelope
	if err := msgpack.Unmarshal(buf, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}

// decodePayload unmarshals env's payload into dst.
func decodePayload(env Envelope, dst interface{}) error {
	if err := msgpack.Unmarshal(env.Payload, dst); err != nil {
		return fmt.Errorf("decode payload for kind %d: %w", env.Kind, err)
	}
	return nil
}
