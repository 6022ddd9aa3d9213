// Package as implements the Access Service: the stateless gateway that
// fans reads and writes out to the CS fleet using placement information
// from the MDS.
package as

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"gastrolog/internal/httperr"
	"gastrolog/internal/logging"
	"gastrolog/internal/wire"
)

const DefaultPort = 22000

// Config configures a Server's rate limiting.
type Config struct {
	WriteRateLimit rate.Limit
	WriteBurst     int
	Logger         *slog.Logger
}

// Server is the AS HTTP handler set. It is stateless beyond its MDS
// address and the clients used to reach the CS fleet.
type Server struct {
	mds  *MDSClient
	cs   *CSClient
	rand Source
	rl   *rateLimiter

	stop   chan struct{}
	logger *slog.Logger
}

// NewServer creates an AS server. rnd may be nil to use the production
// randomness source; tests supply a deterministic one.
func NewServer(mds *MDSClient, cs *CSClient, rnd Source, cfg Config) *Server {
	if rnd == nil {
		rnd = NewDefaultSource()
	}
	if cfg.WriteRateLimit <= 0 {
		cfg.WriteRateLimit = 50
	}
	if cfg.WriteBurst <= 0 {
		cfg.WriteBurst = 100
	}

	s := &Server{
		mds:    mds,
		cs:     cs,
		rand:   rnd,
		rl:     newRateLimiter(cfg.WriteRateLimit, cfg.WriteBurst),
		stop:   make(chan struct{}),
		logger: logging.Default(cfg.Logger).With("component", "as"),
	}
	s.rl.startCleanup(s.stop, time.Minute, 10*time.Minute)
	return s
}

// Close stops the server's background cleanup goroutine.
func (s *Server) Close() { close(s.stop) }

// Handler builds the net/http handler serving every AS route named in
// spec.md §6.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ping", s.handlePing)
	mux.HandleFunc("GET /get_file", s.handleGetFile)

	writeHandler := writeRateLimitMiddleware(s.rl)(http.HandlerFunc(s.handleWriteFile))
	mux.Handle("POST /write_file", writeHandler)

	return mux
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	httperr.WriteJSON(w, wire.PingResponse{Envelope: wire.Success()})
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filename := query.Get("filename")
	if filename == "" {
		httperr.Write(w, s.logger, httperr.BadRequest("filename is required"))
		return
	}

	beginPos, ok := parseOptionalInt64(query.Get("begin_pos"))
	if !ok {
		httperr.Write(w, s.logger, httperr.BadRequest("invalid begin_pos"))
		return
	}
	endPos, ok := parseOptionalInt64(query.Get("end_pos"))
	if !ok {
		httperr.Write(w, s.logger, httperr.BadRequest("invalid end_pos"))
		return
	}

	plan, err := s.planRead(r.Context(), filename, beginPos, endPos)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			httperr.Write(w, s.logger, httperr.NotFound("file not found"))
		case errors.Is(err, ErrNoLiveReplica):
			httperr.Write(w, s.logger, httperr.Unavailable("no live replica for a required chunk"))
		default:
			httperr.Write(w, s.logger, httperr.Wrap(http.StatusInternalServerError, "get_file failed", err))
		}
		return
	}

	// file_meta, range clamping, and replica selection are all resolved
	// above; only chunk fetches remain, so the header can be committed
	// now (spec.md §4.3.1 step 4) and a failure from here on can only
	// truncate the body, never change the status code.
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)

	if err := plan.stream(r.Context(), w, s); err != nil {
		s.logger.Error("get_file failed mid-stream", "filename", filename, "error", err)
	}
}

func (s *Server) handleWriteFile(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filename := query.Get("filename")
	if filename == "" {
		httperr.Write(w, s.logger, httperr.BadRequest("filename is required"))
		return
	}

	beginPos := int64(0)
	if raw := query.Get("begin_pos"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			httperr.Write(w, s.logger, httperr.BadRequest("invalid begin_pos"))
			return
		}
		beginPos = parsed
	}
	// resize is accepted but intentionally ignored (spec.md §9 weakness
	// #6: reserved for future truncation support).
	_ = query.Get("resize")

	content, err := io.ReadAll(r.Body)
	if err != nil {
		httperr.Write(w, s.logger, httperr.BadRequest("failed to read request body"))
		return
	}

	err = s.WriteAt(r.Context(), filename, beginPos, content)
	switch {
	case err == nil:
		httperr.WriteJSON(w, wire.PingResponse{Envelope: wire.Success()})
	case errors.Is(err, ErrPastEOF):
		httperr.Write(w, s.logger, httperr.BadRequest("begin_pos is past end of file"))
	case errors.Is(err, ErrCommitFailed):
		httperr.Write(w, s.logger, httperr.Unavailable("write commit failed"))
	default:
		httperr.Write(w, s.logger, httperr.Wrap(http.StatusInternalServerError, "write failed", err))
	}
}

func parseOptionalInt64(raw string) (*int64, bool) {
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, false
	}
	return &v, true
}
