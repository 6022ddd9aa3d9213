package cs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"gastrolog/internal/httperr"
	"gastrolog/internal/logging"
	"gastrolog/internal/wire"
)

const DefaultPort = 21000

// Server is the CS HTTP handler set.
type Server struct {
	store     *Store
	heartbeat *Heartbeat
	logger    *slog.Logger
}

// NewServer creates a CS server backed by store, with heartbeat used to
// serve force_push_chunks_list.
func NewServer(store *Store, heartbeat *Heartbeat, logger *slog.Logger) *Server {
	return &Server{store: store, heartbeat: heartbeat, logger: logging.Default(logger).With("component", "cs")}
}

// Handler builds the net/http handler serving every CS route named in
// spec.md §6.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ping", s.handlePing)
	mux.HandleFunc("GET /get_chunk", s.handleGetChunk)
	mux.HandleFunc("POST /create_chunk", s.handleCreateChunk)
	mux.HandleFunc("POST /update_chunk", s.handleUpdateChunk)
	mux.HandleFunc("POST /delete_chunk", s.handleDeleteChunk)
	mux.HandleFunc("GET /list_chunks", s.handleListChunks)
	mux.HandleFunc("POST /force_push_chunks_list", s.handleForcePush)
	return mux
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	httperr.WriteJSON(w, wire.PingResponse{Envelope: wire.Success()})
}

func (s *Server) handleGetChunk(w http.ResponseWriter, r *http.Request) {
	chunkID := r.URL.Query().Get("chunk_id")
	if chunkID == "" {
		httperr.Write(w, s.logger, httperr.BadRequest("chunk_id is required"))
		return
	}

	rc, err := s.store.Reader(chunkID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httperr.Write(w, s.logger, httperr.NotFound("chunk not found"))
			return
		}
		httperr.Write(w, s.logger, httperr.Wrap(http.StatusInternalServerError, "get chunk failed", err))
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, rc)
}

func (s *Server) handleCreateChunk(w http.ResponseWriter, r *http.Request) {
	chunkID := r.URL.Query().Get("chunk_id")
	if chunkID == "" {
		httperr.Write(w, s.logger, httperr.BadRequest("chunk_id is required"))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		httperr.Write(w, s.logger, httperr.BadRequest("failed to read request body"))
		return
	}

	if err := s.store.Create(chunkID, body); err != nil {
		httperr.Write(w, s.logger, httperr.Wrap(http.StatusInternalServerError, "create chunk failed", err))
		return
	}
	httperr.WriteJSON(w, wire.PingResponse{Envelope: wire.Success()})
}

func (s *Server) handleUpdateChunk(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	chunkID := query.Get("chunk_id")
	newID := query.Get("new_id")
	if chunkID == "" || newID == "" {
		httperr.Write(w, s.logger, httperr.BadRequest("chunk_id and new_id are required"))
		return
	}

	beginPos, err := strconv.ParseInt(query.Get("begin_pos"), 10, 64)
	if err != nil || beginPos < 0 {
		httperr.Write(w, s.logger, httperr.BadRequest("invalid begin_pos"))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		httperr.Write(w, s.logger, httperr.BadRequest("failed to read request body"))
		return
	}

	if err := s.store.Update(chunkID, newID, beginPos, body); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			httperr.Write(w, s.logger, httperr.NotFound("chunk not found"))
		case errors.Is(err, ErrOffsetOutOfRange):
			httperr.Write(w, s.logger, httperr.BadRequest("begin_pos + body length exceeds chunk_size"))
		default:
			httperr.Write(w, s.logger, httperr.Wrap(http.StatusInternalServerError, "update chunk failed", err))
		}
		return
	}
	httperr.WriteJSON(w, wire.PingResponse{Envelope: wire.Success()})
}

func (s *Server) handleDeleteChunk(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		httperr.Write(w, s.logger, httperr.BadRequest("failed to read request body"))
		return
	}

	var req wire.DeleteChunkRequest
	if err := httperr.DecodeJSON(body, &req); err != nil {
		httperr.Write(w, s.logger, err)
		return
	}

	if err := s.store.Delete(req.ChunkID); err != nil {
		if errors.Is(err, ErrNotFound) {
			httperr.Write(w, s.logger, httperr.NotFound("chunk not found"))
			return
		}
		httperr.Write(w, s.logger, httperr.Wrap(http.StatusInternalServerError, "delete chunk failed", err))
		return
	}
	httperr.WriteJSON(w, wire.PingResponse{Envelope: wire.Success()})
}

func (s *Server) handleListChunks(w http.ResponseWriter, _ *http.Request) {
	chunks, err := s.store.List()
	if err != nil {
		httperr.Write(w, s.logger, httperr.Wrap(http.StatusInternalServerError, "list chunks failed", err))
		return
	}
	httperr.WriteJSON(w, wire.ListChunksResponse{Envelope: wire.Success(), Chunks: chunks})
}

func (s *Server) handleForcePush(w http.ResponseWriter, r *http.Request) {
	if s.heartbeat == nil {
		httperr.Write(w, s.logger, httperr.Internal("heartbeat not configured"))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := s.heartbeat.Push(ctx); err != nil {
		httperr.Write(w, s.logger, httperr.Wrap(http.StatusInternalServerError, "force push failed", err))
		return
	}
	httperr.WriteJSON(w, wire.PingResponse{Envelope: wire.Success()})
}
