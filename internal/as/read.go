package as

import (
	"context"
	"fmt"
	"io"

	"gastrolog/internal/chunkmath"
	"gastrolog/internal/wire"
)

// ErrNoLiveReplica means a required chunk has no server currently
// reporting it as live.
var ErrNoLiveReplica = fmt.Errorf("no live replica for a required chunk")

// readPlan is the fully-resolved outcome of step 1-3 of spec.md
// §4.3.1: file metadata fetched, the byte range clamped, and one live
// replica chosen per required chunk. Building this before any response
// header is written is what lets handleGetFile return 404/503 instead
// of silently truncating the body.
type readPlan struct {
	meta       wire.FileMeta
	begin, end int64
	chunkRange chunkmath.Range
	replicas   []wire.ChunkServerRef // one per chunk in [chunkRange.First, chunkRange.Last]
}

// planRead resolves filename's metadata and picks a live replica for
// every chunk the requested range touches, without fetching or writing
// any chunk bytes. It returns ErrNotFound if the file doesn't exist and
// ErrNoLiveReplica if any required chunk has no live replica.
func (s *Server) planRead(ctx context.Context, filename string, beginPos, endPos *int64) (*readPlan, error) {
	meta, err := s.mds.GetFileMeta(ctx, filename)
	if err != nil {
		return nil, err
	}

	begin := int64(0)
	if beginPos != nil {
		begin = *beginPos
	}
	end := meta.Length
	if endPos != nil {
		end = *endPos
	}

	b, e, ok := chunkmath.Clamp(begin, end, meta.Length)
	if !ok || meta.ChunkSize <= 0 {
		return &readPlan{meta: meta, begin: b, end: e}, nil
	}

	chunkRange := chunkmath.ForRead(b, e, meta.ChunkSize)

	replicas := make([]wire.ChunkServerRef, 0, chunkRange.Last-chunkRange.First+1)
	for idx := chunkRange.First; idx <= chunkRange.Last; idx++ {
		cid := meta.Chunks[idx]
		live := meta.ChunkServers[cid]
		if len(live) == 0 {
			return nil, ErrNoLiveReplica
		}
		replicas = append(replicas, live[s.rand.Intn(len(live))])
	}

	return &readPlan{meta: meta, begin: b, end: e, chunkRange: chunkRange, replicas: replicas}, nil
}

// stream writes the planned byte range to w, trimming the first and
// last chunk as needed. Called only after the response header has been
// committed; a failure here can only truncate the body (spec.md
// §4.3.1 step 4).
func (p *readPlan) stream(ctx context.Context, w io.Writer, s *Server) error {
	if len(p.replicas) == 0 {
		return nil
	}

	for i, idx := 0, p.chunkRange.First; idx <= p.chunkRange.Last; i, idx = i+1, idx+1 {
		cid := p.meta.Chunks[idx]
		replica := p.replicas[i]
		body, err := s.cs.GetChunk(ctx, replica.Address, cid)
		if err != nil {
			return fmt.Errorf("read chunk %s from %s: %w", cid, replica.Address, err)
		}

		start, stop := 0, len(body)
		if idx == p.chunkRange.First {
			start = int(chunkmath.TrimFirst(p.begin, p.meta.ChunkSize))
		}
		if idx == p.chunkRange.Last {
			stop = int(chunkmath.TrimLast(p.end, p.chunkRange.Last, p.meta.ChunkSize))
		}
		if start > len(body) {
			start = len(body)
		}
		if stop > len(body) {
			stop = len(body)
		}
		if start > stop {
			start = stop
		}

		if _, err := w.Write(body[start:stop]); err != nil {
			return fmt.Errorf("write response body: %w", err)
		}
	}

	return nil
}
