package as

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"gastrolog/internal/chunkmath"
	"gastrolog/internal/cid"
	"gastrolog/internal/wire"
)

// ErrPastEOF is returned when a write's begin_pos is beyond the file's
// current length (no sparse expansion, spec.md §4.3.2 step 3).
var ErrPastEOF = errors.New("begin_pos is past end of file")

// ErrCommitFailed means at least one affected chunk failed to write on
// every replica, or the MDS commit itself failed.
var ErrCommitFailed = errors.New("write commit failed")

// WriteAt performs the full write path: auto-create on miss, slice
// content into chunk-sized windows, fan writes out to replicas
// concurrently, and commit the new chunks list to the MDS.
func (s *Server) WriteAt(ctx context.Context, filename string, beginPos int64, content []byte) error {
	meta, err := s.mds.GetFileMeta(ctx, filename)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("get file meta: %w", err)
		}
		if err := s.mds.CreateFile(ctx, filename); err != nil && !errors.Is(err, ErrConflict) {
			return fmt.Errorf("auto-create file: %w", err)
		}
		meta, err = s.mds.GetFileMeta(ctx, filename)
		if err != nil {
			return fmt.Errorf("get file meta after create: %w", err)
		}
	}

	if beginPos > meta.Length {
		return ErrPastEOF
	}
	if len(content) == 0 {
		return nil
	}

	endPos := beginPos + int64(len(content))
	chunkRange := chunkmath.ForWrite(beginPos, int64(len(content)), meta.ChunkSize)
	firstIdx, lastIdx := chunkRange.First, chunkRange.Last
	chunkNum := chunkRange.Count()

	newCIDs := make([]string, chunkNum)
	for i := range newCIDs {
		newCIDs[i] = cid.New()
	}
	slices := chunkmath.SliceContent(beginPos, int64(len(content)), meta.ChunkSize)

	var liveServers []wire.ChunkServerRef
	someOK := true
	for i := int64(0); i < chunkNum; i++ {
		chunkIdx := firstIdx + i
		slice := slices[i]
		body := content[slice.Start:slice.End]

		var chunkOK bool
		if chunkIdx < int64(len(meta.Chunks)) {
			oldCID := meta.Chunks[chunkIdx]
			chunkOK = s.updateReplicas(ctx, meta.ChunkServers[oldCID], oldCID, newCIDs[i], slice.OffsetInChunk, body)
		} else {
			if liveServers == nil {
				liveServers, err = s.mds.ActiveChunkServers(ctx)
				if err != nil {
					return fmt.Errorf("get active chunk servers: %w", err)
				}
			}
			replicaCount := int(meta.ReplicaCount)
			if replicaCount > len(liveServers) {
				replicaCount = len(liveServers)
			}
			targets := s.pickReplicas(liveServers, replicaCount)
			chunkOK = s.createReplicas(ctx, targets, newCIDs[i], body)
		}

		if !chunkOK {
			someOK = false
		}
	}

	if !someOK {
		return ErrCommitFailed
	}

	newChunks := make([]string, 0, len(meta.Chunks))
	newChunks = append(newChunks, meta.Chunks[:firstIdx]...)
	newChunks = append(newChunks, newCIDs...)
	if lastIdx+1 < int64(len(meta.Chunks)) {
		newChunks = append(newChunks, meta.Chunks[lastIdx+1:]...)
	}

	newLength := meta.Length
	if endPos > newLength {
		newLength = endPos
	}

	if err := s.mds.UpdateFileMeta(ctx, filename, newLength, newChunks); err != nil {
		return fmt.Errorf("%w: %v", ErrCommitFailed, err)
	}
	return nil
}

// updateReplicas fans update_chunk out to every replica currently
// listed for oldCID, concurrently, per chunk. Returns true if at least
// one replica succeeded.
func (s *Server) updateReplicas(ctx context.Context, replicas []wire.ChunkServerRef, oldCID, newCID string, offset int64, body []byte) bool {
	if len(replicas) == 0 {
		return false
	}

	results := make([]bool, len(replicas))
	g, gctx := errgroup.WithContext(ctx)
	for i, replica := range replicas {
		g.Go(func() error {
			err := s.cs.UpdateChunk(gctx, replica.Address, oldCID, newCID, offset, body)
			results[i] = err == nil
			return nil
		})
	}
	_ = g.Wait()

	for _, ok := range results {
		if ok {
			return true
		}
	}
	return false
}

// createReplicas fans create_chunk out to every target server
// concurrently. Returns true if at least one replica succeeded.
func (s *Server) createReplicas(ctx context.Context, targets []wire.ChunkServerRef, newCID string, body []byte) bool {
	if len(targets) == 0 {
		return false
	}

	results := make([]bool, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	for i, target := range targets {
		g.Go(func() error {
			err := s.cs.CreateChunk(gctx, target.Address, newCID, body)
			results[i] = err == nil
			return nil
		})
	}
	_ = g.Wait()

	for _, ok := range results {
		if ok {
			return true
		}
	}
	return false
}

// pickReplicas selects n servers from live by uniform random
// permutation, per spec.md §4.3.2's "Replica selection for append".
func (s *Server) pickReplicas(live []wire.ChunkServerRef, n int) []wire.ChunkServerRef {
	if n <= 0 || len(live) == 0 {
		return nil
	}
	shuffled := make([]wire.ChunkServerRef, len(live))
	copy(shuffled, live)
	s.rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	if n > len(shuffled) {
		n = len(shuffled)
	}
	return shuffled[:n]
}
