// Package chunkmath implements the byte-range-to-chunk-index arithmetic
// shared by the read and write paths. It has no knowledge of chunk
// identifiers or servers — only of chunk_size, offsets, and lengths.
package chunkmath

// Range is an inclusive chunk index range [First, Last].
type Range struct {
	First int64
	Last  int64
}

// Count returns the number of chunk indexes the range spans.
func (r Range) Count() int64 { return r.Last - r.First + 1 }

// ForRead computes the inclusive chunk index range covering byte
// positions [beginPos, endPos). Callers must first clamp beginPos and
// endPos to [0, length] and handle the empty-interval case (endPos <=
// beginPos) themselves — ForRead assumes a non-empty interval.
func ForRead(beginPos, endPos, chunkSize int64) Range {
	return Range{
		First: beginPos / chunkSize,
		Last:  (endPos - 1) / chunkSize,
	}
}

// ForWrite computes the inclusive chunk index range a write touches,
// given the position the write starts at and the number of content
// bytes being written.
func ForWrite(beginPos int64, contentLen int64, chunkSize int64) Range {
	endPos := beginPos + contentLen
	return Range{
		First: beginPos / chunkSize,
		Last:  (endPos - 1) / chunkSize,
	}
}

// Clamp restricts [beginPos, endPos) to [0, length]. If the result would
// be empty, ok is false.
func Clamp(beginPos, endPos, length int64) (b, e int64, ok bool) {
	if beginPos < 0 {
		beginPos = 0
	}
	if endPos > length {
		endPos = length
	}
	if endPos <= beginPos {
		return 0, 0, false
	}
	return beginPos, endPos, true
}

// Slice describes one chunk-sized window of a write's content: the byte
// offset within the destination chunk the window begins at, and the
// [start, end) indices of content it covers.
type Slice struct {
	OffsetInChunk int64
	Start         int64
	End           int64
}

// SliceContent splits a write of contentLen bytes starting at beginPos
// into the list of per-chunk windows, in chunk order, one per chunk
// index in ForWrite's range. The first slice's OffsetInChunk is
// beginPos % chunkSize; every subsequent slice starts at offset 0 of its
// chunk. The final slice is truncated to contentLen even when it would
// otherwise run to a full chunk.
func SliceContent(beginPos, contentLen, chunkSize int64) []Slice {
	if contentLen <= 0 {
		return nil
	}
	r := ForWrite(beginPos, contentLen, chunkSize)
	n := r.Count()
	slices := make([]Slice, 0, n)

	offsetInFirst := beginPos % chunkSize
	pos := int64(0)
	for i := int64(0); i < n; i++ {
		offset := int64(0)
		if i == 0 {
			offset = offsetInFirst
		}
		remaining := chunkSize - offset
		end := pos + remaining
		if end > contentLen {
			end = contentLen
		}
		slices = append(slices, Slice{OffsetInChunk: offset, Start: pos, End: end})
		pos = end
	}
	return slices
}

// TrimFirst returns the byte offset within the first required chunk's
// body that the read should start at.
func TrimFirst(beginPos, chunkSize int64) int64 {
	return beginPos % chunkSize
}

// TrimLast returns the exclusive end offset within the last required
// chunk's body that the read should stop at.
func TrimLast(endPos, lastChunkIdx, chunkSize int64) int64 {
	return endPos - lastChunkIdx*chunkSize
}

// ExpectedChunkLen returns the exact byte length chunk index idx (0
// based) of a file with the given length and chunkSize must have when
// read back: chunkSize for every non-final chunk, and length -
// (numChunks-1)*chunkSize for the final chunk.
func ExpectedChunkLen(idx, numChunks, length, chunkSize int64) int64 {
	if idx < numChunks-1 {
		return chunkSize
	}
	return length - (numChunks-1)*chunkSize
}
