package chunkmath

import "testing"

func TestForRead(t *testing.T) {
	cases := []struct {
		name               string
		begin, end, chunk  int64
		wantFirst, wantLast int64
	}{
		{"single chunk", 0, 4, 4096, 0, 0},
		{"spans two chunks", 4000, 4200, 4096, 0, 1},
		{"aligned end", 4096, 8192, 4096, 1, 1},
		{"mid chunk both ends", 100, 200, 4096, 0, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := ForRead(c.begin, c.end, c.chunk)
			if got.First != c.wantFirst || got.Last != c.wantLast {
				t.Fatalf("got %+v, want First=%d Last=%d", got, c.wantFirst, c.wantLast)
			}
		})
	}
}

func TestClamp(t *testing.T) {
	cases := []struct {
		name              string
		begin, end, length int64
		wantB, wantE      int64
		wantOK            bool
	}{
		{"within bounds", 10, 20, 100, 10, 20, true},
		{"negative begin clamps to 0", -5, 20, 100, 0, 20, true},
		{"end beyond length clamps", 10, 200, 100, 10, 100, true},
		{"begin at length is empty", 100, 200, 100, 0, 0, false},
		{"begin past end is empty", 50, 40, 100, 0, 0, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			b, e, ok := Clamp(c.begin, c.end, c.length)
			if ok != c.wantOK {
				t.Fatalf("ok = %v, want %v", ok, c.wantOK)
			}
			if ok && (b != c.wantB || e != c.wantE) {
				t.Fatalf("got b=%d e=%d, want b=%d e=%d", b, e, c.wantB, c.wantE)
			}
		})
	}
}

func TestSliceContentSingleChunk(t *testing.T) {
	slices := SliceContent(10, 20, 4096)
	if len(slices) != 1 {
		t.Fatalf("expected 1 slice, got %d", len(slices))
	}
	if slices[0].OffsetInChunk != 10 || slices[0].Start != 0 || slices[0].End != 20 {
		t.Fatalf("got %+v", slices[0])
	}
}

func TestSliceContentSpansChunks(t *testing.T) {
	// chunk size 8, begin at 4, content length 10: covers bytes [4,14)
	// chunk 0: bytes [4,8) -> offset 4, content [0,4)
	// chunk 1: bytes [8,14) -> offset 0, content [4,10)
	slices := SliceContent(4, 10, 8)
	if len(slices) != 2 {
		t.Fatalf("expected 2 slices, got %d: %+v", len(slices), slices)
	}
	if slices[0].OffsetInChunk != 4 || slices[0].Start != 0 || slices[0].End != 4 {
		t.Fatalf("first slice wrong: %+v", slices[0])
	}
	if slices[1].OffsetInChunk != 0 || slices[1].Start != 4 || slices[1].End != 10 {
		t.Fatalf("second slice wrong: %+v", slices[1])
	}
}

func TestSliceContentEmpty(t *testing.T) {
	if got := SliceContent(0, 0, 4096); got != nil {
		t.Fatalf("expected nil for zero-length content, got %+v", got)
	}
}

func TestSliceContentThreeChunks(t *testing.T) {
	// chunk size 4, begin 0, content length 10: chunks 0,1,2
	slices := SliceContent(0, 10, 4)
	if len(slices) != 3 {
		t.Fatalf("expected 3 slices, got %d: %+v", len(slices), slices)
	}
	want := []Slice{
		{OffsetInChunk: 0, Start: 0, End: 4},
		{OffsetInChunk: 0, Start: 4, End: 8},
		{OffsetInChunk: 0, Start: 8, End: 10},
	}
	for i, w := range want {
		if slices[i] != w {
			t.Fatalf("slice %d: got %+v, want %+v", i, slices[i], w)
		}
	}
}

func TestTrimFirstAndLast(t *testing.T) {
	if got := TrimFirst(4100, 4096); got != 4 {
		t.Fatalf("TrimFirst got %d, want 4", got)
	}
	// endPos=4200, lastChunkIdx=1, chunkSize=4096 -> 4200-4096=104
	if got := TrimLast(4200, 1, 4096); got != 104 {
		t.Fatalf("TrimLast got %d, want 104", got)
	}
}

func TestExpectedChunkLen(t *testing.T) {
	// length 10000, chunkSize 4096 -> 3 chunks: 4096, 4096, 1808
	numChunks := int64(3)
	length := int64(10000)
	chunkSize := int64(4096)
	if got := ExpectedChunkLen(0, numChunks, length, chunkSize); got != 4096 {
		t.Fatalf("chunk 0: got %d, want 4096", got)
	}
	if got := ExpectedChunkLen(1, numChunks, length, chunkSize); got != 4096 {
		t.Fatalf("chunk 1: got %d, want 4096", got)
	}
	if got := ExpectedChunkLen(2, numChunks, length, chunkSize); got != 1808 {
		t.Fatalf("chunk 2: got %d, want 1808", got)
	}
}

func TestRangeCount(t *testing.T) {
	r := Range{First: 2, Last: 5}
	if r.Count() != 4 {
		t.Fatalf("got %d, want 4", r.Count())
	}
}
