package as

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"gastrolog/internal/cs"
	"gastrolog/internal/mds"
)

// fakeSource is a deterministic Source for tests: always picks replica
// index 0 and never actually shuffles (so append replica order is the
// live-server order, tests can predict it).
type fakeSource struct{}

func (fakeSource) Intn(n int) int                     { return 0 }
func (fakeSource) Shuffle(n int, swap func(i, j int)) {}

type csEntry struct {
	id    string
	srv   *httptest.Server
	store *cs.Store
}

type testFleet struct {
	asSrv      *httptest.Server
	mdsSrv     *httptest.Server
	membership *mds.Membership
	csEntries  []csEntry
}

func newTestFleet(t *testing.T, numCS int, chunkSize, replicaCount int64) *testFleet {
	t.Helper()

	entries := make([]csEntry, numCS)
	addrs := make(map[string]string, numCS)
	for i := 0; i < numCS; i++ {
		store, err := cs.NewStore(t.TempDir(), chunkSize)
		if err != nil {
			t.Fatalf("new cs store: %v", err)
		}
		srv := httptest.NewServer(cs.NewServer(store, nil, nil).Handler())
		id := fmt.Sprintf("cs%d", i+1)
		addr := strings.TrimPrefix(srv.URL, "http://")
		entries[i] = csEntry{id: id, srv: srv, store: store}
		addrs[id] = addr
	}

	membership := mds.NewMembership(addrs, time.Hour)
	for _, e := range entries {
		membership.Heartbeat(e.id, time.Now().UTC(), nil)
	}

	mdsStore, err := mds.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new mds store: %v", err)
	}
	mdsServer := mds.NewServer(mdsStore, membership, mds.Config{DefaultChunkSize: chunkSize, DefaultReplicaCount: replicaCount})
	mdsSrv := httptest.NewServer(mdsServer.Handler())

	asServer := NewServer(
		NewMDSClient(strings.TrimPrefix(mdsSrv.URL, "http://"), 5*time.Second),
		NewCSClient(5*time.Second),
		fakeSource{},
		Config{},
	)
	asSrv := httptest.NewServer(asServer.Handler())

	t.Cleanup(func() {
		asServer.Close()
		asSrv.Close()
		mdsSrv.Close()
		for _, e := range entries {
			e.srv.Close()
		}
	})

	return &testFleet{asSrv: asSrv, mdsSrv: mdsSrv, membership: membership, csEntries: entries}
}

// pushHeartbeats synchronously pushes each CS's current chunk inventory
// into the membership table, simulating the periodic heartbeat that in
// production makes a freshly written chunk visible to chunk_servers.
func (f *testFleet) pushHeartbeats(t *testing.T) {
	t.Helper()
	for _, e := range f.csEntries {
		ids, err := e.store.List()
		if err != nil {
			t.Fatalf("list chunks on %s: %v", e.id, err)
		}
		f.membership.Heartbeat(e.id, time.Now().UTC(), ids)
	}
}

func (f *testFleet) writeFile(t *testing.T, filename string, beginPos int64, body string) int {
	t.Helper()
	u := f.asSrv.URL + "/write_file?filename=" + filename + "&begin_pos=" + strconv.FormatInt(beginPos, 10)
	resp, err := http.Post(u, "application/octet-stream", strings.NewReader(body))
	if err != nil {
		t.Fatalf("write_file: %v", err)
	}
	defer resp.Body.Close()
	f.pushHeartbeats(t)
	return resp.StatusCode
}

func (f *testFleet) getFile(t *testing.T, filename string, begin, end int64) (string, int) {
	t.Helper()
	u := fmt.Sprintf("%s/get_file?filename=%s&begin_pos=%d&end_pos=%d", f.asSrv.URL, filename, begin, end)
	resp, err := http.Get(u)
	if err != nil {
		t.Fatalf("get_file: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read get_file body: %v", err)
	}
	return string(body), resp.StatusCode
}

func TestScenarioWriteThenReadBack(t *testing.T) {
	fleet := newTestFleet(t, 2, 4, 2)

	if status := fleet.writeFile(t, "y", 0, "abcdefg"); status != http.StatusOK {
		t.Fatalf("write_file status = %d", status)
	}

	if body, status := fleet.getFile(t, "y", 0, 7); status != http.StatusOK || body != "abcdefg" {
		t.Fatalf("got %q status %d, want %q 200", body, status, "abcdefg")
	}
	if body, _ := fleet.getFile(t, "y", 2, 6); body != "cdef" {
		t.Fatalf("got %q, want %q", body, "cdef")
	}
	if body, _ := fleet.getFile(t, "y", 3, 3); body != "" {
		t.Fatalf("got %q, want empty", body)
	}
}

func TestScenarioOverwriteMiddle(t *testing.T) {
	fleet := newTestFleet(t, 2, 4, 2)
	fleet.writeFile(t, "y", 0, "abcdefg")

	if status := fleet.writeFile(t, "y", 2, "ZZ"); status != http.StatusOK {
		t.Fatalf("write_file status = %d", status)
	}

	if body, _ := fleet.getFile(t, "y", 0, 7); body != "abZZefg" {
		t.Fatalf("got %q, want %q", body, "abZZefg")
	}
}

func TestScenarioAppendAcrossBoundary(t *testing.T) {
	fleet := newTestFleet(t, 2, 4, 2)
	fleet.writeFile(t, "y", 0, "abcdefg")
	fleet.writeFile(t, "y", 2, "ZZ")

	if status := fleet.writeFile(t, "y", 7, "HIJ"); status != http.StatusOK {
		t.Fatalf("write_file status = %d", status)
	}

	if body, _ := fleet.getFile(t, "y", 0, 10); body != "abZZefgHIJ" {
		t.Fatalf("got %q, want %q", body, "abZZefgHIJ")
	}
}

func TestScenarioWritePastEOF(t *testing.T) {
	fleet := newTestFleet(t, 2, 4, 2)
	fleet.writeFile(t, "y", 0, "abcdefg")

	if status := fleet.writeFile(t, "y", 20, "X"); status != http.StatusBadRequest {
		t.Fatalf("write_file status = %d, want 400", status)
	}
}

func TestScenarioCreateEmptyFile(t *testing.T) {
	fleet := newTestFleet(t, 2, 8, 2)

	resp, err := http.Get(fleet.mdsSrv.URL + "/create_file?filename=x&chunk_size=8")
	if err != nil {
		t.Fatalf("create_file: %v", err)
	}
	resp.Body.Close()

	if body, status := fleet.getFile(t, "x", 0, 0); status != http.StatusOK || body != "" {
		t.Fatalf("got %q status %d, want empty 200", body, status)
	}
}

func TestGetFileNoLiveReplicaYields503(t *testing.T) {
	fleet := newTestFleet(t, 2, 4, 2)
	fleet.writeFile(t, "y", 0, "abcdefg")

	// Evict every CS so no chunk has a live replica; replica selection
	// (spec.md §4.3.1 step 3) must fail before any header is written.
	fleet.membership.EvictStale(time.Now().Add(2 * time.Hour))

	_, status := fleet.getFile(t, "y", 0, 7)
	if status != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 (no live replica)", status)
	}
}

func TestGetFileNotFoundYields404(t *testing.T) {
	fleet := newTestFleet(t, 2, 4, 2)

	_, status := fleet.getFile(t, "nonexistent", 0, 0)
	if status != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", status)
	}
}
