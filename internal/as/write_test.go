package as

import (
	"net/http"
	"testing"
)

func TestScenarioPartialReplicaFailureStillCommits(t *testing.T) {
	fleet := newTestFleet(t, 2, 4, 2)
	fleet.writeFile(t, "y", 0, "abcdefg")
	fleet.pushHeartbeats(t)

	// Kill one replica entirely; the other should still accept the
	// overwrite and the commit should succeed per spec.md §4.3.2's
	// "tolerated as long as ≥1 replica per affected chunk succeeded".
	fleet.csEntries[1].srv.Close()

	status := fleet.writeFile(t, "y", 2, "ZZ")
	if status != http.StatusOK {
		t.Fatalf("write_file status = %d, want 200 with one surviving replica", status)
	}

	if body, _ := fleet.getFile(t, "y", 0, 7); body != "abZZefg" {
		t.Fatalf("got %q, want %q", body, "abZZefg")
	}
}

func TestScenarioAllReplicasDownFailsWrite(t *testing.T) {
	fleet := newTestFleet(t, 2, 4, 2)
	fleet.writeFile(t, "y", 0, "abcdefg")
	fleet.pushHeartbeats(t)

	for _, e := range fleet.csEntries {
		e.srv.Close()
	}

	status := fleet.writeFile(t, "y", 2, "ZZ")
	if status != http.StatusServiceUnavailable {
		t.Fatalf("write_file status = %d, want 503", status)
	}
}
