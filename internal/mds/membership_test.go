package mds

import (
	"testing"
	"time"
)

func TestMembershipHeartbeatSymmetry(t *testing.T) {
	m := NewMembership(nil, 5*time.Second)
	now := time.Now().UTC()

	m.Heartbeat("cs1", now, []string{"a", "b"})
	m.Heartbeat("cs2", now, []string{"b", "c"})

	locs := m.LocationsFor([]string{"a", "b", "c"})
	if len(locs["a"]) != 1 || locs["a"][0].ID != "cs1" {
		t.Fatalf("a should be on cs1 only, got %v", locs["a"])
	}
	if len(locs["b"]) != 2 {
		t.Fatalf("b should be on both servers, got %v", locs["b"])
	}
	if len(locs["c"]) != 1 || locs["c"][0].ID != "cs2" {
		t.Fatalf("c should be on cs2 only, got %v", locs["c"])
	}
}

func TestMembershipHeartbeatReplacesPriorClaim(t *testing.T) {
	m := NewMembership(nil, 5*time.Second)
	now := time.Now().UTC()

	m.Heartbeat("cs1", now, []string{"a", "b"})
	m.Heartbeat("cs1", now.Add(time.Second), []string{"b"}) // cs1 dropped "a"

	locs := m.LocationsFor([]string{"a", "b"})
	if len(locs["a"]) != 0 {
		t.Fatalf("a should have no replicas after cs1 dropped it, got %v", locs["a"])
	}
	if len(locs["b"]) != 1 {
		t.Fatalf("b should still be on cs1, got %v", locs["b"])
	}
}

func TestMembershipLivenessEviction(t *testing.T) {
	m := NewMembership(nil, 100*time.Millisecond)
	now := time.Now().UTC()
	m.Heartbeat("cs1", now, []string{"a"})

	evicted := m.EvictStale(now)
	if len(evicted) != 0 {
		t.Fatalf("should not evict a fresh heartbeat, got %v", evicted)
	}

	evicted = m.EvictStale(now.Add(200 * time.Millisecond))
	if len(evicted) != 1 || evicted[0] != "cs1" {
		t.Fatalf("expected cs1 evicted, got %v", evicted)
	}

	live := m.LiveServers()
	if len(live) != 0 {
		t.Fatalf("expected no live servers after eviction, got %v", live)
	}

	locs := m.LocationsFor([]string{"a"})
	if len(locs["a"]) != 0 {
		t.Fatalf("expected chunk_locations purged on eviction, got %v", locs["a"])
	}
}

func TestMembershipAddressFallback(t *testing.T) {
	m := NewMembership(map[string]string{"cs1": "10.0.0.1:21000"}, time.Second)
	now := time.Now().UTC()
	m.Heartbeat("cs1", now, []string{"a"})
	m.Heartbeat("cs2", now, []string{"b"}) // no seeded address

	live := m.LiveServers()
	addrByID := map[string]string{}
	for _, sv := range live {
		addrByID[sv.ID] = sv.Address
	}
	if addrByID["cs1"] != "10.0.0.1:21000" {
		t.Fatalf("cs1 address should come from seed map, got %q", addrByID["cs1"])
	}
	if addrByID["cs2"] != "cs2" {
		t.Fatalf("cs2 address should fall back to its id, got %q", addrByID["cs2"])
	}
}
