package cs

import (
	"bytes"
	"errors"
	"testing"
)

func TestStoreCreateAndGet(t *testing.T) {
	store, err := NewStore(t.TempDir(), 4096)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	if err := store.Create("c0", []byte("hello")); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := store.Get("c0")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(got, []byte("hello")) {
		t.Fatalf("got %q, want %q", got, "hello")
	}
}

func TestStoreGetMissing(t *testing.T) {
	store, _ := NewStore(t.TempDir(), 4096)
	if _, err := store.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreCreateOverwrites(t *testing.T) {
	store, _ := NewStore(t.TempDir(), 4096)
	store.Create("c0", []byte("first"))
	store.Create("c0", []byte("second"))
	got, _ := store.Get("c0")
	if !bytes.Equal(got, []byte("second")) {
		t.Fatalf("got %q, want %q", got, "second")
	}
}

func TestStoreUpdatePreservesOldCIDAndWritesNew(t *testing.T) {
	store, _ := NewStore(t.TempDir(), 4096)
	store.Create("old", []byte("abcdefg"))

	if err := store.Update("old", "new", 2, []byte("ZZ")); err != nil {
		t.Fatalf("update: %v", err)
	}

	oldBody, err := store.Get("old")
	if err != nil {
		t.Fatalf("old chunk should still exist: %v", err)
	}
	if !bytes.Equal(oldBody, []byte("abcdefg")) {
		t.Fatalf("old chunk should be untouched, got %q", oldBody)
	}

	newBody, err := store.Get("new")
	if err != nil {
		t.Fatalf("get new: %v", err)
	}
	if !bytes.Equal(newBody, []byte("abZZefg")) {
		t.Fatalf("got %q, want %q", newBody, "abZZefg")
	}
}

func TestStoreUpdateExtendsPastEOF(t *testing.T) {
	store, _ := NewStore(t.TempDir(), 4096)
	store.Create("old", []byte("ef")) // 2 bytes

	if err := store.Update("old", "new", 2, []byte("gh")); err != nil {
		t.Fatalf("update: %v", err)
	}
	newBody, _ := store.Get("new")
	if !bytes.Equal(newBody, []byte("efgh")) {
		t.Fatalf("got %q, want %q", newBody, "efgh")
	}
}

func TestStoreUpdateRejectsOffsetBeyondChunkSize(t *testing.T) {
	store, _ := NewStore(t.TempDir(), 4)
	store.Create("old", []byte("ab"))

	err := store.Update("old", "new", 3, []byte("xyz"))
	if !errors.Is(err, ErrOffsetOutOfRange) {
		t.Fatalf("expected ErrOffsetOutOfRange, got %v", err)
	}
}

func TestStoreUpdateMissingSource(t *testing.T) {
	store, _ := NewStore(t.TempDir(), 4096)
	if err := store.Update("nope", "new", 0, []byte("x")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreDelete(t *testing.T) {
	store, _ := NewStore(t.TempDir(), 4096)
	store.Create("c0", []byte("x"))
	if err := store.Delete("c0"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get("c0"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected chunk gone, got %v", err)
	}
}

func TestStoreList(t *testing.T) {
	store, _ := NewStore(t.TempDir(), 4096)
	store.Create("a", []byte("1"))
	store.Create("b", []byte("2"))

	ids, err := store.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 chunks, got %v", ids)
	}
}
