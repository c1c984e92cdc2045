package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"thumbindex/internal/database"
	"thumbindex/internal/thumbcache"
)

// fakeStore records the calls a reindex pass makes.
type fakeStore struct {
	clearedScopes [][]string
	upserts       []*database.Record
	meta          map[string]string
	upsertErr     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{meta: make(map[string]string)}
}

func (s *fakeStore) Clear(_ context.Context, cacheFiles []string) (int64, error) {
	s.clearedScopes = append(s.clearedScopes, cacheFiles)
	return 0, nil
}

func (s *fakeStore) Upsert(_ context.Context, rec *database.Record) (int64, error) {
	if s.upsertErr != nil {
		return 0, s.upsertErr
	}
	s.upserts = append(s.upserts, rec)
	return int64(len(s.upserts)), nil
}

func (s *fakeStore) SetMeta(_ context.Context, key, value string) error {
	s.meta[key] = value
	return nil
}

// fakeSource yields a fixed slice of entries.
type fakeSource struct {
	available bool
	entries   []*thumbcache.Entry
}

func (s *fakeSource) Available() bool { return s.available }

func (s *fakeSource) Stream(selected []string, fn func(*thumbcache.Entry) error) error {
	if !s.available {
		return thumbcache.ErrUnavailable
	}
	selectedSet := make(map[string]bool)
	for _, name := range selected {
		selectedSet[name] = true
	}
	for _, e := range s.entries {
		if len(selected) > 0 && !selectedSet[e.CacheFile] {
			continue
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

func entry(file, key string, data []byte) *thumbcache.Entry {
	return &thumbcache.Entry{CacheFile: file, CacheKey: key, Data: data}
}

func TestReindexUnavailableFailsFast(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	r := NewReindexer(store, &fakeSource{available: false}, nil)

	_, err := r.Reindex(context.Background(), nil)
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("err = %v, want ErrSourceUnavailable", err)
	}
	if len(store.clearedScopes) != 0 {
		t.Error("store must not be cleared when the source is unavailable")
	}
	if len(store.meta) != 0 {
		t.Error("no run metadata should be written on failure")
	}
}

func TestReindexFullPass(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	src := &fakeSource{available: true, entries: []*thumbcache.Entry{
		entry("thumbcache_256.db", "k1", []byte("payload one")),
		entry("thumbcache_256.db", "k2", []byte("payload two")),
		entry("thumbcache_96.db", "k3", []byte("payload three")),
	}}
	r := NewReindexer(store, src, nil)

	count, err := r.Reindex(context.Background(), nil)
	if err != nil {
		t.Fatalf("Reindex failed: %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
	if len(store.clearedScopes) != 1 || store.clearedScopes[0] != nil {
		t.Errorf("expected one unscoped clear, got %v", store.clearedScopes)
	}
	if len(store.upserts) != 3 {
		t.Fatalf("got %d upserts, want 3", len(store.upserts))
	}

	rec := store.upserts[0]
	if rec.CacheSize != "256" {
		t.Errorf("cache size = %q, want 256", rec.CacheSize)
	}
	if rec.Hash == "" || len(rec.Hash) != 32 {
		t.Errorf("content hash not computed: %q", rec.Hash)
	}
	if rec.DataSize != int64(len("payload one")) {
		t.Errorf("data size = %d", rec.DataSize)
	}
	// Non-image payloads index with unknown image fields
	if rec.Width != nil || rec.ImageFormat != nil {
		t.Error("undecodable payload should have nil image fields")
	}

	if store.meta["thumbnail_count"] != "3" {
		t.Errorf("thumbnail_count = %q, want 3", store.meta["thumbnail_count"])
	}
	if store.meta["last_indexed"] == "" {
		t.Error("last_indexed not recorded")
	}
	if store.meta["selected_files"] != "" {
		t.Errorf("selected_files = %q, want empty sentinel", store.meta["selected_files"])
	}
}

func TestReindexScoped(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	src := &fakeSource{available: true, entries: []*thumbcache.Entry{
		entry("thumbcache_256.db", "k1", []byte("a")),
		entry("thumbcache_96.db", "k2", []byte("b")),
	}}
	r := NewReindexer(store, src, nil)

	scope := []string{"thumbcache_96.db"}
	count, err := r.Reindex(context.Background(), scope)
	if err != nil {
		t.Fatalf("Reindex failed: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
	if len(store.clearedScopes) != 1 || len(store.clearedScopes[0]) != 1 ||
		store.clearedScopes[0][0] != "thumbcache_96.db" {
		t.Errorf("clear scope = %v", store.clearedScopes)
	}
	if store.upserts[0].CacheFile != "thumbcache_96.db" {
		t.Errorf("indexed %q, want thumbcache_96.db", store.upserts[0].CacheFile)
	}
	if store.meta["selected_files"] != "thumbcache_96.db" {
		t.Errorf("selected_files = %q", store.meta["selected_files"])
	}
}

func TestReindexSkipsEmptyPayloads(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	src := &fakeSource{available: true, entries: []*thumbcache.Entry{
		entry("thumbcache_256.db", "k1", []byte("kept")),
		entry("thumbcache_256.db", "k2", nil),
		entry("thumbcache_256.db", "k3", []byte{}),
	}}
	r := NewReindexer(store, src, nil)

	count, err := r.Reindex(context.Background(), nil)
	if err != nil {
		t.Fatalf("Reindex failed: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
	if store.meta["thumbnail_count"] != "1" {
		t.Errorf("thumbnail_count = %q", store.meta["thumbnail_count"])
	}
}

func TestReindexProgressCadence(t *testing.T) {
	t.Parallel()

	var entries []*thumbcache.Entry
	for i := 0; i < 250; i++ {
		entries = append(entries, entry("thumbcache_96.db", fmt.Sprintf("k%d", i), []byte("x")))
	}

	var calls [][2]int
	progress := func(processed, total int) {
		calls = append(calls, [2]int{processed, total})
	}

	r := NewReindexer(newFakeStore(), &fakeSource{available: true, entries: entries}, progress)
	count, err := r.Reindex(context.Background(), nil)
	if err != nil {
		t.Fatalf("Reindex failed: %v", err)
	}
	if count != 250 {
		t.Errorf("count = %d, want 250", count)
	}
	if len(calls) != 2 {
		t.Fatalf("got %d progress calls, want 2 (at 100 and 200)", len(calls))
	}
	if calls[0] != [2]int{100, -1} || calls[1] != [2]int{200, -1} {
		t.Errorf("progress calls = %v", calls)
	}
}

func TestReindexUpsertErrorAborts(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.upsertErr = errors.New("disk full")
	src := &fakeSource{available: true, entries: []*thumbcache.Entry{
		entry("thumbcache_96.db", "k1", []byte("x")),
	}}
	r := NewReindexer(store, src, nil)

	_, err := r.Reindex(context.Background(), nil)
	if err == nil {
		t.Fatal("expected error from failing upsert")
	}
	if store.meta["last_indexed"] != "" {
		t.Error("run metadata should not be written after an aborted pass")
	}
	if r.IsIndexing() {
		t.Error("running flag must be released after failure")
	}
}

func TestReindexRejectedWhileRunning(t *testing.T) {
	t.Parallel()

	r := NewReindexer(newFakeStore(), &fakeSource{available: true}, nil)
	r.running.Store(true)

	_, err := r.Reindex(context.Background(), nil)
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("err = %v, want ErrAlreadyRunning", err)
	}
	if !r.IsIndexing() {
		t.Error("running flag should still be set")
	}
}

func TestBuildRecordImageFields(t *testing.T) {
	t.Parallel()

	// 1x1 PNG
	png := []byte{
		0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
		0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
		0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
		0x08, 0x02, 0x00, 0x00, 0x00, 0x90, 0x77, 0x53,
		0xde, 0x00, 0x00, 0x00, 0x0c, 0x49, 0x44, 0x41,
		0x54, 0x08, 0xd7, 0x63, 0xf8, 0xcf, 0xc0, 0x00,
		0x00, 0x00, 0x03, 0x00, 0x01, 0x87, 0xa1, 0x4e,
		0xd4, 0x00, 0x00, 0x00, 0x00, 0x49, 0x45, 0x4e,
		0x44, 0xae, 0x42, 0x60, 0x82,
	}

	rec := buildRecord(entry("thumbcache_96.db", "k1", png))
	if rec.Width == nil || *rec.Width != 1 || rec.Height == nil || *rec.Height != 1 {
		t.Errorf("dimensions = %v x %v, want 1x1", rec.Width, rec.Height)
	}
	if rec.ImageFormat == nil || *rec.ImageFormat != "PNG" {
		t.Errorf("format = %v, want PNG", rec.ImageFormat)
	}
	if rec.CacheSize != "96" {
		t.Errorf("cache size = %q, want 96", rec.CacheSize)
	}
}
