package report

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/maddev333/scubapwshapi/internal/runner"
)

func newRecord(output string) *Record {
	return &Record{
		ID:        uuid.New().String(),
		Kind:      Script,
		Script:    "echo " + output,
		Shell:     "sh",
		Output:    output + "\n",
		StartedAt: time.Date(2026, time.October, 16, 12, 0, 0, 0, time.UTC),
		Duration:  15 * time.Millisecond,
	}
}

// countingStore records how often the backing store is hit.
type countingStore struct {
	recs  map[string]*Record
	loads int
}

func (c *countingStore) Save(rec *Record) error {
	if c.recs == nil {
		c.recs = make(map[string]*Record)
	}
	c.recs[rec.ID] = rec
	return nil
}

func (c *countingStore) Load(id string) (*Record, error) {
	c.loads++
	if rec, ok := c.recs[id]; ok {
		return rec, nil
	}
	return nil, ErrNotFound
}

func TestFromResult(t *testing.T) {
	res := &runner.Result{
		RunID:    uuid.New().String(),
		Shell:    "pwsh",
		ExitCode: 1,
		Stdout:   []byte("out"),
		Stderr:   []byte("err"),
	}
	rec := FromResult("Get-Date", res)
	if rec.Output != "outerr" {
		t.Errorf("Output = %q, want %q", rec.Output, "outerr")
	}
	if rec.Kind != Script || rec.ID != res.RunID || rec.Script != "Get-Date" {
		t.Errorf("unexpected record %+v", rec)
	}
	if err := rec.Expect(Script); err != nil {
		t.Errorf("Expect(Script): %v", err)
	}
	if err := rec.Expect(Forecast); err == nil {
		t.Error("Expect(Forecast) = nil, want error")
	}
}

func TestLRUStore_HitAndEvict(t *testing.T) {
	back := &countingStore{}
	s := NewLRUStore(2, back)

	a, b, c := newRecord("a"), newRecord("b"), newRecord("c")
	for _, r := range []*Record{a, b, c} {
		if err := s.Save(r); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}

	if _, err := s.Load(c.ID); err != nil {
		t.Fatalf("Load(c): %v", err)
	}
	if back.loads != 0 {
		t.Errorf("backing loads = %d, want 0 for cached record", back.loads)
	}

	// a was evicted and must come from the backing store.
	got, err := s.Load(a.ID)
	if err != nil {
		t.Fatalf("Load(a): %v", err)
	}
	if got.Output != "a\n" {
		t.Errorf("Output = %q, want %q", got.Output, "a\n")
	}
	if back.loads != 1 {
		t.Errorf("backing loads = %d, want 1", back.loads)
	}

	recent := s.Recent(10)
	if len(recent) != 2 || recent[0].ID != a.ID || recent[1].ID != c.ID {
		t.Errorf("Recent() = %v, want [a c]", recent)
	}
}

func TestLRUStore_NotFound(t *testing.T) {
	s := NewLRUStore(1, &countingStore{})
	if _, err := s.Load("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestDiskStore_RoundTrip(t *testing.T) {
	s := NewDiskStoreAt(filepath.Join(t.TempDir(), "runs"))
	rec := newRecord("hello")
	if err := s.Save(rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(rec.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Output != rec.Output || got.Duration != rec.Duration || !got.StartedAt.Equal(rec.StartedAt) {
		t.Errorf("Load = %+v, want %+v", got, rec)
	}
}

func TestDiskStore_RejectsBadIDs(t *testing.T) {
	s := NewDiskStoreAt(t.TempDir())
	if _, err := s.Load("../../etc/passwd"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load error = %v, want ErrNotFound", err)
	}
	if _, err := s.Load(uuid.New().String()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load error = %v, want ErrNotFound", err)
	}
	if err := s.Save(&Record{ID: "not-a-uuid"}); err == nil {
		t.Error("Save with bad ID = nil, want error")
	}
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()

	rec := newRecord("hello")
	rec.Truncated = true
	rec.ExitCode = 7
	if err := s.Save(rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(rec.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Output != rec.Output || got.ExitCode != 7 || !got.Truncated || got.Kind != Script {
		t.Errorf("Load = %+v, want %+v", got, rec)
	}
	if !got.StartedAt.Equal(rec.StartedAt) || got.Duration != rec.Duration {
		t.Errorf("times = %v/%v, want %v/%v", got.StartedAt, got.Duration, rec.StartedAt, rec.Duration)
	}

	if _, err := s.Load(uuid.New().String()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "h.db")
	s, closeFn, err := Open("sqlite", path, 4)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer closeFn()

	rec := newRecord("x")
	if err := s.Save(rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := s.Load(rec.ID); err != nil {
		t.Errorf("Load: %v", err)
	}
}
