package replay

import (
	"os"
	"path/filepath"
	"testing"
)

// TestStateDBLifecycle verifies replayed and uploaded markers survive a
// reopen and are keyed by hash and exercise.
func TestStateDBLifecycle(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenStateDB(dir)
	if err != nil {
		t.Fatal(err)
	}

	if _, ok, err := s.Lookup("abc", "squats"); err != nil || ok {
		t.Fatalf("fresh lookup = (%v, %v), want not found", ok, err)
	}
	if err := s.MarkReplayed("abc", "squats", "a.jsonl", 42, "a.session.json"); err != nil {
		t.Fatal(err)
	}
	e, ok, err := s.Lookup("abc", "squats")
	if err != nil || !ok {
		t.Fatalf("lookup after mark = (%v, %v)", ok, err)
	}
	if e.Uploaded || e.SessionFile != "a.session.json" || e.Path != "a.jsonl" {
		t.Errorf("entry = %+v", e)
	}
	if _, ok, _ := s.Lookup("abc", "heel_raises"); ok {
		t.Error("other exercise should not match")
	}

	if err := s.MarkUploaded("abc", "squats"); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = OpenStateDB(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	e, ok, err = s.Lookup("abc", "squats")
	if err != nil || !ok || !e.Uploaded {
		t.Errorf("after reopen = (%+v, %v, %v), want uploaded", e, ok, err)
	}
}

// TestHashFile verifies identical content hashes identically.
func TestHashFile(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	c := filepath.Join(dir, "c")
	os.WriteFile(a, []byte("frames"), 0o644)
	os.WriteFile(b, []byte("frames"), 0o644)
	os.WriteFile(c, []byte("other"), 0o644)

	ha, err := HashFile(a)
	if err != nil {
		t.Fatal(err)
	}
	hb, _ := HashFile(b)
	hc, _ := HashFile(c)
	if ha != hb {
		t.Error("identical files should share a hash")
	}
	if ha == hc {
		t.Error("different files should not share a hash")
	}
	if len(ha) != 64 {
		t.Errorf("hash length = %d, want 64", len(ha))
	}
}
