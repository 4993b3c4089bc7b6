//go:build unix

package ringstore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestShmRoundTrip(t *testing.T) {
	t.Parallel()

	opts := testOptions()
	opts.Dir = t.TempDir()

	w, err := CreateOrOpen("feed", opts)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if !w.IsCreator() {
		t.Error("not creator")
	}
	fi, err := os.Stat(filepath.Join(opts.Dir, "feed"))
	if err != nil {
		t.Fatal(err)
	}
	if fi.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v", fi.Mode().Perm())
	}

	r, err := Open("feed", Options{Dir: opts.Dir})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if r.ItemCount() != 4 || r.ItemLen() != 100 || r.HeadLen() != 128 {
		t.Errorf("reader geometry %d/%d/%d", r.ItemCount(), r.ItemLen(), r.HeadLen())
	}

	copy(w.Header(), "hello")
	writeN(t, w, 3)
	if ok, _ := r.Readable(); !ok {
		t.Fatal("reader sees nothing")
	}
	if got := r.Item(r.ReadIndex())[0]; got != 0 {
		t.Errorf("first item = %d", got)
	}
	if string(r.Header()[:5]) != "hello" {
		t.Error("header not shared")
	}
	if !w.HasReaders(0) {
		t.Error("reader count not shared")
	}
}

func TestShmJoinAndRecreate(t *testing.T) {
	t.Parallel()

	opts := testOptions()
	opts.Dir = t.TempDir()

	w, err := CreateOrOpen("feed", opts)
	if err != nil {
		t.Fatal(err)
	}
	writeN(t, w, 2)
	w.Close()

	joined, err := CreateOrOpen("feed", opts)
	if err != nil {
		t.Fatal(err)
	}
	if joined.IsCreator() || joined.WriteIndex() != 2 {
		t.Errorf("join: creator=%v write=%d", joined.IsCreator(), joined.WriteIndex())
	}
	joined.Close()

	opts.Stale = func([]byte) bool { return true }
	fresh, err := CreateOrOpen("feed", opts)
	if err != nil {
		t.Fatal(err)
	}
	defer fresh.Close()
	if !fresh.IsCreator() || fresh.WriteIndex() != 0 {
		t.Errorf("recreate: creator=%v write=%d", fresh.IsCreator(), fresh.WriteIndex())
	}
}

func TestShmOpenMissingAndRemove(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if _, err := Open("nope", Options{Dir: dir}); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}

	w, err := CreateOrOpen("gone", Options{Dir: dir, ItemLen: 16, ItemCount: 2})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if err := RemoveFromKernel("gone", dir); err != nil {
		t.Fatal(err)
	}
	if err := RemoveFromKernel("gone", dir); err != nil {
		t.Errorf("second remove: %v", err)
	}
	if _, err := Open("gone", Options{Dir: dir}); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	// The writer's mapping survives the unlink.
	writeN(t, w, 1)
}

func TestShmOpenUninitialized(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "half"), make([]byte, 4096), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Open("half", Options{Dir: dir}); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("err = %v, want ErrNotInitialized", err)
	}
}
