package head

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zsiec/mediashm/media"
)

// countingStore is a header-only Store that counts field writes.
type countingStore struct {
	hdr  []byte
	puts atomic.Int32
}

func newCountingStore() *countingStore {
	return &countingStore{hdr: make([]byte, HeaderSize)}
}

func (s *countingStore) Header() []byte { return s.hdr }

func (s *countingStore) PutHeader(off int, b []byte) error {
	s.puts.Add(1)
	copy(s.hdr[off:], b)
	return nil
}

var testHead = media.Head{
	Width: 1280, Height: 720, FourCC: media.FourCC("avc1"),
	Duration: 1, Scale: 50,
	AudioFourCC: media.FourCC("lpcm"), Channels: 2, Depth: 16, SampleRate: 48000,
	Timestamp: 1000,
}

func TestInitOnce(t *testing.T) {
	t.Parallel()

	s := newCountingStore()
	if IsInit(s) {
		t.Fatal("fresh header reports init")
	}
	if err := Init(s, Major, 7); err != nil {
		t.Fatal(err)
	}
	if !IsInit(s) {
		t.Fatal("init flag not set")
	}
	if major, minor := Version(s); major != Major || minor != 7 {
		t.Errorf("Version = %d.%d", major, minor)
	}
	if err := Init(s, Major, 8); !errors.Is(err, ErrAlreadyInit) {
		t.Errorf("second Init err = %v, want ErrAlreadyInit", err)
	}
	if _, minor := Version(s); minor != 7 {
		t.Error("second Init rewrote the version")
	}
}

func TestWaitInitTimeout(t *testing.T) {
	t.Parallel()

	s := newCountingStore()
	start := time.Now()
	err := WaitInit(context.Background(), s, 3, time.Millisecond)
	if !errors.Is(err, ErrInitTimeout) {
		t.Fatalf("err = %v, want ErrInitTimeout", err)
	}
	if time.Since(start) < 3*time.Millisecond {
		t.Error("returned before exhausting retries")
	}
}

func TestWaitInitZeroRetriesTriesOnce(t *testing.T) {
	t.Parallel()

	s := newCountingStore()
	if err := WaitInit(context.Background(), s, 0, time.Hour); !errors.Is(err, ErrInitTimeout) {
		t.Fatalf("err = %v", err)
	}
	if err := Init(s, Major, Minor); err != nil {
		t.Fatal(err)
	}
	if err := WaitInit(context.Background(), s, 0, time.Hour); err != nil {
		t.Fatalf("err = %v", err)
	}
}

func TestWaitInitSeesLateWriter(t *testing.T) {
	t.Parallel()

	s := newCountingStore()
	go func() {
		time.Sleep(5 * time.Millisecond)
		_ = Init(s, Major, Minor)
	}()
	if err := WaitInit(context.Background(), s, 1000, time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if major, _ := Version(s); major != Major {
		t.Errorf("major = %d", major)
	}
}

func TestWaitInitContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WaitInit(ctx, newCountingStore(), 10, time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestShortHeader(t *testing.T) {
	t.Parallel()

	s := &countingStore{hdr: make([]byte, 16)}
	if err := Init(s, Major, Minor); !errors.Is(err, ErrShortHeader) {
		t.Errorf("Init err = %v", err)
	}
	if _, err := ReadHead(s); !errors.Is(err, ErrShortHeader) {
		t.Errorf("ReadHead err = %v", err)
	}
	if IsClosed(s) || IsInit(s) {
		t.Error("short header reports flags")
	}
}

func TestCloseFlagSetOnce(t *testing.T) {
	t.Parallel()

	s := newCountingStore()
	if IsClosed(s) {
		t.Fatal("fresh header closed")
	}
	set, err := SetClosed(s)
	if err != nil || !set {
		t.Fatalf("SetClosed = %v, %v", set, err)
	}
	set, err = SetClosed(s)
	if err != nil || set {
		t.Fatalf("second SetClosed = %v, %v", set, err)
	}
	if !IsClosed(s) {
		t.Error("close flag not visible")
	}
}

func TestNegotiatorRepublishesOnlyOnChange(t *testing.T) {
	t.Parallel()

	s := newCountingStore()
	n := NewNegotiator(s, 0, nil)

	steps := []struct {
		name  string
		edit  func(*media.Head)
		wrote bool
	}{
		{"first publish", func(*media.Head) {}, true},
		{"identical", func(*media.Head) {}, false},
		{"timestamp only", func(h *media.Head) { h.Timestamp = 99999 }, false},
		{"channel layouts not compared", func(h *media.Head) { h.ChannelLayouts = []uint64{3} }, false},
		{"geometry", func(h *media.Head) { h.Width = 1920 }, true},
		{"fourcc", func(h *media.Head) { h.FourCC = media.FourCC("hvc1") }, true},
		{"frame rate", func(h *media.Head) { h.Scale = 60 }, true},
		{"audio", func(h *media.Head) { h.SampleRate = 44100 }, true},
		{"same again", func(*media.Head) {}, false},
	}
	h := testHead
	var want int32
	for _, st := range steps {
		st.edit(&h)
		wrote, err := n.Update(h)
		if err != nil {
			t.Fatalf("%s: %v", st.name, err)
		}
		if wrote != st.wrote {
			t.Errorf("%s: wrote = %v, want %v", st.name, wrote, st.wrote)
		}
		if st.wrote {
			want++
		}
		if got := s.puts.Load(); got != want {
			t.Errorf("%s: header writes = %d, want %d", st.name, got, want)
		}
	}

	got, err := ReadHead(s)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(h, media.DefaultHeadFields) {
		t.Errorf("ReadHead = %+v, want %+v", got, h)
	}
}

func TestNegotiatorChannelLayoutsOptIn(t *testing.T) {
	t.Parallel()

	s := newCountingStore()
	n := NewNegotiator(s, media.AllHeadFields, nil)
	h := testHead
	h.ChannelLayouts = []uint64{3}
	if _, err := n.Update(h); err != nil {
		t.Fatal(err)
	}
	h.ChannelLayouts[0] = 0x3F
	wrote, err := n.Update(h)
	if err != nil {
		t.Fatal(err)
	}
	if !wrote {
		t.Error("layout change not republished with AllHeadFields")
	}
	if last, ok := n.Last(); !ok || last.ChannelLayouts[0] != 0x3F {
		t.Errorf("Last = %+v, %v", last, ok)
	}
}
