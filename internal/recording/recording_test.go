package recording

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/claude/repform/internal/pose"
)

func frameAt(ms int) pose.Frame {
	lms := make([]pose.Landmark, pose.NumLandmarks)
	for i := range lms {
		lms[i] = pose.Landmark{X: float64(i) / 100, Y: 0.5, Z: -0.1, Visibility: 0.9}
	}
	return pose.Frame{
		Time:      time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC).Add(time.Duration(ms) * time.Millisecond),
		Landmarks: lms,
	}
}

func encode(t *testing.T, frames ...pose.Frame) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := NewWriter(&buf)
	for _, f := range frames {
		if err := w.Write(f); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	return buf.Bytes()
}

// TestWriteRead verifies frames survive encoding with millisecond timing.
func TestWriteRead(t *testing.T) {
	data := encode(t, frameAt(0), frameAt(33), frameAt(66))
	frames, err := ReadAll(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("frames = %d, want 3", len(frames))
	}
	if d := frames[1].Time.Sub(frames[0].Time); d.Round(time.Millisecond) != 33*time.Millisecond {
		t.Errorf("frame spacing = %v, want 33ms", d)
	}
	if frames[2].Landmarks[10].X != 0.1 {
		t.Errorf("landmark x = %v, want 0.1", frames[2].Landmarks[10].X)
	}
}

// TestReaderSkipsBlankLines verifies empty lines between frames are ignored.
func TestReaderSkipsBlankLines(t *testing.T) {
	data := encode(t, frameAt(0))
	data = append([]byte("\n   \n"), data...)
	data = append(data, []byte("\n\n")...)
	frames, err := ReadAll(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(frames) != 1 {
		t.Errorf("frames = %d, want 1", len(frames))
	}
}

// TestReaderErrors verifies malformed lines report their line number.
func TestReaderErrors(t *testing.T) {
	cases := map[string]string{
		"bad json":        "{\"t\": 1, ",
		"short landmarks": `{"t": 1, "landmarks": [{"x": 0.1}]}`,
	}
	for name, body := range cases {
		r := NewReader(strings.NewReader("\n" + body + "\n"))
		_, err := r.Next()
		if err == nil || err == io.EOF {
			t.Errorf("%s: expected error, got %v", name, err)
			continue
		}
		if !strings.HasPrefix(err.Error(), "line 2:") {
			t.Errorf("%s: error %q does not name line 2", name, err)
		}
	}
}

// TestOpenGzip verifies compressed recordings decode transparently.
func TestOpenGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "squats.jsonl.gz")
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(encode(t, frameAt(0), frameAt(40))); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	var n int
	for {
		_, err := f.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		n++
	}
	if n != 2 {
		t.Errorf("frames = %d, want 2", n)
	}
}

// TestUnixConversion verifies fractional seconds keep sub-millisecond
// precision.
func TestUnixConversion(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 250_000_000, time.UTC)
	got := FromUnix(ToUnix(ts))
	if d := got.Sub(ts); d < -time.Microsecond || d > time.Microsecond {
		t.Errorf("round trip drift = %v", d)
	}
}
