// Package recording reads and writes captured landmark streams as JSON lines,
// one frame per line:
//
//	{"t": 1767261600.033, "landmarks": [{"x": 0.51, "y": 0.22, "z": -0.1, "visibility": 0.99}, ...]}
//
// Files ending in .gz are compressed with gzip.
package recording

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/claude/repform/internal/pose"
)

// maxLineSize bounds a single encoded frame.
const maxLineSize = 1 << 20

type line struct {
	T         float64         `json:"t"`
	Landmarks []pose.Landmark `json:"landmarks"`
}

// Reader decodes frames from a JSON-lines stream.
type Reader struct {
	sc     *bufio.Scanner
	lineNo int
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	return &Reader{sc: sc}
}

// Next returns the next frame, or io.EOF at the end of the stream. Blank
// lines are skipped.
func (r *Reader) Next() (pose.Frame, error) {
	for r.sc.Scan() {
		r.lineNo++
		text := strings.TrimSpace(r.sc.Text())
		if text == "" {
			continue
		}
		var l line
		if err := json.Unmarshal([]byte(text), &l); err != nil {
			return pose.Frame{}, fmt.Errorf("line %d: decoding frame: %w", r.lineNo, err)
		}
		if len(l.Landmarks) != pose.NumLandmarks {
			return pose.Frame{}, fmt.Errorf("line %d: got %d landmarks, want %d", r.lineNo, len(l.Landmarks), pose.NumLandmarks)
		}
		return pose.Frame{Time: FromUnix(l.T), Landmarks: l.Landmarks}, nil
	}
	if err := r.sc.Err(); err != nil {
		return pose.Frame{}, fmt.Errorf("line %d: reading recording: %w", r.lineNo+1, err)
	}
	return pose.Frame{}, io.EOF
}

// ReadAll decodes every frame from r.
func ReadAll(r io.Reader) ([]pose.Frame, error) {
	rd := NewReader(r)
	var frames []pose.Frame
	for {
		f, err := rd.Next()
		if err == io.EOF {
			return frames, nil
		}
		if err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
}

// Writer encodes frames as JSON lines.
type Writer struct {
	w *bufio.Writer
}

// NewWriter returns a Writer over w. Call Flush when done.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write encodes one frame.
func (w *Writer) Write(f pose.Frame) error {
	data, err := json.Marshal(line{T: ToUnix(f.Time), Landmarks: f.Landmarks})
	if err != nil {
		return fmt.Errorf("encoding frame: %w", err)
	}
	if _, err := w.w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}

// Flush writes any buffered frames.
func (w *Writer) Flush() error { return w.w.Flush() }

// File is an open recording. Close releases the file and any decompressor.
type File struct {
	*Reader
	closers []io.Closer
}

// Open opens a recording on disk, decompressing .gz files.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening recording: %w", err)
	}
	if !strings.HasSuffix(path, ".gz") {
		return &File{Reader: NewReader(f), closers: []io.Closer{f}}, nil
	}
	zr, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("opening gzip recording: %w", err)
	}
	return &File{Reader: NewReader(zr), closers: []io.Closer{zr, f}}, nil
}

// Close closes the recording.
func (f *File) Close() error {
	var first error
	for _, c := range f.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// FromUnix converts fractional unix seconds to a UTC time.
func FromUnix(secs float64) time.Time {
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(math.Round(frac*1e9))).UTC()
}

// ToUnix converts a time to fractional unix seconds.
func ToUnix(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
