package computation

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	// DirName is the per-container subdirectory holding run state.
	DirName = "computation"
	// LogFile is the primary log of the latest run.
	LogFile = "computation.log"
	// RecordFile is the persisted record of the last finished run.
	RecordFile = "computation.xml"
)

// Listener is the scoped sink for one run's log output. It is acquired
// when the run starts and closed on every exit path; writes after Close
// are discarded.
type Listener struct {
	mu     sync.Mutex
	w      io.WriteCloser
	path   string
	closed bool
}

// OpenListener rotates any previous logs and opens a fresh primary log
// under dir. A backupCount of zero disables rotation; the primary is
// truncated either way.
func OpenListener(dir string, backupCount int) (*Listener, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create computation directory: %w", err)
	}
	path := filepath.Join(dir, LogFile)
	if backupCount > 0 {
		rotateBackups(path, backupCount)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open computation log: %w", err)
	}
	return &Listener{w: f, path: path}, nil
}

// newDiscardListener stands in when the real log cannot be opened; a
// run never fails for want of its log file.
func newDiscardListener() *Listener {
	return &Listener{w: nopWriteCloser{io.Discard}}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// rotateBackups shifts computation.log.1..N-1 up by one, drops .N and
// moves the primary to .1. Missing files are fine.
func rotateBackups(path string, count int) {
	os.Remove(fmt.Sprintf("%s.%d", path, count))
	for i := count - 1; i >= 1; i-- {
		os.Rename(fmt.Sprintf("%s.%d", path, i), fmt.Sprintf("%s.%d", path, i+1))
	}
	os.Rename(path, path+".1")
}

// Logf appends one formatted line to the log.
func (l *Listener) Logf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	fmt.Fprintf(l.w, format+"\n", args...)
}

// Write implements io.Writer so hosts can stream arbitrary output.
func (l *Listener) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return len(p), nil
	}
	return l.w.Write(p)
}

// Close seals the log. Idempotent.
func (l *Listener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.w.Close()
}

// Path returns the primary log file path, or "" for a discard listener.
func (l *Listener) Path() string { return l.path }

// OpenLog opens a log file for reading. An absent file yields a
// placeholder reader carrying the literal text "No such file: <name>";
// callers treat absence as an empty placeholder, not an error. A path
// ending in .gz is decompressed transparently.
func OpenLog(path string) io.ReadCloser {
	f, err := os.Open(path)
	if err != nil {
		return placeholder(path)
	}
	if !strings.HasSuffix(path, ".gz") {
		return f
	}
	zr, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return placeholder(path)
	}
	return &gzipReadCloser{zr: zr, f: f}
}

func placeholder(path string) io.ReadCloser {
	return io.NopCloser(strings.NewReader("No such file: " + filepath.Base(path)))
}

type gzipReadCloser struct {
	zr *gzip.Reader
	f  *os.File
}

func (g *gzipReadCloser) Read(p []byte) (int, error) { return g.zr.Read(p) }

func (g *gzipReadCloser) Close() error {
	g.zr.Close()
	return g.f.Close()
}
