package eventlog

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fernhill/rookery/pkg/log"
	"github.com/fernhill/rookery/pkg/metrics"
)

const (
	// DefaultFlushSize is the pending-byte threshold that forces a flush.
	DefaultFlushSize = 1024
	// DefaultFlushInterval is the maximum time pending bytes may wait.
	DefaultFlushInterval = 250 * time.Millisecond
	// DefaultRotateSize is the file size beyond which the log rotates.
	DefaultRotateSize = 32 * 1024

	queueCapacity = 256
)

// ErrBufferFull is returned to a producer whose write overflowed the
// pending queue. Producers are expected to drop the observation.
var ErrBufferFull = errors.New("event log buffer full")

// TargetFunc supplies the current target path on every flush. It may
// answer ok=false to defer the flush, e.g. while the surrounding
// container is being moved on disk.
type TargetFunc func() (path string, ok bool)

// Options tunes a Writer. Zero values fall back to the defaults.
type Options struct {
	RotateSize    int64
	FileCount     int
	FlushInterval time.Duration
	FlushSize     int
}

func (o Options) withDefaults() Options {
	if o.RotateSize <= 0 {
		o.RotateSize = DefaultRotateSize
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = DefaultFlushInterval
	}
	if o.FlushSize <= 0 {
		o.FlushSize = DefaultFlushSize
	}
	return o
}

// Writer is a multi-producer, single-consumer, batching, rotating
// append-only log. The target file is opened only while flushing, so
// the surrounding directory may be moved or deleted between flushes.
type Writer struct {
	target TargetFunc
	opts   Options
	logger zerolog.Logger

	queue chan []byte
	stop  chan struct{}
	done  chan struct{}

	// mu is the write lock shared by all producers' flushes.
	mu             sync.Mutex
	pending        [][]byte
	pendingBytes   int
	appendNextOpen bool
	ioErrLogged    bool

	closeOnce sync.Once
}

// NewWriter starts a writer flushing to the supplied target.
func NewWriter(target TargetFunc, opts Options) *Writer {
	w := &Writer{
		target: target,
		opts:   opts.withDefaults(),
		logger: log.WithComponent("eventlog"),
		queue:  make(chan []byte, queueCapacity),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go w.run()
	return w
}

// Enqueue offers a chunk of whole lines to the writer without
// blocking. A nil chunk is the flush sentinel used by closing streams.
func (w *Writer) Enqueue(chunk []byte) error {
	select {
	case w.queue <- chunk:
		return nil
	case <-w.stop:
		return nil
	default:
		metrics.EventLogDropped.Inc()
		return ErrBufferFull
	}
}

// Close flushes whatever is pending and stops the writer. Idempotent.
func (w *Writer) Close() {
	w.closeOnce.Do(func() {
		close(w.stop)
		<-w.done
	})
}

func (w *Writer) run() {
	defer close(w.done)

	ticker := time.NewTicker(w.opts.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case chunk := <-w.queue:
			if chunk == nil {
				w.flush()
				continue
			}
			w.mu.Lock()
			w.pending = append(w.pending, chunk)
			w.pendingBytes += len(chunk)
			full := w.pendingBytes >= w.opts.FlushSize
			w.mu.Unlock()
			if full {
				w.flush()
			}
		case <-ticker.C:
			w.flush()
		case <-w.stop:
			w.drain()
			w.flush()
			return
		}
	}
}

func (w *Writer) drain() {
	for {
		select {
		case chunk := <-w.queue:
			if chunk == nil {
				continue
			}
			w.mu.Lock()
			w.pending = append(w.pending, chunk)
			w.pendingBytes += len(chunk)
			w.mu.Unlock()
		default:
			return
		}
	}
}

// flush takes the write lock, asks the target supplier whether writing
// is permitted right now, rotates if needed, drains the pending queue
// into the file and closes it again. I/O errors are swallowed so they
// never break producers.
func (w *Writer) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.pending) == 0 {
		return
	}

	path, ok := w.target()
	if !ok {
		// Host refused the write; keep pending and retry later.
		return
	}

	if err := w.rotateIfNeeded(path); err != nil {
		w.logIOErr(err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		w.logIOErr(err)
		w.pending = nil
		w.pendingBytes = 0
		return
	}

	for _, chunk := range w.pending {
		if _, err := f.Write(chunk); err != nil {
			w.logIOErr(err)
			break
		}
	}
	if err := f.Close(); err != nil {
		w.logIOErr(err)
	}

	w.pending = nil
	w.pendingBytes = 0
	w.appendNextOpen = true
}

func (w *Writer) rotateIfNeeded(path string) error {
	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		w.appendNextOpen = true
		return nil
	case err != nil:
		return err
	}

	if w.appendNextOpen && info.Size() <= w.opts.RotateSize {
		return nil
	}

	metrics.EventLogRotations.Inc()

	if w.opts.FileCount <= 0 {
		return os.Remove(path)
	}

	os.Remove(fmt.Sprintf("%s.%d", path, w.opts.FileCount))
	for i := w.opts.FileCount - 1; i >= 1; i-- {
		os.Rename(fmt.Sprintf("%s.%d", path, i), fmt.Sprintf("%s.%d", path, i+1))
	}
	return os.Rename(path, path+".1")
}

func (w *Writer) logIOErr(err error) {
	if w.ioErrLogged {
		return
	}
	w.ioErrLogged = true
	w.logger.Warn().Err(err).Msg("event log flush failed; further errors suppressed")
}
