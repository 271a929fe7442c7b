package eventlog

import (
	"bytes"
	"sync"
)

// streamBufferSize is the per-stream line buffer. A partial line longer
// than this is enqueued unaligned rather than held forever.
const streamBufferSize = 1024

// Stream is one producer's handle on a Writer. Writes are buffered per
// stream and flushed line-aligned: whole lines are enqueued, the
// trailing partial line stays in the buffer.
type Stream struct {
	w *Writer

	mu     sync.Mutex
	buf    []byte
	closed bool
}

// OpenStream returns a new ordinary write stream. Multiple streams may
// be open concurrently; their whole-line chunks interleave in the log.
func (w *Writer) OpenStream() *Stream {
	return &Stream{w: w}
}

// Write buffers p and enqueues every complete line.
func (s *Stream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return len(p), nil
	}

	s.buf = append(s.buf, p...)

	if idx := bytes.LastIndexByte(s.buf, '\n'); idx >= 0 {
		chunk := make([]byte, idx+1)
		copy(chunk, s.buf[:idx+1])
		s.buf = s.buf[idx+1:]
		if err := s.w.Enqueue(chunk); err != nil {
			return len(p), err
		}
	}

	if len(s.buf) >= streamBufferSize {
		chunk := make([]byte, len(s.buf))
		copy(chunk, s.buf)
		s.buf = s.buf[:0]
		if err := s.w.Enqueue(chunk); err != nil {
			return len(p), err
		}
	}

	return len(p), nil
}

// Close enqueues the remaining partial line followed by the flush
// sentinel. Idempotent.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if len(s.buf) > 0 {
		chunk := make([]byte, len(s.buf))
		copy(chunk, s.buf)
		s.buf = nil
		if err := s.w.Enqueue(chunk); err != nil {
			return err
		}
	}
	return s.w.Enqueue(nil)
}
