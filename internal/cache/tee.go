package cache

import (
	"io"
	"os"

	"github.com/clickproxy/clickproxy/internal/fingerprint"
	"github.com/clickproxy/clickproxy/internal/metrics"
)

// teeWriter is the client-facing Body of a cache-miss response: reads
// from it pull from upstream and simultaneously push the same bytes
// through a bounded channel to a disk-writer goroutine, implementing the
// write path's tee (spec §4.G step 4-5).
type teeWriter struct {
	upstream io.ReadCloser
	chunks   chan []byte
	done     chan struct{}

	// streamErred is set by Read (called only from the client-copy
	// goroutine) before Close is called; writeLoop observes it safely
	// because the chunks-channel close that follows is itself a
	// happens-before edge for the range loop's exit.
	streamErred bool
}

// newTeeWriter starts the disk-writer goroutine and returns a
// ReadCloser the HTTP layer copies to the client. Closing it (whether
// the client finished normally or disconnected) signals the writer
// goroutine to finalize.
func newTeeWriter(upstream io.ReadCloser, tmp *os.File, finalPath string, m *metrics.Metrics, lease *fingerprint.Lease) *teeWriter {
	t := &teeWriter{
		upstream: upstream,
		chunks:   make(chan []byte, teeChanDepth),
		done:     make(chan struct{}),
	}
	go t.writeLoop(tmp, finalPath, m, lease)
	return t
}

// Read pulls a chunk from upstream, forwards a copy to the disk writer,
// and returns the same bytes to the client.
func (t *teeWriter) Read(p []byte) (int, error) {
	n, err := t.upstream.Read(p)
	if n > 0 {
		cp := make([]byte, n)
		copy(cp, p[:n])
		select {
		case t.chunks <- cp:
		case <-t.done:
			// writer already finalized, which only happens once Close
			// has closed the channel (past the size cap it keeps
			// draining); drop the chunk, the disk side no longer cares.
		}
	}
	if err != nil && err != io.EOF {
		t.streamErred = true
	}
	return n, err
}

// Close ends the tee: the upstream body is closed and the chunk channel
// is closed so the writer goroutine finalizes based on what it has
// accumulated so far. Safe to call once the client stream ends, whether
// by completion or client disconnect (spec §5 Cancellation).
func (t *teeWriter) Close() error {
	err := t.upstream.Close()
	close(t.chunks)
	<-t.done
	return err
}

// writeLoop accumulates size as chunks arrive, stops writing to disk
// once LimitBytes is exceeded while continuing to drain the channel, and
// finalizes (rename or unlink) once the channel closes.
func (t *teeWriter) writeLoop(tmp *os.File, finalPath string, m *metrics.Metrics, lease *fingerprint.Lease) {
	defer close(t.done)

	var size int64
	tooLarge := false
	var writeErr error

	for chunk := range t.chunks {
		size += int64(len(chunk))
		if tooLarge || writeErr != nil {
			continue
		}
		if size > LimitBytes {
			tooLarge = true
			continue
		}
		if _, err := tmp.Write(chunk); err != nil {
			writeErr = err
		}
	}

	if m != nil {
		m.ResponseSizeBytes.Observe(float64(size))
	}

	if t.streamErred {
		// the client never saw a clean end of stream: leave the partial
		// tmp file in place (the next writer's os.Create truncates it)
		// rather than publishing or explicitly deleting it, per the
		// upstream-streaming-error contract.
		tmp.Close()
		lease.Release(fingerprint.None)
		return
	}

	status := fingerprint.Processed
	switch {
	case writeErr != nil || tooLarge:
		status = fingerprint.TooLarge
		if tooLarge && m != nil {
			m.LargeResponsesTotal.Inc()
		}
		tmp.Close()
		os.Remove(tmp.Name())
	default:
		syncErr := tmp.Sync()
		tmp.Close()
		if syncErr != nil {
			status = fingerprint.TooLarge
			os.Remove(tmp.Name())
		} else if err := os.Rename(tmp.Name(), finalPath); err != nil {
			status = fingerprint.TooLarge
			os.Remove(tmp.Name())
		}
	}

	lease.Release(status)
}
