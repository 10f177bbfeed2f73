package logger

import (
	"bufio"
	"bytes"
	"io"
	"sync"
	"time"
)

// SmartWriter buffers log writes and flushes them when:
// 1. The buffer fills (bufio handles this).
// 2. The flush interval elapses.
// 3. An error or fatal entry is written.
// 4. Sync() or Close() is called.
type SmartWriter struct {
	writer        io.Writer
	bufWriter     *bufio.Writer
	mu            sync.Mutex
	flushInterval time.Duration
	stopChan      chan struct{}
	wg            sync.WaitGroup
}

// NewSmartWriter creates a new SmartWriter
func NewSmartWriter(w io.Writer, flushInterval time.Duration) *SmartWriter {
	sw := &SmartWriter{
		writer:        w,
		bufWriter:     bufio.NewWriterSize(w, 256*1024),
		flushInterval: flushInterval,
		stopChan:      make(chan struct{}),
	}

	sw.wg.Add(1)
	go sw.runFlusher()

	return sw
}

// Write implements io.Writer
func (sw *SmartWriter) Write(p []byte) (n int, err error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	// Zerolog JSON format: "level":"error" / "level":"fatal"
	isError := bytes.Contains(p, []byte("\"level\":\"error\"")) ||
		bytes.Contains(p, []byte("\"level\":\"fatal\""))

	n, err = sw.bufWriter.Write(p)

	if isError {
		_ = sw.bufWriter.Flush()
	}

	return n, err
}

// Sync flushes the buffer
func (sw *SmartWriter) Sync() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.bufWriter.Flush()
}

// Close flushes and stops the background flusher
func (sw *SmartWriter) Close() error {
	close(sw.stopChan)
	sw.wg.Wait()
	return sw.Sync()
}

func (sw *SmartWriter) runFlusher() {
	defer sw.wg.Done()
	ticker := time.NewTicker(sw.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sw.Sync()
		case <-sw.stopChan:
			return
		}
	}
}
