// internal/archiver/pool.go
package archiver

import (
	"bytes"
	"sync"

	"github.com/klauspost/compress/gzip"
)

// Archiving runs on a single consumer goroutine (Manager.loop), so
// there is never contention for these pools — the point is avoiding a
// fresh buffer and a fresh gzip.Writer (which itself carries an
// internal window buffer) on every finished log file, not protecting
// shared state.
//
// Grounded on the teacher's pool package: same BufferPool/GzipPool
// split and the same oversized-buffer-skips-the-pool rule, repointed
// at whole gzipped log files instead of per-request batches.
var (
	bufferPool = sync.Pool{
		New: func() any {
			return bytes.NewBuffer(make([]byte, 0, 256*1024))
		},
	}

	gzipWriterPool = sync.Pool{
		New: func() any {
			w, _ := gzip.NewWriterLevel(nil, gzip.BestSpeed)
			return w
		},
	}
)

// maxPooledBufferCap bounds how large a buffer this package will hand
// back to the pool. An unusually large finished log file gzips into a
// buffer the pool would otherwise hold onto forever; past this size
// it is left for the GC instead.
const maxPooledBufferCap = 4 * 1024 * 1024

func getBuffer() *bytes.Buffer {
	return bufferPool.Get().(*bytes.Buffer)
}

func putBuffer(buf *bytes.Buffer) {
	if buf.Cap() > maxPooledBufferCap {
		return
	}
	buf.Reset()
	bufferPool.Put(buf)
}

func getGzipWriter(w *bytes.Buffer) *gzip.Writer {
	gz := gzipWriterPool.Get().(*gzip.Writer)
	gz.Reset(w)
	return gz
}

func putGzipWriter(gz *gzip.Writer) {
	gz.Close()
	gzipWriterPool.Put(gz)
}
