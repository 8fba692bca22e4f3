// internal/filewriter/writer.go
package filewriter

import (
	"io"
	"log"
	"os"
	"sync/atomic"

	"netlogd/internal/metrics"
	"netlogd/internal/writequeue"

	json "github.com/goccy/go-json"
)

// Unbounded is the sentinel selecting unbounded mode for
// maxChunkBytes, mirroring writequeue.Unbounded.
const Unbounded int64 = -1

// eventSeparator is appended after every event record written to a
// chunk or the final file. Stitch's seek-back assumes exactly these
// two bytes trail the last event.
const eventSeparator = ",\n"

// Writer owns every open file handle and all rotation state for one
// log. Every method must run on the owning executor goroutine — none
// of Writer's state is synchronized, by design (spec.md §4.3 /
// §5 "single-writer discipline").
//
// Grounded on the original net::FileNetLogObserver::FileWriter, with
// the chunking/rotation/stitching algorithm carried over unchanged and
// the I/O primitives translated to os.File.
type Writer struct {
	finalLogPath string
	finalFile    *os.File

	currentChunkFile  *os.File
	currentChunkBytes int64
	fileNumber        int64 // monotonic; 0 means "none opened yet"

	chunkCount    int
	maxChunkBytes int64 // Unbounded selects unbounded mode

	wroteEventBytes bool

	metrics *metrics.Metrics
}

// New constructs a Writer. maxChunkBytes == Unbounded selects
// unbounded mode for the writer's entire lifetime (spec.md §3
// "Mode is immutable").
func New(finalLogPath string, maxChunkBytes int64, chunkCount int, m *metrics.Metrics) *Writer {
	return &Writer{
		finalLogPath:  finalLogPath,
		maxChunkBytes: maxChunkBytes,
		chunkCount:    chunkCount,
		metrics:       m,
	}
}

func (w *Writer) isUnbounded() bool { return w.maxChunkBytes == Unbounded }
func (w *Writer) isBounded() bool   { return !w.isUnbounded() }

// Initialize opens the final file (truncating), and in bounded mode
// additionally creates the in-progress directory and writes the
// constants prologue into constants.json there; in unbounded mode the
// prologue goes directly into the final file. See spec.md §4.3.1.
func (w *Writer) Initialize(constants any) {
	w.finalFile = openForWrite(w.finalLogPath, w.metrics)

	if w.isBounded() {
		w.createInprogressDirectory()
		cf := openForWrite(w.constantsFilePath(), w.metrics)
		writeConstants(cf, constants)
		closeFile(cf)
	} else {
		writeConstants(w.finalFile, constants)
	}
}

func (w *Writer) createInprogressDirectory() {
	if w.finalFile == nil {
		// Final file failed to open; matching paths means the sibling
		// directory is almost certainly unwritable too, so don't bother.
		return
	}

	if err := os.MkdirAll(w.inprogressDir(), 0o755); err != nil {
		log.Printf("[WARN] failed creating in-progress directory %s: %v", w.inprogressDir(), err)
		if w.metrics != nil {
			atomic.AddInt64(&w.metrics.InprogressDirErrorsTotal, 1)
		}
		return
	}

	// Leave a human-readable placeholder in the final file so a crash
	// before Stop still leaves something legible behind — stitching
	// overwrites this on a graceful stop.
	writeToFile(w.finalFile, "Log data is being written to the .inprogress directory")
	_ = w.finalFile.Sync()
}

func writeConstants(file *os.File, constants any) {
	data, err := json.Marshal(constants)
	if err != nil {
		// spec.md §4.3.5: constants encoding failure is a programmer
		// error, not a runtime condition to recover from.
		panic("netlogd: constants value failed to encode as JSON: " + err.Error())
	}
	writeToFile(file, `{"constants":`, string(data), ",\n\"events\": [\n")
}

// Flush drains queue into a local slice and writes every record to
// disk, rotating chunks as needed in bounded mode. See spec.md
// §4.3.1/§4.3.2.
func (w *Writer) Flush(queue *writequeue.Queue) {
	var local []string
	queue.SwapInto(&local)

	for _, record := range local {
		var out *os.File
		if w.isBounded() {
			if w.fileNumber == 0 || w.currentChunkBytes >= w.maxChunkBytes {
				w.rotate()
			}
			out = w.currentChunkFile
		} else {
			out = w.finalFile
		}

		n := writeToFile(out, record, eventSeparator)
		if n > 0 {
			w.wroteEventBytes = true
			if w.metrics != nil {
				atomic.AddInt64(&w.metrics.EventBytesWrittenTotal, int64(n))
			}
		}
		if w.isBounded() {
			w.currentChunkBytes += int64(n)
		}
	}
}

// rotate opens the next chunk file in the ring, closing whatever was
// previously open. See spec.md §4.3.2.
func (w *Writer) rotate() {
	w.fileNumber++
	index := fileNumberToIndex(w.fileNumber, w.chunkCount)

	closeFile(w.currentChunkFile)
	w.currentChunkFile = openForWrite(w.eventFilePath(index), w.metrics)
	w.currentChunkBytes = 0

	if w.metrics != nil {
		atomic.AddInt64(&w.metrics.ChunkRotationsTotal, 1)
	}
}

// Stop closes the events array and writes the epilogue, then (bounded
// mode) stitches the final file together from the prologue, live
// chunks, and epilogue. See spec.md §4.3.1/§4.3.3.
func (w *Writer) Stop(polledData any) {
	if w.isBounded() {
		cf := openForWrite(w.closingFilePath(), w.metrics)
		writeEpilogue(cf, polledData)
		closeFile(cf)
		w.stitchFinalLogFile()
	} else {
		w.rewindIfWroteEventBytes(w.finalFile)
		writeEpilogue(w.finalFile, polledData)
	}

	closeFile(w.finalFile)
	w.finalFile = nil
}

func writeEpilogue(file *os.File, polledData any) {
	writeToFile(file, "]\n")

	if polledData != nil {
		data, err := json.Marshal(polledData)
		if err == nil && len(data) > 0 && string(data) != "null" {
			writeToFile(file, ",\n\"polledData\": ", string(data), "\n")
		}
	}

	writeToFile(file, "}\n")
}

// rewindIfWroteEventBytes strips the trailing ",\n" left by the last
// event line so the events array does not end with a dangling comma.
// Relies on the encoder producing no trailing whitespace and the file
// being opened in binary-equivalent mode (spec.md §9's seek-back
// discipline — Go's os.File has no text-mode newline translation, so
// this holds on every platform Go supports).
func (w *Writer) rewindIfWroteEventBytes(file *os.File) {
	if file != nil && w.wroteEventBytes {
		_, _ = file.Seek(-2, io.SeekEnd)
	}
}

// FlushThenStop is the composite task StopObserving posts: drain
// whatever is still queued, then close out the log.
func (w *Writer) FlushThenStop(queue *writequeue.Queue, polledData any) {
	w.Flush(queue)
	w.Stop(polledData)
}

// DeleteAllFiles closes any open handles and removes the final file
// and (bounded mode) the entire in-progress directory. No further
// Writer method may be called afterward.
func (w *Writer) DeleteAllFiles() {
	closeFile(w.finalFile)
	w.finalFile = nil

	if w.isBounded() {
		closeFile(w.currentChunkFile)
		w.currentChunkFile = nil
		_ = os.RemoveAll(w.inprogressDir())
	}

	_ = os.Remove(w.finalLogPath)
}

// --- low-level file helpers -------------------------------------------------

func openForWrite(path string, m *metrics.Metrics) *os.File {
	f, err := os.Create(path)
	if err != nil {
		log.Printf("[WARN] failed opening %s: %v", path, err)
		if m != nil {
			atomic.AddInt64(&m.FileOpenErrorsTotal, 1)
		}
		return nil
	}
	return f
}

func closeFile(f *os.File) {
	if f != nil {
		_ = f.Close()
	}
}

// writeToFile concatenates and writes each non-empty chunk to file.
// file may be nil, in which case this is a silent no-op — spec.md
// §4.3.5's "subsequent WriteToFile on a null handle is a silent
// no-op." Returns the number of bytes actually written.
func writeToFile(file *os.File, chunks ...string) int {
	if file == nil {
		return 0
	}
	written := 0
	for _, c := range chunks {
		if c == "" {
			continue
		}
		n, err := file.WriteString(c)
		written += n
		if err != nil {
			log.Printf("[WARN] write failed: %v", err)
			break
		}
	}
	return written
}
