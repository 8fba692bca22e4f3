// internal/filewriter/stitch.go
package filewriter

import (
	"io"
	"log"
	"os"
	"sync/atomic"
)

// stitchReadBufferSize bounds how much of a source file is held in
// memory at once while copying it into the final file.
const stitchReadBufferSize = 64 * 1024

// stitchFinalLogFile assembles the final log from the prologue
// (constants.json), the live chunk window in ring-age order, and the
// epilogue (end_netlog.json), deleting each source file as it is
// consumed. See spec.md §4.3.3.
func (w *Writer) stitchFinalLogFile() {
	closeFile(w.currentChunkFile)
	w.currentChunkFile = nil

	buf := make([]byte, stitchReadBufferSize)

	// Re-open (truncating) the final file, replacing the placeholder
	// written at Initialize.
	w.finalFile = openForWrite(w.finalLogPath, w.metrics)

	appendToFileThenDelete(w.constantsFilePath(), w.finalFile, buf)

	begin, end := w.liveChunkWindow()
	for fn := begin; fn < end; fn++ {
		index := fileNumberToIndex(fn, w.chunkCount)
		appendToFileThenDelete(w.eventFilePath(index), w.finalFile, buf)
	}

	w.rewindIfWroteEventBytes(w.finalFile)

	appendToFileThenDelete(w.closingFilePath(), w.finalFile, buf)

	if err := os.RemoveAll(w.inprogressDir()); err != nil {
		log.Printf("[WARN] failed removing in-progress directory %s: %v", w.inprogressDir(), err)
	}

	if w.metrics != nil {
		atomic.AddInt64(&w.metrics.StitchesTotal, 1)
	}
}

// liveChunkWindow returns the half-open [begin, end) range of file
// numbers still live on disk, oldest to newest. spec.md §4.3.3 step 5
// / §4.3.4: file numbers never wrap, so whether the ring has wrapped
// is determined purely by comparing fileNumber against chunkCount.
func (w *Writer) liveChunkWindow() (begin, end int64) {
	end = w.fileNumber + 1
	if w.fileNumber <= int64(w.chunkCount) {
		begin = 1
	} else {
		begin = end - int64(w.chunkCount)
	}
	return begin, end
}

// appendToFileThenDelete copies all of sourcePath's contents onto the
// end of dest, then removes sourcePath. A missing or unopenable source
// (spec.md §4.3.5 — earlier creation failed) is a silent no-op, not an
// error: the rest of stitching still has to run to completion.
func appendToFileThenDelete(sourcePath string, dest *os.File, buf []byte) {
	src, err := os.Open(sourcePath)
	if err != nil {
		return
	}
	defer src.Close()

	for {
		n, rerr := src.Read(buf)
		if n > 0 && dest != nil {
			if _, werr := dest.Write(buf[:n]); werr != nil {
				log.Printf("[WARN] write failed during stitch: %v", werr)
				break
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			log.Printf("[WARN] failed reading %s during stitch: %v", sourcePath, rerr)
			break
		}
	}

	src.Close()
	_ = os.Remove(sourcePath)
}
