// internal/archiver/filenames.go
package archiver

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Filenames are <unix>_<rest>, the same scheme the teacher's ingest
// pipeline uses for its own DLQ: lexicographic sort over the whole
// directory then equals chronological order, with no extra index
// needed to find "the oldest entry."

var counter uint64

func nextCounter() uint64 {
	return atomic.AddUint64(&counter, 1) % 1_000_000
}

// archiveFilename names the gzip payload uploaded for a finished log
// file: <unix>_<instanceID>_<counter>_<baseName>.gz.
func archiveFilename(instanceID, baseName string) string {
	return fmt.Sprintf("%d_%s_%06d_%s.gz", time.Now().Unix(), instanceID, nextCounter(), baseName)
}

// dlqFilename re-stamps a name that already carries an
// archiveFilename-shaped base so a DLQ save always sorts by the time
// it landed in the DLQ, not the time it was first archived.
func dlqFilename(baseName string) string {
	return fmt.Sprintf("%d_%06d_%s", time.Now().Unix(), nextCounter(), baseName)
}

// buildS3Key partitions archive objects the same way the teacher
// partitions raw/DLQ objects, by UTC date and hour, to keep prefix
// scans cheap for any downstream Athena/Glue-style catalog.
func buildS3Key(prefix, filename string) string {
	now := time.Now().UTC()
	return fmt.Sprintf("%s/dt=%s/hr=%s/%s", prefix, now.Format("2006-01-02"), now.Format("15"), filename)
}
