// internal/archiver/dlq.go
package archiver

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"netlogd/internal/config"
	"netlogd/internal/metrics"
)

// dlqStore holds gzip-compressed archive payloads that failed to
// upload, named so that lexicographic order equals upload order.
// Grounded on the teacher's DLQManager: same filename-prefix-timestamp
// ordering, the same capacity-bounded oldest-first eviction, and the
// same TTL-by-filename-prefix expiry, repointed at whole finished log
// files instead of raw event batches.
type dlqStore struct {
	cfg     config.Config
	metrics *metrics.Metrics

	sizeBytes int64
}

func newDLQStore(cfg config.Config, m *metrics.Metrics) *dlqStore {
	_ = os.MkdirAll(cfg.ArchiveDLQDir, 0o755)

	d := &dlqStore{cfg: cfg, metrics: m}

	entries, err := os.ReadDir(cfg.ArchiveDLQDir)
	if err != nil {
		return d
	}

	var total int64
	var count int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		total += info.Size()
		count++
	}
	d.sizeBytes = total
	if m != nil {
		atomic.AddInt64(&m.ArchiveDLQSizeBytes, total)
		atomic.AddInt64(&m.ArchiveDLQFilesCurrent, count)
	}
	return d
}

// save writes data to the DLQ directory under a timestamp-prefixed
// name derived from baseName, evicting the oldest entries first if
// doing so would exceed the configured capacity.
func (d *dlqStore) save(data []byte, baseName string) error {
	if len(data) == 0 {
		return nil
	}

	size := int64(len(data))
	if !d.ensureCapacity(size) {
		log.Printf("[ERROR] archiver DLQ full, dropping %s (%d bytes)", baseName, size)
		return nil
	}

	name := dlqFilename(baseName)
	path := filepath.Join(d.cfg.ArchiveDLQDir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}

	d.sizeBytes += size
	if d.metrics != nil {
		atomic.AddInt64(&d.metrics.ArchiveDLQSizeBytes, size)
		atomic.AddInt64(&d.metrics.ArchiveDLQFilesCurrent, 1)
	}
	return nil
}

// ensureCapacity evicts the oldest DLQ files until incoming more bytes
// would fit under cfg.ArchiveDLQMaxSizeBytes, or there is nothing left
// to evict.
func (d *dlqStore) ensureCapacity(incoming int64) bool {
	max := d.cfg.ArchiveDLQMaxSizeBytes
	if max <= 0 {
		return true
	}

	for d.sizeBytes+incoming > max {
		oldest := d.pickOldest()
		if oldest == "" {
			return false
		}

		path := filepath.Join(d.cfg.ArchiveDLQDir, oldest)
		if info, err := os.Stat(path); err == nil {
			d.sizeBytes -= info.Size()
			if d.metrics != nil {
				atomic.AddInt64(&d.metrics.ArchiveDLQSizeBytes, -info.Size())
			}
		}
		_ = os.Remove(path)
		if d.metrics != nil {
			atomic.AddInt64(&d.metrics.ArchiveDLQFilesCurrent, -1)
			atomic.AddInt64(&d.metrics.ArchiveDLQFilesExpired, 1)
		}
		log.Printf("[WARN] archiver DLQ capacity, removed %s", oldest)
	}
	return true
}

// uploader is the shape processOneCtx needs from Manager: something
// that can retry-upload a seekable file. Kept as a function type
// rather than an interface since Manager has exactly one method that
// matches and a mock in tests is just a func literal.
type uploader func(ctx context.Context, key string, r io.ReadSeeker, size int64) error

// processOneCtx retries the single oldest DLQ entry: expires it if
// past cfg.ArchiveDLQMaxAge, otherwise attempts one upload and removes
// the file on success.
func (d *dlqStore) processOneCtx(ctx context.Context, upload uploader) {
	select {
	case <-ctx.Done():
		return
	default:
	}

	name := d.pickOldest()
	if name == "" {
		return
	}

	path := filepath.Join(d.cfg.ArchiveDLQDir, name)
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	size := info.Size()

	if d.cfg.ArchiveDLQMaxAge > 0 {
		if sec, ok := unixFromFilename(name); ok {
			age := time.Since(time.Unix(sec, 0))
			if age > d.cfg.ArchiveDLQMaxAge {
				d.remove(path, size)
				if d.metrics != nil {
					atomic.AddInt64(&d.metrics.ArchiveDLQFilesExpired, 1)
				}
				log.Printf("[INFO] archiver DLQ entry expired: %s age=%s", name, age)
				return
			}
		}
	}

	f, err := os.Open(path)
	if err != nil {
		log.Printf("[WARN] archiver DLQ open failed: %s: %v", name, err)
		return
	}
	defer f.Close()

	key := buildS3Key(d.cfg.ArchivePrefix, name)
	if err := upload(ctx, key, f, size); err != nil {
		log.Printf("[WARN] archiver DLQ reupload failed: %s: %v", key, err)
		return
	}

	d.remove(path, size)
	if d.metrics != nil {
		atomic.AddInt64(&d.metrics.ArchiveDLQReuploadedTotal, 1)
	}
	log.Printf("[INFO] archiver DLQ reupload succeeded: %s", key)
}

func (d *dlqStore) remove(path string, size int64) {
	_ = os.Remove(path)
	d.sizeBytes -= size
	if d.metrics != nil {
		atomic.AddInt64(&d.metrics.ArchiveDLQSizeBytes, -size)
		atomic.AddInt64(&d.metrics.ArchiveDLQFilesCurrent, -1)
	}
}

// pickOldest returns the lexicographically (= chronologically, since
// filenames are timestamp-prefixed) first entry in the DLQ directory.
func (d *dlqStore) pickOldest() string {
	entries, err := os.ReadDir(d.cfg.ArchiveDLQDir)
	if err != nil {
		return ""
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		n := e.Name()
		if n == "" || n[0] == '.' || e.IsDir() {
			continue
		}
		names = append(names, n)
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)
	return names[0]
}

// unixFromFilename parses the leading "<unix>_" prefix off a DLQ
// filename.
func unixFromFilename(name string) (int64, bool) {
	idx := strings.IndexByte(name, '_')
	if idx <= 0 {
		return 0, false
	}
	sec, err := strconv.ParseInt(name[:idx], 10, 64)
	if err != nil || sec <= 0 {
		return 0, false
	}
	return sec, true
}
