// internal/archiver/manager.go
package archiver

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"netlogd/internal/config"
	"netlogd/internal/metrics"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Manager ships finished log files to S3, gzip-compressed, falling
// back to a local retry directory on failure. It is purely additive
// to the observer/file-writer pipeline: Submit is only ever called
// with a path that Stop or Stitch has already finished writing, and
// Manager only ever reads that file, never mutates or deletes it
// (removal is the caller's business, if it wants it at all).
//
// Grounded on the teacher's Manager: a submit channel feeding a single
// consumer loop that uploads-or-DLQs, plus an idle-time DLQ drain so a
// quiet period gets used to work off backlog instead of sitting idle.
type Manager struct {
	cfg     config.Config
	metrics *metrics.Metrics
	client  *s3.Client
	dlq     *dlqStore

	submitCh chan string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	stopOnce sync.Once
}

// NewManager constructs a Manager. When cfg.ArchiveEnabled is false
// no S3 client is constructed and Submit becomes a silent no-op. The
// loop still runs over DLQ backlog left by a prior run: entries past
// cfg.ArchiveDLQMaxAge are expired, and every reupload attempt fails
// with errArchiveDisabled, so the rest stay on disk.
func NewManager(cfg config.Config, m *metrics.Metrics) *Manager {
	var client *s3.Client
	if cfg.ArchiveEnabled {
		client = newS3Client(cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	mgr := &Manager{
		cfg:      cfg,
		metrics:  m,
		client:   client,
		dlq:      newDLQStore(cfg, m),
		submitCh: make(chan string, 16),
		ctx:      ctx,
		cancel:   cancel,
	}

	mgr.wg.Add(1)
	go mgr.loop()
	return mgr
}

func newS3Client(cfg config.Config) *s3.Client {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO(), awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		log.Fatalf("[FATAL] archiver: failed to load AWS config: %v", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.RetryMaxAttempts = 0
	})
}

// Submit enqueues a finished log file for archival. Non-blocking: if
// the submit queue is full the file is dropped from this attempt and
// a warning logged — the caller (Observer's on_done callback, in
// practice) is never made to wait on S3.
func (mgr *Manager) Submit(finishedPath string) {
	if !mgr.cfg.ArchiveEnabled {
		return
	}
	select {
	case mgr.submitCh <- finishedPath:
	default:
		log.Printf("[WARN] archiver: submit queue full, dropping %s", finishedPath)
	}
}

// Shutdown stops accepting new submissions and waits for the loop
// goroutine to exit. In-flight work already picked off submitCh
// finishes; queued-but-unpicked submissions are lost, matching the
// teacher's Manager.Shutdown semantics for its upload queue.
func (mgr *Manager) Shutdown() {
	mgr.stopOnce.Do(func() {
		mgr.cancel()
		close(mgr.submitCh)
	})
	mgr.wg.Wait()
}

func (mgr *Manager) loop() {
	defer mgr.wg.Done()

	for {
		select {
		case <-mgr.ctx.Done():
			return

		case path, ok := <-mgr.submitCh:
			if !ok {
				return
			}
			mgr.process(path)

		default:
			mgr.dlq.processOneCtx(mgr.ctx, mgr.uploadReader)
			time.Sleep(50 * time.Millisecond)
		}
	}
}

// process gzips finishedPath and uploads it, falling back to the
// local DLQ when the upload fails. A gzip/read failure is only logged:
// no DLQ entry is written for it, and the original file is left on
// disk untouched.
func (mgr *Manager) process(finishedPath string) {
	data, err := gzipFile(finishedPath)
	if err != nil {
		log.Printf("[WARN] archiver: failed to gzip %s: %v", finishedPath, err)
		return
	}

	name := archiveFilename(mgr.cfg.InstanceID, filepath.Base(finishedPath))
	key := buildS3Key(mgr.cfg.ArchivePrefix, name)

	if err := mgr.uploadBytesWithRetry(mgr.ctx, key, data); err != nil {
		if err := mgr.dlq.save(data, name); err != nil {
			log.Printf("[ERROR] archiver: local DLQ save failed for %s: %v", finishedPath, err)
		}
		return
	}

	if mgr.metrics != nil {
		atomic.AddInt64(&mgr.metrics.ArchiveUploadsTotal, 1)
	}
}

// gzipFile reads path in full and returns its gzip-compressed bytes.
// Finished log files are bounded by max_total_size in bounded mode
// and are expected to be modest in unbounded mode too, so reading the
// whole file into memory before compressing it is the same tradeoff
// the teacher's Encoder makes for a batch of events.
func gzipFile(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	buf := getBuffer()
	defer putBuffer(buf)

	gz := getGzipWriter(buf)
	if _, err := gz.Write(raw); err != nil {
		putGzipWriter(gz)
		return nil, err
	}
	putGzipWriter(gz)

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// uploadReader adapts dlqStore's retry loop (which hands back an
// io.ReadSeeker for a file already on disk) onto the same retrying
// PutObject call process uses for in-memory bytes.
func (mgr *Manager) uploadReader(ctx context.Context, key string, r io.ReadSeeker, size int64) error {
	return mgr.uploadWithRetry(ctx, key, r, size)
}
