// internal/archiver/s3.go
package archiver

import (
	"bytes"
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// uploadBytesWithRetry uploads an in-memory gzip payload, retrying
// with exponential backoff up to cfg.S3AppRetries times. Grounded on
// the teacher's S3Uploader.UploadBytesWithRetryCtx.
func (mgr *Manager) uploadBytesWithRetry(ctx context.Context, key string, body []byte) error {
	return mgr.retryingPut(ctx, key, func() io.ReadSeeker { return bytes.NewReader(body) }, int64(len(body)))
}

// uploadWithRetry uploads from an existing ReadSeeker (a DLQ file
// already on disk), rewinding between attempts. Grounded on the
// teacher's S3Uploader.UploadFileWithRetryCtx.
func (mgr *Manager) uploadWithRetry(ctx context.Context, key string, r io.ReadSeeker, size int64) error {
	return mgr.retryingPut(ctx, key, func() io.ReadSeeker {
		_, _ = r.Seek(0, io.SeekStart)
		return r
	}, size)
}

func (mgr *Manager) retryingPut(ctx context.Context, key string, body func() io.ReadSeeker, size int64) error {
	if mgr.client == nil {
		return errArchiveDisabled
	}

	var lastErr error
	backoff := 200 * time.Millisecond

	attempts := mgr.cfg.S3AppRetries
	if attempts <= 0 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := mgr.putObject(ctx, key, body(), size); err == nil {
			return nil
		} else {
			lastErr = err
			if mgr.metrics != nil {
				atomic.AddInt64(&mgr.metrics.ArchiveUploadErrorsTotal, 1)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
			if backoff > 2*time.Second {
				backoff = 2 * time.Second
			}
		}
	}

	return lastErr
}

func (mgr *Manager) putObject(ctx context.Context, key string, body io.Reader, size int64) error {
	ctx2, cancel := context.WithTimeout(ctx, mgr.cfg.S3Timeout)
	defer cancel()

	_, err := mgr.client.PutObject(ctx2, &s3.PutObjectInput{
		Bucket:        aws.String(mgr.cfg.ArchiveBucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
	})
	return err
}
