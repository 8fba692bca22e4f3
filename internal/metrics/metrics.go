// internal/metrics/metrics.go
package metrics

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Metrics is the set of counters that let an operator tell, from the
// outside, whether the observer pipeline is keeping up.
type Metrics struct {
	// ======================
	// Event-bus / observer level
	// ======================

	// EventsReceivedTotal counts every OnEvent call, regardless of
	// whether the entry encoded successfully.
	EventsReceivedTotal int64

	// EventsEncodeErrorsTotal counts entries dropped because the
	// JSON encoder rejected them (spec.md §7 error kind 1).
	EventsEncodeErrorsTotal int64

	// QueueDroppedEventsTotal counts events the write queue discarded
	// under its oldest-drop overflow policy (spec.md §7 error kind 3).
	QueueDroppedEventsTotal int64

	// QueueLengthCurrent is a gauge of the write queue's length at
	// the last push (a swap does not update it).
	QueueLengthCurrent int64

	// FlushTasksPostedTotal counts Flush tasks posted to the file
	// executor. Under the edge-triggered threshold design this should
	// track closely with EventsReceivedTotal / FlushThreshold.
	FlushTasksPostedTotal int64

	// ======================
	// HTTP ingestion level
	// ======================

	// HTTPRequestsTotal counts every request HandleEmit accepted past
	// its method, size and decode checks.
	HTTPRequestsTotal int64

	// HTTPRequestsAcceptedTotal counts requests whose decoded entry
	// reached Bus.Publish.
	HTTPRequestsAcceptedTotal int64

	// HTTPRequestsRejectedBodyTooLargeTotal counts requests rejected
	// for exceeding MaxBodySize.
	HTTPRequestsRejectedBodyTooLargeTotal int64

	// HTTPRequestsRejectedDecodeErrorTotal counts requests whose body
	// did not decode into a valid entry.
	HTTPRequestsRejectedDecodeErrorTotal int64

	// ======================
	// File writer level
	// ======================

	// ChunkRotationsTotal counts how many times the file writer
	// opened a new chunk file (bounded mode only).
	ChunkRotationsTotal int64

	// EventBytesWrittenTotal counts bytes written to chunk files or
	// the final file while streaming events (excludes prologue,
	// epilogue, and stitching copies).
	EventBytesWrittenTotal int64

	// FileOpenErrorsTotal counts failed opens of the final, a chunk,
	// constants, or closing file (spec.md §4.3.5 — the handle is left null and
	// writes become silent no-ops).
	FileOpenErrorsTotal int64

	// StitchesTotal counts completed Stitch runs.
	StitchesTotal int64

	// InprogressDirErrorsTotal counts failed CreateInprogressDirectory
	// calls (spec.md §7 error kind 4).
	InprogressDirErrorsTotal int64

	// ======================
	// Archive level
	// ======================

	ArchiveUploadsTotal       int64
	ArchiveUploadErrorsTotal  int64
	ArchiveDLQFilesCurrent    int64
	ArchiveDLQSizeBytes       int64
	ArchiveDLQFilesExpired    int64
	ArchiveDLQReuploadedTotal int64
}

func New() *Metrics {
	return &Metrics{}
}

func (m *Metrics) String() string {
	var sb strings.Builder
	sb.Grow(512)

	fmt.Fprintf(&sb, "events_received_total=%d\n", atomic.LoadInt64(&m.EventsReceivedTotal))
	fmt.Fprintf(&sb, "events_encode_errors_total=%d\n", atomic.LoadInt64(&m.EventsEncodeErrorsTotal))
	fmt.Fprintf(&sb, "queue_dropped_events_total=%d\n", atomic.LoadInt64(&m.QueueDroppedEventsTotal))
	fmt.Fprintf(&sb, "queue_length_current=%d\n", atomic.LoadInt64(&m.QueueLengthCurrent))
	fmt.Fprintf(&sb, "flush_tasks_posted_total=%d\n", atomic.LoadInt64(&m.FlushTasksPostedTotal))

	fmt.Fprintf(&sb, "http_requests_total=%d\n", atomic.LoadInt64(&m.HTTPRequestsTotal))
	fmt.Fprintf(&sb, "http_requests_accepted_total=%d\n", atomic.LoadInt64(&m.HTTPRequestsAcceptedTotal))
	fmt.Fprintf(&sb, "http_requests_rejected_body_too_large_total=%d\n", atomic.LoadInt64(&m.HTTPRequestsRejectedBodyTooLargeTotal))
	fmt.Fprintf(&sb, "http_requests_rejected_decode_error_total=%d\n", atomic.LoadInt64(&m.HTTPRequestsRejectedDecodeErrorTotal))

	fmt.Fprintf(&sb, "chunk_rotations_total=%d\n", atomic.LoadInt64(&m.ChunkRotationsTotal))
	fmt.Fprintf(&sb, "event_bytes_written_total=%d\n", atomic.LoadInt64(&m.EventBytesWrittenTotal))
	fmt.Fprintf(&sb, "file_open_errors_total=%d\n", atomic.LoadInt64(&m.FileOpenErrorsTotal))
	fmt.Fprintf(&sb, "stitches_total=%d\n", atomic.LoadInt64(&m.StitchesTotal))
	fmt.Fprintf(&sb, "inprogress_dir_errors_total=%d\n", atomic.LoadInt64(&m.InprogressDirErrorsTotal))

	fmt.Fprintf(&sb, "archive_uploads_total=%d\n", atomic.LoadInt64(&m.ArchiveUploadsTotal))
	fmt.Fprintf(&sb, "archive_upload_errors_total=%d\n", atomic.LoadInt64(&m.ArchiveUploadErrorsTotal))
	fmt.Fprintf(&sb, "archive_dlq_files_current=%d\n", atomic.LoadInt64(&m.ArchiveDLQFilesCurrent))
	fmt.Fprintf(&sb, "archive_dlq_size_bytes=%d\n", atomic.LoadInt64(&m.ArchiveDLQSizeBytes))
	fmt.Fprintf(&sb, "archive_dlq_files_expired_total=%d\n", atomic.LoadInt64(&m.ArchiveDLQFilesExpired))
	fmt.Fprintf(&sb, "archive_dlq_reuploaded_total=%d\n", atomic.LoadInt64(&m.ArchiveDLQReuploadedTotal))

	return sb.String()
}
