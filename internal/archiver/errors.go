// internal/archiver/errors.go
package archiver

import "errors"

// errArchiveDisabled is returned by an upload attempt made while no
// S3 client was constructed (cfg.ArchiveEnabled was false at startup).
// It only ever surfaces internally — Submit already no-ops in that
// case — but dlqStore.processOneCtx can still be draining a backlog
// left over from a run where archiving was enabled, so the upload
// path itself must stay defensive.
var errArchiveDisabled = errors.New("archiver: no S3 client configured")
