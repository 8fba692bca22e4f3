// internal/logger/log.go
package logger

import (
	"io"
	"os"
	"strings"

	"netlogd/internal/config"

	stdlog "log"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// Init configures the global zerolog logger once at process startup.
// Config decides whether output is console-pretty (local dev) or
// structured JSON (everywhere else), and whether chatty levels get
// sampled down. Warn/Error are never sampled — those are exactly the
// non-fatal-but-noteworthy failures spec.md §7 describes (encode
// failure, I/O failure, overflow drop, directory-creation failure),
// and they must never be silently thinned out.
//
// Every log line also carries netlog_mode ("bounded"/"unbounded") and
// archive_enabled, computed once from cfg — every operator-facing log
// line already tells you which rotation regime and archive path
// produced it, without grepping for it in the surrounding lines.
func Init(cfg config.Config) {
	level := zerolog.InfoLevel
	if l, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.LogLevel))); err == nil {
		level = l
	}
	zerolog.SetGlobalLevel(level)

	var w io.Writer
	if cfg.LogPretty {
		w = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		}
	} else {
		w = os.Stdout
	}

	mode := "bounded"
	if cfg.MaxTotalSize <= 0 {
		mode = "unbounded"
	}

	base := zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", cfg.ServiceName).
		Str("instance", cfg.InstanceID).
		Str("netlog_mode", mode).
		Bool("archive_enabled", cfg.ArchiveEnabled).
		Logger()

	logger := base
	if cfg.LogSampleN > 1 {
		logger = base.Sample(&zerolog.LevelSampler{
			DebugSampler: &zerolog.BasicSampler{N: cfg.LogSampleN},
			InfoSampler:  &zerolog.BasicSampler{N: cfg.LogSampleN},
		})
	}

	zlog.Logger = logger

	stdlog.SetFlags(0)
	stdlog.SetOutput(bracketLevelWriter{logger: logger})
}

// bracketLevelWriter routes lines written through the standard `log`
// package to the right zerolog level by reading the "[LEVEL]" prefix
// every call site in this repository already writes (observer,
// filewriter, and archiver all log "[WARN] ...", "[ERROR] ...", and
// so on). Without this, every one of those lines would land at
// whatever level zerolog.Logger.Write defaults to, silently
// defeating cfg.LogLevel filtering and the no-sampling-on-Warn/Error
// guarantee Init otherwise promises.
type bracketLevelWriter struct {
	logger zerolog.Logger
}

func (lw bracketLevelWriter) Write(p []byte) (int, error) {
	msg := strings.TrimRight(string(p), "\n")

	level := zerolog.InfoLevel
	for prefix, lv := range bracketLevels {
		if strings.HasPrefix(msg, prefix) {
			level = lv
			msg = strings.TrimSpace(msg[len(prefix):])
			break
		}
	}

	lw.logger.WithLevel(level).Msg(msg)
	return len(p), nil
}

var bracketLevels = map[string]zerolog.Level{
	"[DEBUG]": zerolog.DebugLevel,
	"[INFO]":  zerolog.InfoLevel,
	"[WARN]":  zerolog.WarnLevel,
	"[ERROR]": zerolog.ErrorLevel,
	"[FATAL]": zerolog.FatalLevel,
}
