// internal/config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Config holds every environment-derived value netlogd needs at
// startup. Values are loaded once in Load() and never mutated
// afterwards; the file executor and archiver both read from the same
// immutable Config passed down from main.
type Config struct {
	// ---------------------------
	// Observer / file writer
	// ---------------------------

	FinalLogPath   string        // path of the finished log file
	MaxTotalSize   int64         // 0 means unbounded mode
	ChunkCount     int           // ring size in bounded mode, default 10
	FlushThreshold int           // queue length that triggers a drain, default 15
	ServiceName    string
	InstanceID     string // falls back to a uuid if hostname lookup fails

	// ---------------------------
	// Demo event-bus HTTP front door
	// ---------------------------

	HTTPAddr    string
	MaxBodySize int64

	// TrustProxyHeaders decides whether clientIP honors
	// X-Forwarded-For at all. netlogd has no fixed deployment
	// topology the way the teacher's ALB/CloudFront-fronted ingest
	// server does — left false, RemoteAddr is the only thing trusted,
	// since a self-reported header is worse than no source_ip at all
	// when there is no reverse proxy guaranteed to set it.
	TrustProxyHeaders bool

	// ---------------------------
	// Archive (S3 + local retry dir)
	// ---------------------------

	ArchiveEnabled bool
	AWSRegion      string
	ArchiveBucket  string
	ArchivePrefix  string

	S3Timeout    time.Duration
	S3AppRetries int

	ArchiveDLQDir          string
	ArchiveDLQMaxAge       time.Duration
	ArchiveDLQMaxSizeBytes int64

	// ---------------------------
	// Logging
	// ---------------------------

	LogLevel   string
	LogPretty  bool
	LogSampleN uint32
}

// Load reads Config from the environment. Required values missing or
// malformed abort the process immediately (fail-fast) — consistent
// with how every other long-running daemon in this fleet starts up.
// Everything else defaults to values sane enough for a single-node
// deployment.
func Load() Config {
	return Config{
		FinalLogPath:   must("NETLOG_PATH"),
		MaxTotalSize:   envInt64("NETLOG_MAX_TOTAL_SIZE", 0),
		ChunkCount:     envInt("NETLOG_CHUNK_COUNT", 10),
		FlushThreshold: envInt("NETLOG_FLUSH_THRESHOLD", 15),
		ServiceName:    envOr("SERVICE_NAME", "netlogd"),
		InstanceID:     fallbackInstanceID(),

		HTTPAddr:          envOr("HTTP_ADDR", ":8080"),
		MaxBodySize:       envInt64("MAX_BODY_SIZE", 1<<20),
		TrustProxyHeaders: envBool("TRUST_PROXY_HEADERS", false),

		ArchiveEnabled: envBool("ARCHIVE_ENABLED", false),
		AWSRegion:      envOr("AWS_REGION", "us-east-1"),
		ArchiveBucket:  envOr("ARCHIVE_BUCKET", ""),
		ArchivePrefix:  envOr("ARCHIVE_PREFIX", "netlog"),

		S3Timeout:    envDur("S3_TIMEOUT", 5*time.Second),
		S3AppRetries: envInt("S3_APP_RETRIES", 3),

		ArchiveDLQDir:          envOr("ARCHIVE_DLQ_DIR", "./netlog-dlq"),
		ArchiveDLQMaxAge:       envDur("ARCHIVE_DLQ_MAX_AGE", 24*time.Hour),
		ArchiveDLQMaxSizeBytes: envInt64("ARCHIVE_DLQ_MAX_SIZE_BYTES", 256<<20),

		LogLevel:   envOr("LOG_LEVEL", "info"),
		LogPretty:  envBool("LOG_PRETTY", false),
		LogSampleN: uint32(envInt("LOG_SAMPLE_N", 1)),
	}
}

// must / envOr / envInt / envInt64 / envDur / envBool
//
// must aborts the process when a required key is missing — the
// pattern used anywhere a misconfigured deploy must not limp along
// silently. The env* helpers fill in a default for everything that has
// a reasonable one, matching spec.md's tunables table.
func must(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("missing required env: %s", key)
	}
	return v
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("invalid int env %s=%q: %v", key, v, err)
	}
	return n
}

func envInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Fatalf("invalid int64 env %s=%q: %v", key, v, err)
	}
	return n
}

func envDur(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("invalid duration env %s=%q: %v", key, v, err)
	}
	return d
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Fatalf("invalid bool env %s=%q: %v", key, v, err)
	}
	return b
}

// fallbackInstanceID identifies this netlogd process.
//   - default: hostname (stable across restarts on the same host)
//   - fallback: random uuid, when hostname lookup fails
func fallbackInstanceID() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return uuid.NewString()
}
