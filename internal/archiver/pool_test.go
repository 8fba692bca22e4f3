package archiver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBufferPoolReuseResetsContents(t *testing.T) {
	buf := getBuffer()
	buf.WriteString("leftover")
	putBuffer(buf)

	again := getBuffer()
	require.Equal(t, 0, again.Len(), "want a freshly Reset buffer out of the pool")
}

func TestOversizedBufferSkipsThePool(t *testing.T) {
	big := getBuffer()
	big.Grow(maxPooledBufferCap + 1)
	putBuffer(big)

	// The oversized buffer must not have gone back into the pool: any
	// buffer Get() hands back either came from New() (default 256KB
	// cap) or from a prior Put that was itself within the cap.
	fresh := getBuffer()
	require.LessOrEqual(t, fresh.Cap(), maxPooledBufferCap, "want oversized buffer discarded instead of pooled")
}

func TestGzipWriterPoolRoundTrips(t *testing.T) {
	buf := getBuffer()
	defer putBuffer(buf)

	gz := getGzipWriter(buf)
	_, err := gz.Write([]byte("hello"))
	require.NoError(t, err)
	putGzipWriter(gz)

	require.NotZero(t, buf.Len(), "want compressed bytes written to buf")
}
