package filewriter

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"netlogd/internal/writequeue"
)

func pushAll(q *writequeue.Queue, records ...string) {
	for _, r := range records {
		q.Push(r)
	}
}

// TestUnboundedThreeEvents reproduces spec.md §8 end-to-end scenario 1
// byte for byte.
func TestUnboundedThreeEvents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "netlog.json")

	w := New(path, Unbounded, 0, nil)
	w.Initialize(map[string]any{})

	q := writequeue.New(writequeue.Unbounded, nil)
	pushAll(q, `{"a":1}`, `{"a":2}`, `{"a":3}`)

	w.FlushThenStop(q, nil)

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read final log: %v", err)
	}

	want := "{\"constants\":{},\n\"events\": [\n{\"a\":1},\n{\"a\":2},\n{\"a\":3}]\n}\n"
	if string(got) != want {
		t.Fatalf("final log mismatch:\n got: %q\nwant: %q", got, want)
	}
}

func TestZeroEventsProducesEmptyEventsArray(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "netlog.json")

	w := New(path, Unbounded, 0, nil)
	w.Initialize(map[string]any{})
	w.Stop(nil)

	var parsed struct {
		Constants map[string]any   `json:"constants"`
		Events    []map[string]any `json:"events"`
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		t.Fatalf("final log did not parse as JSON: %v\ncontent: %s", err, raw)
	}
	if len(parsed.Events) != 0 {
		t.Fatalf("want empty events array, got %v", parsed.Events)
	}
	if strings.Contains(string(raw), `"polledData"`) {
		t.Fatalf("want no polledData key when absent, got %s", raw)
	}
}

func TestBoundedWrappedRing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "netlog.json")

	// N=3 chunks, each event rotates a new chunk (maxChunkBytes=0 means
	// every write crosses the soft limit immediately, forcing a new
	// chunk before the next write).
	w := New(path, 0, 3, nil)
	w.Initialize(map[string]any{})

	q := writequeue.New(writequeue.Unbounded, nil)
	for i := 1; i <= 7; i++ {
		q.Push(`{"n":` + strconv.Itoa(i) + `}`)
		w.Flush(q)
	}
	w.Stop(map[string]any{"k": "v"})

	var parsed struct {
		Events     []struct{ N int } `json:"events"`
		PolledData map[string]any   `json:"polledData"`
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		t.Fatalf("final log did not parse: %v\n%s", err, raw)
	}

	// file numbers 1..7 over 3 chunks; stitching window is [5,8) ->
	// events from fn 5, 6, 7 survive, in that order.
	if len(parsed.Events) != 3 {
		t.Fatalf("want 3 surviving events, got %d: %v", len(parsed.Events), parsed.Events)
	}
	for i, want := range []int{5, 6, 7} {
		if parsed.Events[i].N != want {
			t.Fatalf("event[%d] = %d, want %d", i, parsed.Events[i].N, want)
		}
	}
	if parsed.PolledData["k"] != "v" {
		t.Fatalf("want polledData to survive stitching, got %v", parsed.PolledData)
	}

	if _, err := os.Stat(path + ".inprogress"); !os.IsNotExist(err) {
		t.Fatalf("want in-progress directory removed after stitch")
	}
}

func TestChunkCountOneUsesSingleChunkFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "netlog.json")

	w := New(path, 50, 1, nil)
	w.Initialize(map[string]any{})

	q := writequeue.New(writequeue.Unbounded, nil)
	pushAll(q, `{"a":1}`, `{"a":2}`)
	w.Flush(q)
	w.Stop(nil)

	var parsed struct {
		Events []map[string]any `json:"events"`
	}
	raw, _ := os.ReadFile(path)
	if err := json.Unmarshal(raw, &parsed); err != nil {
		t.Fatalf("final log did not parse: %v\n%s", err, raw)
	}
	if len(parsed.Events) != 2 {
		t.Fatalf("want both events to survive a single-chunk ring, got %v", parsed.Events)
	}
}

func TestSoftLimitAllowsOneEventToOvershoot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "netlog.json")

	w := New(path, 10, 2, nil)
	w.Initialize(map[string]any{})

	q := writequeue.New(writequeue.Unbounded, nil)
	// One event far larger than the 10-byte soft limit; it should
	// still land entirely in a single chunk.
	big := `{"payload":"0123456789012345678901234567890123456789"}`
	q.Push(big)
	w.Flush(q)

	if w.fileNumber != 1 {
		t.Fatalf("want exactly one rotation for the first event, got fileNumber=%d", w.fileNumber)
	}
	if w.currentChunkBytes < int64(len(big)) {
		t.Fatalf("want the oversized event fully written into one chunk, got %d bytes", w.currentChunkBytes)
	}

	// The next event must trigger a new rotation since the soft limit
	// was already crossed.
	q.Push(`{"a":2}`)
	w.Flush(q)
	if w.fileNumber != 2 {
		t.Fatalf("want rotation before the next write, got fileNumber=%d", w.fileNumber)
	}
}

func TestStopIsIdempotentAfterSecondCall(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "netlog.json")

	w := New(path, Unbounded, 0, nil)
	w.Initialize(map[string]any{})
	w.Stop(nil)

	first, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	// Calling Stop again is a no-op in the sense that it must not
	// panic or corrupt the file further — finalFile is already nil.
	w.Stop(nil)

	second, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(first) != string(second) {
		t.Fatalf("second Stop call mutated the final file")
	}
}

func TestDeleteAllFilesLeavesNoArtifacts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "netlog.json")

	w := New(path, 100, 3, nil)
	w.Initialize(map[string]any{})

	q := writequeue.New(writequeue.Unbounded, nil)
	pushAll(q, `{"a":1}`, `{"a":2}`)
	w.Flush(q)

	w.DeleteAllFiles()

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("want final log removed")
	}
	if _, err := os.Stat(path + ".inprogress"); !os.IsNotExist(err) {
		t.Fatalf("want in-progress directory removed")
	}
}
