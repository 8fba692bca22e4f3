// internal/filewriter/paths.go
package filewriter

import (
	"fmt"
	"path/filepath"
)

// Path derivations, grounded on spec.md §6's path table and the
// original FileWriter's GetInprogressDirectory/GetEventFilePath/
// GetConstantsFilePath/GetClosingFilePath.

func (w *Writer) inprogressDir() string {
	return w.finalLogPath + ".inprogress"
}

func (w *Writer) eventFilePath(index int) string {
	return filepath.Join(w.inprogressDir(), fmt.Sprintf("event_file_%d.json", index))
}

func (w *Writer) constantsFilePath() string {
	return filepath.Join(w.inprogressDir(), "constants.json")
}

func (w *Writer) closingFilePath() string {
	return filepath.Join(w.inprogressDir(), "end_netlog.json")
}

// fileNumberToIndex maps a monotonic, 1-based file number onto a
// bounded ring slot. spec.md §3 / §4.3.4: keeping the number separate
// from the index is what lets Stitch know, unambiguously, which
// indices are still live when logging stops.
func fileNumberToIndex(fileNumber int64, chunkCount int) int {
	if fileNumber <= 0 {
		panic("fileNumberToIndex: file numbers start at 1")
	}
	return int((fileNumber - 1) % int64(chunkCount))
}
