package coordinator

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

// FileReporter writes every anomaly line both to stdout and appended to a
// log file on disk, plus a structured warning through Logger — the
// "print to stdout and append to lnrc.log" behaviour report() implements
// in outer_loop.cpp. Appends are serialized by mu because the reporter can
// be called from the owner goroutine only, but the file handle is also
// reused by any later analysis tooling that tails it concurrently.
type FileReporter struct {
	mu     sync.Mutex
	file   io.Writer
	logger *log.Logger
}

// NewFileReporter opens (or creates) path in append mode and returns a
// Reporter that writes the "<tag> 0x<16hex><16hex>" line schema to it.
func NewFileReporter(path string, logger *log.Logger) (*FileReporter, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileReporter{file: f, logger: logger}, nil
}

// Report implements Reporter.
func (r *FileReporter) Report(frameType uint8, n uint64) {
	line := fmt.Sprintf("%s 0x%016x%016x\n", tagFor(frameType), uint64(0), n)

	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Print(line)
	if _, err := io.WriteString(r.file, line); err != nil && r.logger != nil {
		r.logger.Error("failed to append to lnrc.log", "err", err)
	}
	if r.logger != nil {
		r.logger.Warn("counterexample candidate", "tag", tagFor(frameType), "n", n)
	}
}
