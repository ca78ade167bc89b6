package logging

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// FailureLog appends one line per failed unit of work so it can be re-run in isolation.
type FailureLog struct {
	mu   sync.Mutex
	path string
}

func NewFailureLog(path string) *FailureLog {
	return &FailureLog{path: path}
}

// Record writes "<timestamp>\t<unit>\t<phase>\t<reason>".
func (f *FailureLog) Record(unit, phase, reason string) error {
	if f == nil || f.path == "" {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open failure log: %w", err)
	}
	defer file.Close()

	reason = strings.ReplaceAll(reason, "\n", " ")
	_, err = fmt.Fprintf(file, "%s\t%s\t%s\t%s\n", time.Now().UTC().Format(time.RFC3339), unit, phase, reason)
	return err
}
