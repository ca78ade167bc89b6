package llm

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Usage is one ledger line of token consumption.
type Usage struct {
	Timestamp        time.Time `json:"ts"`
	Task             string    `json:"task"`
	Epic             string    `json:"epic"`
	Model            string    `json:"model"`
	PromptTokens     int64     `json:"prompt_tokens"`
	CompletionTokens int64     `json:"completion_tokens"`
	TotalTokens      int64     `json:"total_tokens"`
}

// UsageLog appends Usage records as JSON lines. A nil UsageLog discards them.
type UsageLog struct {
	mu   sync.Mutex
	path string
}

func NewUsageLog(path string) *UsageLog {
	if path == "" {
		return nil
	}
	return &UsageLog{path: path}
}

func (l *UsageLog) Record(u Usage) error {
	if l == nil {
		return nil
	}
	line, err := json.Marshal(u)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("create usage log dir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open usage log: %w", err)
	}
	defer f.Close()
	_, err = f.Write(append(line, '\n'))
	return err
}
