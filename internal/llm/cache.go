package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// CachedSummarizer stores qualitative results under the hash of their excerpt, so an unchanged
// hierarchy is never sent to the model twice.
type CachedSummarizer struct {
	next Summarizer
	dir  string
}

func NewCachedSummarizer(next Summarizer, dir string) *CachedSummarizer {
	return &CachedSummarizer{next: next, dir: dir}
}

func (c *CachedSummarizer) path(ex Excerpt) string {
	return filepath.Join(c.dir, fmt.Sprintf("%s_%016x.json", ex.EpicKey, ex.Hash()))
}

func (c *CachedSummarizer) Summarize(ctx context.Context, ex Excerpt) (*Qualitative, error) {
	path := c.path(ex)
	if data, err := os.ReadFile(path); err == nil {
		var q Qualitative
		if err := json.Unmarshal(data, &q); err == nil {
			log.Debug().Str("epic", ex.EpicKey).Str("path", path).Msg("Qualitative cache hit")
			return &q, nil
		}
		log.Warn().Str("path", path).Msg("Ignoring corrupt qualitative cache entry")
	} else if !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("path", path).Msg("Failed to read qualitative cache")
	}

	q, err := c.next.Summarize(ctx, ex)
	if err != nil {
		return nil, err
	}
	if err := c.store(path, q); err != nil {
		log.Warn().Err(err).Str("epic", ex.EpicKey).Msg("Failed to cache qualitative summary")
	}
	return q, nil
}

func (c *CachedSummarizer) store(path string, q *Qualitative) error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(q, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
