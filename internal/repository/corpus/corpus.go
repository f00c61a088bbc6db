// Package corpus reads the recorded dialogue datasets raters grade.
// Each culture maps to one JSON array or JSONL file.
package corpus

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/msomdec/care-practice/internal/domain"
)

// Dataset binds a culture label to a corpus file.
type Dataset struct {
	Culture string
	File    string
}

// Store implements domain.CorpusSource over files on disk. Files are
// parsed once and cached.
type Store struct {
	datasets []Dataset

	mu    sync.Mutex
	cache map[string][]domain.CorpusItem
}

// NewStore creates a Store over the datasets, keeping their order.
func NewStore(datasets []Dataset) *Store {
	return &Store{
		datasets: datasets,
		cache:    make(map[string][]domain.CorpusItem),
	}
}

func (s *Store) Cultures() []string {
	out := make([]string, len(s.datasets))
	for i, d := range s.datasets {
		out[i] = d.Culture
	}
	return out
}

func (s *Store) DatasetFile(culture string) (string, error) {
	for _, d := range s.datasets {
		if d.Culture == culture {
			return d.File, nil
		}
	}
	return "", fmt.Errorf("%w: culture %q is not configured", domain.ErrNotFound, culture)
}

func (s *Store) Items(ctx context.Context, culture string) ([]domain.CorpusItem, error) {
	file, err := s.DatasetFile(culture)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if items, ok := s.cache[culture]; ok {
		return items, nil
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read corpus %s: %w", file, err)
	}
	items, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse corpus %s: %w", file, err)
	}
	slog.Info("corpus loaded", "culture", culture, "file", file, "items", len(items))
	s.cache[culture] = items
	return items, nil
}

// Parse reads a JSON array or JSONL document of dialogue sessions.
// Empty turns are dropped, consecutive duplicate turns collapsed and
// sessions left without turns skipped. A session without an id gets one
// derived from its turns, so its position in the file never becomes its
// identity; a repeat of an already seen id-less session is skipped.
func Parse(data []byte) ([]domain.CorpusItem, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	var records []map[string]any
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("decode json array: %w", err)
		}
	} else {
		sc := bufio.NewScanner(bytes.NewReader(trimmed))
		sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		line := 0
		for sc.Scan() {
			line++
			text := strings.TrimSpace(sc.Text())
			if text == "" {
				continue
			}
			var rec map[string]any
			if err := json.Unmarshal([]byte(text), &rec); err != nil {
				return nil, fmt.Errorf("decode line %d: %w", line, err)
			}
			records = append(records, rec)
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("scan jsonl: %w", err)
		}
	}

	var items []domain.CorpusItem
	derived := make(map[string]bool)
	for i, rec := range records {
		item := domain.CorpusItem{ID: recordID(rec), Turns: recordTurns(rec)}
		if len(item.Turns) == 0 {
			continue
		}
		if item.ID == "" {
			item.ID = contentID(item.Turns)
			if derived[item.ID] {
				slog.Warn("corpus record repeats an earlier session, skipped", "record", i, "id", item.ID)
				continue
			}
			derived[item.ID] = true
			slog.Warn("corpus record has no id, derived from content", "record", i, "id", item.ID)
		}
		items = append(items, item)
	}
	return items, nil
}

// contentID hashes the cleaned turns into a stable item id.
func contentID(turns []domain.Utterance) string {
	h := sha256.New()
	for _, u := range turns {
		h.Write([]byte(u.Speaker))
		h.Write([]byte{0})
		h.Write([]byte(u.Text))
		h.Write([]byte{0})
	}
	return "sha-" + hex.EncodeToString(h.Sum(nil))[:16]
}

func recordID(rec map[string]any) string {
	for _, key := range []string{"session_id", "id", "dialogue_id"} {
		switch v := rec[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func recordTurns(rec map[string]any) []domain.Utterance {
	var raw []any
	for _, key := range []string{"turns", "dialogue", "messages", "utterances"} {
		if list, ok := rec[key].([]any); ok {
			raw = list
			break
		}
	}

	var out []domain.Utterance
	for _, t := range raw {
		m, ok := t.(map[string]any)
		if !ok {
			continue
		}
		text := strings.TrimSpace(firstString(m, "text", "content", "utterance"))
		if text == "" {
			continue
		}
		u := domain.Utterance{
			Speaker: domain.NormalizeSpeaker(firstString(m, "role", "speaker")),
			Text:    text,
		}
		if n := len(out); n > 0 && out[n-1] == u {
			continue
		}
		out = append(out, u)
	}
	return out
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
