package insightlog

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/ghalamif/GridBench/internal/domain"
)

type document struct {
	Insights []domain.Insight `json:"insights"`
}

// FileLog persists the detector's full insight log as {"insights":[...]}.
// Each write replaces the file through a temp file and rename.
type FileLog struct {
	path string
	sync bool
}

func NewFileLog(path string) *FileLog {
	return &FileLog{path: path, sync: true}
}

func (l *FileLog) Path() string { return l.path }

func (l *FileLog) WriteInsights(insights []domain.Insight) error {
	if l.path == "" {
		return nil
	}
	if insights == nil {
		insights = []domain.Insight{}
	}
	return writeJSONAtomic(l.path, document{Insights: insights}, l.sync)
}

// Read loads an insight log. A missing file is an empty log.
func Read(path string) ([]domain.Insight, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc.Insights, nil
}

func writeJSONAtomic(path string, v any, doSync bool) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	f, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()

	success := false
	defer func() {
		if !success {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	if doSync {
		if err := f.Sync(); err != nil {
			return err
		}
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return err
	}
	success = true
	return nil
}
