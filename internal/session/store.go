// Package session loads, saves, checks and records bench session files.
//
// A session file is the JSON capsule {meta, events, frames}. Files ending in
// .gz are gzip-compressed and files ending in .zst are zstd-compressed.
package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/ghalamif/GridBench/internal/domain"
)

var (
	ErrMissingFrames = errors.New("missing 'frames' field")
	ErrFramesNotList = errors.New("'frames' is not a list")
	ErrNoFrames      = errors.New("no frames to replay")
	ErrNullFrame     = errors.New("null frame entry")
)

type codec int

const (
	codecPlain codec = iota
	codecGzip
	codecZstd
)

func codecFor(path string) codec {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		return codecGzip
	case ".zst", ".zstd":
		return codecZstd
	default:
		return codecPlain
	}
}

// Load reads and structurally validates a session file.
func Load(path string) (*domain.Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	switch codecFor(path) {
	case codecGzip:
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("session %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	case codecZstd:
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("session %s: %w", path, err)
		}
		defer zr.Close()
		r = zr
	}

	s, err := Decode(r)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", path, err)
	}
	return s, nil
}

// Decode parses a session capsule, rejecting captures with no frames list.
func Decode(r io.Reader) (*domain.Session, error) {
	var raw struct {
		Meta   domain.SessionMeta `json:"meta"`
		Events []domain.Event     `json:"events"`
		Frames json.RawMessage    `json:"frames"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid session JSON: %w", err)
	}

	frames := bytes.TrimSpace(raw.Frames)
	if len(frames) == 0 || bytes.Equal(frames, []byte("null")) {
		return nil, ErrMissingFrames
	}
	if frames[0] != '[' {
		return nil, ErrFramesNotList
	}

	s := &domain.Session{Meta: raw.Meta, Events: raw.Events}
	if err := json.Unmarshal(frames, &s.Frames); err != nil {
		return nil, fmt.Errorf("decode frames: %w", err)
	}
	if len(s.Frames) == 0 {
		return nil, ErrNoFrames
	}
	for i, f := range s.Frames {
		if f == nil {
			return nil, fmt.Errorf("frame %d: %w", i, ErrNullFrame)
		}
	}
	return s, nil
}

// Save writes s to path through a temp file and rename.
func Save(path string, s *domain.Session) error {
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

	if err := encode(f, codecFor(path), s); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
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

func encode(w io.Writer, c codec, s *domain.Session) error {
	switch c {
	case codecGzip:
		gz := gzip.NewWriter(w)
		if err := writeJSON(gz, s, false); err != nil {
			_ = gz.Close()
			return err
		}
		return gz.Close()
	case codecZstd:
		zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return err
		}
		if err := writeJSON(zw, s, false); err != nil {
			_ = zw.Close()
			return err
		}
		return zw.Close()
	default:
		return writeJSON(w, s, true)
	}
}

func writeJSON(w io.Writer, s *domain.Session, indent bool) error {
	if s.Events == nil {
		s.Events = []domain.Event{}
	}
	if s.Frames == nil {
		s.Frames = []*domain.Frame{}
	}
	enc := json.NewEncoder(w)
	if indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(s)
}
