package session

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ghalamif/GridBench/internal/domain"
	"github.com/ghalamif/GridBench/internal/ports"
)

// RecorderConfig says where finished sessions go and how they are encoded.
type RecorderConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
	Format  string `yaml:"format"` // json, gz, zst
}

func (c *RecorderConfig) ApplyDefaults() {
	if c.Dir == "" {
		c.Dir = "data/sessions"
	}
	if c.Format == "" {
		c.Format = "json"
	}
}

func (c RecorderConfig) Validate() error {
	switch c.Format {
	case "json", "gz", "zst":
		return nil
	default:
		return fmt.Errorf("recorder.format must be json, gz or zst, got %q", c.Format)
	}
}

func (c RecorderConfig) extension() string {
	switch c.Format {
	case "gz":
		return ".json.gz"
	case "zst":
		return ".json.zst"
	default:
		return ".json"
	}
}

// Recorder buffers frames and timeline events between Start and Stop and
// writes them out as one session capsule. It doubles as a frame sink so the
// ingest pipeline can feed it directly.
type Recorder struct {
	mu        sync.Mutex
	cfg       RecorderConfig
	now       func() time.Time
	recording bool
	meta      domain.SessionMeta
	frames    []*domain.Frame
	events    []domain.Event
}

func NewRecorder(cfg RecorderConfig) *Recorder {
	cfg.ApplyDefaults()
	return &Recorder{cfg: cfg, now: time.Now}
}

// Start begins a new capture, discarding anything buffered. It returns the
// session id.
func (r *Recorder) Start(scenario string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	started := r.now()
	r.recording = true
	r.frames = nil
	r.events = nil
	r.meta = domain.SessionMeta{
		SessionID: "session_" + started.Format("20060102_150405"),
		RunID:     uuid.NewString(),
		StartTime: float64(started.UnixNano()) / 1e9,
		Scenario:  scenario,
	}
	log.Printf("recorder: started %s run=%s", r.meta.SessionID, r.meta.RunID)
	return r.meta.SessionID
}

func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// LogFrame appends f while recording; otherwise it is a no-op.
func (r *Recorder) LogFrame(f *domain.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recording && f != nil {
		r.frames = append(r.frames, f)
		if r.meta.Source == "" {
			r.meta.Source = f.Source
		}
	}
}

// LogEvent appends a timeline event while recording.
func (r *Recorder) LogEvent(ev domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return
	}
	r.events = append(r.events, ev)
}

// Stop ends the capture and writes it to disk, returning the file path.
// Stop on an idle recorder returns "" and no error.
func (r *Recorder) Stop() (string, error) {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return "", nil
	}
	r.recording = false
	meta := r.meta
	meta.EndTime = float64(r.now().UnixNano()) / 1e9
	meta.FrameCount = len(r.frames)
	s := &domain.Session{Meta: meta, Events: r.events, Frames: r.frames}
	r.frames = nil
	r.events = nil
	r.mu.Unlock()

	path := filepath.Join(r.cfg.Dir, meta.SessionID+r.cfg.extension())
	if err := Save(path, s); err != nil {
		return "", fmt.Errorf("save session %s: %w", meta.SessionID, err)
	}
	log.Printf("recorder: saved %d frames to %s", meta.FrameCount, path)
	return path, nil
}

func (r *Recorder) WriteBatch(frames []*domain.Frame) error {
	for _, f := range frames {
		r.LogFrame(f)
	}
	return nil
}

func (r *Recorder) Name() string { return "recorder" }

var _ ports.Sink = (*Recorder)(nil)
