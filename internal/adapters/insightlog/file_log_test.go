package insightlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ghalamif/GridBench/internal/domain"
)

func TestFileLogWritesWholeLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "insights.json")
	l := NewFileLog(path)

	first := domain.Insight{Timestamp: 1, EventType: domain.InsightHarmonicBloom, Severity: domain.SeverityWarning, Message: "THD 7.0% exceeded 10%"}
	second := domain.Insight{Timestamp: 2, EventType: domain.InsightRecoveryDelay, Severity: domain.SeverityWarning}

	if err := l.WriteInsights([]domain.Insight{first}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := l.WriteInsights([]domain.Insight{first, second}); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	got, err := Read(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 2 || got[1].EventType != domain.InsightRecoveryDelay {
		t.Fatalf("unexpected log contents %+v", got)
	}

	raw, _ := os.ReadFile(path)
	if !strings.Contains(string(raw), `"insights"`) || !strings.Contains(string(raw), `"event_type": "Harmonic Bloom"`) {
		t.Fatalf("unexpected file shape:\n%s", raw)
	}
}

func TestFileLogClearWritesEmptyList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "insights.json")
	l := NewFileLog(path)
	if err := l.WriteInsights(nil); err != nil {
		t.Fatalf("write: %v", err)
	}
	raw, _ := os.ReadFile(path)
	if !strings.Contains(string(raw), `"insights": []`) {
		t.Fatalf("expected empty list, got %s", raw)
	}
}

func TestReadMissingFile(t *testing.T) {
	got, err := Read(filepath.Join(t.TempDir(), "none.json"))
	if err != nil || got != nil {
		t.Fatalf("expected empty log, got %v %v", got, err)
	}
}

func TestEmptyPathIsNoop(t *testing.T) {
	if err := NewFileLog("").WriteInsights([]domain.Insight{{}}); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
}
