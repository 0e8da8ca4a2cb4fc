package compliance

import (
	"testing"

	"github.com/ghalamif/GridBench/internal/domain"
)

func constantSession(n int, v, f float64) *domain.Session {
	s := &domain.Session{}
	for i := 0; i < n; i++ {
		s.Frames = append(s.Frames, domain.NewFrame(float64(i)*0.05, map[string]float64{
			domain.KeyVA: v, domain.KeyVB: v, domain.KeyVC: v, domain.KeyFrequency: f,
		}))
	}
	return s
}

func TestEvaluateNominalSessionPasses(t *testing.T) {
	res := Evaluate(constantSession(60, 120, 60))
	if len(res) != 3 {
		t.Fatalf("expected 3 rules, got %d", len(res))
	}
	for _, r := range res {
		if !r.Passed {
			t.Fatalf("rule %q failed: %s", r.Name, r.Details)
		}
	}
	if res[0].Details != "Min avg V=120.0" || res[1].Details != "Min/Max=60.00/60.00" {
		t.Fatalf("unexpected details: %+v", res)
	}
	if !Passed(res) {
		t.Fatalf("Passed should be true")
	}
}

func TestEvaluateDeepSagFailsRideThrough(t *testing.T) {
	res := Evaluate(constantSession(60, 50, 60))
	if res[0].Name != RuleRideThrough || res[0].Passed {
		t.Fatalf("expected ride-through failure, got %+v", res[0])
	}
	if res[2].Passed {
		t.Fatalf("expected recovery failure at 50V, got %+v", res[2])
	}
	if Passed(res) {
		t.Fatalf("Passed should be false")
	}
}

func TestEvaluateFrequencyBand(t *testing.T) {
	s := constantSession(40, 120, 60)
	s.Frames[10].Set(domain.KeyFrequency, 59.4)
	res := Evaluate(s)
	if res[1].Passed {
		t.Fatalf("expected frequency band failure")
	}
	if res[1].Details != "Min/Max=59.40/60.00" {
		t.Fatalf("unexpected details %q", res[1].Details)
	}
}

func TestEvaluateRecoveryIgnoresTrailingPartialWindow(t *testing.T) {
	s := constantSession(45, 120, 60)
	// Frames 40-44 form a partial window and are not checked.
	s.Frames[42].Set(domain.KeyVA, 0)
	s.Frames[42].Set(domain.KeyVB, 0)
	s.Frames[42].Set(domain.KeyVC, 0)
	res := Evaluate(s)
	if !res[2].Passed {
		t.Fatalf("trailing partial window must be ignored: %+v", res[2])
	}
	if res[0].Passed {
		t.Fatalf("ride-through still sees every frame")
	}
}

func TestEvaluateEmptySession(t *testing.T) {
	res := Evaluate(&domain.Session{})
	if len(res) != 1 || res[0].Name != RuleDataAvailability || res[0].Passed {
		t.Fatalf("unexpected result: %+v", res)
	}
	if Passed(res) {
		t.Fatalf("empty session must not pass")
	}
}
