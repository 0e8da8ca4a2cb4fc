package session

import (
	"github.com/ghalamif/GridBench/internal/analysis"
	"github.com/ghalamif/GridBench/internal/domain"
)

// Compare lines up one channel of two sessions frame by frame.
func Compare(ref, test *domain.Session, key string) analysis.Comparison {
	return analysis.CompareSeries(ref.Series(key, 0), test.Series(key, 0))
}
