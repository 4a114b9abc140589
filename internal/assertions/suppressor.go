package assertions

import (
	"go.uber.org/zap"

	"github.com/xkilldash9x/bugscan/api/schemas"
	"github.com/xkilldash9x/bugscan/internal/analysis/core"
)

// Suppressor vetoes findings of suppressed kinds or below a minimum rank. It
// holds no per-method state and may be shared between workers.
type Suppressor struct {
	kinds   map[string]struct{}
	minRank int
	logger  *zap.Logger
}

// NewSuppressor builds a suppressor from configured kind names and rank floor.
func NewSuppressor(kinds []string, minRank int, logger *zap.Logger) *Suppressor {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Suppressor{
		kinds:   make(map[string]struct{}, len(kinds)),
		minRank: minRank,
		logger:  logger.Named("suppressor"),
	}
	for _, k := range kinds {
		s.kinds[k] = struct{}{}
	}
	return s
}

func (s *Suppressor) CheckFinding(f schemas.Finding) bool {
	if _, suppressed := s.kinds[f.Kind.Name]; suppressed {
		s.logger.Debug("Suppressed finding kind", zap.String("kind", f.Kind.Name))
		return false
	}
	if f.Rank < s.minRank {
		s.logger.Debug("Finding below minimum rank",
			zap.String("kind", f.Kind.Name), zap.Int("rank", f.Rank), zap.Int("min_rank", s.minRank))
		return false
	}
	return true
}

// Chain runs checkers in order and stops at the first veto. Checkers that
// implement core.MethodFinisher are all finished, in order.
type Chain []core.Checker

func (c Chain) CheckFinding(f schemas.Finding) bool {
	for _, checker := range c {
		if checker != nil && !checker.CheckFinding(f) {
			return false
		}
	}
	return true
}

func (c Chain) FinishMethod() {
	for _, checker := range c {
		if f, ok := checker.(core.MethodFinisher); ok {
			f.FinishMethod()
		}
	}
}
