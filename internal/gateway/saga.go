package gateway

import (
	"context"
	"fmt"
	"log/slog"
)

// step is one stage of a cross-entity cascade. Compensate undoes the
// step's effect when a later stage fails; steps whose failure leaves
// nothing behind carry a nil compensator.
type step struct {
	name       string
	run        func(ctx context.Context) error
	compensate func(ctx context.Context) error
}

// saga runs a fixed ordered list of steps as one logical unit. On
// failure it compensates the completed steps in reverse so the caller
// observes either the whole cascade or none of it.
type saga struct {
	name   string
	logger *slog.Logger
	steps  []step
}

func newSaga(name string, logger *slog.Logger) *saga {
	return &saga{name: name, logger: logger}
}

func (s *saga) add(name string, run func(ctx context.Context) error, compensate func(ctx context.Context) error) {
	s.steps = append(s.steps, step{name: name, run: run, compensate: compensate})
}

func (s *saga) run(ctx context.Context) error {
	for i, st := range s.steps {
		if err := st.run(ctx); err != nil {
			s.rollback(ctx, i)
			return fmt.Errorf("%s: %s: %w", s.name, st.name, err)
		}
	}
	return nil
}

// rollback compensates steps [0, failed) in reverse order. A failed
// compensation is logged and skipped; later compensations still run so
// as much of the cascade as possible is undone.
func (s *saga) rollback(ctx context.Context, failed int) {
	for i := failed - 1; i >= 0; i-- {
		st := s.steps[i]
		if st.compensate == nil {
			continue
		}
		if err := st.compensate(ctx); err != nil {
			s.logger.Error("saga compensation failed",
				slog.String("saga", s.name),
				slog.String("step", st.name),
				slog.Any("error", err))
		}
	}
}
