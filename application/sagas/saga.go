// Package sagas provides multi-step orchestration with compensation for
// operations that rewrite several records and cannot ride a single
// storage transaction, such as node merges.
package sagas

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Step is one unit of saga work. Execute applies the step; Compensate
// undoes it when a later step fails. Steps share state through the
// closures they capture, so a step must record what it actually did for
// its compensation to act on.
type Step struct {
	Name       string
	Execute    func(ctx context.Context) error
	Compensate func(ctx context.Context) error
	MaxRetries int
	RetryDelay time.Duration
}

// State tracks where a saga execution stands.
type State string

const (
	StatePending      State = "PENDING"
	StateRunning      State = "RUNNING"
	StateCompleted    State = "COMPLETED"
	StateFailed       State = "FAILED"
	StateCompensating State = "COMPENSATING"
	StateCompensated  State = "COMPENSATED"
)

// Saga runs a series of steps in order and compensates completed steps in
// reverse order when one fails. Compensation is best effort: a failing
// compensation is logged and the remaining ones still run.
type Saga struct {
	id          string
	name        string
	steps       []Step
	state       State
	currentStep int
	logger      *zap.Logger
}

// NewSaga creates a saga with a fresh id.
func NewSaga(name string, logger *zap.Logger) *Saga {
	return &Saga{
		id:     uuid.New().String(),
		name:   name,
		steps:  make([]Step, 0),
		state:  StatePending,
		logger: logger,
	}
}

// AddStep appends a step without compensation.
func (s *Saga) AddStep(name string, execute func(ctx context.Context) error) *Saga {
	s.steps = append(s.steps, Step{Name: name, Execute: execute})
	return s
}

// AddCompensableStep appends a step with an undo action.
func (s *Saga) AddCompensableStep(name string, execute, compensate func(ctx context.Context) error) *Saga {
	s.steps = append(s.steps, Step{Name: name, Execute: execute, Compensate: compensate})
	return s
}

// AddRetryableStep appends a step retried on failure before the saga
// gives up and compensates.
func (s *Saga) AddRetryableStep(name string, execute func(ctx context.Context) error, maxRetries int, retryDelay time.Duration) *Saga {
	s.steps = append(s.steps, Step{Name: name, Execute: execute, MaxRetries: maxRetries, RetryDelay: retryDelay})
	return s
}

// Execute runs the saga to completion or compensated failure.
func (s *Saga) Execute(ctx context.Context) error {
	s.state = StateRunning
	s.logger.Info("Starting saga",
		zap.String("sagaId", s.id),
		zap.String("saga", s.name),
		zap.Int("steps", len(s.steps)),
	)

	for i, step := range s.steps {
		s.currentStep = i

		if err := s.executeStep(ctx, step); err != nil {
			s.state = StateFailed
			s.logger.Error("Saga step failed",
				zap.String("sagaId", s.id),
				zap.String("step", step.Name),
				zap.Error(err),
			)

			s.compensate(ctx, i)
			s.state = StateCompensated

			return fmt.Errorf("saga %s failed at step %s: %w", s.name, step.Name, err)
		}

		s.logger.Debug("Saga step completed",
			zap.String("sagaId", s.id),
			zap.String("step", step.Name),
		)
	}

	s.state = StateCompleted
	s.logger.Info("Saga completed",
		zap.String("sagaId", s.id),
		zap.String("saga", s.name),
	)

	return nil
}

func (s *Saga) executeStep(ctx context.Context, step Step) error {
	attempts := step.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	delay := step.RetryDelay
	if delay == 0 {
		delay = time.Second
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			s.logger.Debug("Retrying saga step",
				zap.String("sagaId", s.id),
				zap.String("step", step.Name),
				zap.Int("attempt", attempt+1),
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if lastErr = step.Execute(ctx); lastErr == nil {
			return nil
		}
	}

	if attempts > 1 {
		return fmt.Errorf("step failed after %d attempts: %w", attempts, lastErr)
	}
	return lastErr
}

// compensate undoes the steps before failedIndex in reverse order.
func (s *Saga) compensate(ctx context.Context, failedIndex int) {
	s.state = StateCompensating
	s.logger.Info("Compensating saga",
		zap.String("sagaId", s.id),
		zap.String("saga", s.name),
		zap.Int("stepsToCompensate", failedIndex),
	)

	for i := failedIndex - 1; i >= 0; i-- {
		step := s.steps[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(ctx); err != nil {
			s.logger.Error("Saga compensation failed",
				zap.String("sagaId", s.id),
				zap.String("step", step.Name),
				zap.Error(err),
			)
		}
	}
}

// GetState returns the saga's current state.
func (s *Saga) GetState() State {
	return s.state
}

// GetID returns the saga's id.
func (s *Saga) GetID() string {
	return s.id
}

// GetCurrentStep returns the index of the step being executed.
func (s *Saga) GetCurrentStep() int {
	return s.currentStep
}
