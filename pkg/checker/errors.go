package checker

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSender is returned for requests without a sender id.
	ErrNoSender = errors.New("request has no sender")

	// ErrGlobalCategory is returned when a request targets the internal global category.
	ErrGlobalCategory = errors.New("global is not a message category")
)

// EvaluationError reports a failure of a collaborator, typically the player
// data store, during an evaluation. The evaluation degrades to a pass-through verdict.
type EvaluationError struct {
	Player string
	Op     string
	Err    error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluate for player %s: %s: %v", e.Player, e.Op, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}
