package audit

import "fmt"

// Stage names an orchestrator step.
type Stage string

const (
	StageAvalanche   Stage = "avalanche"
	StagePerformance Stage = "performance"
	StageAttack      Stage = "attack"
)

// StageError reports the stage that aborted a run. It unwraps to the cause so
// cipher.CategoryOf still classifies it.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("audit stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
