package pipeline

import (
	"fmt"

	"github.com/teranos/reportcopilot/errors"
	"github.com/teranos/reportcopilot/report/agent"
)

// CanceledMessage is the user-facing error recorded on canceled jobs
const CanceledMessage = "Job canceled by user."

var (
	// ErrCanceled is returned when the cancel predicate or ctx stops a run at a step boundary
	ErrCanceled = errors.New("job canceled by user")

	// ErrStepFailed is matched by every *StepError
	ErrStepFailed = errors.New("pipeline step failed")
)

// StepError reports a fatal step failure (research, data or the first write)
type StepError struct {
	Step    agent.Name
	Message string
	Detail  string
}

func (e *StepError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("[%s] %s", e.Step, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Step, e.Message, e.Detail)
}

// Unwrap lets errors.Is(err, ErrStepFailed) match
func (e *StepError) Unwrap() error {
	return ErrStepFailed
}

func stepError(res agent.StepResult) error {
	se := &StepError{Step: res.Agent, Message: "step failed"}
	if res.Error != nil {
		se.Message, se.Detail = res.Error.Message, res.Error.Detail
	}
	return se
}

// IsCanceled reports whether err stopped a run through cancellation
func IsCanceled(err error) bool {
	return err != nil && errors.Is(err, ErrCanceled)
}
