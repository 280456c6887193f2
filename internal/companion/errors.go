package companion

import (
	"errors"
	"fmt"
)

var (
	// ErrProvider marks a turn that failed while generating the reply.
	ErrProvider = errors.New("completion failed")
	// ErrPersist marks a turn whose history snapshot could not be written.
	ErrPersist = errors.New("saving chat history failed")
)

// Stage names the step of a turn that failed.
type Stage string

const (
	StagePersistPre  Stage = "persist-pre"
	StageStream      Stage = "stream"
	StagePersistPost Stage = "persist-post"
)

// TurnError is returned by SubmitTurn. It matches ErrProvider or ErrPersist
// under errors.Is depending on Stage, and unwraps to the underlying cause.
type TurnError struct {
	Stage Stage
	Err   error
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("turn failed at %s: %v", e.Stage, e.Err)
}

func (e *TurnError) Unwrap() []error {
	return []error{e.kind(), e.Err}
}

func (e *TurnError) kind() error {
	if e.Stage == StageStream {
		return ErrProvider
	}
	return ErrPersist
}
