package generation

import (
	"context"
	"fmt"
	"time"

	"github.com/threadbrief/core/internal/models"
)

// Kind identifies which backend produced a result.
type Kind string

const (
	KindRemote Kind = "remote"
	KindMock   Kind = "mock"
)

// Result is the raw backend output plus provenance and latency.
type Result struct {
	Text    string
	Backend Kind
	Latency time.Duration
}

// Backend produces raw generated text for a prompt. Implementations perform
// zero internal retries; retry policy belongs to the caller.
type Backend interface {
	Generate(ctx context.Context, prompt string, mode models.ModeType, length models.LengthType) (*Result, error)
}

// BackendError wraps a generation failure. Transient failures (5xx,
// timeouts, provider rate limits) may be retried by the caller; permanent
// ones (auth, validation) may not.
type BackendError struct {
	Transient bool
	Err       error
}

func (e *BackendError) Error() string {
	class := "permanent"
	if e.Transient {
		class = "transient"
	}
	return fmt.Sprintf("generation backend error (%s): %v", class, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }
