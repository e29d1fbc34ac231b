package orchestrator

// Executor runs the simulation body off the submitting thread. The UI
// host hands in GoroutineExecutor; tests may run synchronously.
type Executor interface {
	Execute(fn func())
}

// GoroutineExecutor is the production executor.
type GoroutineExecutor struct{}

func (GoroutineExecutor) Execute(fn func()) { go fn() }

// SyncExecutor runs the body on the calling goroutine. Tests only.
type SyncExecutor struct{}

func (SyncExecutor) Execute(fn func()) { fn() }
