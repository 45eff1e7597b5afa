package simulated

import "sync"

// Faults is a per-tool queue of injected errors. Each collaborator call
// pops at most one entry, so "fail twice then succeed" is expressed as a
// queue of two errors.
type Faults struct {
	mu     sync.Mutex
	queues map[string][]error
}

// NewFaults creates an empty fault plan.
func NewFaults() *Faults {
	return &Faults{queues: make(map[string][]error)}
}

// Fail enqueues errors for a tool. Known tool names: generator,
// resolver.detect, resolver.install, compiler, auditor, deployer,
// verifier.
func (f *Faults) Fail(tool string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.queues[tool] = append(f.queues[tool], errs...)
}

func (f *Faults) next(tool string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	queue := f.queues[tool]
	if len(queue) == 0 {
		return nil
	}

	err := queue[0]
	f.queues[tool] = queue[1:]

	return err
}
