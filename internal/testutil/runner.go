package testutil

import (
	"context"
	"strings"
	"sync"
	"time"
)

// FakeRunner is an applister.CommandRunner that serves canned output keyed by
// the full command line ("name arg1 arg2").
type FakeRunner struct {
	mu     sync.Mutex
	tools  map[string]bool
	output map[string][]string
	errs   map[string]error
	calls  []string
}

// NewFakeRunner creates a FakeRunner where the given tools are installed.
func NewFakeRunner(tools ...string) *FakeRunner {
	r := &FakeRunner{
		tools:  make(map[string]bool),
		output: make(map[string][]string),
		errs:   make(map[string]error),
	}
	for _, tool := range tools {
		r.tools[tool] = true
	}
	return r
}

// SetOutput registers the lines returned for a command line.
func (r *FakeRunner) SetOutput(cmdline string, lines ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.output[cmdline] = lines
}

// SetError makes a command line fail with err.
func (r *FakeRunner) SetError(cmdline string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs[cmdline] = err
}

// Calls returns the command lines run so far.
func (r *FakeRunner) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *FakeRunner) IsToolAvailable(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tools[name]
}

// RunLines returns the registered output. Unregistered command lines yield no
// output and no error.
func (r *FakeRunner) RunLines(ctx context.Context, timeout time.Duration, name string, args ...string) ([]string, error) {
	cmdline := strings.Join(append([]string{name}, args...), " ")

	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, cmdline)
	if err := r.errs[cmdline]; err != nil {
		return nil, err
	}
	return append([]string(nil), r.output[cmdline]...), nil
}
