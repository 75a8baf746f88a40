/*
pipeline.go - Explicit sequential request pipeline

PURPOSE:
  Every lifecycle request runs the same shape of work: validate, mutate
  the document store, call the ledger bridge, append to the transaction
  log. The steps are strictly ordered because each depends on the
  previous step's output. Instead of chaining handlers through control
  flow, the pipeline makes the ordering and the failure point visible
  as data: each step is named, runs in sequence, and the first error
  short-circuits the rest.

USAGE:
  p := newPipeline()
  p.step("validate", func(ctx context.Context) error { ... })
  p.step("persist", func(ctx context.Context) error { ... })
  p.step("bridge", func(ctx context.Context) error { ... })
  p.step("log", func(ctx context.Context) error { ... })
  err := p.run(ctx) // *StepError naming the failed step, or nil
*/
package engine

import (
	"context"
	"fmt"
)

// StepError wraps a failure with the pipeline step it occurred in.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

type pipelineStep struct {
	name string
	run  func(ctx context.Context) error
}

type pipeline struct {
	steps []pipelineStep
}

func newPipeline() *pipeline {
	return &pipeline{}
}

func (p *pipeline) step(name string, run func(ctx context.Context) error) {
	p.steps = append(p.steps, pipelineStep{name: name, run: run})
}

// run executes the steps in order, short-circuiting on the first error.
func (p *pipeline) run(ctx context.Context) error {
	for _, s := range p.steps {
		if err := s.run(ctx); err != nil {
			return &StepError{Step: s.name, Err: err}
		}
	}
	return nil
}
