// Package pipeline chains steps into a running pipeline: shape
// validation, fan-out finalisation, pipelined execution, and teardown.
package pipeline

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/filepipe/carrier"
	"github.com/kbukum/filepipe/errors"
	"github.com/kbukum/filepipe/logger"
	"github.com/kbukum/filepipe/observability"
	"github.com/kbukum/filepipe/step"
)

// StepSpec names one step of a requested pipeline.
type StepSpec struct {
	Type      string         `json:"type"`
	Arguments map[string]any `json:"arguments"`
}

// Executor runs pipelines. Steps execute pipelined: a downstream step
// reads its input while the upstream producer is still writing.
type Executor struct {
	registry *step.Registry
	deps     *step.Deps
	log      *logger.Logger
	tracer   trace.Tracer
}

// NewExecutor creates an executor over a step registry and shared deps.
func NewExecutor(registry *step.Registry, deps *step.Deps, log *logger.Logger) *Executor {
	return &Executor{
		registry: registry,
		deps:     deps,
		log:      log.WithComponent("pipeline"),
		tracer:   observability.Tracer("github.com/kbukum/filepipe/pipeline"),
	}
}

// Run executes specs and returns the final output carrier. Closing the
// carrier tears the pipeline down and cancels any producers still
// running.
func (e *Executor) Run(ctx context.Context, specs []StepSpec) (carrier.Carrier, error) {
	steps, specs, err := e.build(specs)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)

	var in step.Stream
	for i, st := range steps {
		args := e.stepArgs(i, specs[i])

		spanCtx, span := e.tracer.Start(ctx, "pipeline.step",
			trace.WithAttributes(
				attribute.String("step.type", specs[i].Type),
				attribute.Int("step.index", i),
			))
		out, err := st.Process(spanCtx, in, args)
		observability.SetSpanError(span, err)
		span.End()
		if err != nil {
			e.log.WithError(err).Error("step failed", map[string]interface{}{
				logger.FieldStep:      specs[i].Type,
				logger.FieldStepIndex: i,
			})
			if in != nil {
				in.Close()
			}
			cancel()
			return nil, err
		}
		in = out
	}

	final, ok, err := in.Next(ctx)
	if err != nil {
		in.Close()
		cancel()
		return nil, err
	}
	if !ok {
		in.Close()
		cancel()
		return nil, errors.PipelineShape("pipeline produced no output")
	}
	return &finalCarrier{Carrier: final, stream: in, cancel: cancel}, nil
}

// build instantiates all steps up front so unknown names and illegal
// shapes fail before any I/O happens. A trailing fan-out step gets a
// create_zip finaliser appended.
func (e *Executor) build(specs []StepSpec) ([]step.Step, []StepSpec, error) {
	if len(specs) == 0 {
		return nil, nil, errors.InvalidArguments("pipeline must contain at least one step")
	}

	steps := make([]step.Step, 0, len(specs)+1)
	for _, spec := range specs {
		st, err := e.registry.New(spec.Type, e.deps)
		if err != nil {
			return nil, nil, err
		}
		steps = append(steps, st)
	}

	for i, st := range steps {
		if st.ProducesMultipleOutputs() && i != len(steps)-1 {
			return nil, nil, errors.PipelineShape("a fan-out step is only allowed at the end of the pipeline")
		}
	}

	if steps[len(steps)-1].ProducesMultipleOutputs() {
		finaliser, err := e.registry.New(step.TypeCreateZip, e.deps)
		if err != nil {
			return nil, nil, err
		}
		steps = append(steps, finaliser)
		specs = append(append([]StepSpec{}, specs...), StepSpec{Type: step.TypeCreateZip})
	}
	return steps, specs, nil
}

// stepArgs prepares the argument map for step i. source_url is only
// honoured on the first step; later occurrences are dropped with a
// warning.
func (e *Executor) stepArgs(i int, spec StepSpec) step.Args {
	args := step.Args{}
	for k, v := range spec.Arguments {
		args[k] = v
	}
	if i > 0 {
		if _, ok := args[step.SourceURL]; ok {
			e.log.Warn("ignoring source_url on non-first step", map[string]interface{}{
				logger.FieldStep:      spec.Type,
				logger.FieldStepIndex: i,
			})
			delete(args, step.SourceURL)
		}
	}
	return args
}

// finalCarrier couples the output carrier with pipeline teardown.
type finalCarrier struct {
	carrier.Carrier
	stream step.Stream
	cancel context.CancelFunc
}

func (f *finalCarrier) Close() error {
	err := f.Carrier.Close()
	f.stream.Close()
	f.cancel()
	return err
}
