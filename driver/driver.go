// Package driver discovers a canister's entry points and runs them in
// order, printing replies, ledgers and traps.
package driver

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/wippyai/canister-runtime/runtime"
)

// Invoker runs one entry point. *runtime.Runtime implements it.
type Invoker interface {
	Invoke(ctx context.Context, call runtime.Call) (*runtime.Outcome, error)
}

// Options configures a run.
type Options struct {
	// Out receives the text report; nil discards it.
	Out io.Writer
	// Argument is passed to every invocation; nil selects the empty
	// Candid envelope.
	Argument []byte
	Updates  bool
	Upgrade  bool
}

// Driver runs a canister's entry points against an Invoker.
type Driver struct {
	rt      Invoker
	out     io.Writer
	exports []string
	opts    Options
}

// New creates a driver for exports, in export-section order.
func New(rt Invoker, exports []string, opts Options) *Driver {
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	return &Driver{rt: rt, out: out, exports: exports, opts: opts}
}

// Plan returns the entry points Run will invoke, in order.
func (d *Driver) Plan() []Entry {
	return Plan(d.exports, PlanOptions{Updates: d.opts.Updates, Upgrade: d.opts.Upgrade})
}

// Run invokes every planned entry point. A trap ends only its own entry
// point; the run continues with the next. The error is non-nil only when
// an invocation could not be dispatched at all.
func (d *Driver) Run(ctx context.Context) (*Report, error) {
	report := &Report{Exports: d.exports}
	WriteExports(d.out, d.exports)

	for _, entry := range d.Plan() {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		out, err := d.rt.Invoke(ctx, runtime.Call{
			Export:   entry.Export,
			Method:   entry.Method,
			Argument: d.opts.Argument,
		})
		if err != nil {
			return report, err
		}

		res := Result{Entry: entry, Outcome: out}
		report.Results = append(report.Results, res)
		WriteResult(d.out, res)

		if out.Trapped() {
			Logger().Warn("entry point trapped",
				zap.String("export", entry.Export),
				zap.Stringer("kind", entry.Kind),
				zap.String("message", out.Trap.Message))
		} else {
			Logger().Info("entry point completed",
				zap.String("export", entry.Export),
				zap.Stringer("kind", entry.Kind),
				zap.Int("reply_bytes", len(out.Reply)))
		}
	}

	WriteSummary(d.out, report)
	return report, nil
}
