// Package chaos injects store faults into a shelf board and checks that the
// board's invariants survive them.
package chaos

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Experiment defines a chaos test: a steady state that must hold before and
// after faults are injected by Method and removed by Rollback.
type Experiment struct {
	Name        string
	Hypothesis  string
	SteadyState []Metric
	Method      []Action
	Rollback    []Action
	Validation  []Assertion
	// Samples is how many times the steady-state metrics are observed after
	// Method runs, Interval apart. Zero means once.
	Samples  int
	Interval time.Duration
}

// Metric is a board property sampled before and after faults.
type Metric struct {
	Name      string
	Query     func(context.Context) (float64, error)
	Threshold Threshold
}

// Op compares an observed value against a threshold.
type Op string

const (
	OpEq  Op = "=="
	OpGt  Op = ">"
	OpGte Op = ">="
	OpLt  Op = "<"
	OpLte Op = "<="
)

type Threshold struct {
	Op    Op
	Value float64
}

// Holds reports whether v satisfies the threshold. Unknown operators never hold.
func (t Threshold) Holds(v float64) bool {
	switch t.Op {
	case OpGt:
		return v > t.Value
	case OpLt:
		return v < t.Value
	case OpGte:
		return v >= t.Value
	case OpLte:
		return v <= t.Value
	case OpEq:
		return v == t.Value
	}
	return false
}

// Action is a fault injection or recovery step.
type Action struct {
	Type    string
	Target  string
	Execute func(context.Context) error
}

// Assertion checks the last sample of a metric.
type Assertion struct {
	Metric    string
	Condition func(float64) bool
	Message   string
}

// Result is the outcome of one experiment run.
type Result struct {
	Experiment       string              `json:"experiment"`
	StartTime        time.Time           `json:"start_time"`
	EndTime          time.Time           `json:"end_time"`
	Duration         time.Duration       `json:"duration"`
	HypothesisHeld   bool                `json:"hypothesis_held"`
	SteadyStateValid bool                `json:"steady_state_valid"`
	Violations       []Violation         `json:"violations"`
	Failed           []string            `json:"failed_assertions,omitempty"`
	Samples          map[string][]Sample `json:"samples"`
	Faults           []Fault             `json:"faults"`
}

// Violation is a sample that broke its metric's threshold.
type Violation struct {
	Metric    string    `json:"metric"`
	Threshold Threshold `json:"threshold"`
	Actual    float64   `json:"actual"`
	At        time.Time `json:"at"`
}

type Sample struct {
	At    time.Time `json:"at"`
	Value float64   `json:"value"`
}

// Fault is an unexpected error from an action or a metric query.
type Fault struct {
	At     time.Time `json:"at"`
	Source string    `json:"source"`
	Err    string    `json:"error"`
}

var ErrSteadyStateInvalid = errors.New("board not in steady state before faults")

// Engine runs registered experiments and keeps their results.
type Engine struct {
	tracer      trace.Tracer
	experiments []Experiment
	results     []Result
	mu          sync.Mutex
}

func NewEngine() *Engine {
	return &Engine{tracer: otel.Tracer("shelfboard/chaos")}
}

func (e *Engine) RegisterExperiment(exp Experiment) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.experiments = append(e.experiments, exp)
}

func (e *Engine) Experiments() []Experiment {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Experiment, len(e.experiments))
	copy(out, e.experiments)
	return out
}

func (e *Engine) Results() []Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Result, len(e.results))
	copy(out, e.results)
	return out
}

// RunExperiment executes one experiment through its five phases.
func (e *Engine) RunExperiment(ctx context.Context, exp Experiment) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "chaos.run_experiment",
		trace.WithAttributes(attribute.String("experiment.name", exp.Name)))
	defer span.End()

	result := &Result{
		Experiment: exp.Name,
		StartTime:  time.Now(),
		Samples:    make(map[string][]Sample),
	}

	span.AddEvent("validating_steady_state")
	if violations := steadyStateViolations(ctx, exp.SteadyState); len(violations) > 0 {
		result.Violations = violations
		return result, ErrSteadyStateInvalid
	}
	result.SteadyStateValid = true

	span.AddEvent("injecting_chaos")
	for _, action := range exp.Method {
		if err := action.Execute(ctx); err != nil {
			result.fault(action.Target, err)
			span.RecordError(err)
		}
	}

	span.AddEvent("observing_board")
	samples := max(exp.Samples, 1)
	for i := 0; i < samples; i++ {
		if i > 0 && exp.Interval > 0 {
			select {
			case <-time.After(exp.Interval):
			case <-ctx.Done():
				return result, ctx.Err()
			}
		}
		result.sample(ctx, exp.SteadyState)
	}

	span.AddEvent("rolling_back")
	for _, action := range exp.Rollback {
		if err := action.Execute(ctx); err != nil {
			span.RecordError(err)
		}
	}

	span.AddEvent("validating_assertions")
	result.Failed = result.failedAssertions(exp.Validation)
	result.HypothesisHeld = len(result.Failed) == 0 && len(result.Faults) == 0
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	e.mu.Lock()
	e.results = append(e.results, *result)
	e.mu.Unlock()

	span.SetAttributes(
		attribute.Bool("hypothesis_held", result.HypothesisHeld),
		attribute.Int("violations", len(result.Violations)),
	)
	return result, nil
}

func (r *Result) fault(source string, err error) {
	r.Faults = append(r.Faults, Fault{At: time.Now(), Source: source, Err: err.Error()})
}

// sample queries every metric once, recording values and threshold breaks.
func (r *Result) sample(ctx context.Context, metrics []Metric) {
	for _, m := range metrics {
		v, err := m.Query(ctx)
		if err != nil {
			r.fault(m.Name, err)
			continue
		}
		now := time.Now()
		r.Samples[m.Name] = append(r.Samples[m.Name], Sample{At: now, Value: v})
		if !m.Threshold.Holds(v) {
			r.Violations = append(r.Violations, Violation{Metric: m.Name, Threshold: m.Threshold, Actual: v, At: now})
		}
	}
}

// failedAssertions returns the messages of assertions that did not hold
// against the last sample of their metric.
func (r *Result) failedAssertions(assertions []Assertion) []string {
	var failed []string
	for _, a := range assertions {
		obs := r.Samples[a.Metric]
		if len(obs) == 0 || !a.Condition(obs[len(obs)-1].Value) {
			failed = append(failed, a.Message)
		}
	}
	return failed
}

// steadyStateViolations treats a failed query as a violation with value -1.
func steadyStateViolations(ctx context.Context, metrics []Metric) []Violation {
	var out []Violation
	for _, m := range metrics {
		v, err := m.Query(ctx)
		if err != nil {
			v = -1
		}
		if err != nil || !m.Threshold.Holds(v) {
			out = append(out, Violation{Metric: m.Name, Threshold: m.Threshold, Actual: v, At: time.Now()})
		}
	}
	return out
}

// RunAll runs every registered experiment and writes a report to w. It
// returns an error if any hypothesis did not hold.
func (e *Engine) RunAll(ctx context.Context, w io.Writer) error {
	held := 0
	exps := e.Experiments()
	for i, exp := range exps {
		fmt.Fprintf(w, "Experiment %d/%d: %s\n", i+1, len(exps), exp.Name)
		fmt.Fprintf(w, "  hypothesis: %s\n", exp.Hypothesis)

		result, err := e.RunExperiment(ctx, exp)
		if err != nil {
			fmt.Fprintf(w, "  aborted: %v\n", err)
			continue
		}
		printResult(w, result)
		if result.HypothesisHeld {
			held++
		}
	}
	if held != len(exps) {
		return fmt.Errorf("%d of %d experiments failed", len(exps)-held, len(exps))
	}
	return nil
}

func printResult(w io.Writer, result *Result) {
	if result.HypothesisHeld {
		fmt.Fprintf(w, "  held\n")
	} else {
		fmt.Fprintf(w, "  VIOLATED\n")
	}
	for _, msg := range result.Failed {
		fmt.Fprintf(w, "  - %s\n", msg)
	}
	for _, v := range result.Violations {
		fmt.Fprintf(w, "  - %s: want %s %.2f, got %.2f\n", v.Metric, v.Threshold.Op, v.Threshold.Value, v.Actual)
	}
	for _, f := range result.Faults {
		fmt.Fprintf(w, "  - error in %s: %s\n", f.Source, f.Err)
	}
	fmt.Fprintf(w, "  duration: %s\n", result.Duration)
}
