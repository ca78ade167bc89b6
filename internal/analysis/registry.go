package analysis

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var (
	ErrDuplicateAnalyzer = errors.New("analyzer already registered")
	ErrUnnamedAnalyzer   = errors.New("analyzer has no name")
)

// Registry holds analyzers in registration order.
type Registry struct {
	analyzers []Analyzer
	names     map[string]bool

	// Timeout bounds each analyzer; zero means no limit.
	Timeout time.Duration
	// Parallelism caps concurrent analyzers; zero or less runs all at once.
	Parallelism int
}

func NewRegistry() *Registry {
	return &Registry{names: make(map[string]bool)}
}

func (r *Registry) Register(a Analyzer) error {
	name := a.Name()
	if name == "" {
		return ErrUnnamedAnalyzer
	}
	if r.names[name] {
		return fmt.Errorf("%w: %s", ErrDuplicateAnalyzer, name)
	}
	r.names[name] = true
	r.analyzers = append(r.analyzers, a)
	return nil
}

// Names returns registered analyzer names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.analyzers))
	for i, a := range r.analyzers {
		out[i] = a.Name()
	}
	return out
}

// RunAll executes every analyzer and returns a result for each registered name.
// Failures, panics and timeouts are contained in the failing analyzer's result.
func (r *Registry) RunAll(ctx context.Context, in Input) map[string]Result {
	slots := make([]Result, len(r.analyzers))

	var g errgroup.Group
	if r.Parallelism > 0 {
		g.SetLimit(r.Parallelism)
	}
	for i, a := range r.analyzers {
		g.Go(func() error {
			slots[i] = r.runOne(ctx, a, in)
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]Result, len(slots))
	for _, res := range slots {
		out[res.Analyzer] = res
	}
	return out
}

func (r *Registry) runOne(ctx context.Context, a Analyzer, in Input) Result {
	name := a.Name()
	start := time.Now()

	actx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	type outcome struct {
		payload Payload
		kind    Kind
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				log.Error().Str("analyzer", name).Str("stack", string(debug.Stack())).Msg("Analyzer panicked")
				done <- outcome{err: fmt.Errorf("panic: %v", p)}
			}
		}()
		payload, err := a.Analyze(actx, in)
		if err != nil || isNil(payload) {
			done <- outcome{err: err}
			return
		}
		// Kind runs here so a panicking payload method is recovered like Analyze.
		done <- outcome{payload: payload, kind: payload.Kind()}
	}()

	var res Result
	select {
	case o := <-done:
		switch {
		case o.err != nil:
			res = Failed(name, o.err.Error())
		case o.payload == nil:
			res = Failed(name, "analyzer returned no result")
		default:
			res = Result{Analyzer: name, Kind: o.kind, OK: true, Payload: o.payload}
		}
	case <-actx.Done():
		res = Failed(name, fmt.Sprintf("aborted: %v", actx.Err()))
	}
	res.Elapsed = time.Since(start)

	if res.OK {
		log.Debug().Str("analyzer", name).Dur("elapsed", res.Elapsed).Msg("Analyzer finished")
	} else {
		log.Error().Str("analyzer", name).Str("phase", "analyze").Str("reason", res.Error).Msg("Analyzer failed")
	}
	return res
}

// isNil also catches a typed nil pointer wrapped in the interface.
func isNil(p Payload) bool {
	if p == nil {
		return true
	}
	v := reflect.ValueOf(p)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
