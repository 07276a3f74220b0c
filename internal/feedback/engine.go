package feedback

import (
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/claude/repform/internal/pose"
)

// Engine holds rules ordered by ascending priority.
type Engine struct {
	rules  []Rule
	logger *slog.Logger
}

// NewEngine returns an empty engine. A nil logger discards output.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{logger: logger}
}

// NewDefaultEngine returns an engine loaded with DefaultRules.
func NewDefaultEngine(logger *slog.Logger) *Engine {
	e := NewEngine(logger)
	for _, r := range DefaultRules() {
		e.Add(r)
	}
	return e
}

// Add inserts a rule. Rules with equal priority keep insertion order.
func (e *Engine) Add(r Rule) {
	e.rules = append(e.rules, r)
	sort.SliceStable(e.rules, func(i, j int) bool {
		return e.rules[i].Priority < e.rules[j].Priority
	})
}

// Rules returns a copy of the rules in evaluation order.
func (e *Engine) Rules() []Rule {
	return append([]Rule(nil), e.rules...)
}

// Evaluate runs every rule and returns the messages of those that fired, in
// priority order. A rule that errors or panics counts as not fired.
func (e *Engine) Evaluate(lms []pose.Landmark, ctx Context) []string {
	var triggered []string
	for _, r := range e.rules {
		ok, err := e.safeTriggered(r, lms, ctx)
		if err != nil {
			e.logger.Debug("feedback rule failed", "rule", r.Name, "kind", r.Kind, "error", err)
			continue
		}
		if ok {
			triggered = append(triggered, r.Message)
		}
	}
	return triggered
}

func (e *Engine) safeTriggered(r Rule, lms []pose.Landmark, ctx Context) (ok bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			ok, err = false, fmt.Errorf("panic: %v", p)
		}
	}()
	return r.Triggered(lms, ctx)
}
