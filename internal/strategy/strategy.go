// Package strategy defines the plug-in contract the replay engine invokes
// and the built-in signal strategies. A strategy is a pure function of the
// current snapshot, a bounded newest-first history window, and the market
// metadata; it must not keep state between calls or touch I/O, which keeps
// backtest runs deterministic and safely parallel.
package strategy

import (
	"fmt"
	"sort"

	"github.com/cwilliams712/polysim/internal/domain"
)

// Func is the strategy contract. history holds the market's prior
// snapshots newest-first, bounded by the engine's lookback window. A
// strategy signals no interest by returning domain.None().
type Func func(snap domain.Snapshot, history []domain.Snapshot, market domain.Market) domain.Decision

// Registry maps strategy names to constructors so the run mode can be
// selected from configuration.
type Registry struct {
	strategies map[string]Func
}

// NewRegistry returns a registry preloaded with the built-in strategies at
// their default parameters.
func NewRegistry() *Registry {
	r := &Registry{strategies: make(map[string]Func)}
	r.Register("complement", Complement(DefaultComplementParams()))
	r.Register("anchoring", Anchoring(DefaultAnchoringParams()))
	r.Register("low_attention", LowAttention(DefaultLowAttentionParams()))
	r.Register("deadline", Deadline(DefaultDeadlineParams()))
	return r
}

// Register adds or replaces a named strategy.
func (r *Registry) Register(name string, fn Func) {
	r.strategies[name] = fn
}

// Get returns the named strategy or an error listing what is available.
func (r *Registry) Get(name string) (Func, error) {
	fn, ok := r.strategies[name]
	if !ok {
		return nil, fmt.Errorf("strategy: unknown strategy %q (available: %v)", name, r.Names())
	}
	return fn, nil
}

// Names returns the registered strategy names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// meanYesPrice averages the indicative yes price across a history window.
// Returns 0 and false when the window is empty.
func meanYesPrice(history []domain.Snapshot) (float64, bool) {
	if len(history) == 0 {
		return 0, false
	}
	var sum float64
	for _, s := range history {
		sum += s.PriceYes
	}
	return sum / float64(len(history)), true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func ptr(v float64) *float64 { return &v }
