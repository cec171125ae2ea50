package modifiers

import (
	"fmt"
	"log"
	"slices"
	"sort"
	"sync"
)

// TiePolicy decides between two candidates of equal magnitude in one bucket
type TiePolicy string

const (
	TiePreferPositive TiePolicy = "prefer_positive"
	TiePreferNegative TiePolicy = "prefer_negative"
	TiePreferFirst    TiePolicy = "prefer_first"
)

// Provider is the collection hook other subsystems (ailments, equipment,
// ledgers) register to push candidates for an actor
type Provider interface {
	Candidates(actorID string, ctx Context) []Candidate
}

// ProviderFunc adapts a function into a Provider
type ProviderFunc func(actorID string, ctx Context) []Candidate

// Candidates calls f
func (f ProviderFunc) Candidates(actorID string, ctx Context) []Candidate {
	return f(actorID, ctx)
}

// Dropped records a candidate that lost its bucket or did not apply
type Dropped struct {
	Candidate Candidate `json:"candidate"`
	Reason    string    `json:"reason"`
	WinnerID  string    `json:"winner_id,omitempty"`
}

// Breakdown keeps every candidate considered, accepted or not
type Breakdown struct {
	Base     int         `json:"base"`
	Accepted []Candidate `json:"accepted"`
	Dropped  []Dropped   `json:"dropped"`
	Filtered []Dropped   `json:"filtered"`
}

// Result is what the roll pipeline renders
type Result struct {
	Total        int       `json:"total"`
	DiceAdvances int       `json:"dice_advances"`
	Notes        []string  `json:"notes"`
	Breakdown    Breakdown `json:"breakdown"`
}

// Aggregator totals modifier candidates with one winner per bucket
type Aggregator struct {
	mu        sync.RWMutex
	providers map[string]Provider
	policy    TiePolicy
	exprs     *exprEvaluator
}

// NewAggregator creates an aggregator using the given tie policy
func NewAggregator(policy TiePolicy) (*Aggregator, error) {
	switch policy {
	case "":
		policy = TiePreferPositive
	case TiePreferPositive, TiePreferNegative, TiePreferFirst:
	default:
		return nil, fmt.Errorf("unknown tie policy %q", policy)
	}

	exprs, err := newExprEvaluator()
	if err != nil {
		return nil, err
	}

	return &Aggregator{
		providers: make(map[string]Provider),
		policy:    policy,
		exprs:     exprs,
	}, nil
}

// Register adds or replaces a named provider
func (a *Aggregator) Register(name string, provider Provider) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.providers[name]; exists {
		log.Printf("[MODIFIERS] Replaced provider %s", name)
	}
	a.providers[name] = provider
}

// Unregister removes a provider
func (a *Aggregator) Unregister(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.providers, name)
}

// Policy returns the configured tie policy
func (a *Aggregator) Policy() TiePolicy {
	return a.policy
}

// Aggregate collects candidates for actorID, filters them against ctx and
// keeps one winner per bucket
func (a *Aggregator) Aggregate(actorID string, base int, ctx Context, extra ...Candidate) *Result {
	result := &Result{
		Total: base,
		Breakdown: Breakdown{
			Base:     base,
			Accepted: []Candidate{},
			Dropped:  []Dropped{},
			Filtered: []Dropped{},
		},
		Notes: []string{},
	}

	var matched []Candidate
	for _, c := range a.collect(actorID, ctx, extra) {
		ok, reason := a.matches(c, ctx)
		if !ok {
			result.Breakdown.Filtered = append(result.Breakdown.Filtered, Dropped{Candidate: c, Reason: reason})
			continue
		}
		matched = append(matched, c)
	}

	// Winner per bucket, buckets kept in first-seen order
	var order []Bucket
	winners := make(map[Bucket]int)
	for i, c := range matched {
		current, seen := winners[c.Bucket]
		if !seen {
			order = append(order, c.Bucket)
			winners[c.Bucket] = i
			continue
		}
		if a.beats(c, matched[current]) {
			winners[c.Bucket] = i
		}
	}

	winnerIdx := make(map[int]bool, len(winners))
	for _, idx := range winners {
		winnerIdx[idx] = true
	}

	for _, bucket := range order {
		w := matched[winners[bucket]]
		result.Breakdown.Accepted = append(result.Breakdown.Accepted, w)
		result.Total += w.Value
		result.DiceAdvances += w.DiceAdvance
		if w.DiceAdvance != 0 {
			result.Notes = append(result.Notes, fmt.Sprintf("%s advances dice by %+d", w.String(), w.DiceAdvance))
		}
	}

	for i, c := range matched {
		if winnerIdx[i] {
			continue
		}
		w := matched[winners[c.Bucket]]
		result.Breakdown.Dropped = append(result.Breakdown.Dropped, Dropped{
			Candidate: c,
			Reason:    fmt.Sprintf("%s bucket already won by %s", c.Bucket, w.String()),
			WinnerID:  w.ID,
		})
		result.Notes = append(result.Notes, fmt.Sprintf("%s does not stack with %s (%s)", c.String(), w.String(), c.Bucket))
	}

	return result
}

// collect gathers extra candidates first, then providers in name order with
// each provider's output sorted by ID
func (a *Aggregator) collect(actorID string, ctx Context, extra []Candidate) []Candidate {
	a.mu.RLock()
	names := make([]string, 0, len(a.providers))
	for name := range a.providers {
		names = append(names, name)
	}
	providers := make(map[string]Provider, len(a.providers))
	for name, p := range a.providers {
		providers[name] = p
	}
	a.mu.RUnlock()
	sort.Strings(names)

	all := append([]Candidate(nil), extra...)
	for _, name := range names {
		// providers may hand back slices they own
		pushed := slices.Clone(providers[name].Candidates(actorID, ctx))
		sort.SliceStable(pushed, func(i, j int) bool {
			return pushed[i].ID < pushed[j].ID
		})
		all = append(all, pushed...)
	}
	return all
}

func (a *Aggregator) matches(c Candidate, ctx Context) (bool, string) {
	if !c.Bucket.Valid() {
		return false, fmt.Sprintf("unknown bucket %q", c.Bucket)
	}
	if !c.When.matchesStatic(ctx) {
		return false, "phase or tag does not match"
	}
	if c.When.Expr == "" {
		return true, ""
	}
	ok, err := a.exprs.Eval(c.When.Expr, ctx)
	if err != nil {
		log.Printf("[MODIFIERS] Candidate %s expression failed: %v", c.ID, err)
		return false, err.Error()
	}
	if !ok {
		return false, "expression is false"
	}
	return true, ""
}

// beats reports whether challenger should replace incumbent as bucket winner
func (a *Aggregator) beats(challenger, incumbent Candidate) bool {
	cm, im := abs(challenger.Value), abs(incumbent.Value)
	if cm != im {
		return cm > im
	}

	if challenger.Value != incumbent.Value {
		switch a.policy {
		case TiePreferPositive:
			return challenger.Value > incumbent.Value
		case TiePreferNegative:
			return challenger.Value < incumbent.Value
		default:
			return false
		}
	}

	return abs(challenger.DiceAdvance) > abs(incumbent.DiceAdvance)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
