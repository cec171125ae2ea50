package atb

import (
	"fmt"

	"github.com/KirkDiggler/rpg-atb/internal/modifiers"
)

// LedgerEntry is a short-lived bonus pushed onto an actor
type LedgerEntry struct {
	Tick  int      `json:"tick"`
	Value int      `json:"value"`
	Types []string `json:"types"`
	Note  string   `json:"note"`
}

// Ledger tracks per-tick bonuses and the one-shot bonus for the next action
type Ledger struct {
	CurrentTick     []LedgerEntry `json:"currentTick"`
	ActiveThisTick  []LedgerEntry `json:"activeThisTick"`
	NextActionBonus *LedgerEntry  `json:"nextActionBonus"`
}

// PushCurrent records a bonus that only lasts for the given tick
func (l *Ledger) PushCurrent(entry LedgerEntry) {
	l.CurrentTick = append(l.CurrentTick, entry)
}

// SetNextAction stores a bonus consumed by the next card the actor spawns
func (l *Ledger) SetNextAction(entry LedgerEntry) {
	e := entry
	l.NextActionBonus = &e
}

// rebuild moves the pending next-action bonus into the active set
func (l *Ledger) rebuild() {
	l.ActiveThisTick = nil
	if l.NextActionBonus != nil {
		l.ActiveThisTick = append(l.ActiveThisTick, *l.NextActionBonus)
		l.NextActionBonus = nil
	}
}

// prune drops current-tick entries older than tick
func (l *Ledger) prune(tick int) {
	kept := l.CurrentTick[:0]
	for _, e := range l.CurrentTick {
		if e.Tick >= tick {
			kept = append(kept, e)
		}
	}
	if len(kept) == 0 {
		kept = nil
	}
	l.CurrentTick = kept
}

// Candidates turns the live ledger entries into modifier candidates
func (l *Ledger) Candidates(tick int) []modifiers.Candidate {
	if l == nil {
		return nil
	}

	var out []modifiers.Candidate
	for i, e := range l.CurrentTick {
		if e.Tick != tick {
			continue
		}
		out = append(out, e.candidate(fmt.Sprintf("ledger:current:%d", i)))
	}
	for i, e := range l.ActiveThisTick {
		out = append(out, e.candidate(fmt.Sprintf("ledger:active:%d", i)))
	}
	return out
}

func (e LedgerEntry) candidate(id string) modifiers.Candidate {
	bucket := modifiers.BucketManeuver
	if len(e.Types) > 0 && modifiers.Bucket(e.Types[0]).Valid() {
		bucket = modifiers.Bucket(e.Types[0])
	}
	return modifiers.Candidate{
		ID:     id,
		Label:  e.Note,
		Value:  e.Value,
		Bucket: bucket,
	}
}
