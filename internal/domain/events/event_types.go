package events

// EventType represents the type of combat event
type EventType int

const (
	// Scheduler events
	OnCardSpawned EventType = iota
	OnCardPromoted
	OnEffectPerformed
	OnPerformFailed
	OnCardCleared
	OnDescriptorDropped
	OnTickAdvanced
	OnDecisionRequested
	OnDecisionResolved

	// Reaction events
	OnReactionTriggered
	OnWindowOpened
	OnWindowRefused
	OnWindowConsumed
	OnWindowExpired
	OnReactionTaken

	// Ailment events
	OnAilmentApplied
	OnAilmentRemoved
	OnAilmentModified

	// Session events
	OnSchedulerReset
	OnCombatEnded
)

// String returns the string representation of the event type
func (e EventType) String() string {
	names := [...]string{
		"OnCardSpawned",
		"OnCardPromoted",
		"OnEffectPerformed",
		"OnPerformFailed",
		"OnCardCleared",
		"OnDescriptorDropped",
		"OnTickAdvanced",
		"OnDecisionRequested",
		"OnDecisionResolved",
		"OnReactionTriggered",
		"OnWindowOpened",
		"OnWindowRefused",
		"OnWindowConsumed",
		"OnWindowExpired",
		"OnReactionTaken",
		"OnAilmentApplied",
		"OnAilmentRemoved",
		"OnAilmentModified",
		"OnSchedulerReset",
		"OnCombatEnded",
	}
	if e < OnCardSpawned || int(e) >= len(names) {
		return "Unknown"
	}
	return names[e]
}
