package events

// Context keys for event data
const (
	ContextTick        = "tick"         // int: scheduler tick the event happened on
	ContextActionKey   = "action_key"   // string: catalog key of the action
	ContextActionKind  = "action_kind"  // string: descriptor kind
	ContextPhase       = "phase"        // string: card phase
	ContextError       = "error"        // string: error message for failures
	ContextMessage     = "message"      // string: free-form log line
	ContextTargetID    = "target_id"    // string: ID of the target
	ContextProvokerID  = "provoker_id"  // string: actor that provoked a reaction
	ContextReason      = "reason"       // string: reaction window reason
	ContextWindowID    = "window_id"    // string: reaction window ID
	ContextDecisionID  = "decision_id"  // string: pending decision ID
	ContextChoice      = "choice"       // string: decision choice
	ContextWear        = "wear"         // int: wear after spending
	ContextAilmentID   = "ailment_id"   // string: ailment state ID
	ContextAilmentType = "ailment_type" // string: ailment definition ID
	ContextSeverity    = "severity"     // string: ailment severity
)
