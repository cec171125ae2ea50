package events

// GameEvent represents something that happened inside a combat session
type GameEvent struct {
	Type      EventType
	ActorID   string
	Context   map[string]interface{} // Flexible context data
	Cancelled bool                   // Events can be cancelled
}

// NewGameEvent creates a new game event
func NewGameEvent(eventType EventType, actorID string) *GameEvent {
	return &GameEvent{
		Type:    eventType,
		ActorID: actorID,
		Context: make(map[string]interface{}),
	}
}

// WithContext adds context data to the event
func (e *GameEvent) WithContext(key string, value interface{}) *GameEvent {
	e.Context[key] = value
	return e
}

// Cancel marks the event as cancelled
func (e *GameEvent) Cancel() {
	e.Cancelled = true
}

// IsCancelled returns whether the event has been cancelled
func (e *GameEvent) IsCancelled() bool {
	return e.Cancelled
}

// GetContext retrieves a value from the context
func (e *GameEvent) GetContext(key string) (interface{}, bool) {
	val, exists := e.Context[key]
	return val, exists
}

// GetIntContext retrieves an int value from the context
func (e *GameEvent) GetIntContext(key string) (int, bool) {
	val, exists := e.Context[key]
	if !exists {
		return 0, false
	}
	intVal, ok := val.(int)
	return intVal, ok
}

// GetStringContext retrieves a string value from the context
func (e *GameEvent) GetStringContext(key string) (string, bool) {
	val, exists := e.Context[key]
	if !exists {
		return "", false
	}
	strVal, ok := val.(string)
	return strVal, ok
}
