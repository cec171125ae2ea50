package events

// EventListener represents an object that can handle combat events
type EventListener interface {
	HandleEvent(event *GameEvent) error
	Priority() int
}

// ListenerFunc adapts a function into an EventListener
type ListenerFunc struct {
	Fn    func(event *GameEvent) error
	Order int
}

// HandleEvent calls the wrapped function
func (l *ListenerFunc) HandleEvent(event *GameEvent) error {
	return l.Fn(event)
}

// Priority returns the configured order
func (l *ListenerFunc) Priority() int {
	return l.Order
}
