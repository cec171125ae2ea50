package atb

import (
	"sort"
)

// Kind is the closed set of things an actor can declare
type Kind string

const (
	KindAttack   Kind = "attack"
	KindMove     Kind = "move"
	KindAptitude Kind = "aptitude"
	KindItem     Kind = "item"
	KindWait     Kind = "wait"
	KindReaction Kind = "reaction"
)

// Kinds lists every descriptor kind in declaration order
func Kinds() []Kind {
	return []Kind{KindAttack, KindMove, KindAptitude, KindItem, KindWait, KindReaction}
}

// Valid reports whether k is one of the known kinds
func (k Kind) Valid() bool {
	switch k {
	case KindAttack, KindMove, KindAptitude, KindItem, KindWait, KindReaction:
		return true
	}
	return false
}

// Phase is where a card is in its init/exec/rec lifecycle
type Phase string

const (
	PhaseInit Phase = "init"
	PhaseExec Phase = "exec"
	PhaseRec  Phase = "rec"
	PhaseDone Phase = "done"
)

// CT is the tick cost of an action split into its three phases
type CT struct {
	Init int `json:"init" yaml:"init"`
	Exec int `json:"exec" yaml:"exec"`
	Rec  int `json:"rec" yaml:"rec"`
}

// Total is the full cost in ticks
func (c CT) Total() int {
	return c.Init + c.Exec + c.Rec
}

// Add applies a delta, clamping each phase at zero
func (c CT) Add(delta CT) CT {
	return CT{
		Init: clampZero(c.Init + delta.Init),
		Exec: clampZero(c.Exec + delta.Exec),
		Rec:  clampZero(c.Rec + delta.Rec),
	}
}

func clampZero(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

// Position is a square on the battle grid
type Position struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// Distance is the number of king moves between two squares
func (p Position) Distance(o Position) int {
	dx := p.X - o.X
	if dx < 0 {
		dx = -dx
	}
	dy := p.Y - o.Y
	if dy < 0 {
		dy = -dy
	}
	if dx > dy {
		return dx
	}
	return dy
}

// Meta carries the declaration details a descriptor hands to its action
type Meta struct {
	TargetID string            `json:"targetId,omitempty" yaml:"target,omitempty"`
	To       *Position         `json:"to,omitempty" yaml:"to,omitempty"`
	Ticks    int               `json:"ticks,omitempty" yaml:"ticks,omitempty"`
	Notes    map[string]string `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Descriptor is a queued request that has not been resolved yet
type Descriptor struct {
	Kind       Kind   `json:"kind" yaml:"kind"`
	Key        string `json:"key" yaml:"key"`
	TargetTick int    `json:"targetTick" yaml:"target_tick"`
	QOrder     int    `json:"qorder" yaml:"-"`
	Meta       Meta   `json:"meta" yaml:"meta"`
}

// Card is the single in-flight action of an actor
type Card struct {
	ActorID         string `json:"actorId"`
	ActionKey       string `json:"actionKey"`
	Kind            Kind   `json:"kind"`
	Init            int    `json:"I"`
	Exec            int    `json:"E"`
	Rec             int    `json:"R"`
	Phase           Phase  `json:"phase"`
	TicksLeft       int    `json:"ticksLeft"`
	PlacementTick   int    `json:"placementTick"`
	PlacementOrder  int    `json:"placementOrder"`
	ExecOrder       int    `json:"execOrder"`
	StartedThisTick bool   `json:"startedThisTick"`
	Promoted        bool   `json:"promoted,omitempty"`
	Reaction        bool   `json:"reaction,omitempty"`
	Meta            Meta   `json:"meta"`
}

// CT returns the card's cost
func (c *Card) CT() CT {
	return CT{Init: c.Init, Exec: c.Exec, Rec: c.Rec}
}

// ActorSchedule is one actor's queue, in-flight card and bonus ledger
type ActorSchedule struct {
	Queue   []*Descriptor `json:"queue"`
	Current *Card         `json:"current"`
	Mods    *Ledger       `json:"mods"`
}

// State is the scheduler document for one combat
type State struct {
	Tick             int                       `json:"tick"`
	PlacementCounter int                       `json:"placementCounter"`
	QOrderCounter    int                       `json:"qOrderCounter"`
	Actors           map[string]*ActorSchedule `json:"actors"`
	ExecHold         []string                  `json:"execHold"`
	HoldBuilt        bool                      `json:"holdBuilt,omitempty"`
	PendingDecision  *Decision                 `json:"pendingDecision,omitempty"`
	PendingEffects   *PendingEffects           `json:"pendingEffects,omitempty"`
}

// PendingEffects are the remainder of an effect batch paused on a decision
type PendingEffects struct {
	ActorID string   `json:"actorId"`
	Effects []Effect `json:"effects"`
}

// NewState creates an empty scheduler document
func NewState() *State {
	return &State{
		Actors: make(map[string]*ActorSchedule),
	}
}

// Actor returns the schedule for an actor, creating it on first use
func (s *State) Actor(actorID string) *ActorSchedule {
	if s.Actors == nil {
		s.Actors = make(map[string]*ActorSchedule)
	}
	sched, ok := s.Actors[actorID]
	if !ok {
		sched = &ActorSchedule{Mods: &Ledger{}}
		s.Actors[actorID] = sched
	}
	if sched.Mods == nil {
		sched.Mods = &Ledger{}
	}
	return sched
}

// ActorIDs returns every scheduled actor in a stable order
func (s *State) ActorIDs() []string {
	ids := make([]string, 0, len(s.Actors))
	for id := range s.Actors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Enqueue adds a descriptor to the actor's queue, stamping its qorder
func (s *State) Enqueue(actorID string, desc *Descriptor) *Descriptor {
	s.QOrderCounter++
	desc.QOrder = s.QOrderCounter

	sched := s.Actor(actorID)
	idx := sort.Search(len(sched.Queue), func(i int) bool {
		q := sched.Queue[i]
		if q.TargetTick != desc.TargetTick {
			return q.TargetTick > desc.TargetTick
		}
		return q.QOrder > desc.QOrder
	})
	sched.Queue = append(sched.Queue, nil)
	copy(sched.Queue[idx+1:], sched.Queue[idx:])
	sched.Queue[idx] = desc
	return desc
}

// Idle reports whether no actor has anything queued or in flight
func (s *State) Idle() bool {
	for _, sched := range s.Actors {
		if sched.Current != nil || len(sched.Queue) > 0 {
			return false
		}
	}
	return len(s.ExecHold) == 0 && s.PendingDecision == nil
}

// eligible returns the head of the queue when it is due at tick
func (a *ActorSchedule) eligible(tick int) *Descriptor {
	if len(a.Queue) == 0 {
		return nil
	}
	if head := a.Queue[0]; head.TargetTick <= tick {
		return head
	}
	return nil
}
