package combat

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// EncounterStatus represents the current state of an encounter
type EncounterStatus string

const (
	EncounterStatusSetup     EncounterStatus = "setup"     // Combatants still joining
	EncounterStatusActive    EncounterStatus = "active"    // Ticks are being driven
	EncounterStatusCompleted EncounterStatus = "completed" // Encounter finished
)

// maxCombatLog bounds how much history an encounter keeps
const maxCombatLog = 50

// Encounter is the roster and running record of one combat
type Encounter struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Status      EncounterStatus       `json:"status"`
	Round       int                   `json:"round"` // Rounds elapsed, derived from ticks
	Tick        int                   `json:"tick"`  // Last tick written to the log
	Combatants  map[string]*Combatant `json:"combatants"`
	CreatedAt   time.Time             `json:"created_at"`
	StartedAt   *time.Time            `json:"started_at"`
	EndedAt     *time.Time            `json:"ended_at"`
	CreatedBy   string                `json:"created_by"` // The driver allowed to advance time
	CombatLog   []string              `json:"combat_log"`
}

// NewEncounter creates a new encounter
func NewEncounter(id, name, createdBy string) *Encounter {
	return &Encounter{
		ID:         id,
		Name:       name,
		Status:     EncounterStatusSetup,
		Combatants: make(map[string]*Combatant),
		CreatedAt:  time.Now(),
		CreatedBy:  createdBy,
		CombatLog:  []string{},
	}
}

// AddCombatant adds a new combatant to the encounter
func (e *Encounter) AddCombatant(combatant *Combatant) {
	if e.Combatants == nil {
		e.Combatants = make(map[string]*Combatant)
	}
	e.Combatants[combatant.ID] = combatant
}

// RemoveCombatant removes a combatant from the encounter
func (e *Encounter) RemoveCombatant(id string) {
	delete(e.Combatants, id)
}

// Get returns a combatant by ID
func (e *Encounter) Get(id string) (*Combatant, bool) {
	c, ok := e.Combatants[id]
	return c, ok
}

// Ordered returns every combatant sorted by ID
func (e *Encounter) Ordered() []*Combatant {
	out := make([]*Combatant, 0, len(e.Combatants))
	for _, c := range e.Combatants {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out
}

// Start moves the encounter into active play
func (e *Encounter) Start() bool {
	if e.Status != EncounterStatusSetup || len(e.Combatants) == 0 {
		return false
	}

	now := time.Now()
	e.Status = EncounterStatusActive
	e.StartedAt = &now
	e.Round = 1
	return true
}

// IsActive reports whether ticks may be driven
func (e *Encounter) IsActive() bool {
	return e.Status == EncounterStatusActive
}

// End concludes the encounter and returns everyone's wear to zero
func (e *Encounter) End() {
	now := time.Now()
	e.Status = EncounterStatusCompleted
	e.EndedAt = &now
	for _, c := range e.Combatants {
		c.ResetWear()
	}
}

// CanDrive checks if a user may advance or reset the scheduler
func (e *Encounter) CanDrive(userID string) bool {
	return userID != "" && userID == e.CreatedBy
}

// CanControl checks if a user may declare actions for a combatant
func (e *Encounter) CanControl(userID, combatantID string) bool {
	if e.CanDrive(userID) {
		return true
	}
	c, ok := e.Combatants[combatantID]
	return ok && c.ControllerID != "" && c.ControllerID == userID
}

// CheckCombatEnd reports whether only one side is still standing
func (e *Encounter) CheckCombatEnd() (shouldEnd bool, winner Side) {
	standing := map[Side]int{}
	for _, c := range e.Combatants {
		if c.IsActive {
			standing[c.Side]++
		}
	}

	if len(standing) == 1 {
		for side := range standing {
			return true, side
		}
	}
	if len(standing) == 0 && len(e.Combatants) > 0 {
		return true, ""
	}
	return false, ""
}

// AddCombatLogEntry adds an entry to the combat log
func (e *Encounter) AddCombatLogEntry(entry string) {
	if e.CombatLog == nil {
		e.CombatLog = []string{}
	}
	// Prefix with the tick so the log reads as a timeline
	logEntry := fmt.Sprintf("Tick %d: %s", e.Tick, entry)
	e.CombatLog = append(e.CombatLog, logEntry)

	// Keep only the most recent entries to prevent unbounded growth
	if len(e.CombatLog) > maxCombatLog {
		e.CombatLog = e.CombatLog[len(e.CombatLog)-maxCombatLog:]
	}
}

// MarshalJSON implements json.Marshaler
func (e *Encounter) MarshalJSON() ([]byte, error) {
	type Alias Encounter
	return json.Marshal((*Alias)(e))
}
