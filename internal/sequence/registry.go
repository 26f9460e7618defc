// Package sequence provides the static registry of nurture sequence
// definitions. Definitions are code-defined configuration: the registry is a
// pure lookup with no side effects, consulted only to determine future due
// steps for an enrollment. Already-recorded send timestamps are facts and are
// never reinterpreted when a definition changes.
package sequence

import (
	"fmt"
	"sort"

	"nurture_backend/platform/apperr"
)

// Step is one offset-day entry of a sequence definition.
type Step struct {
	// OffsetDays is the number of days after enrollment the step becomes due.
	OffsetDays int
	// TemplateID identifies the email template the mail sender should use.
	TemplateID string
}

// Definition is a named, ordered list of steps.
type Definition struct {
	ID    string
	Name  string
	Steps []Step
}

// Registry holds all known sequence definitions.
type Registry struct {
	defs     map[string]Definition
	triggers map[string]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		defs:     make(map[string]Definition),
		triggers: make(map[string]string),
	}
}

// Register adds a definition. Offsets must be strictly increasing with no
// duplicates; violations are programmer errors and panic at startup.
func (r *Registry) Register(def Definition) {
	if def.ID == "" {
		panic("sequence: definition requires an id")
	}
	if len(def.Steps) == 0 {
		panic(fmt.Sprintf("sequence %q: definition requires at least one step", def.ID))
	}
	if _, exists := r.defs[def.ID]; exists {
		panic(fmt.Sprintf("sequence %q: already registered", def.ID))
	}

	prev := -1
	for i, step := range def.Steps {
		if step.OffsetDays < 0 {
			panic(fmt.Sprintf("sequence %q: step %d has negative offset", def.ID, i))
		}
		if step.OffsetDays <= prev {
			panic(fmt.Sprintf("sequence %q: step offsets must be strictly increasing", def.ID))
		}
		if step.TemplateID == "" {
			panic(fmt.Sprintf("sequence %q: step %d has no template", def.ID, i))
		}
		prev = step.OffsetDays
	}

	r.defs[def.ID] = def
}

// BindTrigger maps an inbound trigger event to a sequence id.
func (r *Registry) BindTrigger(triggerEvent, sequenceID string) {
	if _, ok := r.defs[sequenceID]; !ok {
		panic(fmt.Sprintf("sequence: trigger %q bound to unknown sequence %q", triggerEvent, sequenceID))
	}
	r.triggers[triggerEvent] = sequenceID
}

// Resolve returns the ordered steps of a sequence. The slice is a copy;
// callers cannot mutate the registry through it.
func (r *Registry) Resolve(sequenceID string) ([]Step, error) {
	def, ok := r.defs[sequenceID]
	if !ok {
		return nil, apperr.NotFound("unknown sequence: " + sequenceID)
	}
	steps := make([]Step, len(def.Steps))
	copy(steps, def.Steps)
	return steps, nil
}

// ForTrigger returns the sequence id bound to a trigger event.
func (r *Registry) ForTrigger(triggerEvent string) (string, error) {
	id, ok := r.triggers[triggerEvent]
	if !ok {
		return "", apperr.Validation("unknown trigger event: " + triggerEvent)
	}
	return id, nil
}

// IDs returns all registered sequence ids, sorted for stable iteration.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.defs))
	for id := range r.defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
