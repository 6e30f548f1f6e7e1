// Package review gates every synthesized draft behind an explicit decision, dispatches
// approved emails and records the outcome on the lead.
package review

import (
	"fmt"
	"slices"

	"github.com/rotisserie/eris"
)

// State is a step of the review/dispatch lifecycle of one draft.
type State int

const (
	Pending State = iota
	Reviewing
	// AwaitingDecision is persisted as REVIEW_PENDING and resumed by a later review.
	AwaitingDecision
	Approved
	Skipped
	Sending
	Sent
	SendFailed
	// Previewed is an approved draft handed to a dry-run sender. Nothing was delivered.
	Previewed
)

var stateNames = map[State]string{
	Pending:          "pending",
	Reviewing:        "reviewing",
	AwaitingDecision: "awaiting_decision",
	Approved:         "approved",
	Skipped:          "skipped",
	Sending:          "sending",
	Sent:             "sent",
	SendFailed:       "send_failed",
	Previewed:        "previewed",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}

var transitions = map[State][]State{
	Pending:          {Reviewing},
	Reviewing:        {Approved, Skipped, AwaitingDecision},
	AwaitingDecision: {Reviewing},
	Approved:         {Sending},
	Sending:          {Sent, SendFailed, Previewed},
}

// ErrIllegalTransition is wrapped by Machine.To for transitions outside the table.
var ErrIllegalTransition = eris.New("review: illegal state transition")

// Machine tracks one draft's state.
type Machine struct {
	state   State
	history []State
}

// NewMachine starts in from, which is Pending for fresh drafts and AwaitingDecision for
// drafts resumed from the lead source.
func NewMachine(from State) *Machine {
	return &Machine{state: from, history: []State{from}}
}

func (m *Machine) State() State { return m.state }

// History lists every state entered, starting with the initial one.
func (m *Machine) History() []State { return append([]State(nil), m.history...) }

func (m *Machine) To(next State) error {
	if !slices.Contains(transitions[m.state], next) {
		return eris.Wrapf(ErrIllegalTransition, "%s -> %s", m.state, next)
	}
	m.state = next
	m.history = append(m.history, next)
	return nil
}
