package devices

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dd0wney/cluso-relaysim/pkg/circuit"
)

var ErrPositionOutOfRange = errors.New("lever position out of range")

// LeverConditionType selects how a condition matches lever positions
type LeverConditionType uint8

const (
	// Exact matches a single position
	Exact LeverConditionType = iota
	// Range matches From through To
	Range
)

func (t LeverConditionType) String() string {
	if t == Range {
		return "range"
	}
	return "exact"
}

// ParseLeverConditionType parses the names produced by
// LeverConditionType.String
func ParseLeverConditionType(s string) (LeverConditionType, error) {
	switch s {
	case "", "exact":
		return Exact, nil
	case "range":
		return Range, nil
	}
	return Exact, fmt.Errorf("unknown lever condition type %q", s)
}

// LeverCondition is one set of positions that makes a contact. A range that
// wraps covers From up to the last position and the first position up to To.
type LeverCondition struct {
	Type  LeverConditionType
	From  int
	To    int
	Wraps bool
}

func (c LeverCondition) matches(pos int) bool {
	if c.Type == Exact {
		return pos == c.From
	}
	if c.Wraps {
		return pos >= c.From || pos <= c.To
	}
	return c.From <= pos && pos <= c.To
}

func (c LeverCondition) covers(lo, hi int) []int {
	var out []int
	for p := lo; p <= hi; p++ {
		if c.matches(p) {
			out = append(out, p)
		}
	}
	return out
}

// LeverContact is a deviator made Down while any of its conditions matches
// the lever position and Up otherwise
type LeverContact struct {
	Node       circuit.NodeID
	Conditions []LeverCondition
}

// LeverConfig describes a lever with integer positions Min through Max
type LeverConfig struct {
	Name         string
	Min, Max     int
	Normal       int
	SpringReturn bool
	Contacts     []LeverContact
}

// Lever is a hand lever. Each contact has its own position conditions.
type Lever struct {
	cfg      LeverConfig
	set      *Set
	position int
}

// Name returns the lever label
func (l *Lever) Name() string { return l.cfg.Name }

// Position returns the current position
func (l *Lever) Position() int { return l.position }

// Config returns a copy of the configuration with sanitized conditions
func (l *Lever) Config() LeverConfig {
	cfg := l.cfg
	cfg.Contacts = make([]LeverContact, len(l.cfg.Contacts))
	for i, c := range l.cfg.Contacts {
		cfg.Contacts[i] = LeverContact{
			Node:       c.Node,
			Conditions: append([]LeverCondition(nil), c.Conditions...),
		}
	}
	return cfg
}

// SetPosition moves the lever and drives every contact
func (l *Lever) SetPosition(pos int) error {
	if pos < l.cfg.Min || pos > l.cfg.Max {
		return fmt.Errorf("lever %s: %d not in [%d, %d]: %w", l.cfg.Name, pos, l.cfg.Min, l.cfg.Max, ErrPositionOutOfRange)
	}
	if pos == l.position {
		return nil
	}
	l.position = pos
	l.set.transition("lever", l.cfg.Name, fmt.Sprintf("%d", pos))
	return l.apply()
}

// Release lets go of the lever. A spring return lever goes back to its
// normal position; others stay put.
func (l *Lever) Release() error {
	if !l.cfg.SpringReturn {
		return nil
	}
	return l.SetPosition(l.cfg.Normal)
}

func (l *Lever) apply() error {
	for _, c := range l.cfg.Contacts {
		down := false
		for _, cond := range c.Conditions {
			if cond.matches(l.position) {
				down = true
				break
			}
		}
		if err := l.set.graph.SetContactState(c.Node, !down, down); err != nil {
			return fmt.Errorf("lever %s: %w", l.cfg.Name, err)
		}
	}
	return nil
}

// SanitizeConditions clamps conditions to [lo, hi], normalizes them and
// drops any condition overlapping one that sorts before it. Conditions are
// sorted by From, ranges before exact positions.
func SanitizeConditions(conds []LeverCondition, lo, hi int) []LeverCondition {
	out := make([]LeverCondition, 0, len(conds))
	for _, c := range conds {
		c.From = min(max(c.From, lo), hi)
		c.To = min(max(c.To, lo), hi)
		if c.Type == Exact {
			c.To = c.From
			c.Wraps = false
		} else if !c.Wraps && c.To < c.From {
			c.To = c.From
		}
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.From != b.From {
			return a.From < b.From
		}
		if a.Type != b.Type {
			return a.Type > b.Type
		}
		return a.To < b.To
	})

	taken := make(map[int]bool)
	kept := out[:0]
outer:
	for _, c := range out {
		positions := c.covers(lo, hi)
		for _, p := range positions {
			if taken[p] {
				continue outer
			}
		}
		for _, p := range positions {
			taken[p] = true
		}
		kept = append(kept, c)
	}
	return kept
}
