package model

import "fmt"

// Priority is the urgency level assigned by the classifier.
type Priority string

const (
	// PriorityRed is an emergency and always goes first.
	PriorityRed    Priority = "red"
	PriorityOrange Priority = "orange"
	PriorityYellow Priority = "yellow"
	PriorityGreen  Priority = "green"
	// PriorityBlue is not urgent.
	PriorityBlue Priority = "blue"
)

// Priorities lists every level from most to least urgent.
var Priorities = []Priority{PriorityRed, PriorityOrange, PriorityYellow, PriorityGreen, PriorityBlue}

var priorityRanks = map[Priority]int{
	PriorityRed:    0,
	PriorityOrange: 1,
	PriorityYellow: 2,
	PriorityGreen:  3,
	PriorityBlue:   4,
}

var priorityLabels = map[Priority]string{
	PriorityRed:    "Emergência",
	PriorityOrange: "Muito Urgente",
	PriorityYellow: "Urgente",
	PriorityGreen:  "Pouco Urgente",
	PriorityBlue:   "Não Urgente",
}

var priorityColors = map[Priority]string{
	PriorityRed:    "#DC2626",
	PriorityOrange: "#EA580C",
	PriorityYellow: "#F59E0B",
	PriorityGreen:  "#10B981",
	PriorityBlue:   "#3B82F6",
}

// Rank orders priorities for queue sorting, red = 0. Unknown values sort last.
func (p Priority) Rank() int {
	if r, ok := priorityRanks[p]; ok {
		return r
	}
	return len(priorityRanks)
}

func (p Priority) Label() string {
	return priorityLabels[p]
}

func (p Priority) Color() string {
	return priorityColors[p]
}

func (p Priority) Valid() bool {
	_, ok := priorityRanks[p]
	return ok
}

// IsLifeThreatening returns true for the emergency band.
func (p Priority) IsLifeThreatening() bool {
	return p == PriorityRed
}

func ParsePriority(s string) (Priority, error) {
	p := Priority(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown priority %q", s)
	}
	return p, nil
}
