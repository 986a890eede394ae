package model

import "fmt"

type Shift string

const (
	ShiftMorning   Shift = "morning"
	ShiftAfternoon Shift = "afternoon"
)

var shiftLabels = map[Shift]string{
	ShiftMorning:   "Manhã",
	ShiftAfternoon: "Tarde",
}

func (s Shift) Label() string {
	return shiftLabels[s]
}

func (s Shift) Valid() bool {
	return s == ShiftMorning || s == ShiftAfternoon
}

func ParseShift(s string) (Shift, error) {
	shift := Shift(s)
	if !shift.Valid() {
		return "", fmt.Errorf("unknown shift %q", s)
	}
	return shift, nil
}

// ShiftConfig is the active admission window and its slot ceiling.
type ShiftConfig struct {
	CurrentShift            Shift  `db:"current_shift" json:"current_shift"`
	ShiftDate               string `db:"shift_date" json:"shift_date"`
	MaxAppointmentsPerShift int    `db:"max_appointments_per_shift" json:"max_appointments_per_shift"`
}

// ShiftStatus is the capacity snapshot shown at the kiosk and dashboard.
type ShiftStatus struct {
	Config         ShiftConfig `json:"config"`
	ShiftLabel     string      `json:"shift_label"`
	Used           int         `json:"used"`
	AvailableSlots int         `json:"available_slots"`
	CanAdmit       bool        `json:"can_admit"`
}
