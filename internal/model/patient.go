package model

// Patient is keyed by the SUS card number; a returning card reuses the record.
type Patient struct {
	Base
	SusCard string `db:"sus_card" json:"sus_card"`
	Name    string `db:"name" json:"name"`
}
