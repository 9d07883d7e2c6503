package models

// Student is the read-only directory view of a learner used by the ledger.
type Student struct {
	ID       string `db:"id" json:"id"`
	NIS      string `db:"nis" json:"nis"`
	FullName string `db:"full_name" json:"fullName"`
	Phone    string `db:"phone" json:"phone"`
	Active   bool   `db:"active" json:"active"`
}
