package models

import "time"

// AcademicYear scopes billings and enrollments to a school year.
type AcademicYear struct {
	ID        string    `db:"id" json:"id"`
	Label     string    `db:"label" json:"label"`
	StartDate time.Time `db:"start_date" json:"startDate"`
	EndDate   time.Time `db:"end_date" json:"endDate"`
	Active    bool      `db:"active" json:"active"`
}
