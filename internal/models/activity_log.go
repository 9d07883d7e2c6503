package models

import (
	"encoding/json"
	"time"
)

// ActivityAction enumerates audited mutations.
type ActivityAction string

const (
	ActivityCreateBilling       ActivityAction = "CREATE_BILLING"
	ActivityRecordPayment       ActivityAction = "RECORD_PAYMENT"
	ActivityApplyDiscount       ActivityAction = "APPLY_DISCOUNT"
	ActivityWaiveBilling        ActivityAction = "WAIVE_BILLING"
	ActivitySetInstallment      ActivityAction = "SET_INSTALLMENT"
	ActivityUpdateStudentStatus ActivityAction = "UPDATE_STUDENT_STATUS"
)

// Entity types referenced by activity logs.
const (
	EntityBilling = "BILLING"
	EntityStudent = "STUDENT"
)

// ActivityLog is an append-only audit record written with the mutation it describes.
type ActivityLog struct {
	ID         string          `db:"id" json:"id"`
	ActorID    string          `db:"actor_id" json:"actorId"`
	ActorRole  UserRole        `db:"actor_role" json:"actorRole"`
	Action     ActivityAction  `db:"action" json:"action"`
	EntityType string          `db:"entity_type" json:"entityType"`
	EntityID   string          `db:"entity_id" json:"entityId"`
	Details    json.RawMessage `db:"details" json:"details"`
	CreatedAt  time.Time       `db:"created_at" json:"createdAt"`
}

// ActivityLogFilter constrains audit listings.
type ActivityLogFilter struct {
	EntityType string
	EntityID   string
	ActorID    string
	Action     ActivityAction
	Page       int
	PageSize   int
}
