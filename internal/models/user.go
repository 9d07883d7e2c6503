package models

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleAdmin      UserRole = "ADMIN"
	RoleTreasurer  UserRole = "TREASURER"
	RoleTeacher    UserRole = "TEACHER"
	RoleStudent    UserRole = "STUDENT"
)

// LedgerManagers may mutate billings and read ledger reports.
var LedgerManagers = []UserRole{RoleSuperAdmin, RoleAdmin, RoleTreasurer}

// Actor is the authenticated identity performing a ledger operation.
type Actor struct {
	ID   string   `json:"id"`
	Role UserRole `json:"role"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
