package dto

import "github.com/noah-isme/sma-billing-api/internal/models"

// ActivityLogQuery mirrors supported audit listing filters.
type ActivityLogQuery struct {
	EntityType string
	EntityID   string
	ActorID    string
	Action     models.ActivityAction
	Page       int
	PageSize   int
}
