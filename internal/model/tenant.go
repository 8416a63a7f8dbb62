package model

import "github.com/christopher-besch/chore-planner/internal/week"

type Room struct {
	Name string `json:"name"`
}

// Tenant names are stored in canonical form (see naming.Canonical).
type Tenant struct {
	ID      int64   `json:"id"`
	Name    string  `json:"name"`
	ChatTag *string `json:"chat_tag"`
}

// Tenancy is one LivesIn row: a tenant occupying a room during a span of weeks.
// Span.Start is the move-in week, Span.End the move-out week.
type Tenancy struct {
	TenantID int64     `json:"tenant_id"`
	Room     string    `json:"room"`
	Span     week.Span `json:"span"`
}

// Unwilling marks a tenant as not available for new assignments in one week.
type Unwilling struct {
	TenantID int64     `json:"tenant_id"`
	Week     week.Week `json:"week"`
}

// RoomStatus is one line of the room overview.
type RoomStatus struct {
	Room          string   `json:"room"`
	Tenant        *string  `json:"tenant"`
	ChatTag       *string  `json:"chat_tag"`
	Score         *float64 `json:"score"`
	AverageRating *float64 `json:"average_rating"`
}
