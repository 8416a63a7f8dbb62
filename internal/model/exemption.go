package model

import "github.com/christopher-besch/chore-planner/internal/week"

type ExemptionReason struct {
	ID     int64  `json:"id"`
	Reason string `json:"reason"`
}

// Exemption is one TenantExemption row.
type Exemption struct {
	TenantID int64     `json:"tenant_id"`
	ReasonID int64     `json:"reason_id"`
	Span     week.Span `json:"span"`
}

// ChoreExemption links an exemption reason to a chore it excuses.
type ChoreExemption struct {
	ChoreID  int64 `json:"chore_id"`
	ReasonID int64 `json:"reason_id"`
}

// ExemptionOverview summarises a reason for reporting.
type ExemptionOverview struct {
	Reason  string   `json:"reason"`
	Chores  []string `json:"chores"`
	Tenants []string `json:"tenants"`
}
