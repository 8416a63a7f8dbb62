package model

// Chore is a recurring weekly job. Inactive chores keep their history but
// are not planned.
type Chore struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Active      bool   `json:"active"`
}
