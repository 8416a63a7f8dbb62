package model

import "github.com/christopher-besch/chore-planner/internal/week"

// ChoreLog is the assignment of one chore in one week. (ChoreID, Week) is
// the primary key. Completed may only be set once PollRef is set.
type ChoreLog struct {
	ChoreID   int64     `json:"chore_id"`
	Week      week.Week `json:"week"`
	WorkerID  int64     `json:"worker_id"`
	Completed bool      `json:"completed"`
	PollRef   *string   `json:"poll_ref"`
}

type Rating struct {
	ID      int64     `json:"id"`
	ChoreID int64     `json:"chore_id"`
	Week    week.Week `json:"week"`
	Rating  int       `json:"rating"`
}

// Assignment is a ChoreLog joined with the names needed for reporting.
type Assignment struct {
	Chore         string    `json:"chore"`
	Week          week.Week `json:"week"`
	Tenant        string    `json:"tenant"`
	ChatTag       *string   `json:"chat_tag"`
	Completed     bool      `json:"completed"`
	PollRef       *string   `json:"poll_ref"`
	AverageRating *float64  `json:"average_rating"`
}
