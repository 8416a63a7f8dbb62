// Package score derives fairness scores from the assignment log and the
// tenancy and exemption intervals. Nothing here is stored; every score is
// recomputed from a Facts snapshot.
package score

import (
	"sort"

	"github.com/christopher-besch/chore-planner/internal/model"
	"github.com/christopher-besch/chore-planner/internal/week"
)

// Facts is the interval and log state scores are folded from.
type Facts struct {
	Tenancies       []model.Tenancy
	Exemptions      []model.Exemption
	ChoreExemptions []model.ChoreExemption
	Logs            []model.ChoreLog
}

// Scores maps tenant ids to a signed score. Absent tenants score 0.
type Scores map[int64]float64

// Resident reports whether tenantID lives anywhere during w.
func (f *Facts) Resident(tenantID int64, w week.Week) bool {
	for _, t := range f.Tenancies {
		if t.TenantID == tenantID && t.Span.Contains(w) {
			return true
		}
	}
	return false
}

// Residents returns the ids of every tenant living anywhere during w, sorted.
func (f *Facts) Residents(w week.Week) []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	for _, t := range f.Tenancies {
		if t.Span.Contains(w) && !seen[t.TenantID] {
			seen[t.TenantID] = true
			ids = append(ids, t.TenantID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Exempt reports whether tenantID holds an exemption covering w whose reason
// excuses choreID.
func (f *Facts) Exempt(tenantID, choreID int64, w week.Week) bool {
	for _, e := range f.Exemptions {
		if e.TenantID != tenantID || !e.Span.Contains(w) {
			continue
		}
		if f.excuses(e.ReasonID, choreID) {
			return true
		}
	}
	return false
}

func (f *Facts) excuses(reasonID, choreID int64) bool {
	for _, ce := range f.ChoreExemptions {
		if ce.ReasonID == reasonID && ce.ChoreID == choreID {
			return true
		}
	}
	return false
}

// Profiting returns the tenants benefiting from choreID in week w: every
// resident not exempt from the chore at that time.
func (f *Facts) Profiting(choreID int64, w week.Week) []int64 {
	var ids []int64
	for _, id := range f.Residents(w) {
		if !f.Exempt(id, choreID, w) {
			ids = append(ids, id)
		}
	}
	return ids
}

// ByChore folds the log of choreID. The performer of each logged week gains
// 1 and the other n-1 profiting tenants lose 1/(n-1) each.
func (f *Facts) ByChore(choreID int64) Scores {
	scores := make(Scores)
	for _, l := range f.Logs {
		if l.ChoreID == choreID {
			f.add(scores, l)
		}
	}
	return scores
}

// Aggregate is the sum of ByChore over every chore in the log, inactive
// chores included.
func (f *Facts) Aggregate() Scores {
	scores := make(Scores)
	for _, l := range f.Logs {
		f.add(scores, l)
	}
	return scores
}

func (f *Facts) add(scores Scores, l model.ChoreLog) {
	profiting := f.Profiting(l.ChoreID, l.Week)
	if len(profiting) <= 1 {
		return
	}
	share := 1 / float64(len(profiting)-1)
	for _, id := range profiting {
		if id == l.WorkerID {
			scores[id]++
		} else {
			scores[id] -= share
		}
	}
}
