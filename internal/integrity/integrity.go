// Package integrity validates the data-model guarantees that no single
// mutation can check locally. It runs after every mutation, inside the
// mutating transaction.
package integrity

import (
	"context"
	"fmt"
	"strings"

	"github.com/christopher-besch/chore-planner/internal/model"
	"github.com/christopher-besch/chore-planner/internal/naming"
	"github.com/christopher-besch/chore-planner/internal/store"
)

// Snapshot is the persisted state the checks run against.
type Snapshot struct {
	Tenants    []model.Tenant
	Tenancies  []model.Tenancy
	Exemptions []model.Exemption
	Logs       []model.ChoreLog
}

// Error lists every violated guarantee. It matches store.ErrInvariantViolation.
type Error struct {
	Violations []string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", store.ErrInvariantViolation, strings.Join(e.Violations, "; "))
}

func (e *Error) Unwrap() error { return store.ErrInvariantViolation }

type check struct {
	name string
	run  func(*Snapshot) []string
}

// checks is the complete list of guarantees validated after a mutation.
var checks = []check{
	{"tenancy ends before it starts", tenancySpansValid},
	{"exemption ends before it starts", exemptionSpansValid},
	{"tenant name not canonical", tenantNamesCanonical},
	{"room occupied twice", roomsNotShared},
	{"tenant housed twice", tenantsHousedOnce},
	{"exemption granted twice", exemptionsNotOverlapping},
	{"completed chore without poll", completedLogsPolled},
}

// Validate runs every check against s and returns nil when all hold.
func Validate(s *Snapshot) error {
	var violations []string
	for _, c := range checks {
		for _, detail := range c.run(s) {
			violations = append(violations, c.name+": "+detail)
		}
	}
	if len(violations) > 0 {
		return &Error{Violations: violations}
	}
	return nil
}

// Check runs SQLite's own consistency check, loads a Snapshot through q and
// validates it.
func Check(ctx context.Context, q *store.Queries) error {
	report, err := q.IntegrityCheck(ctx)
	if err != nil {
		return err
	}
	if len(report) != 1 || report[0] != "ok" {
		return &Error{Violations: append([]string{"storage corrupt"}, report...)}
	}

	s, err := Load(ctx, q)
	if err != nil {
		return err
	}
	return Validate(s)
}

// Load reads the Snapshot through q.
func Load(ctx context.Context, q *store.Queries) (*Snapshot, error) {
	var s Snapshot
	var err error
	if s.Tenants, err = q.Tenants.ListTenants(ctx); err != nil {
		return nil, err
	}
	if s.Tenancies, err = q.Tenants.ListTenancies(ctx); err != nil {
		return nil, err
	}
	if s.Exemptions, err = q.Exemptions.ListExemptions(ctx); err != nil {
		return nil, err
	}
	if s.Logs, err = q.Plan.ListLogs(ctx); err != nil {
		return nil, err
	}
	return &s, nil
}

func tenancySpansValid(s *Snapshot) []string {
	var out []string
	for _, t := range s.Tenancies {
		if !t.Span.Valid() {
			out = append(out, fmt.Sprintf("tenant %d in %s %s", t.TenantID, t.Room, t.Span))
		}
	}
	return out
}

func exemptionSpansValid(s *Snapshot) []string {
	var out []string
	for _, e := range s.Exemptions {
		if !e.Span.Valid() {
			out = append(out, fmt.Sprintf("tenant %d reason %d %s", e.TenantID, e.ReasonID, e.Span))
		}
	}
	return out
}

func tenantNamesCanonical(s *Snapshot) []string {
	var out []string
	for _, t := range s.Tenants {
		if !naming.IsCanonical(t.Name) {
			out = append(out, fmt.Sprintf("%q", t.Name))
		}
	}
	return out
}

func roomsNotShared(s *Snapshot) []string {
	var out []string
	for i, a := range s.Tenancies {
		for _, b := range s.Tenancies[i+1:] {
			if a.Room == b.Room && a.Span.Overlaps(b.Span) {
				out = append(out, fmt.Sprintf("%s by tenants %d %s and %d %s", a.Room, a.TenantID, a.Span, b.TenantID, b.Span))
			}
		}
	}
	return out
}

func tenantsHousedOnce(s *Snapshot) []string {
	var out []string
	for i, a := range s.Tenancies {
		for _, b := range s.Tenancies[i+1:] {
			if a.TenantID == b.TenantID && a.Span.Overlaps(b.Span) {
				out = append(out, fmt.Sprintf("tenant %d in %s %s and %s %s", a.TenantID, a.Room, a.Span, b.Room, b.Span))
			}
		}
	}
	return out
}

func exemptionsNotOverlapping(s *Snapshot) []string {
	var out []string
	for i, a := range s.Exemptions {
		for _, b := range s.Exemptions[i+1:] {
			if a.TenantID == b.TenantID && a.ReasonID == b.ReasonID && a.Span.Overlaps(b.Span) {
				out = append(out, fmt.Sprintf("tenant %d reason %d %s and %s", a.TenantID, a.ReasonID, a.Span, b.Span))
			}
		}
	}
	return out
}

func completedLogsPolled(s *Snapshot) []string {
	var out []string
	for _, l := range s.Logs {
		if l.Completed && l.PollRef == nil {
			out = append(out, fmt.Sprintf("chore %d week %s", l.ChoreID, l.Week))
		}
	}
	return out
}
