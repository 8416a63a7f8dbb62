package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/christopher-besch/chore-planner/internal/model"
	"github.com/christopher-besch/chore-planner/internal/week"
)

type ExemptionStore struct {
	db DBTX
}

func NewExemptionStore(db DBTX) *ExemptionStore {
	return &ExemptionStore{db: db}
}

// --- Reason methods ---

func (s *ExemptionStore) CreateReason(ctx context.Context, reason string) (*model.ExemptionReason, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO exemption_reasons (reason) VALUES (?)`, reason)
	if err != nil {
		return nil, fmt.Errorf("insert exemption reason: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return &model.ExemptionReason{ID: id, Reason: reason}, nil
}

func (s *ExemptionStore) GetReason(ctx context.Context, reason string) (*model.ExemptionReason, error) {
	var r model.ExemptionReason
	err := s.db.QueryRowContext(ctx,
		`SELECT id, reason FROM exemption_reasons WHERE reason = ?`, reason,
	).Scan(&r.ID, &r.Reason)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get exemption reason: %w", err)
	}
	return &r, nil
}

func (s *ExemptionStore) ListReasons(ctx context.Context) ([]model.ExemptionReason, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, reason FROM exemption_reasons ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list exemption reasons: %w", err)
	}
	defer rows.Close()

	var reasons []model.ExemptionReason
	for rows.Next() {
		var r model.ExemptionReason
		if err := rows.Scan(&r.ID, &r.Reason); err != nil {
			return nil, fmt.Errorf("scan exemption reason: %w", err)
		}
		reasons = append(reasons, r)
	}
	return reasons, rows.Err()
}

// --- Chore exemption methods ---

func (s *ExemptionStore) ClearReasonChores(ctx context.Context, reasonID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chore_exemptions WHERE exemption_reason_id = ?`, reasonID); err != nil {
		return fmt.Errorf("clear chore exemptions: %w", err)
	}
	return nil
}

func (s *ExemptionStore) AddReasonChore(ctx context.Context, reasonID, choreID int64) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO chore_exemptions (chore_id, exemption_reason_id) VALUES (?, ?)`,
		choreID, reasonID,
	)
	if err != nil {
		return fmt.Errorf("insert chore exemption: %w", err)
	}
	return expectRows(res, 1, "insert chore exemption")
}

func (s *ExemptionStore) ListChoreExemptions(ctx context.Context) ([]model.ChoreExemption, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chore_id, exemption_reason_id FROM chore_exemptions ORDER BY exemption_reason_id, chore_id`)
	if err != nil {
		return nil, fmt.Errorf("list chore exemptions: %w", err)
	}
	defer rows.Close()

	var links []model.ChoreExemption
	for rows.Next() {
		var l model.ChoreExemption
		if err := rows.Scan(&l.ChoreID, &l.ReasonID); err != nil {
			return nil, fmt.Errorf("scan chore exemption: %w", err)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// --- Tenant exemption methods ---

func scanExemption(scanner interface{ Scan(...any) error }) (*model.Exemption, error) {
	var e model.Exemption
	var start int64
	var end sql.NullInt64
	if err := scanner.Scan(&e.TenantID, &e.ReasonID, &start, &end); err != nil {
		return nil, err
	}
	e.Span = week.Span{Start: week.FromEpoch(start), End: weekPtr(end)}
	return &e, nil
}

const exemptionCols = `tenant_exemptions.tenant_id, tenant_exemptions.exemption_reason_id, tenant_exemptions.start_week, tenant_exemptions.end_week`

func (s *ExemptionStore) ListExemptions(ctx context.Context) ([]model.Exemption, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+exemptionCols+` FROM tenant_exemptions
		 ORDER BY tenant_exemptions.tenant_id, tenant_exemptions.exemption_reason_id, tenant_exemptions.start_week`)
	if err != nil {
		return nil, fmt.Errorf("list exemptions: %w", err)
	}
	defer rows.Close()

	var exemptions []model.Exemption
	for rows.Next() {
		e, err := scanExemption(rows)
		if err != nil {
			return nil, fmt.Errorf("scan exemption: %w", err)
		}
		exemptions = append(exemptions, *e)
	}
	return exemptions, rows.Err()
}

// ActiveExemption returns the exemption of tenantID for reasonID covering w,
// or nil when there is none.
func (s *ExemptionStore) ActiveExemption(ctx context.Context, tenantID, reasonID int64, w week.Week) (*model.Exemption, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+exemptionCols+` FROM tenant_exemptions
		 WHERE tenant_id = ? AND exemption_reason_id = ?
		 AND start_week <= ? AND (end_week IS NULL OR end_week > ?)`,
		tenantID, reasonID, w.Epoch(), w.Epoch(),
	)
	if err != nil {
		return nil, fmt.Errorf("active exemption: %w", err)
	}
	defer rows.Close()

	var found []*model.Exemption
	for rows.Next() {
		e, err := scanExemption(rows)
		if err != nil {
			return nil, fmt.Errorf("scan exemption: %w", err)
		}
		found = append(found, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch len(found) {
	case 0:
		return nil, nil
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("%w: tenant %d holds reason %d %d times in week %s",
			ErrInvariantViolation, tenantID, reasonID, len(found), w)
	}
}

func (s *ExemptionStore) Insert(ctx context.Context, tenantID, reasonID int64, start week.Week) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tenant_exemptions (tenant_id, exemption_reason_id, start_week, end_week) VALUES (?, ?, ?, NULL)`,
		tenantID, reasonID, start.Epoch(),
	)
	if err != nil {
		return fmt.Errorf("insert exemption: %w", err)
	}
	return expectRows(res, 1, "insert exemption")
}

func (s *ExemptionStore) Close(ctx context.Context, tenantID, reasonID int64, start, end week.Week) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tenant_exemptions SET end_week = ?
		 WHERE tenant_id = ? AND exemption_reason_id = ? AND start_week = ?`,
		end.Epoch(), tenantID, reasonID, start.Epoch(),
	)
	if err != nil {
		return fmt.Errorf("close exemption: %w", err)
	}
	return expectRows(res, 1, "close exemption")
}

func (s *ExemptionStore) Delete(ctx context.Context, tenantID, reasonID int64, start week.Week) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM tenant_exemptions WHERE tenant_id = ? AND exemption_reason_id = ? AND start_week = ?`,
		tenantID, reasonID, start.Epoch(),
	)
	if err != nil {
		return fmt.Errorf("delete exemption: %w", err)
	}
	return expectRows(res, 1, "delete exemption")
}

// Overview lists every reason with the active chores it excuses and the
// tenants holding it during w.
func (s *ExemptionStore) Overview(ctx context.Context, w week.Week) ([]model.ExemptionOverview, error) {
	reasons, err := s.ListReasons(ctx)
	if err != nil {
		return nil, err
	}

	overview := make([]model.ExemptionOverview, 0, len(reasons))
	for _, r := range reasons {
		chores, err := s.names(ctx,
			`SELECT chores.name FROM chore_exemptions
			 JOIN chores ON chores.id = chore_exemptions.chore_id
			 WHERE chore_exemptions.exemption_reason_id = ? AND chores.active = 1
			 ORDER BY chores.id`, r.ID)
		if err != nil {
			return nil, fmt.Errorf("exempted chores: %w", err)
		}
		tenants, err := s.names(ctx,
			`SELECT tenants.name FROM tenant_exemptions
			 JOIN tenants ON tenants.id = tenant_exemptions.tenant_id
			 WHERE tenant_exemptions.exemption_reason_id = ?
			 AND tenant_exemptions.start_week <= ?
			 AND (tenant_exemptions.end_week IS NULL OR tenant_exemptions.end_week > ?)
			 ORDER BY tenants.name`, r.ID, w.Epoch(), w.Epoch())
		if err != nil {
			return nil, fmt.Errorf("exempted tenants: %w", err)
		}
		overview = append(overview, model.ExemptionOverview{Reason: r.Reason, Chores: chores, Tenants: tenants})
	}
	return overview, nil
}

func (s *ExemptionStore) names(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}
