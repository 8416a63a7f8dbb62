package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/christopher-besch/chore-planner/internal/model"
	"github.com/christopher-besch/chore-planner/internal/week"
)

type TenantStore struct {
	db DBTX
}

func NewTenantStore(db DBTX) *TenantStore {
	return &TenantStore{db: db}
}

// --- Room methods ---

func (s *TenantStore) CreateRoom(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `INSERT INTO rooms (name) VALUES (?)`, name)
	if err != nil {
		return fmt.Errorf("insert room: %w", err)
	}
	return expectRows(res, 1, "insert room")
}

func (s *TenantStore) RoomExists(ctx context.Context, name string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rooms WHERE name = ?`, name).Scan(&n); err != nil {
		return false, fmt.Errorf("room exists: %w", err)
	}
	return n > 0, nil
}

func (s *TenantStore) ListRooms(ctx context.Context) ([]model.Room, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM rooms ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	var rooms []model.Room
	for rows.Next() {
		var r model.Room
		if err := rows.Scan(&r.Name); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms = append(rooms, r)
	}
	return rooms, rows.Err()
}

// --- Tenant methods ---

func scanTenant(scanner interface{ Scan(...any) error }) (*model.Tenant, error) {
	var t model.Tenant
	var tag sql.NullString
	if err := scanner.Scan(&t.ID, &t.Name, &tag); err != nil {
		return nil, err
	}
	t.ChatTag = stringPtr(tag)
	return &t, nil
}

const tenantCols = `tenants.id, tenants.name, tenants.chat_tag`

func (s *TenantStore) CreateTenant(ctx context.Context, name string, chatTag *string) (*model.Tenant, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tenants (name, chat_tag) VALUES (?, ?)`,
		name, nullString(chatTag),
	)
	if err != nil {
		return nil, fmt.Errorf("insert tenant: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetTenantByID(ctx, id)
}

func (s *TenantStore) GetTenantByID(ctx context.Context, id int64) (*model.Tenant, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+tenantCols+` FROM tenants WHERE id = ?`, id)
	t, err := scanTenant(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	return t, nil
}

func (s *TenantStore) GetTenantByName(ctx context.Context, name string) (*model.Tenant, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+tenantCols+` FROM tenants WHERE name = ?`, name)
	t, err := scanTenant(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant by name: %w", err)
	}
	return t, nil
}

// ChatTagTaken reports whether a tenant other than exceptID holds chatTag.
func (s *TenantStore) ChatTagTaken(ctx context.Context, chatTag string, exceptID int64) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tenants WHERE chat_tag = ? AND id != ?`, chatTag, exceptID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check chat tag: %w", err)
	}
	return n > 0, nil
}

func (s *TenantStore) UpdateChatTag(ctx context.Context, id int64, chatTag string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE tenants SET chat_tag = ? WHERE id = ?`, chatTag, id)
	if err != nil {
		return fmt.Errorf("update chat tag: %w", err)
	}
	return expectRows(res, 1, "update chat tag")
}

func (s *TenantStore) ListTenants(ctx context.Context) ([]model.Tenant, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+tenantCols+` FROM tenants ORDER BY tenants.name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []model.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, *t)
	}
	return tenants, rows.Err()
}

// --- Tenancy methods ---

func scanTenancy(scanner interface{ Scan(...any) error }) (*model.Tenancy, error) {
	var t model.Tenancy
	var moveIn int64
	var moveOut sql.NullInt64
	if err := scanner.Scan(&t.TenantID, &t.Room, &moveIn, &moveOut); err != nil {
		return nil, err
	}
	t.Span = week.Span{Start: week.FromEpoch(moveIn), End: weekPtr(moveOut)}
	return &t, nil
}

const tenancyCols = `lives_in.tenant_id, lives_in.room_name, lives_in.move_in_week, lives_in.move_out_week`

// activeAt restricts lives_in to rows whose span contains the bound week.
const activeAt = `lives_in.move_in_week <= ? AND (lives_in.move_out_week IS NULL OR lives_in.move_out_week > ?)`

// ResidentOf returns the tenant living in room during w, or nil when the
// room is vacant.
func (s *TenantStore) ResidentOf(ctx context.Context, room string, w week.Week) (*model.Tenant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+tenantCols+` FROM lives_in
		 JOIN tenants ON tenants.id = lives_in.tenant_id
		 WHERE lives_in.room_name = ? AND `+activeAt,
		room, w.Epoch(), w.Epoch(),
	)
	if err != nil {
		return nil, fmt.Errorf("resident of room: %w", err)
	}
	defer rows.Close()

	var found []*model.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan resident: %w", err)
		}
		found = append(found, t)
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
		return nil, fmt.Errorf("%w: room %s has %d residents in week %s", ErrInvariantViolation, room, len(found), w)
	}
}

// ActiveTenancy returns the tenancy of tenantID covering w, or nil when the
// tenant does not live anywhere that week.
func (s *TenantStore) ActiveTenancy(ctx context.Context, tenantID int64, w week.Week) (*model.Tenancy, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+tenancyCols+` FROM lives_in WHERE lives_in.tenant_id = ? AND `+activeAt,
		tenantID, w.Epoch(), w.Epoch(),
	)
	if err != nil {
		return nil, fmt.Errorf("active tenancy: %w", err)
	}
	defer rows.Close()

	var found []*model.Tenancy
	for rows.Next() {
		t, err := scanTenancy(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tenancy: %w", err)
		}
		found = append(found, t)
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
		return nil, fmt.Errorf("%w: tenant %d lives in %d rooms in week %s", ErrInvariantViolation, tenantID, len(found), w)
	}
}

func (s *TenantStore) ListTenancies(ctx context.Context) ([]model.Tenancy, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+tenancyCols+` FROM lives_in ORDER BY lives_in.room_name, lives_in.move_in_week`)
	if err != nil {
		return nil, fmt.Errorf("list tenancies: %w", err)
	}
	defer rows.Close()

	var tenancies []model.Tenancy
	for rows.Next() {
		t, err := scanTenancy(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tenancy: %w", err)
		}
		tenancies = append(tenancies, *t)
	}
	return tenancies, rows.Err()
}

func (s *TenantStore) InsertTenancy(ctx context.Context, tenantID int64, room string, moveIn week.Week) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO lives_in (tenant_id, room_name, move_in_week, move_out_week) VALUES (?, ?, ?, NULL)`,
		tenantID, room, moveIn.Epoch(),
	)
	if err != nil {
		return fmt.Errorf("insert tenancy: %w", err)
	}
	return expectRows(res, 1, "insert tenancy")
}

// CloseTenancy sets the move-out week of the tenancy identified by its
// room and move-in week.
func (s *TenantStore) CloseTenancy(ctx context.Context, tenantID int64, room string, moveIn, moveOut week.Week) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE lives_in SET move_out_week = ?
		 WHERE tenant_id = ? AND room_name = ? AND move_in_week = ?`,
		moveOut.Epoch(), tenantID, room, moveIn.Epoch(),
	)
	if err != nil {
		return fmt.Errorf("close tenancy: %w", err)
	}
	return expectRows(res, 1, "close tenancy")
}

// DeleteTenancy removes a tenancy outright. It is used when a tenant moves
// out in the week they moved in.
func (s *TenantStore) DeleteTenancy(ctx context.Context, tenantID int64, room string, moveIn week.Week) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM lives_in WHERE tenant_id = ? AND room_name = ? AND move_in_week = ?`,
		tenantID, room, moveIn.Epoch(),
	)
	if err != nil {
		return fmt.Errorf("delete tenancy: %w", err)
	}
	return expectRows(res, 1, "delete tenancy")
}

// --- Unwilling methods ---

func (s *TenantStore) MarkUnwilling(ctx context.Context, tenantID int64, w week.Week) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO unwilling (tenant_id, week) VALUES (?, ?)`,
		tenantID, w.Epoch(),
	)
	if err != nil {
		return fmt.Errorf("mark unwilling: %w", err)
	}
	return expectRows(res, 1, "mark unwilling")
}

// UnwillingIn returns the ids of all tenants marked unwilling for w.
func (s *TenantStore) UnwillingIn(ctx context.Context, w week.Week) (map[int64]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tenant_id FROM unwilling WHERE week = ?`, w.Epoch())
	if err != nil {
		return nil, fmt.Errorf("list unwilling: %w", err)
	}
	defer rows.Close()

	unwilling := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan unwilling: %w", err)
		}
		unwilling[id] = true
	}
	return unwilling, rows.Err()
}
