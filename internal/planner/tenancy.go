package planner

import (
	"context"
	"fmt"
	"strconv"

	"github.com/christopher-besch/chore-planner/internal/model"
	"github.com/christopher-besch/chore-planner/internal/naming"
	"github.com/christopher-besch/chore-planner/internal/store"
	"github.com/christopher-besch/chore-planner/internal/week"
)

func tenantByName(ctx context.Context, q *store.Queries, name string) (*model.Tenant, error) {
	t, err := q.Tenants.GetTenantByName(ctx, naming.Canonical(name))
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("%w: %s", ErrTenantNotFound, naming.Canonical(name))
	}
	return t, nil
}

// ResolveTenant returns who lives in room during w, or nil.
func (e *Engine) ResolveTenant(ctx context.Context, w week.Week, room string) (*model.Tenant, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queries().Tenants.ResidentOf(ctx, naming.Canonical(room), w)
}

// ResolveRoom returns the room tenant lives in during w, or nil. Unknown
// tenants live nowhere.
func (e *Engine) ResolveRoom(ctx context.Context, w week.Week, tenant string) (*string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	q := e.queries()
	t, err := q.Tenants.GetTenantByName(ctx, naming.Canonical(tenant))
	if err != nil || t == nil {
		return nil, err
	}
	tenancy, err := q.Tenants.ActiveTenancy(ctx, t.ID, w)
	if err != nil || tenancy == nil {
		return nil, err
	}
	return &tenancy.Room, nil
}

// freeChatTag returns tag, or tag with the smallest numeric suffix from 2 on
// that no tenant other than selfID holds.
func freeChatTag(ctx context.Context, q *store.Queries, tag string, selfID int64) (string, error) {
	candidate := tag
	for n := 2; ; n++ {
		taken, err := q.Tenants.ChatTagTaken(ctx, candidate, selfID)
		if err != nil || !taken {
			return candidate, err
		}
		candidate = tag + strconv.Itoa(n)
	}
}

// openTenancy houses t in room from w on. Both must be free for every week
// from w on, including tenancies that only start later.
func openTenancy(ctx context.Context, q *store.Queries, t *model.Tenant, room string, w week.Week) error {
	ok, err := q.Tenants.RoomExists(ctx, room)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrRoomNotFound, room)
	}

	tenancies, err := q.Tenants.ListTenancies(ctx)
	if err != nil {
		return err
	}
	span := week.Open(w)
	for _, other := range tenancies {
		if !other.Span.Overlaps(span) {
			continue
		}
		if other.Room == room {
			return fmt.Errorf("%w: %s from %s", ErrRoomOccupied, room, other.Span)
		}
		if other.TenantID == t.ID {
			return fmt.Errorf("%w: %s lives in %s %s", ErrTenantAlreadyHoused, t.Name, other.Room, other.Span)
		}
	}
	return q.Tenants.InsertTenancy(ctx, t.ID, room, w)
}

// closeTenancy ends t's tenancy at w. A tenancy that started in w is removed
// instead of leaving an empty interval behind.
func closeTenancy(ctx context.Context, q *store.Queries, t *model.Tenant, w week.Week) error {
	tenancy, err := q.Tenants.ActiveTenancy(ctx, t.ID, w)
	if err != nil {
		return err
	}
	if tenancy == nil {
		return fmt.Errorf("%w: %s in %s", ErrNotResident, t.Name, w)
	}
	if tenancy.Span.Start == w {
		return q.Tenants.DeleteTenancy(ctx, t.ID, tenancy.Room, tenancy.Span.Start)
	}
	return q.Tenants.CloseTenancy(ctx, t.ID, tenancy.Room, tenancy.Span.Start, w)
}

// OpenTenancy moves an existing tenant into room from week w on.
func (e *Engine) OpenTenancy(ctx context.Context, tenant, room string, w week.Week) (PlanDelta, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.mutate(ctx, "open tenancy", func(q *store.Queries) error {
		t, err := tenantByName(ctx, q, tenant)
		if err != nil {
			return err
		}
		return openTenancy(ctx, q, t, naming.Canonical(room), w)
	})
	if err != nil {
		return PlanDelta{}, err
	}
	return e.maintain(ctx)
}

// CloseTenancy moves tenant out effective week w.
func (e *Engine) CloseTenancy(ctx context.Context, tenant string, w week.Week) (PlanDelta, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.mutate(ctx, "close tenancy", func(q *store.Queries) error {
		t, err := tenantByName(ctx, q, tenant)
		if err != nil {
			return err
		}
		return closeTenancy(ctx, q, t, w)
	})
	if err != nil {
		return PlanDelta{}, err
	}
	return e.maintain(ctx)
}

// MoveIn houses tenant in room from the current week on. Unknown tenants are
// created; a non-nil chatTag replaces the stored one.
func (e *Engine) MoveIn(ctx context.Context, tenant string, chatTag *string, room string) (PlanDelta, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	name := naming.Canonical(tenant)
	err := e.mutate(ctx, "move in", func(q *store.Queries) error {
		w, err := e.currentWeek(ctx, q)
		if err != nil {
			return err
		}
		t, err := q.Tenants.GetTenantByName(ctx, name)
		if err != nil {
			return err
		}
		var selfID int64
		if t != nil {
			selfID = t.ID
		}
		if chatTag != nil {
			free, err := freeChatTag(ctx, q, *chatTag, selfID)
			if err != nil {
				return err
			}
			chatTag = &free
		}
		switch {
		case t == nil:
			if t, err = q.Tenants.CreateTenant(ctx, name, chatTag); err != nil {
				return err
			}
		case chatTag != nil:
			if err := q.Tenants.UpdateChatTag(ctx, t.ID, *chatTag); err != nil {
				return err
			}
		}
		return openTenancy(ctx, q, t, naming.Canonical(room), w)
	})
	if err != nil {
		return PlanDelta{}, err
	}
	e.logger.Info("tenant moved in", "tenant", name, "room", naming.Canonical(room))
	return e.maintain(ctx)
}

// MoveOut ends tenant's tenancy at the current week.
func (e *Engine) MoveOut(ctx context.Context, tenant string) (PlanDelta, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.mutate(ctx, "move out", func(q *store.Queries) error {
		w, err := e.currentWeek(ctx, q)
		if err != nil {
			return err
		}
		t, err := tenantByName(ctx, q, tenant)
		if err != nil {
			return err
		}
		return closeTenancy(ctx, q, t, w)
	})
	if err != nil {
		return PlanDelta{}, err
	}
	e.logger.Info("tenant moved out", "tenant", naming.Canonical(tenant))
	return e.maintain(ctx)
}

// MarkUnwilling excludes tenant from new assignments in week w and retracts
// an assignment they already hold that week.
func (e *Engine) MarkUnwilling(ctx context.Context, tenant string, w week.Week) (PlanDelta, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.mutate(ctx, "mark unwilling", func(q *store.Queries) error {
		t, err := tenantByName(ctx, q, tenant)
		if err != nil {
			return err
		}
		return q.Tenants.MarkUnwilling(ctx, t.ID, w)
	})
	if err != nil {
		return PlanDelta{}, err
	}
	return e.maintain(ctx)
}

// CreateRoom adds an empty room. Room names are canonicalised like tenant
// names.
func (e *Engine) CreateRoom(ctx context.Context, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	room := naming.Canonical(name)
	return e.mutate(ctx, "create room", func(q *store.Queries) error {
		ok, err := q.Tenants.RoomExists(ctx, room)
		if err != nil {
			return err
		}
		if ok {
			return fmt.Errorf("%w: %s", ErrRoomExists, room)
		}
		return q.Tenants.CreateRoom(ctx, room)
	})
}

// RoomOverview lists every room with its current tenant, their aggregate
// score and the average rating of everything they did.
func (e *Engine) RoomOverview(ctx context.Context) ([]model.RoomStatus, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	q := e.queries()
	w, err := e.currentWeek(ctx, q)
	if err != nil {
		return nil, err
	}
	rooms, err := q.Tenants.ListRooms(ctx)
	if err != nil {
		return nil, err
	}
	st, err := loadState(ctx, q)
	if err != nil {
		return nil, err
	}
	ratings, err := q.Plan.AverageRatings(ctx)
	if err != nil {
		return nil, err
	}
	scores := st.facts.Aggregate()

	out := make([]model.RoomStatus, 0, len(rooms))
	for _, r := range rooms {
		status := model.RoomStatus{Room: r.Name}
		resident, err := q.Tenants.ResidentOf(ctx, r.Name, w)
		if err != nil {
			return nil, err
		}
		if resident != nil {
			s := scores[resident.ID]
			status.Tenant = &resident.Name
			status.ChatTag = resident.ChatTag
			status.Score = &s
			if avg, ok := ratings[resident.ID]; ok {
				status.AverageRating = &avg
			}
		}
		out = append(out, status)
	}
	return out, nil
}
