// Package seed loads a household description from YAML and applies it to
// the planner at startup.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/christopher-besch/chore-planner/internal/planner"
)

// Household is the root of a seed file.
//
//	rooms: [M401, M402]
//	chores:
//	  - name: Spüldienst
//	    description: Clean the kitchen
//	exemptions:
//	  Bestandsminister: [Mülldienst]
type Household struct {
	Rooms      []string            `yaml:"rooms"`
	Chores     []Chore             `yaml:"chores"`
	Exemptions map[string][]string `yaml:"exemptions"`
}

type Chore struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Planner is the part of the engine a seed needs.
type Planner interface {
	CreateRoom(ctx context.Context, name string) error
	CreateChore(ctx context.Context, name, description string) (planner.PlanDelta, error)
	CreateExemptionReason(ctx context.Context, reason string, chores []string) (planner.PlanDelta, error)
}

// Result counts what Apply created. Entries that already existed are skipped.
type Result struct {
	Rooms   int
	Chores  int
	Reasons int
	Delta   planner.PlanDelta
}

func Load(path string) (*Household, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Household, error) {
	var h Household
	if err := yaml.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	if err := h.validate(); err != nil {
		return nil, fmt.Errorf("invalid seed file: %w", err)
	}
	return &h, nil
}

func (h *Household) validate() error {
	var errs []error
	for i, r := range h.Rooms {
		if r == "" {
			errs = append(errs, fmt.Errorf("rooms[%d]: empty name", i))
		}
	}
	for i, c := range h.Chores {
		if c.Name == "" {
			errs = append(errs, fmt.Errorf("chores[%d]: empty name", i))
		}
	}
	for reason := range h.Exemptions {
		if reason == "" {
			errs = append(errs, errors.New("exemptions: empty reason"))
		}
	}
	return errors.Join(errs...)
}

// Apply creates the missing rooms, chores and exemption reasons. Running it
// again on the same household changes nothing. Existing exemption reasons keep
// their chore set.
func Apply(ctx context.Context, p Planner, h *Household, logger *slog.Logger) (Result, error) {
	var res Result
	for _, room := range h.Rooms {
		err := p.CreateRoom(ctx, room)
		switch {
		case errors.Is(err, planner.ErrRoomExists):
			continue
		case err != nil:
			return res, fmt.Errorf("seed room %s: %w", room, err)
		}
		res.Rooms++
	}

	for _, c := range h.Chores {
		delta, err := p.CreateChore(ctx, c.Name, c.Description)
		switch {
		case errors.Is(err, planner.ErrChoreExists):
			continue
		case err != nil:
			return res, fmt.Errorf("seed chore %s: %w", c.Name, err)
		}
		res.Chores++
		res.Delta.Assigned = append(res.Delta.Assigned, delta.Assigned...)
		res.Delta.Retracted = append(res.Delta.Retracted, delta.Retracted...)
	}

	for _, reason := range slices.Sorted(maps.Keys(h.Exemptions)) {
		delta, err := p.CreateExemptionReason(ctx, reason, h.Exemptions[reason])
		switch {
		case errors.Is(err, planner.ErrReasonExists):
			continue
		case err != nil:
			return res, fmt.Errorf("seed exemption reason %s: %w", reason, err)
		}
		res.Reasons++
		res.Delta.Assigned = append(res.Delta.Assigned, delta.Assigned...)
		res.Delta.Retracted = append(res.Delta.Retracted, delta.Retracted...)
	}

	logger.Info("household seeded",
		"rooms", res.Rooms,
		"chores", res.Chores,
		"reasons", res.Reasons,
		"assigned", len(res.Delta.Assigned),
	)
	return res, nil
}
