package workflows

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/tally/internal/models"
)

// Repository is the slice of the store seeding needs.
type Repository interface {
	WorkflowByName(ctx context.Context, name string) (*models.Workflow, error)
	CreateWorkflow(ctx context.Context, w models.Workflow) (models.Workflow, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	CreateUser(ctx context.Context, u models.User) (models.User, error)
}

// SeedResult counts what Seed created.
type SeedResult struct {
	Workflows int
	Users     int
}

// Seed creates every catalog workflow missing by name and, when withUsers is
// set and the directory is empty, the demo users. Running it again creates
// nothing.
func Seed(ctx context.Context, repo Repository, cat *Catalog, withUsers bool, logger zerolog.Logger) (SeedResult, error) {
	var res SeedResult
	log := logger.With().Str("component", "seed").Logger()

	for _, w := range cat.Workflows {
		existing, err := repo.WorkflowByName(ctx, w.Name)
		if err != nil {
			return res, fmt.Errorf("lookup workflow %q: %w", w.Name, err)
		}
		if existing != nil {
			continue
		}
		if _, err := repo.CreateWorkflow(ctx, w); err != nil {
			return res, fmt.Errorf("create workflow %q: %w", w.Name, err)
		}
		res.Workflows++
		log.Info().Str("workflow", w.Name).Str("slug", w.Slug).Msg("created workflow")
	}

	if !withUsers || len(cat.Users) == 0 {
		return res, nil
	}
	users, err := repo.ListUsers(ctx)
	if err != nil {
		return res, fmt.Errorf("list users: %w", err)
	}
	if len(users) > 0 {
		return res, nil
	}
	for _, u := range cat.Users {
		if _, err := repo.CreateUser(ctx, models.User{Name: u.Name, Email: u.Email, Avatar: u.Avatar}); err != nil {
			return res, fmt.Errorf("create user %q: %w", u.Name, err)
		}
		res.Users++
	}
	log.Info().Int("count", res.Users).Msg("seeded demo users")
	return res, nil
}
