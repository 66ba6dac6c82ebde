// Package categories manages the registry of names an expense may be filed under.
package categories

import (
	"context"
	"fmt"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
)

// Registry reads and writes categories through the store on every call.
// Nothing is cached, so concurrent writers are always observed.
type Registry struct {
	repo   ledger.CategoryRepository
	logger *log.Logger
}

func NewRegistry(repo ledger.CategoryRepository, logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Registry{repo: repo, logger: logger.WithComponent(log.ComponentCategories)}
}

// SeedDefaults inserts the built-in categories when the registry is empty and
// reports whether it did.
func (r *Registry) SeedDefaults(ctx context.Context) (bool, error) {
	n, err := r.repo.CountCategories(ctx)
	if err != nil {
		return false, fmt.Errorf("count categories: %w", err)
	}
	if n > 0 {
		return false, nil
	}

	defaults := make([]core.Category, len(core.DefaultCategories))
	for i, name := range core.DefaultCategories {
		defaults[i] = core.Category{Name: name, IsCustom: false}
	}
	if err := r.repo.InsertCategories(ctx, defaults); err != nil {
		return false, fmt.Errorf("seed default categories: %w", err)
	}

	r.logger.InfoContext(ctx, "Default categories seeded", "count", len(defaults))
	return true, nil
}

// Add registers a custom category. Blank and already registered names are
// ignored; the result reports whether a row was added. Names are compared
// case-sensitively after trimming.
func (r *Registry) Add(ctx context.Context, name string) (bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return false, nil
	}

	exists, err := r.repo.CategoryExists(ctx, name)
	if err != nil {
		return false, fmt.Errorf("check category: %w", err)
	}
	if exists {
		r.logger.DebugContext(ctx, "Category already registered", log.FieldCategory, name)
		return false, nil
	}

	if err := r.repo.InsertCategory(ctx, core.Category{Name: name, IsCustom: true}); err != nil {
		return false, fmt.Errorf("add category: %w", err)
	}
	r.logger.InfoContext(ctx, "Category added", log.FieldCategory, name)
	return true, nil
}

// Remove deletes the category row. Expenses filed under it keep the name.
func (r *Registry) Remove(ctx context.Context, name string) error {
	if err := r.repo.DeleteCategory(ctx, name); err != nil {
		return fmt.Errorf("remove category: %w", err)
	}
	r.logger.InfoContext(ctx, "Category removed", log.FieldCategory, name)
	return nil
}

// List returns every category ordered by name.
func (r *Registry) List(ctx context.Context) ([]core.Category, error) {
	cats, err := r.repo.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

// ListNames returns category names in ascending lexicographic order.
func (r *Registry) ListNames(ctx context.Context) ([]string, error) {
	cats, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = c.Name
	}
	return names, nil
}

func (r *Registry) Exists(ctx context.Context, name string) (bool, error) {
	ok, err := r.repo.CategoryExists(ctx, name)
	if err != nil {
		return false, fmt.Errorf("check category: %w", err)
	}
	return ok, nil
}

// OrphanedCategories returns the category names referenced by expenses that
// are no longer registered.
func (r *Registry) OrphanedCategories(ctx context.Context) ([]string, error) {
	used, err := r.repo.ExpenseCategoryNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expense categories: %w", err)
	}
	registered, err := r.ListNames(ctx)
	if err != nil {
		return nil, err
	}

	known := make(map[string]struct{}, len(registered))
	for _, name := range registered {
		known[name] = struct{}{}
	}

	orphans := make([]string, 0)
	for _, name := range used {
		if _, ok := known[name]; !ok {
			orphans = append(orphans, name)
		}
	}
	return orphans, nil
}
