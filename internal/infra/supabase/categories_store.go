package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/moneyflow/moneyflow-go/internal/domain"
	"github.com/moneyflow/moneyflow-go/internal/infra/resilience"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// --- Categories (implements port.CategoryStore) ---

// supabaseCategory maps the categories table columns.
type supabaseCategory struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	CreatedAt string `json:"created_at"`
}

func (sc supabaseCategory) toDomain() domain.Category {
	created, _ := time.Parse(time.RFC3339, sc.CreatedAt)
	return domain.Category{
		ID:        sc.ID,
		UserID:    sc.UserID,
		Name:      sc.Name,
		Kind:      domain.TransactionKind(sc.Kind),
		CreatedAt: created,
	}
}

// ListCategories fetches all categories of a user.
func (c *Client) ListCategories(ctx context.Context, userID string) ([]domain.Category, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListCategories")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	var categories []domain.Category

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("categories?user_id=eq.%s&order=created_at.asc", url.QueryEscape(userID))
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return err
			}

			if body == nil || string(body) == "[]" {
				categories = []domain.Category{}
				return nil
			}

			var rows []supabaseCategory
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode categories: %w", err)
			}

			categories = make([]domain.Category, 0, len(rows))
			for _, r := range rows {
				categories = append(categories, r.toDomain())
			}
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/categories", Err: err}
	}

	return categories, nil
}

// GetCategory fetches one category by id, scoped to the user.
func (c *Client) GetCategory(ctx context.Context, userID, categoryID string) (*domain.Category, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetCategory")
	defer span.End()
	span.SetAttributes(attribute.String("category.id", categoryID))

	var category *domain.Category

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("categories?user_id=eq.%s&id=eq.%s&limit=1",
				url.QueryEscape(userID), url.QueryEscape(categoryID))
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return err
			}

			if body == nil || string(body) == "[]" {
				return &domain.ErrNotFound{Resource: "category", ID: categoryID}
			}

			var rows []supabaseCategory
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode category: %w", err)
			}
			if len(rows) == 0 {
				return &domain.ErrNotFound{Resource: "category", ID: categoryID}
			}

			cat := rows[0].toDomain()
			category = &cat
			return nil
		})
	})

	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return nil, notFound
		}
		return nil, &domain.ErrExternalService{Service: "supabase/categories", Err: err}
	}

	return category, nil
}

// FindCategoryByName looks up a category by exact name match.
// Returns (nil, nil) when no row matches; absence is not an error here.
func (c *Client) FindCategoryByName(ctx context.Context, userID, name string) (*domain.Category, error) {
	ctx, span := tracer.Start(ctx, "Supabase.FindCategoryByName")
	defer span.End()

	var category *domain.Category

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("categories?user_id=eq.%s&name=eq.%s&limit=1",
				url.QueryEscape(userID), url.QueryEscape(name))
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return err
			}

			if body == nil || string(body) == "[]" {
				return nil
			}

			var rows []supabaseCategory
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode category: %w", err)
			}
			if len(rows) > 0 {
				cat := rows[0].toDomain()
				category = &cat
			}
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/categories", Err: err}
	}

	return category, nil
}

// CreateCategory inserts a category with create-or-get semantics: the
// upsert ignores a conflicting (user_id, name) row, and when the insert is
// skipped the existing row is fetched and returned unchanged. A concurrent
// create of the same name therefore never clobbers an existing kind.
func (c *Client) CreateCategory(ctx context.Context, userID, name string, kind domain.TransactionKind) (*domain.Category, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateCategory")
	defer span.End()
	span.SetAttributes(attribute.String("category.name", name))

	var category *domain.Category

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			row := map[string]any{
				"id":      uuid.New().String(),
				"user_id": userID,
				"name":    name,
				"kind":    string(kind),
			}
			body, err := c.doPost(ctx, "categories?on_conflict=user_id,name", row,
				"resolution=ignore-duplicates,return=representation")
			if err != nil {
				return err
			}

			var rows []supabaseCategory
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode created category: %w", err)
			}
			if len(rows) > 0 {
				cat := rows[0].toDomain()
				category = &cat
			}
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/categories", Err: err}
	}

	if category == nil {
		// Insert skipped: the category already existed, return it.
		existing, err := c.FindCategoryByName(ctx, userID, name)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, &domain.ErrExternalService{
				Service: "supabase/categories",
				Err:     fmt.Errorf("upsert skipped but category %q not found", name),
			}
		}
		return existing, nil
	}

	c.logger.Info("supabase: category upserted",
		zap.String("user_id", userID),
		zap.String("category_id", category.ID),
		zap.String("kind", string(category.Kind)),
	)

	return category, nil
}
