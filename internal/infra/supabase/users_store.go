package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/moneyflow/moneyflow-go/internal/domain"
	"github.com/moneyflow/moneyflow-go/internal/infra/resilience"
)

// --- Users (implements port.UserStore) ---

type supabaseUser struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	PasswordHash string `json:"password_hash"`
}

// GetUserByEmail looks up a user for login. Returns (nil, nil) when no
// user matches; the auth service turns that into an unauthorized error
// without leaking whether the email exists.
func (c *Client) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetUserByEmail")
	defer span.End()

	var user *domain.User

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("users?email=eq.%s&limit=1", url.QueryEscape(email))
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return err
			}

			if body == nil || string(body) == "[]" {
				return nil
			}

			var rows []supabaseUser
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode user: %w", err)
			}
			if len(rows) > 0 {
				user = &domain.User{
					ID:           rows[0].ID,
					Email:        rows[0].Email,
					Name:         rows[0].Name,
					PasswordHash: rows[0].PasswordHash,
				}
			}
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/users", Err: err}
	}

	return user, nil
}
