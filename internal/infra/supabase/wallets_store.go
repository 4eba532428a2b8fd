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

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// --- Wallets (implements port.WalletStore) ---

// supabaseWallet maps the wallets table columns.
type supabaseWallet struct {
	ID        string  `json:"id"`
	UserID    string  `json:"user_id"`
	Name      string  `json:"name"`
	Balance   float64 `json:"balance"`
	Currency  string  `json:"currency"`
	CreatedAt string  `json:"created_at"`
}

func (w supabaseWallet) toDomain() domain.Wallet {
	created, _ := time.Parse(time.RFC3339, w.CreatedAt)
	return domain.Wallet{
		ID:        w.ID,
		UserID:    w.UserID,
		Name:      w.Name,
		Balance:   w.Balance,
		Currency:  w.Currency,
		CreatedAt: created,
	}
}

// ListWallets fetches all wallets of a user, oldest first.
func (c *Client) ListWallets(ctx context.Context, userID string) ([]domain.Wallet, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListWallets")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	var wallets []domain.Wallet

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("wallets?user_id=eq.%s&order=created_at.asc", url.QueryEscape(userID))
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return err
			}

			if body == nil || string(body) == "[]" {
				wallets = []domain.Wallet{}
				return nil
			}

			var rows []supabaseWallet
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode wallets: %w", err)
			}

			wallets = make([]domain.Wallet, 0, len(rows))
			for _, r := range rows {
				wallets = append(wallets, r.toDomain())
			}
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/wallets", Err: err}
	}

	return wallets, nil
}

// GetWallet fetches one wallet by id, scoped to the user.
func (c *Client) GetWallet(ctx context.Context, userID, walletID string) (*domain.Wallet, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetWallet")
	defer span.End()
	span.SetAttributes(attribute.String("wallet.id", walletID))

	var wallet *domain.Wallet

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("wallets?user_id=eq.%s&id=eq.%s&limit=1",
				url.QueryEscape(userID), url.QueryEscape(walletID))
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return err
			}

			if body == nil || string(body) == "[]" {
				return &domain.ErrNotFound{Resource: "wallet", ID: walletID}
			}

			var rows []supabaseWallet
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode wallet: %w", err)
			}
			if len(rows) == 0 {
				return &domain.ErrNotFound{Resource: "wallet", ID: walletID}
			}

			w := rows[0].toDomain()
			wallet = &w
			return nil
		})
	})

	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return nil, notFound
		}
		return nil, &domain.ErrExternalService{Service: "supabase/wallets", Err: err}
	}

	return wallet, nil
}

// updateWalletBalance applies a signed delta to a wallet's balance and
// re-fetches the row to confirm the update persisted.
func (c *Client) updateWalletBalance(ctx context.Context, userID, walletID string, delta float64) (*domain.Wallet, error) {
	ctx, span := tracer.Start(ctx, "Supabase.updateWalletBalance")
	defer span.End()

	w, err := c.GetWallet(ctx, userID, walletID)
	if err != nil {
		return nil, err
	}

	err = c.doPatch(ctx, fmt.Sprintf("wallets?id=eq.%s", url.QueryEscape(walletID)), map[string]any{
		"balance": w.Balance + delta,
	})
	if err != nil {
		return nil, err
	}

	updated, err := c.GetWallet(ctx, userID, walletID)
	if err != nil {
		return nil, fmt.Errorf("re-fetch after balance update: %w", err)
	}

	c.logger.Info("supabase: wallet balance updated",
		zap.String("wallet_id", updated.ID),
		zap.Float64("old_balance", w.Balance),
		zap.Float64("new_balance", updated.Balance),
	)

	return updated, nil
}
