package supabase

import (
	"context"
	"encoding/json"
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

// --- Transactions (implements port.TransactionStore) ---

// supabaseTransaction maps the transactions table columns.
type supabaseTransaction struct {
	ID          string  `json:"id"`
	UserID      string  `json:"user_id"`
	WalletID    string  `json:"wallet_id"`
	CategoryID  string  `json:"category_id"`
	Amount      float64 `json:"amount"`
	Kind        string  `json:"kind"`
	Description string  `json:"description"`
	OccurredAt  string  `json:"occurred_at"`
	CreatedAt   string  `json:"created_at"`
}

func (st supabaseTransaction) toDomain() domain.Transaction {
	occurred, _ := time.Parse(time.RFC3339, st.OccurredAt)
	created, _ := time.Parse(time.RFC3339, st.CreatedAt)
	return domain.Transaction{
		ID:          st.ID,
		UserID:      st.UserID,
		WalletID:    st.WalletID,
		CategoryID:  st.CategoryID,
		Amount:      st.Amount,
		Kind:        domain.TransactionKind(st.Kind),
		Description: st.Description,
		OccurredAt:  occurred,
		CreatedAt:   created,
	}
}

// CreateTransaction inserts the row and then moves the wallet balance:
// +amount for INCOME, -amount for EXPENSE. The balance read-modify-write
// re-fetches the wallet so earlier lines of the same batch are reflected.
func (c *Client) CreateTransaction(ctx context.Context, draft *domain.TransactionDraft) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateTransaction")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", draft.UserID),
		attribute.Float64("amount", draft.Amount),
		attribute.String("kind", string(draft.Kind)),
	)

	var created *domain.Transaction

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			row := map[string]any{
				"id":          uuid.New().String(),
				"user_id":     draft.UserID,
				"wallet_id":   draft.Wallet.ID,
				"category_id": draft.Category.ID,
				"amount":      draft.Amount,
				"kind":        string(draft.Kind),
				"description": draft.Description,
				"occurred_at": draft.OccurredAt.Format(time.RFC3339),
			}
			body, err := c.doPost(ctx, "transactions", row, "return=representation")
			if err != nil {
				return err
			}

			var rows []supabaseTransaction
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode created transaction: %w", err)
			}
			if len(rows) == 0 {
				return fmt.Errorf("transaction insert returned no rows")
			}

			tx := rows[0].toDomain()
			created = &tx
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/transactions", Err: err}
	}

	delta := draft.Amount
	if draft.Kind == domain.KindExpense {
		delta = -draft.Amount
	}
	if _, err := c.updateWalletBalance(ctx, draft.UserID, draft.Wallet.ID, delta); err != nil {
		return nil, fmt.Errorf("adjust wallet balance: %w", err)
	}

	c.logger.Info("supabase: transaction created",
		zap.String("transaction_id", created.ID),
		zap.String("wallet_id", created.WalletID),
		zap.Float64("amount", created.Amount),
		zap.String("kind", string(created.Kind)),
	)

	return created, nil
}

// ListTransactions fetches a page of the user's transactions, newest first.
func (c *Client) ListTransactions(ctx context.Context, userID string, page, pageSize int) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListTransactions")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	var transactions []domain.Transaction

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("transactions?user_id=eq.%s&order=occurred_at.desc&limit=%d&offset=%d",
				url.QueryEscape(userID), pageSize, offset)
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return err
			}

			if body == nil || string(body) == "[]" {
				transactions = []domain.Transaction{}
				return nil
			}

			var rows []supabaseTransaction
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode transactions: %w", err)
			}

			transactions = make([]domain.Transaction, 0, len(rows))
			for _, r := range rows {
				transactions = append(transactions, r.toDomain())
			}
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/transactions", Err: err}
	}

	return transactions, nil
}
