// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/moneyflow/moneyflow-go/internal/domain"
)

// CompletionCaller invokes the language model with a prompt and returns
// its raw completion.
type CompletionCaller interface {
	Complete(ctx context.Context, prompt string) (*domain.Completion, error)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

// WalletStore exposes a user's wallets.
type WalletStore interface {
	ListWallets(ctx context.Context, userID string) ([]domain.Wallet, error)
	GetWallet(ctx context.Context, userID, walletID string) (*domain.Wallet, error)
}

// CategoryStore exposes category lookup and creation.
// FindCategoryByName returns (nil, nil) when no category matches;
// CreateCategory is an atomic create-or-get on (user, name).
type CategoryStore interface {
	ListCategories(ctx context.Context, userID string) ([]domain.Category, error)
	GetCategory(ctx context.Context, userID, categoryID string) (*domain.Category, error)
	FindCategoryByName(ctx context.Context, userID, name string) (*domain.Category, error)
	CreateCategory(ctx context.Context, userID, name string, kind domain.TransactionKind) (*domain.Category, error)
}

// TransactionStore persists transactions. CreateTransaction also adjusts
// the wallet balance: +amount for INCOME, -amount for EXPENSE.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, draft *domain.TransactionDraft) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, userID string, page, pageSize int) ([]domain.Transaction, error)
}

// UserStore looks up account holders for authentication.
// GetUserByEmail returns (nil, nil) when no user matches.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
}
