package service

import (
	"context"
	"strings"
	"time"

	"github.com/moneyflow/moneyflow-go/internal/domain"
	"github.com/moneyflow/moneyflow-go/internal/infra/observability"
	"github.com/moneyflow/moneyflow-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var financeTracer = otel.Tracer("service/finance")

// FinanceService backs the wallet/category/transaction REST surface.
// Manual entries go through the same draft + store path as the chatbot,
// so balance bookkeeping is identical for both.
type FinanceService struct {
	wallets      port.WalletStore
	categories   port.CategoryStore
	transactions port.TransactionStore
	metrics      *observability.Metrics
	logger       *zap.Logger
}

// NewFinanceService creates the finance service.
func NewFinanceService(
	wallets port.WalletStore,
	categories port.CategoryStore,
	transactions port.TransactionStore,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *FinanceService {
	return &FinanceService{
		wallets:      wallets,
		categories:   categories,
		transactions: transactions,
		metrics:      metrics,
		logger:       logger,
	}
}

// ListWallets returns the user's wallets with current balances.
func (s *FinanceService) ListWallets(ctx context.Context, userID string) ([]domain.Wallet, error) {
	ctx, span := financeTracer.Start(ctx, "FinanceService.ListWallets")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	return s.wallets.ListWallets(ctx, userID)
}

// ListCategories returns the user's categories.
func (s *FinanceService) ListCategories(ctx context.Context, userID string) ([]domain.Category, error) {
	ctx, span := financeTracer.Start(ctx, "FinanceService.ListCategories")
	defer span.End()

	return s.categories.ListCategories(ctx, userID)
}

// CreateCategory creates (or returns the existing) category for the user.
func (s *FinanceService) CreateCategory(ctx context.Context, userID string, req *domain.CreateCategoryRequest) (*domain.Category, error) {
	ctx, span := financeTracer.Start(ctx, "FinanceService.CreateCategory")
	defer span.End()

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "name is required"}
	}
	if req.Kind != domain.KindIncome && req.Kind != domain.KindExpense {
		return nil, &domain.ErrValidation{Field: "kind", Message: "kind must be INCOME or EXPENSE"}
	}

	cat, err := s.categories.CreateCategory(ctx, userID, name, req.Kind)
	if err != nil {
		return nil, err
	}
	s.logger.Info("category created",
		zap.String("user_id", userID),
		zap.String("category_id", cat.ID),
		zap.String("kind", string(cat.Kind)),
	)
	return cat, nil
}

// ListTransactions returns a page of the user's transactions, newest first.
func (s *FinanceService) ListTransactions(ctx context.Context, userID string, page, pageSize int) ([]domain.Transaction, error) {
	ctx, span := financeTracer.Start(ctx, "FinanceService.ListTransactions")
	defer span.End()

	return s.transactions.ListTransactions(ctx, userID, page, pageSize)
}

// CreateTransaction records a manual entry. The stored kind comes from the
// category, and the wallet balance moves with it.
func (s *FinanceService) CreateTransaction(ctx context.Context, userID string, req *domain.CreateTransactionRequest) (*domain.Transaction, error) {
	ctx, span := financeTracer.Start(ctx, "FinanceService.CreateTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	if req.Amount <= 0 {
		return nil, &domain.ErrValidation{Field: "amount", Message: "amount must be positive"}
	}

	wallet, err := s.wallets.GetWallet(ctx, userID, req.WalletID)
	if err != nil {
		return nil, err
	}
	category, err := s.categories.GetCategory(ctx, userID, req.CategoryID)
	if err != nil {
		return nil, err
	}

	occurredAt := time.Now()
	if req.OccurredAt != "" {
		t, err := time.Parse(time.RFC3339, req.OccurredAt)
		if err != nil {
			return nil, &domain.ErrValidation{Field: "occurred_at", Message: "must be RFC3339"}
		}
		occurredAt = t
	}

	draft := &domain.TransactionDraft{
		UserID:      userID,
		Amount:      req.Amount,
		OccurredAt:  occurredAt,
		Wallet:      wallet,
		Category:    category,
		Description: strings.TrimSpace(req.Description),
		Kind:        category.Kind,
	}

	tx, err := s.transactions.CreateTransaction(ctx, draft)
	if err != nil {
		return nil, err
	}
	s.metrics.IncrTransactionCreated()
	return tx, nil
}
