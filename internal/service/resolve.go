package service

import (
	"context"
	"strings"

	"github.com/moneyflow/moneyflow-go/internal/domain"
)

// ResolveWallet matches a wallet reference against the user's wallets.
// Matching is case-insensitive but otherwise exact; no fuzzy matching.
// A miss (including the unknown-wallet sentinel) means the line is dropped.
func ResolveWallet(ref string, wallets []domain.Wallet) (*domain.Wallet, bool) {
	for i := range wallets {
		if strings.EqualFold(wallets[i].Name, ref) {
			return &wallets[i], true
		}
	}
	return nil, false
}

// resolveCategory finds the user's category by name or creates it.
// New categories take kind INCOME only on an explicit income hint;
// expense and unknown hints both create EXPENSE categories.
// The store is queried per line on purpose: a category created for an
// earlier line of the same batch must resolve here, not be re-created.
func (s *ChatbotService) resolveCategory(ctx context.Context, userID, name string, hint domain.TransactionKind) (*domain.Category, error) {
	cat, err := s.categories.FindCategoryByName(ctx, userID, name)
	if err != nil {
		return nil, err
	}
	if cat != nil {
		return cat, nil
	}

	kind := domain.KindExpense
	if hint == domain.KindIncome {
		kind = domain.KindIncome
	}
	return s.categories.CreateCategory(ctx, userID, name, kind)
}
