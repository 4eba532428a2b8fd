package domain

import "time"

// TransactionKind classifies money movement: in (INCOME) or out (EXPENSE).
// UNKNOWN only ever appears as an extraction hint, never on stored rows.
type TransactionKind string

const (
	KindIncome  TransactionKind = "INCOME"
	KindExpense TransactionKind = "EXPENSE"
	KindUnknown TransactionKind = "UNKNOWN"
)

// Wallet is a user's money container (cash, bank account, e-wallet).
type Wallet struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Balance   float64   `json:"balance"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
}

// Category labels transactions and fixes their kind: every transaction
// filed under a category inherits the category's kind.
type Category struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Name      string          `json:"name"`
	Kind      TransactionKind `json:"kind"`
	CreatedAt time.Time       `json:"created_at"`
}

// Transaction is a persisted money movement.
type Transaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	WalletID    string          `json:"wallet_id"`
	CategoryID  string          `json:"category_id"`
	Amount      float64         `json:"amount"`
	Kind        TransactionKind `json:"kind"`
	Description string          `json:"description"`
	OccurredAt  time.Time       `json:"occurred_at"`
	CreatedAt   time.Time       `json:"created_at"`
}

// TransactionDraft is a fully resolved candidate transaction, ready to
// persist. Kind is always copied from the resolved category.
type TransactionDraft struct {
	UserID      string
	Amount      float64
	OccurredAt  time.Time
	Wallet      *Wallet
	Category    *Category
	Description string
	Kind        TransactionKind
}

// User is an account holder. PasswordHash is a bcrypt hash.
type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	PasswordHash string `json:"-"`
}
