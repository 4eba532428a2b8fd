package service_test

import (
	"testing"
	"time"

	"github.com/moneyflow/moneyflow-go/internal/domain"
	"github.com/moneyflow/moneyflow-go/internal/service"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases", "Số Tiền: 50K", "số tiền: 50k"},
		{"strips brackets", "ví: [Tiền mặt]", "ví: tiền mặt"},
		{"composes combining marks", "c[â]y", "cây"},
		{"plain ascii untouched", "hello", "hello"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := service.Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"Số Tiền: [50k], Ví: [Tiền Mặt]",
		"xin chào, tôi giúp gì được cho bạn?",
		"c[â]y",
	}
	for _, in := range inputs {
		once := service.Normalize(in)
		twice := service.Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

func TestIsTransactional(t *testing.T) {
	if !service.IsTransactional("số tiền: 50k, ví: tiền mặt") {
		t.Error("expected line with amount keyword to be transactional")
	}
	if service.IsTransactional("xin chào, tôi có thể giúp gì cho bạn?") {
		t.Error("expected conversational reply to not be transactional")
	}
}

func TestSplitLines(t *testing.T) {
	in := "số tiền: 50k\n\n   \nsố tiền: 20k\n"
	lines := service.SplitLines(in)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %v", len(lines), lines)
	}
	if lines[0] != "số tiền: 50k" || lines[1] != "số tiền: 20k" {
		t.Errorf("unexpected lines: %v", lines)
	}
}

func TestExtractAmount(t *testing.T) {
	tests := []struct {
		line   string
		want   float64
		wantOK bool
	}{
		{"số tiền: 50k", 50_000, true},
		{"số tiền: 50000", 50_000, true},
		{"số tiền: 1.000.000 vnd", 1_000_000, true},
		{"số tiền: 120,5k", 120_500, true},
		{"số tiền: 2m", 2_000_000, true},
		{"số tiền: 2 m", 2_000_000, true},
		{"số tiền: 35vnđ", 35, true},
		{"ví: tiền mặt, danh mục: ăn uống", 0, false},
		{"số tiền: abc", 0, false},
		{"số tiền: 0", 0, false},
	}
	for _, tt := range tests {
		got, ok := service.ExtractAmount(tt.line)
		if ok != tt.wantOK {
			t.Errorf("ExtractAmount(%q) ok = %v, want %v", tt.line, ok, tt.wantOK)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("ExtractAmount(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestExtractDate(t *testing.T) {
	now := time.Date(2026, 3, 15, 14, 30, 0, 0, time.Local)

	t.Run("yesterday at start of day", func(t *testing.T) {
		got := service.ExtractDate("số tiền: 50k hôm qua", now)
		want := time.Date(2026, 3, 14, 0, 0, 0, 0, time.Local)
		if !got.Equal(want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})

	t.Run("day before yesterday at start of day", func(t *testing.T) {
		got := service.ExtractDate("hôm kia tôi mua cà phê", now)
		want := time.Date(2026, 3, 13, 0, 0, 0, 0, time.Local)
		if !got.Equal(want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})

	t.Run("explicit date", func(t *testing.T) {
		got := service.ExtractDate("ngày giao dịch: 01/02/2026", now)
		want := time.Date(2026, 2, 1, 0, 0, 0, 0, time.Local)
		if !got.Equal(want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})

	t.Run("relative wins over explicit", func(t *testing.T) {
		got := service.ExtractDate("hôm qua, ngày giao dịch: 01/02/2026", now)
		want := time.Date(2026, 3, 14, 0, 0, 0, 0, time.Local)
		if !got.Equal(want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})

	t.Run("no date falls back to now", func(t *testing.T) {
		got := service.ExtractDate("số tiền: 50k", now)
		if !got.Equal(now) {
			t.Errorf("got %v, want %v", got, now)
		}
	})

	t.Run("malformed explicit date falls back to now", func(t *testing.T) {
		got := service.ExtractDate("ngày giao dịch: 99/99/2026", now)
		if !got.Equal(now) {
			t.Errorf("got %v, want %v", got, now)
		}
	})
}

func TestExtractWalletRef(t *testing.T) {
	if got := service.ExtractWalletRef("số tiền: 50k, ví: tiền mặt, danh mục: ăn uống"); got != "tiền mặt" {
		t.Errorf("got %q, want %q", got, "tiền mặt")
	}
	if got := service.ExtractWalletRef("số tiền: 50k"); got != service.UnknownWalletRef {
		t.Errorf("got %q, want sentinel %q", got, service.UnknownWalletRef)
	}
}

func TestExtractCategoryRef(t *testing.T) {
	if got := service.ExtractCategoryRef("danh mục: ăn uống, mô tả: bún chả"); got != "ăn uống" {
		t.Errorf("got %q, want %q", got, "ăn uống")
	}
	if got := service.ExtractCategoryRef("số tiền: 50k"); got != service.DefaultCategoryName {
		t.Errorf("got %q, want default %q", got, service.DefaultCategoryName)
	}
}

func TestExtractKindHint(t *testing.T) {
	tests := []struct {
		line string
		want domain.TransactionKind
	}{
		{"loại: income", domain.KindIncome},
		{"loại: expense", domain.KindExpense},
		{"loại: unknown", domain.KindUnknown},
		{"số tiền: 50k", domain.KindUnknown},
	}
	for _, tt := range tests {
		if got := service.ExtractKindHint(tt.line); got != tt.want {
			t.Errorf("ExtractKindHint(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestExtractDescription(t *testing.T) {
	if got := service.ExtractDescription("danh mục: ăn uống, mô tả: bún chả với bạn"); got != "bún chả với bạn" {
		t.Errorf("got %q", got)
	}
	if got := service.ExtractDescription("số tiền: 50k"); got != "" {
		t.Errorf("expected empty description, got %q", got)
	}
}

func TestResolveWallet(t *testing.T) {
	wallets := []domain.Wallet{
		{ID: "w1", Name: "Tiền mặt"},
		{ID: "w2", Name: "Vietcombank"},
	}

	w, ok := service.ResolveWallet("tiền mặt", wallets)
	if !ok || w.ID != "w1" {
		t.Fatalf("expected case-insensitive match on w1, got %v ok=%v", w, ok)
	}

	if _, ok := service.ResolveWallet("momo", wallets); ok {
		t.Error("expected no match for unknown wallet name")
	}
	if _, ok := service.ResolveWallet(service.UnknownWalletRef, wallets); ok {
		t.Error("expected sentinel to never resolve")
	}
}
