package service

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/moneyflow/moneyflow-go/internal/domain"

	"golang.org/x/text/unicode/norm"
)

// Vietnamese field keywords shared by the prompt grammar and the extractors.
// The model is instructed to emit these exact labels; extraction depends on
// the same literals, so they live in one place.
const (
	kwAmount   = "số tiền"
	kwDate     = "ngày giao dịch"
	kwWallet   = "ví"
	kwCategory = "danh mục"
	kwKind     = "loại"
	kwDesc     = "mô tả"

	kwYesterday          = "hôm qua"
	kwDayBeforeYesterday = "hôm kia"

	// UnknownWalletRef is the sentinel the model emits when the user named
	// no wallet. Normalization lowercases the reply, so the sentinel is
	// matched (and resolved, always unsuccessfully) in lowercase.
	UnknownWalletRef = "unknownwallet"

	// DefaultCategoryName is used when the user named no category.
	DefaultCategoryName = "chi tiêu khác"
)

var (
	amountRe   = regexp.MustCompile(kwAmount + `:\s*([\d.,]+)\s*(k|m|vnd|vnđ)?`)
	dateRe     = regexp.MustCompile(kwDate + `:\s*(\d{2}/\d{2}/\d{4})`)
	walletRe   = regexp.MustCompile(kwWallet + `:\s*([^,]+)`)
	categoryRe = regexp.MustCompile(kwCategory + `:\s*([^,]+)`)
	kindRe     = regexp.MustCompile(kwKind + `:\s*(income|expense|unknown)`)
	descRe     = regexp.MustCompile(kwDesc + `:\s*(.+)`)

	separatorReplacer = strings.NewReplacer(".", "", ",", "")
	bracketReplacer   = strings.NewReplacer("[", "", "]", "")
)

// Normalize canonicalizes model output before any extraction: Unicode NFC,
// lowercase, and all square brackets removed (the model tends to echo the
// prompt's placeholder brackets). Idempotent.
func Normalize(s string) string {
	// Brackets go first: a bracket between a base letter and its combining
	// mark would otherwise block composition on the first pass.
	return strings.ToLower(norm.NFC.String(bracketReplacer.Replace(s)))
}

// IsTransactional reports whether a normalized reply contains at least one
// extractable transaction. Anything without the amount keyword is treated
// as a conversational answer and passed through untouched.
func IsTransactional(normalized string) bool {
	return strings.Contains(normalized, kwAmount+":")
}

// SplitLines splits a normalized reply into candidate transaction lines,
// dropping blank lines and preserving order.
func SplitLines(normalized string) []string {
	raw := strings.Split(normalized, "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimSpace(l)
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// ExtractAmount parses the amount from one line. The digit run may contain
// `.` or `,` as thousand separators, which are stripped before parsing.
// Suffixes scale the value: k ×1 000, m ×1 000 000, vnd/vnđ ×1.
// Returns false when the keyword is absent or the value is not positive;
// the caller must then drop the line.
func ExtractAmount(line string) (float64, bool) {
	m := amountRe.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(separatorReplacer.Replace(m[1]), 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	switch m[2] {
	case "k":
		v *= 1_000
	case "m":
		v *= 1_000_000
	}
	return v, true
}

// ExtractDate resolves the transaction timestamp for one line.
// Relative markers win over the explicit date; an explicit dd/mm/yyyy date
// is used when present; otherwise the current time. Never fails.
func ExtractDate(line string, now time.Time) time.Time {
	switch {
	case strings.Contains(line, kwYesterday):
		return startOfDay(now.AddDate(0, 0, -1))
	case strings.Contains(line, kwDayBeforeYesterday):
		return startOfDay(now.AddDate(0, 0, -2))
	}
	if m := dateRe.FindStringSubmatch(line); m != nil {
		if t, err := time.ParseInLocation("02/01/2006", m[1], now.Location()); err == nil {
			return t
		}
	}
	return now
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// ExtractWalletRef returns the wallet name mentioned on the line, or the
// unknown-wallet sentinel when none is present.
func ExtractWalletRef(line string) string {
	if m := walletRe.FindStringSubmatch(line); m != nil {
		if ref := strings.TrimSpace(m[1]); ref != "" {
			return ref
		}
	}
	return UnknownWalletRef
}

// ExtractCategoryRef returns the category name mentioned on the line, or
// the default category when none is present.
func ExtractCategoryRef(line string) string {
	if m := categoryRe.FindStringSubmatch(line); m != nil {
		if ref := strings.TrimSpace(m[1]); ref != "" {
			return ref
		}
	}
	return DefaultCategoryName
}

// ExtractKindHint returns the model's income/expense guess for the line.
// The hint only matters when a new category has to be created; stored
// transactions always take the kind of their resolved category.
func ExtractKindHint(line string) domain.TransactionKind {
	if m := kindRe.FindStringSubmatch(line); m != nil {
		switch m[1] {
		case "income":
			return domain.KindIncome
		case "expense":
			return domain.KindExpense
		}
	}
	return domain.KindUnknown
}

// ExtractDescription returns the free-text description, or "" when absent.
func ExtractDescription(line string) string {
	if m := descRe.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}
