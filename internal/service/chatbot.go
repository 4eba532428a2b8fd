package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/moneyflow/moneyflow-go/internal/domain"
	"github.com/moneyflow/moneyflow-go/internal/infra/observability"
	"github.com/moneyflow/moneyflow-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("service/chatbot")

// Fixed user-facing replies. The sign-in message short-circuits the whole
// pipeline; the three fallbacks cover model-call failure classes.
const (
	signInReply = "Vui lòng đăng nhập để sử dụng chatbot."

	fallbackQuota   = "Error: Quota exceeded. Please check your Gemini API billing or try again later."
	fallbackAuth    = "Error: Invalid authentication. Please check your API key."
	fallbackGeneric = "Error calling chatbot API."
)

// summaryTimeLayout formats the timestamp inside per-line summaries.
const summaryTimeLayout = "02/01/2006 15:04"

// ChatbotService turns a free-text finance message into persisted
// transactions: prompt the model, normalize and classify its reply,
// extract per-line fields, resolve wallets and categories, persist.
type ChatbotService struct {
	llm          port.CompletionCaller
	wallets      port.WalletStore
	categories   port.CategoryStore
	transactions port.TransactionStore
	walletCache  port.Cache[[]domain.Wallet]
	metrics      *observability.Metrics
	logger       *zap.Logger
}

// NewChatbotService creates the chatbot service with all dependencies injected.
func NewChatbotService(
	llm port.CompletionCaller,
	wallets port.WalletStore,
	categories port.CategoryStore,
	transactions port.TransactionStore,
	walletCache port.Cache[[]domain.Wallet],
	metrics *observability.Metrics,
	logger *zap.Logger,
) *ChatbotService {
	return &ChatbotService{
		llm:          llm,
		wallets:      wallets,
		categories:   categories,
		transactions: transactions,
		walletCache:  walletCache,
		metrics:      metrics,
		logger:       logger,
	}
}

// ProcessMessage runs the full pipeline for one user message and returns
// the reply to show: newline-joined summaries for persisted transactions,
// the normalized model answer for conversational messages, or a fixed
// fallback when the model call fails. userID comes from the caller; an
// empty one means unauthenticated and no pipeline runs at all.
func (s *ChatbotService) ProcessMessage(ctx context.Context, userID, message string) (string, error) {
	if userID == "" {
		return signInReply, nil
	}
	if strings.TrimSpace(message) == "" {
		return "", &domain.ErrValidation{Field: "message", Message: "message is required"}
	}

	ctx, span := tracer.Start(ctx, "ChatbotService.ProcessMessage")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("chatbot", time.Since(start))
	}()

	wallets, categories, err := s.fetchContext(ctx, userID)
	if err != nil {
		s.metrics.IncrRequest("error")
		return "", err
	}

	prompt := BuildExtractionPrompt(message, wallets, categories)

	completion, err := s.llm.Complete(ctx, prompt)
	if err != nil {
		// Model failures never surface as request errors: each failure
		// class maps to a fixed reply and the request succeeds.
		s.metrics.IncrExternalError("gemini")
		s.metrics.IncrRequest("fallback")
		s.logger.Warn("chatbot: model call failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return fallbackFor(err), nil
	}
	s.metrics.RecordTokens(completion.Usage.PromptTokens, completion.Usage.CompletionTokens)

	reply := Normalize(completion.Text)
	if !IsTransactional(reply) {
		s.metrics.IncrRequest("conversational")
		return reply, nil
	}

	summary, err := s.processBatch(ctx, userID, reply, wallets)
	if err != nil {
		s.metrics.IncrRequest("error")
		return "", err
	}
	s.metrics.IncrRequest("success")
	return summary, nil
}

// fetchContext loads the user's wallets (TTL-cached) and categories
// concurrently. Categories are never cached: the batch processor must see
// categories created moments ago.
func (s *ChatbotService) fetchContext(ctx context.Context, userID string) ([]domain.Wallet, []domain.Category, error) {
	var (
		wallets    []domain.Wallet
		categories []domain.Category
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		cacheKey := "wallets:" + userID
		if cached, ok := s.walletCache.Get(cacheKey); ok {
			s.metrics.IncrCacheHit("wallets")
			wallets = cached
			return nil
		}
		s.metrics.IncrCacheMiss("wallets")

		w, err := s.wallets.ListWallets(gCtx, userID)
		if err != nil {
			s.metrics.IncrExternalError("wallets")
			return fmt.Errorf("wallets fetch: %w", err)
		}
		wallets = w
		s.walletCache.Set(cacheKey, w)
		return nil
	})

	g.Go(func() error {
		c, err := s.categories.ListCategories(gCtx, userID)
		if err != nil {
			s.metrics.IncrExternalError("categories")
			return fmt.Errorf("categories fetch: %w", err)
		}
		categories = c
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return wallets, categories, nil
}

// processBatch walks the reply line by line, in order. Lines that fail
// amount extraction or wallet resolution are dropped without a trace in
// the reply; category resolution and persistence errors abort the batch.
func (s *ChatbotService) processBatch(ctx context.Context, userID, reply string, wallets []domain.Wallet) (string, error) {
	ctx, span := tracer.Start(ctx, "ChatbotService.processBatch")
	defer span.End()

	lines := SplitLines(reply)
	now := time.Now()
	summaries := make([]string, 0, len(lines))

	for _, line := range lines {
		amount, ok := ExtractAmount(line)
		if !ok {
			s.metrics.IncrLineSkipped("amount")
			s.logger.Debug("chatbot: line skipped, no amount", zap.String("line", line))
			continue
		}

		wallet, ok := ResolveWallet(ExtractWalletRef(line), wallets)
		if !ok {
			s.metrics.IncrLineSkipped("wallet")
			s.logger.Debug("chatbot: line skipped, unknown wallet", zap.String("line", line))
			continue
		}

		category, err := s.resolveCategory(ctx, userID, ExtractCategoryRef(line), ExtractKindHint(line))
		if err != nil {
			return "", fmt.Errorf("resolve category: %w", err)
		}

		draft := &domain.TransactionDraft{
			UserID:      userID,
			Amount:      amount,
			OccurredAt:  ExtractDate(line, now),
			Wallet:      wallet,
			Category:    category,
			Description: ExtractDescription(line),
			Kind:        category.Kind,
		}

		if _, err := s.transactions.CreateTransaction(ctx, draft); err != nil {
			return "", fmt.Errorf("create transaction: %w", err)
		}
		s.metrics.IncrLineParsed()
		s.metrics.IncrTransactionCreated()
		summaries = append(summaries, formatSummary(draft))
	}

	span.SetAttributes(
		attribute.Int("lines.total", len(lines)),
		attribute.Int("lines.persisted", len(summaries)),
	)

	if len(summaries) > 0 {
		// Balances moved, the cached wallet list is stale.
		s.walletCache.Delete("wallets:" + userID)
	}
	return strings.Join(summaries, "\n"), nil
}

// fallbackFor maps a model-call error to its fixed user-facing reply.
func fallbackFor(err error) string {
	var quota *domain.ErrQuotaExceeded
	var upstreamAuth *domain.ErrUpstreamAuth
	switch {
	case errors.As(err, &quota):
		return fallbackQuota
	case errors.As(err, &upstreamAuth):
		return fallbackAuth
	default:
		return fallbackGeneric
	}
}

func formatSummary(d *domain.TransactionDraft) string {
	var b strings.Builder
	b.WriteString("Đã thêm giao dịch: ")
	b.WriteString(strconv.FormatFloat(d.Amount, 'f', -1, 64))
	b.WriteString(", ví ")
	b.WriteString(d.Wallet.Name)
	b.WriteString(", danh mục ")
	b.WriteString(d.Category.Name)
	b.WriteString(", ngày ")
	b.WriteString(d.OccurredAt.Format(summaryTimeLayout))
	if d.Description != "" {
		b.WriteString(", mô tả: ")
		b.WriteString(d.Description)
	}
	return strings.TrimSpace(b.String())
}
