package handler

import (
	"encoding/json"
	"net/http"

	"github.com/moneyflow/moneyflow-go/internal/domain"
	"github.com/moneyflow/moneyflow-go/internal/infra/observability"
	"github.com/moneyflow/moneyflow-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(chatSvc *service.ChatbotService, finSvc *service.FinanceService, authSvc *service.AuthService, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler())
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// Chatbot: auth is checked inside the handler so unauthenticated
		// callers get the fixed sign-in reply instead of a 401.
		r.Post("/chatbot", chatbotHandler(chatSvc, authSvc, logger))

		r.Get("/metrics/chatbot", chatbotMetricsHandler(metrics))

		r.Post("/auth/login", loginHandler(authSvc, logger))

		// Protected finance surface
		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(authSvc, logger))

			r.Get("/wallets", listWalletsHandler(finSvc, logger))
			r.Get("/categories", listCategoriesHandler(finSvc, logger))
			r.Post("/categories", createCategoryHandler(finSvc, logger))
			r.Get("/transactions", listTransactionsHandler(finSvc, logger))
			r.Post("/transactions", createTransactionHandler(finSvc, logger))
		})
	})

	return r
}

// ============================================================
// Chatbot — POST /v1/chatbot
// ============================================================

func chatbotHandler(chatSvc *service.ChatbotService, authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/chatbot")
		defer span.End()

		// Optional authentication: an absent or invalid token becomes an
		// empty user ID and the service answers with its sign-in message.
		userID := ""
		if token := bearerToken(r); token != "" {
			if claims, err := authSvc.ValidateAccessToken(token); err == nil {
				userID = claims.Sub
			}
		}
		span.SetAttributes(attribute.Bool("authenticated", userID != ""))

		var req domain.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		reply, err := chatSvc.ProcessMessage(ctx, userID, req.Message)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, domain.ChatResponse{Reply: reply})
	}
}

// ============================================================
// Auth — POST /v1/auth/login
// ============================================================

func loginHandler(authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/login")
		defer span.End()

		var req domain.LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		resp, err := authSvc.Login(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

// ============================================================
// Wallets — GET /v1/wallets
// ============================================================

func listWalletsHandler(finSvc *service.FinanceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/wallets")
		defer span.End()

		wallets, err := finSvc.ListWallets(ctx, UserIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"wallets": wallets})
	}
}

// ============================================================
// Categories — GET/POST /v1/categories
// ============================================================

func listCategoriesHandler(finSvc *service.FinanceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/categories")
		defer span.End()

		categories, err := finSvc.ListCategories(ctx, UserIDFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
	}
}

func createCategoryHandler(finSvc *service.FinanceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/categories")
		defer span.End()

		var req domain.CreateCategoryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		cat, err := finSvc.CreateCategory(ctx, UserIDFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, cat)
	}
}

// ============================================================
// Transactions — GET/POST /v1/transactions
// ============================================================

func listTransactionsHandler(finSvc *service.FinanceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/transactions")
		defer span.End()

		page, pageSize := parsePagination(r)
		transactions, err := finSvc.ListTransactions(ctx, UserIDFromContext(ctx), page, pageSize)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"transactions": transactions,
			"page":         page,
			"page_size":    pageSize,
		})
	}
}

func createTransactionHandler(finSvc *service.FinanceService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/transactions")
		defer span.End()

		var req domain.CreateTransactionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		tx, err := finSvc.CreateTransaction(ctx, UserIDFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, tx)
	}
}

// ============================================================
// Operational
// ============================================================

func chatbotMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetChatbotSnapshot())
	}
}

func healthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "moneyflow-api"})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
