package integration_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/moneyflow/moneyflow-go/internal/domain"
	"github.com/moneyflow/moneyflow-go/internal/handler"
	"github.com/moneyflow/moneyflow-go/internal/infra/cache"
	"github.com/moneyflow/moneyflow-go/internal/infra/gemini"
	"github.com/moneyflow/moneyflow-go/internal/infra/observability"
	"github.com/moneyflow/moneyflow-go/internal/infra/resilience"
	"github.com/moneyflow/moneyflow-go/internal/infra/supabase"
	"github.com/moneyflow/moneyflow-go/internal/service"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// fakeSupabase is an in-memory PostgREST lookalike covering the queries
// the stores issue: filtered GETs, inserts with return=representation,
// the category upsert with ignore-duplicates and the wallet balance PATCH.
type fakeSupabase struct {
	mu           sync.Mutex
	wallets      []map[string]any
	categories   []map[string]any
	transactions []map[string]any
	users        []map[string]any
}

func (f *fakeSupabase) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/v1/wallets", f.handleWallets)
	mux.HandleFunc("/rest/v1/categories", f.handleCategories)
	mux.HandleFunc("/rest/v1/transactions", f.handleTransactions)
	mux.HandleFunc("/rest/v1/users", f.handleUsers)
	return mux
}

// eqFilter extracts the value of a PostgREST "column=eq.value" query param.
func eqFilter(r *http.Request, column string) (string, bool) {
	v := r.URL.Query().Get(column)
	if strings.HasPrefix(v, "eq.") {
		return strings.TrimPrefix(v, "eq."), true
	}
	return "", false
}

func matches(row map[string]any, r *http.Request, columns ...string) bool {
	for _, col := range columns {
		if want, ok := eqFilter(r, col); ok && row[col] != want {
			return false
		}
	}
	return true
}

func writeRows(w http.ResponseWriter, rows []map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rows)
}

func (f *fakeSupabase) handleWallets(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodGet:
		var out []map[string]any
		for _, row := range f.wallets {
			if matches(row, r, "user_id", "id") {
				out = append(out, row)
			}
		}
		writeRows(w, out)
	case http.MethodPatch:
		var patch map[string]any
		json.NewDecoder(r.Body).Decode(&patch)
		for _, row := range f.wallets {
			if matches(row, r, "id") {
				for k, v := range patch {
					row[k] = v
				}
			}
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeSupabase) handleCategories(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodGet:
		var out []map[string]any
		for _, row := range f.categories {
			if matches(row, r, "user_id", "id", "name") {
				out = append(out, row)
			}
		}
		writeRows(w, out)
	case http.MethodPost:
		var row map[string]any
		json.NewDecoder(r.Body).Decode(&row)
		for _, existing := range f.categories {
			if existing["user_id"] == row["user_id"] && existing["name"] == row["name"] {
				// Conflict with ignore-duplicates: no insert, no rows back.
				w.WriteHeader(http.StatusCreated)
				writeRows(w, nil)
				return
			}
		}
		row["created_at"] = time.Now().Format(time.RFC3339)
		f.categories = append(f.categories, row)
		w.WriteHeader(http.StatusCreated)
		writeRows(w, []map[string]any{row})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeSupabase) handleTransactions(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodGet:
		var out []map[string]any
		for _, row := range f.transactions {
			if matches(row, r, "user_id") {
				out = append(out, row)
			}
		}
		writeRows(w, out)
	case http.MethodPost:
		var row map[string]any
		json.NewDecoder(r.Body).Decode(&row)
		row["created_at"] = time.Now().Format(time.RFC3339)
		f.transactions = append(f.transactions, row)
		w.WriteHeader(http.StatusCreated)
		writeRows(w, []map[string]any{row})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeSupabase) handleUsers(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []map[string]any
	for _, row := range f.users {
		if matches(row, r, "email") {
			out = append(out, row)
		}
	}
	writeRows(w, out)
}

// newGeminiServer returns a mock generateContent endpoint that always
// answers with the given text.
func newGeminiServer(t *testing.T, text string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, ":generateContent") {
			t.Errorf("unexpected gemini path: %s", r.URL.Path)
		}
		if r.Header.Get("X-goog-api-key") == "" {
			t.Error("missing X-goog-api-key header")
		}
		resp := map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{{"text": text}}}},
			},
			"usageMetadata": map[string]any{
				"promptTokenCount":     500,
				"candidatesTokenCount": 80,
				"totalTokenCount":      580,
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func buildRouter(t *testing.T, db *fakeSupabase, geminiURL string) http.Handler {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	httpClient := &http.Client{Timeout: 5 * time.Second}
	cfg := resilience.Config{MaxRetries: 1, InitialBackoff: 10 * time.Millisecond, MaxConcurrency: 10}

	supaServer := httptest.NewServer(db.handler())
	t.Cleanup(supaServer.Close)

	store := supabase.NewClient(httpClient, supaServer.URL, "anon-key", "service-key",
		resilience.NewCircuitBreaker("supabase"), cfg, logger)
	llm := gemini.NewClient(httpClient, geminiURL, "test-api-key", "gemini-2.0-flash",
		resilience.NewCircuitBreaker("gemini"), logger)

	chatSvc := service.NewChatbotService(llm, store, store, store,
		cache.New[[]domain.Wallet](time.Minute), metrics, logger)
	finSvc := service.NewFinanceService(store, store, store, metrics, logger)
	authSvc := service.NewAuthService(store, "integration-secret", time.Hour, logger)

	return handler.NewRouter(chatSvc, finSvc, authSvc, metrics, logger)
}

func seedDB(t *testing.T) *fakeSupabase {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	now := time.Now().Format(time.RFC3339)
	return &fakeSupabase{
		users: []map[string]any{
			{"id": "u1", "email": "an@example.com", "name": "An", "password_hash": string(hash)},
		},
		wallets: []map[string]any{
			{"id": "w1", "user_id": "u1", "name": "tiền mặt", "balance": 500000.0, "currency": "VND", "created_at": now},
			{"id": "w2", "user_id": "u1", "name": "vietcombank", "balance": 2000000.0, "currency": "VND", "created_at": now},
		},
		categories: []map[string]any{
			{"id": "c1", "user_id": "u1", "name": "ăn uống", "kind": "EXPENSE", "created_at": now},
		},
	}
}

func login(t *testing.T, router http.Handler) string {
	t.Helper()
	body, _ := json.Marshal(domain.LoginRequest{Email: "an@example.com", Password: "secret123"})
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}
	var resp domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	return resp.AccessToken
}

func postChatbot(t *testing.T, router http.Handler, token, message string) (int, string) {
	t.Helper()
	body, _ := json.Marshal(domain.ChatRequest{Message: message})
	req := httptest.NewRequest(http.MethodPost, "/v1/chatbot", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp domain.ChatResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode chat response: %v", err)
	}
	return rec.Code, resp.Reply
}

// TestIntegration_ChatbotFullFlow drives the whole stack: login, a chat
// message that the mock model turns into two transaction lines, and the
// resulting writes against the fake PostgREST backend.
func TestIntegration_ChatbotFullFlow(t *testing.T) {
	modelReply := "Số tiền: 50k, ngày giao dịch: 01/02/2026, ví: Tiền mặt, danh mục: ăn uống, loại: expense, mô tả: bún chả\n" +
		"Số tiền: 5m, ví: Vietcombank, danh mục: lương, loại: income, mô tả: lương tháng 8"
	geminiServer := newGeminiServer(t, modelReply)
	defer geminiServer.Close()

	db := seedDB(t)
	router := buildRouter(t, db, geminiServer.URL)
	token := login(t, router)

	code, reply := postChatbot(t, router, token, "hôm qua ăn bún chả 50k, nhận lương 5 triệu vào vietcombank")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}

	lines := strings.Split(reply, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 summary lines, got %d: %q", len(lines), reply)
	}
	if !strings.HasPrefix(lines[0], "Đã thêm giao dịch: 50000, ví tiền mặt, danh mục ăn uống") {
		t.Errorf("unexpected first summary: %q", lines[0])
	}
	if !strings.Contains(lines[1], "5000000") || !strings.Contains(lines[1], "ví vietcombank") {
		t.Errorf("unexpected second summary: %q", lines[1])
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if len(db.transactions) != 2 {
		t.Fatalf("expected 2 persisted transactions, got %d", len(db.transactions))
	}
	if db.transactions[0]["kind"] != "EXPENSE" || db.transactions[1]["kind"] != "INCOME" {
		t.Errorf("unexpected transaction kinds: %v %v", db.transactions[0]["kind"], db.transactions[1]["kind"])
	}

	// "lương" did not exist and must have been created as INCOME.
	found := false
	for _, cat := range db.categories {
		if cat["name"] == "lương" {
			found = true
			if cat["kind"] != "INCOME" {
				t.Errorf("expected INCOME category, got %v", cat["kind"])
			}
		}
	}
	if !found {
		t.Error("expected category 'lương' to be created")
	}

	// Balances moved: expense subtracts, income adds.
	for _, wlt := range db.wallets {
		switch wlt["id"] {
		case "w1":
			if got := wlt["balance"].(float64); got != 450000 {
				t.Errorf("expected cash balance 450000, got %v", got)
			}
		case "w2":
			if got := wlt["balance"].(float64); got != 7000000 {
				t.Errorf("expected bank balance 7000000, got %v", got)
			}
		}
	}
}

func TestIntegration_ChatbotConversational(t *testing.T) {
	geminiServer := newGeminiServer(t, "Chào bạn! Bạn muốn ghi chép giao dịch nào?")
	defer geminiServer.Close()

	db := seedDB(t)
	router := buildRouter(t, db, geminiServer.URL)
	token := login(t, router)

	code, reply := postChatbot(t, router, token, "chào bạn")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if reply != "chào bạn! bạn muốn ghi chép giao dịch nào?" {
		t.Errorf("unexpected reply: %q", reply)
	}
	if len(db.transactions) != 0 {
		t.Errorf("expected no transactions, got %d", len(db.transactions))
	}
}

func TestIntegration_ChatbotUnauthenticated(t *testing.T) {
	geminiServer := newGeminiServer(t, "should never be called")
	defer geminiServer.Close()

	db := seedDB(t)
	router := buildRouter(t, db, geminiServer.URL)

	code, reply := postChatbot(t, router, "", "mua cà phê 50k")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if reply != "Vui lòng đăng nhập để sử dụng chatbot." {
		t.Errorf("unexpected reply: %q", reply)
	}
}

func TestIntegration_ModelQuotaFallback(t *testing.T) {
	geminiServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer geminiServer.Close()

	db := seedDB(t)
	router := buildRouter(t, db, geminiServer.URL)
	token := login(t, router)

	code, reply := postChatbot(t, router, token, "mua cà phê 50k")
	if code != http.StatusOK {
		t.Fatalf("expected 200 with fallback, got %d", code)
	}
	if !strings.Contains(reply, "Quota exceeded") {
		t.Errorf("unexpected fallback: %q", reply)
	}
}

func TestIntegration_FinanceSurface(t *testing.T) {
	geminiServer := newGeminiServer(t, "chào")
	defer geminiServer.Close()

	db := seedDB(t)
	router := buildRouter(t, db, geminiServer.URL)
	token := login(t, router)

	req := httptest.NewRequest(http.MethodGet, "/v1/wallets", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("list wallets: expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	var walletResp struct {
		Wallets []domain.Wallet `json:"wallets"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&walletResp); err != nil {
		t.Fatalf("decode wallets: %v", err)
	}
	if len(walletResp.Wallets) != 2 {
		t.Errorf("expected 2 wallets, got %d", len(walletResp.Wallets))
	}

	body, _ := json.Marshal(domain.CreateTransactionRequest{
		WalletID:    "w1",
		CategoryID:  "c1",
		Amount:      75000,
		Description: "trà sữa",
		OccurredAt:  time.Now().Format(time.RFC3339),
	})
	req = httptest.NewRequest(http.MethodPost, "/v1/transactions", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create transaction: expected 201, got %d %s", rec.Code, rec.Body.String())
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	if len(db.transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(db.transactions))
	}
	for _, wlt := range db.wallets {
		if wlt["id"] == "w1" {
			if got := wlt["balance"].(float64); got != 425000 {
				t.Errorf("expected balance 425000, got %v", got)
			}
		}
	}
}
