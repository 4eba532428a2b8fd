package domain

// ============================================================
// Chatbot API — Request/Response
// ============================================================

// ChatRequest is the body of POST /v1/chatbot.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse carries the chatbot reply: either newline-joined transaction
// summaries or a conversational passthrough of the model's answer.
type ChatResponse struct {
	Reply string `json:"reply"`
}

// TokenUsage tracks LLM token consumption for cost monitoring.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is the raw model output before normalization.
type Completion struct {
	Text  string
	Usage TokenUsage
}

// ============================================================
// Auth — Request/Response
// ============================================================

// LoginRequest is the body of POST /v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the issued access token.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	UserID      string `json:"user_id"`
	Name        string `json:"name"`
}

// ============================================================
// Transactions API — manual entry
// ============================================================

// CreateTransactionRequest is the body of POST /v1/transactions.
type CreateTransactionRequest struct {
	WalletID    string  `json:"wallet_id"`
	CategoryID  string  `json:"category_id"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description,omitempty"`
	OccurredAt  string  `json:"occurred_at,omitempty"` // RFC3339; defaults to now
}

// CreateCategoryRequest is the body of POST /v1/categories.
type CreateCategoryRequest struct {
	Name string          `json:"name"`
	Kind TransactionKind `json:"kind"`
}

// ============================================================
// Metrics snapshot — GET /v1/metrics/chatbot
// ============================================================

// ChatbotMetrics is a point-in-time snapshot of pipeline counters.
type ChatbotMetrics struct {
	TotalRequests       int64   `json:"total_requests"`
	ErrorRate           float64 `json:"error_rate"`
	LinesParsed         int64   `json:"lines_parsed"`
	LinesSkipped        int64   `json:"lines_skipped"`
	TransactionsCreated int64   `json:"transactions_created"`
	PromptTokens        int64   `json:"prompt_tokens"`
	CompletionTokens    int64   `json:"completion_tokens"`
	CacheHitRate        float64 `json:"cache_hit_rate"`
	Period              string  `json:"period"`
}
