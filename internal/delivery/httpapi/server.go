package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/zenbase-ai/tech-for-iran-sub001/config"
	"github.com/zenbase-ai/tech-for-iran-sub001/internal/domain"
	"github.com/zenbase-ai/tech-for-iran-sub001/internal/logger"
	"github.com/zenbase-ai/tech-for-iran-sub001/internal/usecase"
)

// Server exposes a lightweight REST API for submissions, run visibility, and
// account management.
type Server struct {
	cfg         *config.Config
	submissions *usecase.SubmissionService
	registry    *usecase.Registry
	stats       *usecase.StatsService
	accountRepo domain.AccountRepository
	server      *http.Server
}

// NewServer creates a new HTTP server.
func NewServer(
	cfg *config.Config,
	submissions *usecase.SubmissionService,
	registry *usecase.Registry,
	stats *usecase.StatsService,
	accountRepo domain.AccountRepository,
) *Server {
	mux := http.NewServeMux()
	s := &Server{
		cfg:         cfg,
		submissions: submissions,
		registry:    registry,
		stats:       stats,
		accountRepo: accountRepo,
	}

	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/posts", s.handlePosts)
	mux.HandleFunc("/api/posts/", s.handlePostByID)
	mux.HandleFunc("/api/accounts", s.handleAccounts)
	mux.HandleFunc("/api/accounts/", s.handleAccountActions)
	mux.HandleFunc("/api/webhooks/account-status", s.handleAccountStatusWebhook)

	s.server = &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: loggingMiddleware(mux),
	}
	return s
}

// Start begins serving HTTP requests in a separate goroutine.
func (s *Server) Start() error {
	if s.cfg.ServerPort == "" {
		return fmt.Errorf("server port is not configured")
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Printf("http api server stopped with error: %v", err)
		}
	}()
	logger.Info().Printf("HTTP API server listening on %s", s.server.Addr)
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePosts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req usecase.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	post, err := s.submissions.Submit(r.Context(), req)
	if err != nil {
		s.respondSubmitError(w, post, err)
		return
	}

	respondJSON(w, http.StatusCreated, toPostResponse(post))
}

// respondSubmitError maps submission failures onto HTTP statuses.
func (s *Server) respondSubmitError(w http.ResponseWriter, post *domain.Post, err error) {
	switch {
	case errors.Is(err, domain.ErrDuplicatePost):
		payload := map[string]any{"error": err.Error()}
		if post != nil {
			payload["existing_post_id"] = post.ID
		}
		respondJSON(w, http.StatusConflict, payload)
	case errors.Is(err, domain.ErrNotPodMember):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrPodTooSmall), errors.Is(err, domain.ErrAccountNotEngageable):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		if rle, ok := domain.IsRateLimited(err); ok {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(rle.RetryAfter.Seconds())))
			respondError(w, http.StatusTooManyRequests, err.Error())
			return
		}
		var verrs validation.Errors
		if errors.As(err, &verrs) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		logger.Error().Printf("Submission failed: %v", err)
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handlePostByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/posts/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}

	summary, err := s.stats.Summary(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if summary == nil {
		http.NotFound(w, r)
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listAccounts(w, r)
	case http.MethodPost:
		s.linkAccount(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleAccountActions(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/accounts/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}

	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}

	if err := s.registry.Disconnect(id); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "disconnected"})
}

func (s *Server) handleAccountStatusWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var payload struct {
		AccountID string `json:"account_id"`
		Status    string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.AccountID == "" || payload.Status == "" {
		respondError(w, http.StatusBadRequest, "account_id and status are required")
		return
	}

	if err := s.registry.HandleStatusWebhook(payload.AccountID, payload.Status); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.accountRepo.GetAll()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := make([]*accountResponse, 0, len(accounts))
	for _, account := range accounts {
		resp = append(resp, toAccountResponse(account))
	}

	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) linkAccount(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		OwnerID           string `json:"owner_id"`
		ProviderAccountID string `json:"provider_account_id"`
		Timezone          string `json:"timezone"`
		MaxDailyActions   int    `json:"max_daily_actions"`
		WorkingHoursStart *int   `json:"working_hours_start"`
		WorkingHoursEnd   *int   `json:"working_hours_end"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	acct := &domain.Account{
		OwnerID:           payload.OwnerID,
		ProviderAccountID: payload.ProviderAccountID,
		Timezone:          payload.Timezone,
		MaxDailyActions:   payload.MaxDailyActions,
		WorkingHoursStart: payload.WorkingHoursStart,
		WorkingHoursEnd:   payload.WorkingHoursEnd,
	}
	if err := s.registry.LinkAccount(acct); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, toAccountResponse(acct))
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func methodNotAllowed(w http.ResponseWriter) {
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Info().Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

type postResponse struct {
	ID          string    `json:"id"`
	PodID       string    `json:"pod_id"`
	SubmitterID string    `json:"submitter_id"`
	URN         string    `json:"urn"`
	URL         string    `json:"url"`
	AuthorName  string    `json:"author_name,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

func toPostResponse(post *domain.Post) *postResponse {
	return &postResponse{
		ID:          post.ID,
		PodID:       post.PodID,
		SubmitterID: post.SubmitterID,
		URN:         post.URN,
		URL:         post.URL,
		AuthorName:  post.AuthorName,
		Status:      string(post.Status),
		CreatedAt:   post.CreatedAt,
	}
}

type accountResponse struct {
	ID                string    `json:"id"`
	OwnerID           string    `json:"owner_id"`
	ProviderAccountID string    `json:"provider_account_id"`
	Status            string    `json:"status"`
	MaxDailyActions   int       `json:"max_daily_actions"`
	Timezone          string    `json:"timezone,omitempty"`
	WorkingHoursStart *int      `json:"working_hours_start,omitempty"`
	WorkingHoursEnd   *int      `json:"working_hours_end,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func toAccountResponse(account *domain.Account) *accountResponse {
	return &accountResponse{
		ID:                account.ID,
		OwnerID:           account.OwnerID,
		ProviderAccountID: account.ProviderAccountID,
		Status:            string(account.Status),
		MaxDailyActions:   account.MaxDailyActions,
		Timezone:          account.Timezone,
		WorkingHoursStart: account.WorkingHoursStart,
		WorkingHoursEnd:   account.WorkingHoursEnd,
		CreatedAt:         account.CreatedAt,
		UpdatedAt:         account.UpdatedAt,
	}
}
