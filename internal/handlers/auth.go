package handlers

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/randevuhq/randevu/internal/model"
	"github.com/randevuhq/randevu/internal/outbox"
	"github.com/randevuhq/randevu/internal/storage"
	"github.com/randevuhq/randevu/libs/auth"
	"github.com/randevuhq/randevu/libs/db"
	"golang.org/x/crypto/bcrypt"
)

// Reconciler is the reminder scheduler surface the handlers drive.
type Reconciler interface {
	ReconcileAll(ctx context.Context) error
	ReconcileTenant(ctx context.Context, tenantID string) error
}

type AuthHandler struct {
	pool     *db.Pool
	store    *storage.Store
	box      *outbox.Repository
	sched    Reconciler
	logger   *slog.Logger
	secret   string
	tokenTTL time.Duration
}

func NewAuthHandler(pool *db.Pool, store *storage.Store, box *outbox.Repository, sched Reconciler, logger *slog.Logger, secret string, tokenTTL time.Duration) *AuthHandler {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &AuthHandler{
		pool:     pool,
		store:    store,
		box:      box,
		sched:    sched,
		logger:   logger,
		secret:   secret,
		tokenTTL: tokenTTL,
	}
}

type signupRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	ClinicName string `json:"clinic_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	TenantKey   string `json:"tenant_key,omitempty"`
}

type meResponse struct {
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	req.Password = strings.TrimSpace(req.Password)
	req.ClinicName = strings.TrimSpace(req.ClinicName)
	if req.Email == "" || req.Password == "" || req.ClinicName == "" {
		http.Error(w, "email, password and clinic_name required", http.StatusBadRequest)
		return
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		http.Error(w, "failed to hash password", http.StatusInternalServerError)
		return
	}

	tenantKey, err := newTenantKey(req.ClinicName)
	if err != nil {
		http.Error(w, "failed to generate tenant key", http.StatusInternalServerError)
		return
	}
	tenant := model.Tenant{
		ID:        uuid.NewString(),
		Name:      req.ClinicName,
		TenantKey: tenantKey,
	}
	user := model.User{
		ID:           uuid.NewString(),
		TenantID:     tenant.ID,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         "owner",
	}

	ctx := r.Context()
	tx, err := h.pool.Begin(ctx)
	if err != nil {
		http.Error(w, "failed to start transaction", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.store.CreateTenant(ctx, tx, &tenant); err != nil {
		http.Error(w, "failed to create tenant", http.StatusInternalServerError)
		return
	}
	if err := h.store.CreateUser(ctx, tx, &user); err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.Code == "23505" {
			http.Error(w, "email already registered", http.StatusConflict)
			return
		}
		http.Error(w, "failed to create user", http.StatusInternalServerError)
		return
	}
	if err := h.box.Insert(ctx, tx, outbox.TenantCreated(tenant)); err != nil {
		http.Error(w, "failed to enqueue tenant event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit transaction", http.StatusInternalServerError)
		return
	}

	if err := h.sched.ReconcileAll(ctx); err != nil {
		h.logger.Error("reminder reconcile after signup failed", "err", err)
	}

	token, err := h.issueToken(user)
	if err != nil {
		http.Error(w, "failed to issue token", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(tokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		TenantKey:   tenant.TenantKey,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	req.Password = strings.TrimSpace(req.Password)
	if req.Email == "" || req.Password == "" {
		http.Error(w, "email and password required", http.StatusBadRequest)
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		http.Error(w, "failed to lookup user", http.StatusInternalServerError)
		return
	}
	if err := verifyPassword(user.PasswordHash, req.Password); err != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	if err := h.sched.ReconcileAll(r.Context()); err != nil {
		h.logger.Error("reminder reconcile after login failed", "err", err)
	}

	token, err := h.issueToken(user)
	if err != nil {
		http.Error(w, "failed to issue token", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(tokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
	})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(meResponse{
		UserID:   claims.Sub,
		TenantID: claims.TenantID,
		Role:     claims.Role,
	})
}

func (h *AuthHandler) issueToken(user model.User) (string, error) {
	now := time.Now().UTC()
	return auth.SignHS256(auth.Claims{
		Sub:      user.ID,
		TenantID: user.TenantID,
		Role:     user.Role,
		Iat:      now.Unix(),
		Exp:      now.Add(h.tokenTTL).Unix(),
	}, h.secret)
}

// newTenantKey derives the webhook path segment for a tenant: a
// lowercased slug of the clinic name plus a random suffix.
func newTenantKey(name string) (string, error) {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('-')
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		slug = "clinic"
	}
	if len(slug) > 32 {
		slug = slug[:32]
	}

	suffix := make([]byte, 3)
	if _, err := rand.Read(suffix); err != nil {
		return "", err
	}
	return slug + "-" + hex.EncodeToString(suffix), nil
}

func hashPassword(raw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func verifyPassword(hash, raw string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw))
}
