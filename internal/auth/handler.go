package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/ayush/notsodumb/backend/internal/httpx"
	"github.com/ayush/notsodumb/backend/internal/models"
	"github.com/ayush/notsodumb/backend/internal/store"
)

// UserStore defines the interface for user persistence.
type UserStore interface {
	CreateUser(ctx context.Context, username, email, hashedPw string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// Handler holds auth-related HTTP handlers.
type Handler struct {
	users    UserStore
	sessions *SessionStore
	wallets  *WalletService
	log      logrus.FieldLogger
}

func NewHandler(users UserStore, sessions *SessionStore, wallets *WalletService, log logrus.FieldLogger) *Handler {
	return &Handler{users: users, sessions: sessions, wallets: wallets, log: log}
}

// Register creates a new email/password user.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.log.WithError(err).Error("hash password")
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	user, err := h.users.CreateUser(r.Context(), req.Username, req.Email, string(hashed))
	if err != nil {
		h.log.WithError(err).Warn("create user")
		httpx.Error(w, http.StatusConflict, "user already exists or database error")
		return
	}

	httpx.JSON(w, http.StatusCreated, user)
}

// Login authenticates an email/password user and issues a session token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.users.GetUserByEmail(r.Context(), req.Email)
	if errors.Is(err, store.ErrNotFound) || (err == nil && user.Password == "") {
		httpx.Error(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		h.log.WithError(err).Error("load user")
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		httpx.Error(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	h.issueSession(w, r, user)
}

// Logout destroys the current session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := TokenFromRequest(r); token != "" {
		if err := h.sessions.Delete(r.Context(), token); err != nil {
			h.log.WithError(err).Warn("delete session")
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// Me returns the currently authenticated user.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r)
	if userID == "" {
		httpx.Error(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	user, err := h.users.GetUserByID(r.Context(), userID)
	if err != nil {
		httpx.Error(w, http.StatusNotFound, "user not found")
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

// Challenge issues a signing challenge for a wallet address.
func (h *Handler) Challenge(w http.ResponseWriter, r *http.Request) {
	var req models.ChallengeRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.WalletAddress == "" {
		httpx.Error(w, http.StatusBadRequest, "walletAddress is required")
		return
	}

	c, err := h.wallets.Issue(r.Context(), req.WalletAddress)
	switch {
	case errors.Is(err, ErrInvalidAddress):
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.log.WithError(err).Error("issue challenge")
		httpx.Error(w, http.StatusInternalServerError, "failed to create challenge")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"challenge": c.Challenge})
}

// Verify checks a signed challenge and issues a session token.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req models.VerifyRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	sig, err := SignatureBytes(req.Signature)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, ErrInvalidSignature.Error())
		return
	}

	user, err := h.wallets.Verify(r.Context(), req.WalletAddress, req.Challenge, sig)
	switch {
	case errors.Is(err, ErrMissingFields), errors.Is(err, ErrInvalidChallenge), errors.Is(err, ErrInvalidSignature):
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.log.WithError(err).Error("verify wallet")
		httpx.Error(w, http.StatusInternalServerError, "authentication failed")
		return
	}

	h.issueSession(w, r, user)
}

func (h *Handler) issueSession(w http.ResponseWriter, r *http.Request, user *models.User) {
	token, err := h.sessions.Create(r.Context(), user.ID)
	if err != nil {
		h.log.WithError(err).Error("create session")
		httpx.Error(w, http.StatusInternalServerError, "session creation failed")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(SessionTTL / time.Second),
	})
	httpx.JSON(w, http.StatusOK, models.AuthResponse{Token: token, User: user})
}
