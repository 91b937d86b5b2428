package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi"
	"golang.org/x/crypto/bcrypt"

	"github.com/d4l-data4life/go-svc/pkg/logging"

	"github.com/finora-labs/chat-sync/pkg/auth"
	"github.com/finora-labs/chat-sync/pkg/storage"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	store     *storage.Store
	jwtSecret []byte
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(store *storage.Store, jwtSecret []byte) *AuthHandler {
	return &AuthHandler{
		store:     store,
		jwtSecret: jwtSecret,
	}
}

// Routes returns auth routes
func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/register", h.Register)
	r.Post("/login", h.Login)

	return r
}

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse represents an authentication response
type AuthResponse struct {
	User  *storage.User `json:"user"`
	Token string        `json:"token"`
}

// Register handles user registration
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		respondError(w, r, http.StatusUnprocessableEntity, "Email and password are required")
		return
	}
	if len(req.Password) < 8 {
		respondError(w, r, http.StatusUnprocessableEntity, "Password must be at least 8 characters")
		return
	}

	if _, err := h.store.FindUserByEmail(req.Email); err == nil {
		respondError(w, r, http.StatusConflict, "An account with this email already exists")
		return
	} else if err != storage.ErrNotFound {
		logging.LogErrorf(err, "Failed to check for existing user")
		respondError(w, r, http.StatusInternalServerError, "Failed to register")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logging.LogErrorf(err, "Failed to hash password")
		respondError(w, r, http.StatusInternalServerError, "Failed to register")
		return
	}

	user := storage.User{
		Email:        req.Email,
		PasswordHash: string(hash),
		DisplayName:  req.DisplayName,
	}
	if err := h.store.CreateUser(&user); err != nil {
		logging.LogErrorf(err, "Failed to create user")
		respondError(w, r, http.StatusInternalServerError, "Failed to register")
		return
	}

	token, err := auth.IssueToken(user.ID, h.jwtSecret, auth.DefaultTokenTTL)
	if err != nil {
		logging.LogErrorf(err, "Failed to issue token")
		respondError(w, r, http.StatusInternalServerError, "Failed to register")
		return
	}

	logging.LogDebugf("Registered user: %s", user.ID)
	respondData(w, r, http.StatusCreated, AuthResponse{User: &user, Token: token})
}

// Login handles user login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		respondError(w, r, http.StatusUnprocessableEntity, "Email and password are required")
		return
	}

	user, err := h.store.FindUserByEmail(req.Email)
	if err != nil {
		if err == storage.ErrNotFound {
			respondError(w, r, http.StatusUnauthorized, "Invalid email or password")
		} else {
			logging.LogErrorf(err, "Failed to look up user")
			respondError(w, r, http.StatusInternalServerError, "Failed to log in")
		}
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		respondError(w, r, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	token, err := auth.IssueToken(user.ID, h.jwtSecret, auth.DefaultTokenTTL)
	if err != nil {
		logging.LogErrorf(err, "Failed to issue token")
		respondError(w, r, http.StatusInternalServerError, "Failed to log in")
		return
	}

	respondData(w, r, http.StatusOK, AuthResponse{User: user, Token: token})
}

// GetCurrentUser returns the authenticated account. Mounted behind the
// auth middleware.
func (h *AuthHandler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	userID := GetUserIDFromContext(r.Context())

	user, err := h.store.FindUserByID(userID)
	if err != nil {
		if err == storage.ErrNotFound {
			respondError(w, r, http.StatusNotFound, "User not found")
		} else {
			logging.LogErrorf(err, "Failed to look up user")
			respondError(w, r, http.StatusInternalServerError, "Failed to look up user")
		}
		return
	}

	respondData(w, r, http.StatusOK, user)
}
