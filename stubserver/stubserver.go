// Package stubserver is a self-contained stand-in for the photo service
// API. The integration tests and the `fotoadmin stub-server` command use
// it to exercise the full login / second-factor / role flow against a
// real HTTP surface without a deployed backend.
package stubserver

import (
	"crypto/subtle"
	_ "embed"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-openapi/runtime/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lichtbild/fotoadmin/api"
	"github.com/lichtbild/fotoadmin/internal/util"
)

//go:embed openapi.yaml
var openapiSpec []byte

const tokenTTL = 24 * time.Hour

// Account is a user the stub will authenticate.
type Account struct {
	ID        int64
	Email     string
	Password  string
	Role      api.Role
	TwoFactor bool
}

// Server holds the stub's in-memory state.
type Server struct {
	mu         sync.Mutex
	accounts   map[string]Account // by email
	challenges map[string]string  // challenge -> email
	tokens     map[string]int64   // token -> account id
	signingKey []byte
	otpCode    string

	registry *prometheus.Registry
	requests *prometheus.CounterVec
}

// Option configures the stub.
type Option func(*Server)

// WithAccount adds an account. Without any, two defaults exist:
// admin@lichtbild.example / admin (ADMIN, 2FA) and
// viewer@lichtbild.example / viewer (USER).
func WithAccount(a Account) Option {
	return func(s *Server) { s.accounts[a.Email] = a }
}

// WithOTPCode sets the one-time code the stub accepts for second-factor
// verification. Default "123456".
func WithOTPCode(code string) Option {
	return func(s *Server) { s.otpCode = code }
}

func New(opts ...Option) *Server {
	key, err := util.RandomBytes(32)
	if err != nil {
		panic(err) // crypto/rand failure is unrecoverable
	}
	s := &Server{
		accounts:   make(map[string]Account),
		challenges: make(map[string]string),
		tokens:     make(map[string]int64),
		signingKey: key,
		otpCode:    "123456",
		registry:   prometheus.NewRegistry(),
	}
	s.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stubserver_requests_total",
		Help: "Requests handled by the stub, by method and status.",
	}, []string{"method", "code"})
	s.registry.MustRegister(s.requests)

	for _, opt := range opts {
		opt(s)
	}
	if len(s.accounts) == 0 {
		s.accounts["admin@lichtbild.example"] = Account{
			ID: 1, Email: "admin@lichtbild.example", Password: "admin",
			Role: api.RoleAdmin, TwoFactor: true,
		}
		s.accounts["viewer@lichtbild.example"] = Account{
			ID: 2, Email: "viewer@lichtbild.example", Password: "viewer",
			Role: api.RoleUser,
		}
	}
	return s
}

// Router returns the stub's routes.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(s.countRequests)

	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})
	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/openapi.yaml",
		Path:    "docs",
	}, nil))

	r.Post("/auth/login", s.login)
	r.Post("/auth/2fa/verify", s.verifyTwoFactor)
	r.Get("/public/{token}", s.publicShare)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/auth/me", s.me)
		r.Post("/auth/2fa/setup", s.setupTwoFactor)
		r.Post("/auth/2fa/disable", s.disableTwoFactor)
		r.Get("/photos", s.listPhotos)
		r.Get("/orders", s.listOrders)
		r.Get("/shares", s.listShares)
		r.Post("/shares/{id}/revoke", s.revokeShare)
		r.Get("/locations", s.listLocations)
		r.Get("/customers", s.listCustomers)
		r.Get("/exports", s.listExports)
		r.Post("/exports", s.createExport)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Get("/users", s.listUsers)
			r.Patch("/users/{id}", s.updateUser)
			r.Delete("/users/{id}", s.deleteUser)
		})
	})
	return r
}

func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.requests.WithLabelValues(r.Method, strconv.Itoa(ww.Status())).Inc()
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, api.ErrorResponse{Error: msg})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	s.mu.Lock()
	acct, ok := s.accounts[strings.ToLower(req.Email)]
	s.mu.Unlock()
	if !ok || subtle.ConstantTimeCompare([]byte(acct.Password), []byte(req.Password)) != 1 {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if acct.TwoFactor {
		challenge := uuid.NewString()
		s.mu.Lock()
		s.challenges[challenge] = acct.Email
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, api.LoginResponse{Challenge: challenge})
		return
	}
	writeJSON(w, http.StatusOK, api.LoginResponse{AccessToken: s.issueToken(acct)})
}

func (s *Server) verifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req api.TwoFactorVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	s.mu.Lock()
	email, ok := s.challenges[req.Challenge]
	s.mu.Unlock()
	if !ok || req.Token != s.otpCode {
		writeError(w, http.StatusUnauthorized, "verification failed")
		return
	}
	s.mu.Lock()
	delete(s.challenges, req.Challenge)
	acct := s.accounts[email]
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, api.TwoFactorVerifyResponse{AccessToken: s.issueToken(acct)})
}

func (s *Server) issueToken(acct Account) string {
	claims := jwt.MapClaims{
		"sub":  acct.Email,
		"uid":  acct.ID,
		"role": string(acct.Role),
		"exp":  time.Now().Add(tokenTTL).Unix(),
		"iat":  time.Now().Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		panic(err) // HS256 signing cannot fail with a valid key
	}
	s.mu.Lock()
	s.tokens[token] = acct.ID
	s.mu.Unlock()
	return token
}

type contextKey int

const accountKey contextKey = iota

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		s.mu.Lock()
		id, live := s.tokens[raw]
		s.mu.Unlock()
		if !live {
			writeError(w, http.StatusUnauthorized, "session expired")
			return
		}
		if _, err := jwt.Parse(raw, func(*jwt.Token) (any, error) { return s.signingKey, nil },
			jwt.WithValidMethods([]string{"HS256"})); err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		acct, ok := s.accountByID(id)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unknown account")
			return
		}
		next.ServeHTTP(w, r.WithContext(withAccount(r.Context(), acct)))
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if accountFrom(r.Context()).Role != api.RoleAdmin {
			writeError(w, http.StatusForbidden, "administrator role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) accountByID(id int64) (Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.ID == id {
			return a, true
		}
	}
	return Account{}, false
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	acct := accountFrom(r.Context())
	writeJSON(w, http.StatusOK, api.Me{ID: acct.ID, Email: acct.Email, Role: acct.Role})
}

func (s *Server) setupTwoFactor(w http.ResponseWriter, r *http.Request) {
	acct := accountFrom(r.Context())
	secret, err := util.RandomBytes(20)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "entropy unavailable")
		return
	}
	encoded := base32NoPad(secret)
	s.mu.Lock()
	a := s.accounts[acct.Email]
	a.TwoFactor = true
	s.accounts[acct.Email] = a
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, api.TwoFactorSetupResponse{
		Secret:     encoded,
		OTPAuthURL: "otpauth://totp/Lichtbild:" + acct.Email + "?secret=" + encoded + "&issuer=Lichtbild",
	})
}

// disableTwoFactor revokes the factor and, per the service contract,
// invalidates every session of the account.
func (s *Server) disableTwoFactor(w http.ResponseWriter, r *http.Request) {
	acct := accountFrom(r.Context())
	s.mu.Lock()
	a := s.accounts[acct.Email]
	a.TwoFactor = false
	s.accounts[acct.Email] = a
	for tok, id := range s.tokens {
		if id == acct.ID {
			delete(s.tokens, tok)
		}
	}
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}
