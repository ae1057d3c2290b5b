// Package stub is an in-memory stand-in for the signup backend. It serves the
// verification, registration and login endpoints so the flow can be run end
// to end during development and in tests. Nothing outlives the process.
package stub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/crypto/bcrypt"

	"github.com/zjrosen/signup/internal/log"
	"github.com/zjrosen/signup/internal/registration"
	"github.com/zjrosen/signup/internal/tracing"
)

// Response messages.
const (
	MsgNotVerified       = "Email not verified"
	MsgAlreadyRegistered = "Email already registered"
	MsgInvalidLogin      = "Invalid email or password"
	MsgInvalidToken      = "Invalid or expired token"
	MsgMalformedBody     = "Malformed request body"
)

// Options configures a Backend.
type Options struct {
	// BaseURL prefixes the verification links handed to OnLink.
	BaseURL string
	// TokenTTL is how long a verification link stays valid.
	TokenTTL time.Duration
	// AutoVerify marks an address verified as soon as a link is requested.
	AutoVerify bool
	// OnLink receives every issued verification link.
	OnLink func(email, link string)
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
	Tracer     trace.Tracer
}

type account struct {
	id     string
	name   string
	hash   []byte
	joined time.Time
}

// Backend holds the in-memory state behind the endpoints.
type Backend struct {
	opts   Options
	tokens *tokenStore
	tracer trace.Tracer

	mu       sync.Mutex
	verified map[string]bool
	accounts map[string]account
}

// New creates a Backend.
func New(opts Options) *Backend {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 15 * time.Minute
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	return &Backend{
		opts:     opts,
		tokens:   newTokenStore(opts.TokenTTL),
		tracer:   tracer,
		verified: make(map[string]bool),
		accounts: make(map[string]account),
	}
}

// SetBaseURL changes the prefix of issued links. Used once the listener
// address is known.
func (b *Backend) SetBaseURL(base string) {
	b.mu.Lock()
	b.opts.BaseURL = strings.TrimRight(base, "/")
	b.mu.Unlock()
}

// Routes returns the router serving every endpoint.
func (b *Backend) Routes() http.Handler {
	r := mux.NewRouter()
	r.Use(b.requestLogger)

	// Routes stay on the root router: a subrouter answers a method
	// mismatch with 404 instead of 405.
	r.HandleFunc("/api/send-verification-link", b.SendVerificationLink).Methods(http.MethodPost)
	r.HandleFunc("/api/verify-email", b.VerifyEmail).Methods(http.MethodGet)
	r.HandleFunc("/api/check-email-verified", b.CheckEmailVerified).Methods(http.MethodGet)
	r.HandleFunc("/api/register", b.Register).Methods(http.MethodPost)
	r.HandleFunc("/api/login", b.Login).Methods(http.MethodPost)

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprintln(w, "OK")
	}).Methods(http.MethodGet)
	return r
}

// Verify consumes a verification token as if its link had been opened.
func (b *Backend) Verify(token string) (string, bool) {
	email, ok := b.tokens.take(token)
	if !ok {
		return "", false
	}
	b.MarkVerified(email)
	return email, true
}

// MarkVerified flags email as verified.
func (b *Backend) MarkVerified(email string) {
	b.mu.Lock()
	b.verified[normalize(email)] = true
	b.mu.Unlock()
	log.Info(log.CatStub, "email verified", "email", email)
}

// IsVerified reports whether email has been verified.
func (b *Backend) IsVerified(email string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.verified[normalize(email)]
}

// Registered reports whether an account exists for email.
func (b *Backend) Registered(email string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.accounts[normalize(email)]
	return ok
}

// PendingLinks returns the number of unexpired, unused verification links.
func (b *Backend) PendingLinks() int {
	return b.tokens.pending()
}

type emailRequest struct {
	Email string `json:"email"`
}

type registerRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// SendVerificationLink issues a verification token for the posted address.
func (b *Backend) SendVerificationLink(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.StartServerSpan(r, b.tracer, "send_verification")
	defer span.End()

	var req emailRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, MsgMalformedBody)
		return
	}
	if !registration.ValidateEmailFormat(req.Email) {
		writeError(w, http.StatusBadRequest, registration.MsgInvalidEmail)
		return
	}

	token := uuid.NewString()
	b.tokens.put(token, normalize(req.Email))

	b.mu.Lock()
	link := b.opts.BaseURL + "/api/verify-email?token=" + url.QueryEscape(token)
	b.mu.Unlock()

	span.AddEvent(tracing.EventLinkIssued, trace.WithAttributes(attribute.String(tracing.AttrEmail, req.Email)))
	log.Info(log.CatStub, "verification link issued", "email", req.Email, "link", link)

	if b.opts.OnLink != nil {
		b.opts.OnLink(req.Email, link)
	}
	if b.opts.AutoVerify {
		b.MarkVerified(req.Email)
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

// VerifyEmail consumes the token from a verification link.
func (b *Backend) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.StartServerSpan(r, b.tracer, "verify_email")
	defer span.End()

	token := r.URL.Query().Get("token")
	email, ok := b.Verify(token)
	if !ok {
		writeError(w, http.StatusBadRequest, MsgInvalidToken)
		return
	}
	span.AddEvent(tracing.EventEmailVerified)
	writeJSON(w, http.StatusOK, map[string]string{"email": email})
}

// CheckEmailVerified reports the verification status of ?email=.
func (b *Backend) CheckEmailVerified(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.StartServerSpan(r, b.tracer, "check_verified")
	defer span.End()

	email := r.URL.Query().Get("email")
	writeJSON(w, http.StatusOK, map[string]bool{"verified": b.IsVerified(email)})
}

// Register creates an account for a verified address.
func (b *Backend) Register(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.StartServerSpan(r, b.tracer, "register")
	defer span.End()

	var req registerRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, MsgMalformedBody)
		return
	}
	form := registration.Form{
		Name:            req.Name,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	}
	// A client that does not collect the confirmation leaves it empty.
	if err := registration.Validate(form, req.ConfirmPassword != ""); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := normalize(req.Email)
	if !b.IsVerified(key) {
		writeError(w, http.StatusForbidden, MsgNotVerified)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), b.opts.BcryptCost)
	if err != nil {
		tracing.RecordError(span, err)
		log.ErrorErr(log.CatStub, "hashing password", err)
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	b.mu.Lock()
	if _, exists := b.accounts[key]; exists {
		b.mu.Unlock()
		writeError(w, http.StatusConflict, MsgAlreadyRegistered)
		return
	}
	acc := account{id: uuid.NewString(), name: strings.TrimSpace(req.Name), hash: hash, joined: time.Now()}
	b.accounts[key] = acc
	b.mu.Unlock()

	log.Info(log.CatStub, "account registered", "email", req.Email, "id", acc.id)
	writeJSON(w, http.StatusCreated, map[string]string{"id": acc.id})
}

// Login checks credentials. It keeps no session.
func (b *Backend) Login(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.StartServerSpan(r, b.tracer, "login")
	defer span.End()

	var req loginRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, MsgMalformedBody)
		return
	}

	b.mu.Lock()
	acc, ok := b.accounts[normalize(req.Email)]
	b.mu.Unlock()

	if !ok || bcrypt.CompareHashAndPassword(acc.hash, []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, MsgInvalidLogin)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (b *Backend) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Debug(log.CatStub, "handled", "method", r.Method, "path", r.URL.Path,
			"status", rec.status, "request_id", r.Header.Get(tracing.RequestIDHeader),
			"elapsed", time.Since(start).Round(time.Microsecond))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decoding body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.ErrorErr(log.CatStub, "encoding response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// Server runs a Backend on a TCP listener.
type Server struct {
	backend  *Backend
	server   *http.Server
	listener net.Listener
}

// Listen binds addr and prepares a server for b. Port 0 picks a free port;
// links issued by b then point at the bound address.
func Listen(addr string, b *Backend) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", addr, err)
	}
	s := &Server{
		backend:  b,
		listener: ln,
		server: &http.Server{
			Handler:           b.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
	b.SetBaseURL(s.URL())
	return s, nil
}

// URL is the base URL clients should use.
func (s *Server) URL() string {
	return "http://" + s.listener.Addr().String()
}

// Serve blocks until the server stops. A clean shutdown returns nil.
func (s *Server) Serve() error {
	log.Info(log.CatStub, "stub backend listening", "url", s.URL())
	if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving stub backend: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info(log.CatStub, "stopping stub backend")
	return s.server.Shutdown(ctx)
}
