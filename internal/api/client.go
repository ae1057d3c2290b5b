// Package api is the HTTP client for the signup backend: registration,
// verification link, verification check and login.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"resty.dev/v3"

	"github.com/zjrosen/signup/internal/log"
	"github.com/zjrosen/signup/internal/registration"
	"github.com/zjrosen/signup/internal/tracing"
)

// Paths are the endpoint paths relative to the base URL.
type Paths struct {
	Register         string
	SendVerification string
	CheckVerified    string
	Login            string
}

// DefaultPaths returns the stock endpoint layout.
func DefaultPaths() Paths {
	return Paths{
		Register:         "/api/register",
		SendVerification: "/api/send-verification-link",
		CheckVerified:    "/api/check-email-verified",
		Login:            "/api/login",
	}
}

// Options configures a Client.
type Options struct {
	BaseURL string
	// Timeout bounds each request. Zero leaves it to the transport.
	Timeout time.Duration
	Paths   Paths
	Tracer  trace.Tracer
	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// Client talks to the backend. It implements registration.Backend.
type Client struct {
	rc     *resty.Client
	paths  Paths
	tracer trace.Tracer
}

var _ registration.Backend = (*Client)(nil)

// New creates a client for opts.BaseURL.
func New(opts Options) *Client {
	rc := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetLogger(restyLogger{})
	if opts.Timeout > 0 {
		rc.SetTimeout(opts.Timeout)
	}
	if opts.Transport != nil {
		rc.SetTransport(opts.Transport)
	}

	paths := opts.Paths
	if paths == (Paths{}) {
		paths = DefaultPaths()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	return &Client{rc: rc, paths: paths, tracer: tracer}
}

// Close releases idle connections.
func (c *Client) Close() error {
	return c.rc.Close()
}

type emailBody struct {
	Email string `json:"email"`
}

type registerBody struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifiedBody struct {
	Verified bool `json:"verified"`
}

// SendVerification asks the backend to mail a verification link to email.
func (c *Client) SendVerification(ctx context.Context, email string) error {
	return c.do(ctx, registration.OpSendVerification, http.MethodPost, c.paths.SendVerification, email,
		func(r *resty.Request) { r.SetBody(emailBody{Email: email}) }, nil)
}

// CheckVerified reports whether email has been verified.
func (c *Client) CheckVerified(ctx context.Context, email string) (bool, error) {
	var out verifiedBody
	err := c.do(ctx, registration.OpCheckVerified, http.MethodGet, c.paths.CheckVerified, email,
		func(r *resty.Request) { r.SetQueryParam("email", email) }, &out)
	if err != nil {
		return false, err
	}
	return out.Verified, nil
}

// Register submits the registration form.
func (c *Client) Register(ctx context.Context, form registration.Form) error {
	body := registerBody{
		Name:            form.Name,
		Email:           form.Email,
		Password:        form.Password,
		ConfirmPassword: form.ConfirmPassword,
	}
	return c.do(ctx, registration.OpRegister, http.MethodPost, c.paths.Register, form.Email,
		func(r *resty.Request) { r.SetBody(body) }, nil)
}

// OpLogin names the login call in logs and spans.
const OpLogin = "login"

// Login checks credentials against the backend. No session is kept.
func (c *Client) Login(ctx context.Context, email, password string) error {
	return c.do(ctx, OpLogin, http.MethodPost, c.paths.Login, email,
		func(r *resty.Request) { r.SetBody(loginBody{Email: email, Password: password}) }, nil)
}

func (c *Client) do(ctx context.Context, op, method, path, email string, prep func(*resty.Request), result any) error {
	ctx, reqID := tracing.EnsureRequestID(ctx)
	ctx, span := tracing.StartClientSpan(ctx, c.tracer, op,
		attribute.String(tracing.AttrRequestID, reqID),
		attribute.String(tracing.AttrMethod, method),
		attribute.String(tracing.AttrEmail, email),
	)
	defer span.End()

	var body errorBody
	req := c.rc.R().
		SetContext(ctx).
		SetHeader(tracing.RequestIDHeader, reqID).
		SetError(&body)
	if result != nil {
		req.SetResult(result)
	}
	if prep != nil {
		prep(req)
	}
	tracing.Inject(ctx, req.Header)

	start := time.Now()
	res, err := req.Execute(method, path)
	elapsed := time.Since(start)
	if err != nil {
		err = fmt.Errorf("%s %s: %w", method, path, err)
		tracing.RecordError(span, err)
		log.ErrorErr(log.CatAPI, "request failed", err, "op", op, "request_id", reqID)
		return err
	}

	span.SetAttributes(attribute.Int(tracing.AttrStatusCode, res.StatusCode()))
	log.Debug(log.CatAPI, "response", "op", op, "status", res.StatusCode(),
		"request_id", reqID, "elapsed", elapsed.Round(time.Millisecond))

	if !res.IsSuccess() {
		serr := &StatusError{StatusCode: res.StatusCode(), Message: body.message()}
		tracing.RecordError(span, serr)
		return serr
	}
	return nil
}

// restyLogger routes resty's own diagnostics to the file log so they never
// reach the terminal the TUI is drawing on.
type restyLogger struct{}

func (restyLogger) Errorf(format string, v ...any) {
	log.Error(log.CatAPI, fmt.Sprintf(format, v...))
}

func (restyLogger) Warnf(format string, v ...any) {
	log.Warn(log.CatAPI, fmt.Sprintf(format, v...))
}

func (restyLogger) Debugf(format string, v ...any) {
	log.Debug(log.CatAPI, fmt.Sprintf(format, v...))
}
