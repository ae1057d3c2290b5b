package registration

import (
	"context"
	"sync"
	"time"

	"github.com/zjrosen/signup/internal/log"
	"github.com/zjrosen/signup/internal/pubsub"
)

// Backend is the set of external calls the flow makes.
type Backend interface {
	SendVerification(ctx context.Context, email string) error
	CheckVerified(ctx context.Context, email string) (bool, error)
	Register(ctx context.Context, form Form) error
}

// Scheduler runs fn once after d. The returned stop function cancels it and
// reports whether it was still pending.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) (stop func() bool)
}

// RealScheduler schedules with time.AfterFunc.
type RealScheduler struct{}

// AfterFunc implements Scheduler.
func (RealScheduler) AfterFunc(d time.Duration, fn func()) func() bool {
	return time.AfterFunc(d, fn).Stop
}

// Config holds the flow settings that come from user configuration.
type Config struct {
	// RedirectDelay is how long the success message stays up before
	// navigating to the login destination.
	RedirectDelay time.Duration
	// LoginDestination is where a successful registration navigates to.
	LoginDestination string
	// RequireConfirmPassword adds the confirmation field to validation.
	RequireConfirmPassword bool
}

// DefaultConfig returns the stock flow settings.
func DefaultConfig() Config {
	return Config{
		RedirectDelay:          1500 * time.Millisecond,
		LoginDestination:       "/login",
		RequireConfirmPassword: true,
	}
}

// Option customizes a Flow.
type Option func(*Flow)

// WithScheduler replaces the timer used for the post-registration redirect.
func WithScheduler(s Scheduler) Option {
	return func(f *Flow) { f.scheduler = s }
}

// WithNavigator registers a callback invoked when the redirect fires.
func WithNavigator(fn func(destination string)) Option {
	return func(f *Flow) { f.onNavigate = fn }
}

// Flow owns the registration state and serializes every transition.
// It is safe for concurrent use: the UI calls the blocking operations from
// Bubble Tea commands while edits arrive from the update loop.
type Flow struct {
	mu    sync.Mutex
	state State

	backend    Backend
	cfg        Config
	scheduler  Scheduler
	onNavigate func(string)
	broker     *pubsub.Broker[State]

	// life is cancelled by Close and bounds every outgoing request.
	life       context.Context
	lifeCancel context.CancelFunc
	stopNav    func() bool
	closed     bool
}

// New creates a flow talking to backend.
func New(backend Backend, cfg Config, opts ...Option) *Flow {
	life, cancel := context.WithCancel(context.Background())
	f := &Flow{
		state:      NewState(cfg.RequireConfirmPassword),
		backend:    backend,
		cfg:        cfg,
		scheduler:  RealScheduler{},
		broker:     pubsub.NewBroker[State](),
		life:       life,
		lifeCancel: cancel,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Broker returns the broker on which every new State is published.
func (f *Flow) Broker() *pubsub.Broker[State] {
	return f.broker
}

// Snapshot returns the current state.
func (f *Flow) Snapshot() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// SetName records a name edit.
func (f *Flow) SetName(name string) {
	f.edit(func(s State) State { return s.WithName(name) })
}

// SetEmail records an email edit. Changing the address resets verification.
func (f *Flow) SetEmail(email string) {
	f.edit(func(s State) State {
		next := s.WithEmail(email)
		if next.Generation != s.Generation && s.Verification != Unverified {
			log.Debug(log.CatFlow, "email edited, verification reset",
				"from", s.Verification, "generation", next.Generation)
		}
		return next
	})
}

// SetPassword records a password edit.
func (f *Flow) SetPassword(password string) {
	f.edit(func(s State) State { return s.WithPassword(password) })
}

// SetConfirmPassword records an edit of the confirmation field.
func (f *Flow) SetConfirmPassword(confirm string) {
	f.edit(func(s State) State { return s.WithConfirmPassword(confirm) })
}

// CanRequestVerification reports whether the verify action is enabled.
func (f *Flow) CanRequestVerification() bool {
	return f.Snapshot().CanRequestVerification()
}

// CanSubmit reports whether the submit action is enabled.
func (f *Flow) CanSubmit() bool {
	return f.Snapshot().CanSubmit()
}

// RequestEmailVerification asks the backend to send a verification link to
// the current email address. It blocks until the backend answers.
//
// Guard refusals (see IsGuard) issue no request. A backend failure returns a
// *RequestError and leaves the gate Unverified.
func (f *Flow) RequestEmailVerification(ctx context.Context) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	next, err := f.state.BeginSend()
	if err != nil {
		if next.Problem != f.state.Problem {
			f.apply(next, pubsub.ChangedEvent)
		}
		f.mu.Unlock()
		log.Debug(log.CatFlow, "verification send refused", "reason", err)
		return err
	}
	gen, email := next.Generation, next.Form.Email
	f.apply(next, pubsub.ChangedEvent)
	f.mu.Unlock()

	log.Info(log.CatFlow, "sending verification link", "email", email, "generation", gen)

	reqCtx, cancel := f.bind(ctx)
	sendErr := f.backend.SendVerification(reqCtx, email)
	cancel()

	var reqErr *RequestError
	if sendErr != nil {
		reqErr = newRequestError(OpSendVerification, sendErr, MsgSendFailed)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	stale := gen != f.state.Generation
	f.apply(f.state.CompleteSend(gen, reqErr), pubsub.ChangedEvent)

	switch {
	case stale:
		log.Debug(log.CatFlow, "discarding stale verification send", "generation", gen)
		return ErrStale
	case reqErr != nil:
		log.ErrorErr(log.CatFlow, "verification send failed", sendErr, "email", email)
		return reqErr
	}
	return nil
}

// PollVerificationStatus asks the backend whether the current address has
// been verified. Only runs while a link has been sent; an already verified
// address reports true without a request.
func (f *Flow) PollVerificationStatus(ctx context.Context) (bool, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return false, ErrClosed
	}
	if f.state.Verification == Verified {
		f.mu.Unlock()
		return true, nil
	}
	next, err := f.state.BeginPoll()
	if err != nil {
		f.mu.Unlock()
		return false, err
	}
	gen, email := next.Generation, next.Form.Email
	f.apply(next, pubsub.ChangedEvent)
	f.mu.Unlock()

	reqCtx, cancel := f.bind(ctx)
	verified, checkErr := f.backend.CheckVerified(reqCtx, email)
	cancel()

	var reqErr *RequestError
	if checkErr != nil {
		reqErr = newRequestError(OpCheckVerified, checkErr, MsgCheckFailed)
		verified = false
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false, ErrClosed
	}
	stale := gen != f.state.Generation
	f.apply(f.state.CompletePoll(gen, verified, reqErr), pubsub.ChangedEvent)

	switch {
	case stale:
		return false, ErrStale
	case reqErr != nil:
		log.ErrorErr(log.CatFlow, "verification check failed", checkErr, "email", email)
		return false, reqErr
	}
	if verified {
		log.Info(log.CatFlow, "email verified", "email", email)
	}
	return verified, nil
}

// Submit sends the registration. It refuses unless the email is verified,
// no other submit is running and the form passes local validation. On
// success the redirect to the login destination is scheduled.
func (f *Flow) Submit(ctx context.Context) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	next, err := f.state.BeginSubmit()
	if err != nil {
		if next.Problem != f.state.Problem || next.Success != f.state.Success {
			f.apply(next, pubsub.ChangedEvent)
		}
		f.mu.Unlock()
		log.Debug(log.CatFlow, "submit refused", "reason", err)
		return err
	}
	form := next.Form
	f.apply(next, pubsub.ChangedEvent)
	f.mu.Unlock()

	log.Info(log.CatFlow, "submitting registration", "email", form.Email)

	reqCtx, cancel := f.bind(ctx)
	regErr := f.backend.Register(reqCtx, form)
	cancel()

	var reqErr *RequestError
	if regErr != nil {
		reqErr = newRequestError(OpRegister, regErr, MsgRegistrationFailed)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	f.apply(f.state.CompleteSubmit(reqErr), pubsub.ChangedEvent)
	if reqErr != nil {
		log.ErrorErr(log.CatFlow, "registration failed", regErr, "email", form.Email)
		return reqErr
	}

	log.Info(log.CatFlow, "registration accepted, scheduling redirect",
		"destination", f.cfg.LoginDestination, "delay", f.cfg.RedirectDelay)
	if f.stopNav != nil {
		f.stopNav()
	}
	f.stopNav = f.scheduler.AfterFunc(f.cfg.RedirectDelay, f.navigate)
	return nil
}

// Close stops the pending redirect, cancels in-flight requests and closes
// the broker. Responses arriving afterwards are discarded.
func (f *Flow) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	if f.stopNav != nil {
		f.stopNav()
	}
	f.lifeCancel()
	f.broker.Close()
}

// Closed reports whether Close has been called.
func (f *Flow) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *Flow) navigate() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	dest := f.cfg.LoginDestination
	f.stopNav = nil
	f.apply(f.state.Navigated(dest), pubsub.NavigateEvent)
	onNavigate := f.onNavigate
	f.mu.Unlock()

	log.Info(log.CatFlow, "navigating", "destination", dest)
	if onNavigate != nil {
		onNavigate(dest)
	}
}

func (f *Flow) edit(fn func(State) State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.apply(fn(f.state), pubsub.ChangedEvent)
}

// apply must be called with mu held.
func (f *Flow) apply(next State, typ pubsub.EventType) {
	if next.Verification != f.state.Verification {
		log.Debug(log.CatFlow, "verification transition",
			"from", f.state.Verification, "to", next.Verification)
	}
	f.state = next
	f.broker.Publish(typ, next)
}

// bind derives a request context that is also cancelled when the flow closes.
func (f *Flow) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(f.life, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
