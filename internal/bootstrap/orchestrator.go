// Package bootstrap drives signup or login, token storage, agent link
// retrieval and link storage for one client session.
package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ErlanBelekov/agentgate/internal/domain"
	"github.com/ErlanBelekov/agentgate/internal/metrics"
	"github.com/ErlanBelekov/agentgate/internal/session"
)

var (
	// ErrInFlight is returned when a flow is already running for the key.
	// The submission is ignored.
	ErrInFlight = errors.New("bootstrap already in progress")
	// ErrAbandoned is returned when the flow was detached by Abandon or its
	// context ended before completion. Nothing more was written to the store.
	ErrAbandoned = errors.New("bootstrap abandoned")
)

const userTimeLayout = "15:04:05.000Z"

type Authenticator interface {
	Signup(ctx context.Context, profile domain.SignupProfile) (*domain.SignupResult, error)
	Login(ctx context.Context, email, password string) (*domain.Session, error)
}

type LinkFetcher interface {
	FetchAgentLink(ctx context.Context, sess domain.Session, userTime string) (*domain.AgentLink, error)
}

type flow struct {
	ctx context.Context

	mu        sync.Mutex
	abandoned bool
}

func (f *flow) live() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.abandoned && f.ctx.Err() == nil
}

// guard runs write only while f is live. The check and the write happen
// under f.mu, so Abandon either lands before the write and skips it, or
// waits until the write is done.
func (f *flow) guard(write func() error) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.abandoned || f.ctx.Err() != nil {
		return false, nil
	}
	return true, write()
}

type Orchestrator struct {
	auth   Authenticator
	links  LinkFetcher
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	active map[string]*flow
}

type Option func(*Orchestrator)

// WithClock replaces the clock used to compute the link's user time.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func New(auth Authenticator, links LinkFetcher, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		auth:   auth,
		links:  links,
		logger: logger.With("component", "bootstrap"),
		now:    time.Now,
		active: make(map[string]*flow),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// UserTime formats t as the UTC time of day sent with link requests.
func UserTime(t time.Time) string {
	return t.UTC().Format(userTimeLayout)
}

// Submit runs a full flow for key against store. Domain failures are
// reported through the Result; the returned error is only ErrInFlight or
// ErrAbandoned.
func (o *Orchestrator) Submit(ctx context.Context, key string, store *session.Store, in Input) (*Result, error) {
	f, err := o.begin(ctx, key)
	if err != nil {
		return nil, err
	}
	defer o.end(key, f)

	r := &Result{Mode: in.Mode}
	r.to(Idle)
	res, err := o.run(ctx, f, store, in, r)
	o.finish(ctx, r, err)
	return res, err
}

// RetryLink re-runs only link retrieval from the stored session.
func (o *Orchestrator) RetryLink(ctx context.Context, key string, store *session.Store) (*Result, error) {
	f, err := o.begin(ctx, key)
	if err != nil {
		return nil, err
	}
	defer o.end(key, f)

	r := &Result{Mode: ModeLogin}
	r.to(Idle)
	sess, ok := store.Load(ctx)
	if !ok {
		fail(r, domain.NewAuthError(domain.MsgTokenRequired))
		o.finish(ctx, r, nil)
		return r, nil
	}
	r.Session = &sess
	res, err := o.fetchLink(ctx, f, store, r)
	o.finish(ctx, r, err)
	return res, err
}

// Abandon detaches the active flow for key. Its remaining results are
// discarded instead of being written to the store. If the flow is in the
// middle of a store write, Abandon returns after that write completes.
func (o *Orchestrator) Abandon(key string) {
	o.mu.Lock()
	f, ok := o.active[key]
	delete(o.active, key)
	o.mu.Unlock()
	if !ok {
		return
	}

	f.mu.Lock()
	f.abandoned = true
	f.mu.Unlock()
}

// InFlight reports whether a flow is running for key.
func (o *Orchestrator) InFlight(key string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.active[key]
	return ok
}

func (o *Orchestrator) run(ctx context.Context, f *flow, store *session.Store, in Input, r *Result) (*Result, error) {
	r.to(ValidatingInput)
	if err := validate(in); err != nil {
		fail(r, err)
		return r, nil
	}

	r.to(CreatingOrAuthenticating)
	creds := in.Profile.Credentials()
	if in.Mode == ModeSignup {
		created, err := o.auth.Signup(ctx, in.Profile)
		if err != nil {
			fail(r, err)
			return r, nil
		}
		r.User = &created.User
		r.AccountCreated = true
	}

	sess, err := o.auth.Login(ctx, creds.Email, creds.Password)
	if err != nil {
		if r.AccountCreated {
			de := asDomain(err)
			fail(r, &domain.Error{
				Kind:    de.Kind,
				Message: domain.MsgSignedUpNoLogin + ": " + de.Message,
				Status:  de.Status,
				Details: de.Details,
			})
			return r, nil
		}
		fail(r, err)
		return r, nil
	}

	live, err := f.guard(func() error { return store.Save(ctx, *sess) })
	if !live {
		return r, ErrAbandoned
	}
	if err != nil {
		o.logger.ErrorContext(ctx, "save session", "error", err)
		fail(r, domain.NewUpstreamError(domain.MsgStorageUnavailable, 0, nil))
		return r, nil
	}
	r.Session = sess

	return o.fetchLink(ctx, f, store, r)
}

func (o *Orchestrator) fetchLink(ctx context.Context, f *flow, store *session.Store, r *Result) (*Result, error) {
	r.to(FetchingAgentLink)
	link, err := o.links.FetchAgentLink(ctx, *r.Session, UserTime(o.now()))
	if err != nil {
		de := asDomain(err)
		if de.Kind == domain.KindAuth {
			live, cerr := f.guard(func() error { return store.Clear(ctx) })
			if !live {
				return r, ErrAbandoned
			}
			if cerr != nil {
				o.logger.ErrorContext(ctx, "clear session", "error", cerr)
			}
			r.Session = nil
			fail(r, &domain.Error{Kind: domain.KindAuth, Message: domain.MsgSessionInvalid, Status: de.Status})
			return r, nil
		}
		if !f.live() {
			return r, ErrAbandoned
		}
		r.Err = de
		r.to(LinkPending)
		return r, nil
	}

	live, err := f.guard(func() error { return store.SaveLink(ctx, *link) })
	if !live {
		return r, ErrAbandoned
	}
	if err != nil {
		o.logger.ErrorContext(ctx, "save agent link", "error", err)
		r.Err = domain.NewUpstreamError(domain.MsgStorageUnavailable, 0, nil)
		r.to(LinkPending)
		return r, nil
	}
	r.Link = link
	r.to(Complete)
	return r, nil
}

func validate(in Input) error {
	switch in.Mode {
	case ModeSignup:
		return domain.ValidateSignupInput(in.Profile)
	case ModeLogin:
		return domain.ValidateLoginInput(in.Profile.Credentials())
	default:
		return domain.NewValidationError("unknown mode")
	}
}

func (o *Orchestrator) begin(ctx context.Context, key string) (*flow, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.active[key]; busy {
		metrics.BootstrapRejectedTotal.Inc()
		return nil, ErrInFlight
	}
	f := &flow{ctx: ctx}
	o.active[key] = f
	metrics.BootstrapsInFlight.Inc()
	return f, nil
}

func (o *Orchestrator) end(key string, f *flow) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active[key] == f {
		delete(o.active, key)
	}
	metrics.BootstrapsInFlight.Dec()
}

func fail(r *Result, err error) {
	r.Err = asDomain(err)
	r.to(Failed)
}

func (o *Orchestrator) finish(ctx context.Context, r *Result, err error) {
	state := string(r.State)
	if errors.Is(err, ErrAbandoned) {
		state = "abandoned"
	}
	metrics.BootstrapOutcomesTotal.WithLabelValues(string(r.Mode), state).Inc()
	o.logger.InfoContext(ctx, "bootstrap finished",
		"mode", r.Mode,
		"state", state,
		"kind", r.Kind(),
		"account_created", r.AccountCreated,
	)
}

func asDomain(err error) *domain.Error {
	if de, ok := domain.AsError(err); ok {
		return de
	}
	return domain.NewUpstreamError(domain.MsgUpstreamFailed, 0, nil)
}
