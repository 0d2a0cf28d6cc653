package access

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// Requirement declares what a gated page or operation demands of the acting
// profile. AnyOf and AllOf are combined with logical AND when both are set;
// a requirement with no roles at all means "authenticated is enough" and the
// role evaluator is not consulted.
type Requirement struct {
	AnyOf          []Role
	AllOf          []Role
	RequireProfile bool
}

func (r Requirement) wantsRoles() bool {
	return len(r.AnyOf) > 0 || len(r.AllOf) > 0
}

func (r Requirement) satisfiedBy(roles RoleSet) bool {
	if len(r.AnyOf) > 0 && !roles.HasAny(r.AnyOf...) {
		return false
	}
	if len(r.AllOf) > 0 && !roles.HasAll(r.AllOf...) {
		return false
	}
	return true
}

// OwnershipCheck re-verifies that the actor owns the target resource. It
// must read the resource's current owner key from the store and compare it
// with a scope helper; it runs only after the role evaluation passed, and a
// privileged mutation runs only after it returns nil. Returning ErrForbidden
// denies; any other error is surfaced unchanged.
type OwnershipCheck func(ctx context.Context, actor Actor) error

// DecisionHook observes every gate verdict; shape is "page" or "operation".
type DecisionHook func(shape string, outcome Outcome)

// Gate composes session resolution, profile binding, role evaluation and
// scope checking into the two reusable control-flow shapes privileged code
// needs. It holds no cross-request state: every decision is computed fresh
// from its collaborators.
type Gate struct {
	resolver  Resolver
	binder    Binder
	log       zerolog.Logger
	hook      DecisionHook
	loginPath string
	homePath  string
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithLogger sets the audit logger. Denials log at info, collaborator
// failures at error; unauthenticated outcomes are not logged at all.
func WithLogger(log zerolog.Logger) GateOption {
	return func(g *Gate) { g.log = log }
}

// WithDecisionHook registers an observer for decision metrics.
func WithDecisionHook(hook DecisionHook) GateOption {
	return func(g *Gate) {
		if hook != nil {
			g.hook = hook
		}
	}
}

// WithLoginPath overrides the redirect target for unauthenticated pages.
func WithLoginPath(path string) GateOption {
	return func(g *Gate) {
		if path != "" {
			g.loginPath = path
		}
	}
}

// WithHomePath overrides the redirect target for forbidden pages.
func WithHomePath(path string) GateOption {
	return func(g *Gate) {
		if path != "" {
			g.homePath = path
		}
	}
}

// NewGate constructs a Gate over the given collaborators.
func NewGate(resolver Resolver, binder Binder, opts ...GateOption) (*Gate, error) {
	if resolver == nil {
		return nil, errors.New("access: resolver is required")
	}
	if binder == nil {
		return nil, errors.New("access: binder is required")
	}
	g := &Gate{
		resolver:  resolver,
		binder:    binder,
		log:       zerolog.Nop(),
		hook:      func(string, Outcome) {},
		loginPath: "/login",
		homePath:  "/",
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Page runs the gate in its page shape: decide whether a page render may
// proceed, or where to send the visitor instead. Authorization outcomes are
// terminal redirects, never errors. The returned error is non-nil only for
// collaborator failures (ErrUnavailable) and integrity faults (ErrInvariant);
// conflating "the backend is down" with a deny is forbidden, so those are
// left to the caller to render as an unavailable page.
func (g *Gate) Page(ctx context.Context, cred Credential, req Requirement) (PageDecision, error) {
	sess, err := g.resolveSession(ctx, cred)
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return g.pageDeny(DenyUnauthenticated, "no active session", g.loginPath), nil
	case err != nil:
		g.log.Error().Err(err).Msg("page gate: session resolution failed")
		return PageDecision{}, err
	}

	profile, err := g.bindProfile(ctx, sess.Identity)
	switch {
	case errors.Is(err, ErrProfileMissing):
		if req.RequireProfile {
			return g.pageDeny(DenyNotFound, "profile required but missing", g.homePath), nil
		}
		// Pages that only need authentication proceed with an empty role
		// set; role requirements then fail naturally below.
		profile = Profile{Identity: sess.Identity, Roles: RoleSet{}}
	case err != nil:
		g.log.Error().Err(err).Str("identity", sess.Identity).Msg("page gate: profile binding failed")
		return PageDecision{}, err
	}

	if req.wantsRoles() && !req.satisfiedBy(profile.Roles) {
		g.log.Info().
			Str("identity", sess.Identity).
			Strs("roles", profile.Roles.Strings()).
			Msg("page gate: role requirement not met")
		return g.pageDeny(DenyForbidden, "role requirement not met", g.homePath), nil
	}

	g.hook("page", Allow)
	return PageDecision{
		Outcome: Allow,
		Actor:   Actor{Session: sess, Profile: profile},
	}, nil
}

// Operation runs the gate in its operation shape: approve a privileged
// mutation or reject it with a typed error. The mutation itself is the
// caller's executor, reached only on a nil error. Role and ownership
// failures are both surfaced as ErrForbidden; the cause is separated only
// in the log so a caller cannot probe which predicate failed.
func (g *Gate) Operation(ctx context.Context, cred Credential, req Requirement, own OwnershipCheck) (Actor, error) {
	sess, err := g.resolveSession(ctx, cred)
	switch {
	case errors.Is(err, ErrUnauthenticated):
		g.hook("operation", DenyUnauthenticated)
		return Actor{}, ErrUnauthenticated
	case err != nil:
		g.log.Error().Err(err).Msg("operation gate: session resolution failed")
		return Actor{}, err
	}

	profile, err := g.bindProfile(ctx, sess.Identity)
	switch {
	case errors.Is(err, ErrProfileMissing):
		g.hook("operation", DenyNotFound)
		return Actor{}, ErrProfileMissing
	case err != nil:
		g.log.Error().Err(err).Str("identity", sess.Identity).Msg("operation gate: profile binding failed")
		return Actor{}, err
	}

	actor := Actor{Session: sess, Profile: profile}

	if req.wantsRoles() && !req.satisfiedBy(profile.Roles) {
		g.deny(sess.Identity, "role")
		return Actor{}, ErrForbidden
	}

	if own != nil {
		switch err := own(ctx, actor); {
		case err == nil:
		case errors.Is(err, ErrForbidden):
			g.deny(sess.Identity, "ownership")
			return Actor{}, ErrForbidden
		default:
			return Actor{}, err
		}
	}

	g.hook("operation", Allow)
	return actor, nil
}

func (g *Gate) pageDeny(outcome Outcome, reason, redirect string) PageDecision {
	g.hook("page", outcome)
	return PageDecision{Outcome: outcome, Reason: reason, Redirect: redirect}
}

func (g *Gate) deny(identity, cause string) {
	g.hook("operation", DenyForbidden)
	g.log.Info().
		Str("identity", identity).
		Str("cause", cause).
		Msg("operation gate: denied")
}

// resolveSession calls the resolver, retrying exactly once when the identity
// provider is unreachable before surfacing ErrUnavailable.
func (g *Gate) resolveSession(ctx context.Context, cred Credential) (Session, error) {
	sess, err := g.resolver.Resolve(ctx, cred)
	if errors.Is(err, ErrUnavailable) {
		sess, err = g.resolver.Resolve(ctx, cred)
	}
	return sess, err
}

func (g *Gate) bindProfile(ctx context.Context, identity string) (Profile, error) {
	profile, err := g.binder.Bind(ctx, identity)
	if errors.Is(err, ErrUnavailable) {
		profile, err = g.binder.Bind(ctx, identity)
	}
	return profile, err
}
