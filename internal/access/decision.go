package access

// Outcome classifies an authorization decision.
type Outcome int

const (
	// The zero value is deliberately not a valid outcome so that a
	// zero-valued decision can never read as an approval.
	outcomeUnspecified Outcome = iota
	Allow
	DenyUnauthenticated
	DenyForbidden
	DenyNotFound
)

// String returns the outcome label used in logs and metrics.
func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case DenyUnauthenticated:
		return "deny_unauthenticated"
	case DenyForbidden:
		return "deny_forbidden"
	case DenyNotFound:
		return "deny_not_found"
	case outcomeUnspecified:
		return "unspecified"
	default:
		return "unknown"
	}
}

// Actor is the bound request context attached to an allowed decision:
// the verified session plus the tenant-binding profile. Downstream code
// uses it to render pages or parameterize privileged operations.
type Actor struct {
	Session Session
	Profile Profile
}

// PageDecision is the page gate's verdict. Denials are terminal redirects,
// never errors surfaced to the page: unauthenticated visitors go to the
// login page, authorized-but-insufficient sessions go home.
type PageDecision struct {
	Outcome  Outcome
	Reason   string
	Redirect string
	Actor    Actor
}

// Allowed reports whether the page may proceed with the attached actor.
func (d PageDecision) Allowed() bool {
	return d.Outcome == Allow
}
