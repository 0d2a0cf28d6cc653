package access

import "context"

type credentialContextKey struct{}
type actorContextKey struct{}

// ContextWithCredential stores the transport credential extracted by the
// HTTP layer. An absent credential is not stored.
func ContextWithCredential(ctx context.Context, cred Credential) context.Context {
	if cred.IsZero() {
		return ctx
	}
	return context.WithValue(ctx, credentialContextKey{}, cred)
}

// CredentialFromContext returns the credential attached to the request, or
// the zero credential when none was presented.
func CredentialFromContext(ctx context.Context) Credential {
	if ctx == nil {
		return ""
	}
	cred, _ := ctx.Value(credentialContextKey{}).(Credential)
	return cred
}

// ContextWithActor attaches a gate-approved actor to the context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, &actor)
}

// ActorFromContext extracts the approved actor, if a gate attached one.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	v, ok := ctx.Value(actorContextKey{}).(*Actor)
	if !ok || v == nil {
		return Actor{}, false
	}
	return *v, true
}
