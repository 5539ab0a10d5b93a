package engine

import "context"

type engineContextKey struct{}

// WithEngine attaches e to ctx so handler code deep in a call (notably the
// wait package) can reach back to subscribe ephemeral wakeup subgraphs
// without every HandlerFunc signature threading an *Engine parameter.
func WithEngine(ctx context.Context, e *Engine) context.Context {
	return context.WithValue(ctx, engineContextKey{}, e)
}

// FromContext retrieves the Engine attached by WithEngine, if any.
func FromContext(ctx context.Context) (*Engine, bool) {
	e, ok := ctx.Value(engineContextKey{}).(*Engine)
	return e, ok
}
