package domain

import "context"

type modelKey struct{}

// ContextWithModel returns a context carrying a per-execution model override.
// An empty model leaves ctx unchanged.
func ContextWithModel(ctx context.Context, model string) context.Context {
	if model == "" {
		return ctx
	}
	return context.WithValue(ctx, modelKey{}, model)
}

// ModelFromContext returns the model override carried by ctx, or "".
func ModelFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(modelKey{}).(string); ok {
		return v
	}
	return ""
}
