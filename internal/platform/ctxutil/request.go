package ctxutil

import "context"

type requestDataKey struct{}

// RequestData carries per-request identifiers that are not part of tracing.
type RequestData struct {
	// SessionKey scopes generation continuity; empty when the caller sent none.
	SessionKey string
}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	val := ctx.Value(requestDataKey{})
	if rd, ok := val.(*RequestData); ok {
		return rd
	}
	return nil
}
