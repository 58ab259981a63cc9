package xcontext

import "context"

type requestIDKey struct{}

func SetRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func GetRequestID(ctx context.Context) (string, bool) {
	requestID, ok := ctx.Value(requestIDKey{}).(string)
	return requestID, ok
}

// RequestIDOrEmpty is for log lines and outbound headers where a missing id is fine.
func RequestIDOrEmpty(ctx context.Context) string {
	id, _ := GetRequestID(ctx)
	return id
}
