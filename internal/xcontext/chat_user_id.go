package xcontext

import "context"

type chatUserIDKey struct{}

// SetChatUserID records the Slack user that triggered the current request.
func SetChatUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, chatUserIDKey{}, userID)
}

func GetChatUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(chatUserIDKey{}).(string)
	return userID, ok
}
