package logging

import (
	"context"

	"go.viam.com/utils"
)

// debugKeyField is the field CDebugw adds to entries it logs only because of debug mode.
const debugKeyField = "debug_key"

type debugModeKey struct{}

// EnableDebugMode returns a context under which CDebugw logs whatever the logger's level. key
// tags those entries; an empty key is replaced by a random one.
func EnableDebugMode(ctx context.Context, key string) context.Context {
	if key == "" {
		key = utils.RandomAlphaString(6)
	}
	return context.WithValue(ctx, debugModeKey{}, key)
}

// DebugModeKey returns the key ctx was put in debug mode with.
func DebugModeKey(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(debugModeKey{}).(string)
	return key, ok && key != ""
}
