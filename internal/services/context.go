package services

import "context"

// ctxKey keys one string annotation; distinct values never collide with
// keys from other packages.
type ctxKey struct{ name string }

var (
	cycleKey   = &ctxKey{"cycle_id"}
	stageKey   = &ctxKey{"stage"}
	actorKey   = &ctxKey{"actor"}
	requestKey = &ctxKey{"request_id"}
)

func withString(ctx context.Context, key *ctxKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringFrom(ctx context.Context, key *ctxKey) (string, bool) {
	v, _ := ctx.Value(key).(string)
	return v, v != ""
}

// WithCycleID tags ctx with the scheduler cycle it belongs to.
func WithCycleID(ctx context.Context, id string) context.Context {
	return withString(ctx, cycleKey, id)
}

func CycleIDFromContext(ctx context.Context) (string, bool) { return stringFrom(ctx, cycleKey) }

// WithStage tags ctx with the stage currently running.
func WithStage(ctx context.Context, stage string) context.Context {
	return withString(ctx, stageKey, stage)
}

func StageFromContext(ctx context.Context) (string, bool) { return stringFrom(ctx, stageKey) }

// WithActor tags ctx with whoever issued a start or stop.
func WithActor(ctx context.Context, actor string) context.Context {
	return withString(ctx, actorKey, actor)
}

func ActorFromContext(ctx context.Context) (string, bool) { return stringFrom(ctx, actorKey) }

// WithRequestID tags ctx with the control API correlation id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withString(ctx, requestKey, id)
}

func RequestIDFromContext(ctx context.Context) (string, bool) { return stringFrom(ctx, requestKey) }
