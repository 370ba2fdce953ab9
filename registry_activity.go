package factory

import (
	"context"
	"fmt"

	"github.com/goliatone/go-factory/pkg/activity"
)

// Option values copied onto activity events.
const (
	ActorIDKey  = "actor_id"
	UserIDKey   = "user_id"
	TenantIDKey = "tenant_id"
)

// WithActivityHooks notifies hooks whenever an instance is created or
// destroyed by CleanUp. Hook errors fail the operation that emitted them.
func WithActivityHooks(hooks activity.Hooks) Option {
	normalized := activity.CloneHooks(hooks)
	return func(cfg *config) {
		cfg.activityHooks = normalized
	}
}

func (r *Registry) emitCreated(ctx context.Context, rec record) error {
	return r.emit(ctx, activity.BuildCreatedEvent(r.eventInput(rec)))
}

func (r *Registry) emitDestroyed(ctx context.Context, rec record) error {
	return r.emit(ctx, activity.BuildDestroyedEvent(r.eventInput(rec)))
}

func (r *Registry) emit(ctx context.Context, event activity.Event) error {
	if !r.state.emitter.Enabled() {
		return nil
	}
	return r.state.emitter.Emit(ctx, event)
}

// eventInput describes rec with the identity of the view that created it, so
// destroy events match their create events whichever view cleans up.
func (r *Registry) eventInput(rec record) activity.InstanceEventInput {
	return activity.InstanceEventInput{
		Factory:  rec.factory,
		Model:    rec.model.Name(),
		ObjectID: rec.id,
		ActorID:  rec.actorID,
		UserID:   rec.userID,
		TenantID: rec.tenantID,
		Metadata: map[string]any{"adapter": fmt.Sprintf("%T", rec.adapter)},
	}
}

func stringValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
