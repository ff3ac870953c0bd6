package bootstate

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/goliatone/go-bootstate/layering"
	"github.com/goliatone/go-bootstate/pkg/activity"
	"github.com/goliatone/go-bootstate/store"
)

// Option configures a Bootstrapper, and Extract where it applies.
type Option func(*config)

type config struct {
	logger        *zap.Logger
	clock         func() time.Time
	newID         func() string
	reducer       store.Reducer
	middleware    []store.Middleware
	renderer      Renderer
	session       SessionInitializer
	globals       map[string]any
	activityHooks activity.Hooks
	actorID       string
	tenantID      string
}

func applyOptions(opts []Option) config {
	cfg := config{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	if cfg.clock == nil {
		cfg.clock = time.Now
	}
	if cfg.newID == nil {
		cfg.newID = uuid.NewString
	}
	if cfg.reducer == nil {
		cfg.reducer = store.Identity
	}
	return cfg
}

// WithLogger sets the logger stages report to.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

// WithClock replaces time.Now. The clock is read once per merge.
func WithClock(clock func() time.Time) Option {
	return func(cfg *config) {
		cfg.clock = clock
	}
}

// WithRunIDs replaces the run id generator.
func WithRunIDs(next func() string) Option {
	return func(cfg *config) {
		cfg.newID = next
	}
}

// WithReducer sets the reducer the store is created with. Defaults to
// store.Identity.
func WithReducer(reducer store.Reducer) Option {
	return func(cfg *config) {
		cfg.reducer = reducer
	}
}

// WithMiddleware appends store middleware.
func WithMiddleware(middleware ...store.Middleware) Option {
	return func(cfg *config) {
		cfg.middleware = append(cfg.middleware, middleware...)
	}
}

// WithRenderer sets the render boundary the store is handed to.
func WithRenderer(renderer Renderer) Option {
	return func(cfg *config) {
		cfg.renderer = renderer
	}
}

// WithSessionInit sets the initializer run before extraction.
func WithSessionInit(session SessionInitializer) Option {
	return func(cfg *config) {
		cfg.session = session
	}
}

// WithGlobals sets values exposed to the renderer through Mount. The map is
// copied.
func WithGlobals(globals map[string]any) Option {
	copied := layering.CloneMap(globals)
	return func(cfg *config) {
		cfg.globals = copied
	}
}

// WithActor records the acting user and tenant on activity events.
func WithActor(actorID, tenantID string) Option {
	return func(cfg *config) {
		cfg.actorID = actorID
		cfg.tenantID = tenantID
	}
}
