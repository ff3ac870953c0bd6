package bootstate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/goliatone/go-bootstate/layering"
	"github.com/goliatone/go-bootstate/store"
)

// Stages of a run, in order.
const (
	StageSession = "session"
	StageExtract = "extract"
	StageDerive  = "derive"
	StageMerge   = "merge"
	StageStore   = "store"
	StageRender  = "render"
	StageMounted = "mounted"
)

// ErrNilVariant indicates New was called without a variant.
var ErrNilVariant = errors.New("bootstate: variant must be provided")

// Variant is one page flavour: where its payload lives, what it derives and
// how its initial state is layered.
type Variant interface {
	Name() string
	Anchor() Anchor
	Plan() MergePlan
	// Derive returns the computed fields. It must not modify payload.
	Derive(ctx context.Context, payload Payload) (map[string]any, error)
}

// Bootstrapper runs the bootstrap stages for one variant.
type Bootstrapper struct {
	variant Variant
	cfg     config
}

// Result is what a successful run produced.
type Result struct {
	RunID   string
	Variant string
	Payload Payload
	State   *State
	Store   *store.Store
	Mount   Mount
}

type runState struct {
	id      string
	started time.Time
	stage   string
	payload Payload
	state   *State
}

// New returns a Bootstrapper for variant.
func New(variant Variant, opts ...Option) (*Bootstrapper, error) {
	if variant == nil {
		return nil, ErrNilVariant
	}
	return &Bootstrapper{variant: variant, cfg: applyOptions(opts)}, nil
}

// Variant returns the variant b runs.
func (b *Bootstrapper) Variant() Variant {
	return b.variant
}

// Run parses document and bootstraps it. Any stage error aborts the run: no
// store is returned and the renderer is not called.
func (b *Bootstrapper) Run(ctx context.Context, document io.Reader) (*Result, error) {
	doc, err := html.Parse(document)
	if err != nil {
		return nil, &StageError{Stage: StageExtract, Err: fmt.Errorf("parse document: %w", err)}
	}
	return b.RunNode(ctx, doc)
}

// RunNode bootstraps an already parsed document.
func (b *Bootstrapper) RunNode(ctx context.Context, doc *html.Node) (result *Result, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	run := &runState{id: b.cfg.newID(), started: time.Now()}
	logger := b.cfg.logger.With(
		zap.String("run_id", run.id),
		zap.String("variant", b.variant.Name()),
		zap.String("anchor", b.variant.Anchor().ID),
	)
	defer func() {
		if err != nil {
			logger.Error("bootstrap failed", zap.String("stage", run.stage), zap.Error(err))
		}
		b.emitActivity(ctx, run, err)
	}()

	stage := func(name string, fn func() error) error {
		run.stage = name
		if err := ctx.Err(); err != nil {
			return &StageError{Stage: name, Err: err}
		}
		start := time.Now()
		if err := fn(); err != nil {
			return &StageError{Stage: name, Err: err}
		}
		logger.Debug("stage complete", zap.String("stage", name), zap.Duration("duration", time.Since(start)))
		return nil
	}

	if err := stage(StageSession, func() error {
		if b.cfg.session == nil {
			return nil
		}
		return b.cfg.session.Init(ctx)
	}); err != nil {
		return nil, err
	}

	var node *html.Node
	if err := stage(StageExtract, func() error {
		payload, anchorNode, err := ExtractNode(doc, b.variant.Anchor(), WithLogger(logger))
		run.payload, node = payload, anchorNode
		return err
	}); err != nil {
		return nil, err
	}

	var computed map[string]any
	if err := stage(StageDerive, func() error {
		var err error
		computed, err = b.variant.Derive(ctx, run.payload)
		return err
	}); err != nil {
		return nil, err
	}

	if err := stage(StageMerge, func() error {
		plan := b.variant.Plan()
		plan.Clock = b.cfg.clock
		plan.SnapshotID = run.id
		state, err := Merge(run.payload, plan, computed)
		run.state = state
		return err
	}); err != nil {
		return nil, err
	}

	var st *store.Store
	if err := stage(StageStore, func() error {
		var err error
		st, err = store.New(b.cfg.reducer, run.state.Value, b.cfg.middleware...)
		return err
	}); err != nil {
		return nil, err
	}

	mount := Mount{ID: b.variant.Anchor().ID, Node: node, Globals: layering.CloneMap(b.cfg.globals)}
	if err := stage(StageRender, func() error {
		if b.cfg.renderer == nil {
			return nil
		}
		return b.cfg.renderer.Render(ctx, st, mount)
	}); err != nil {
		return nil, err
	}

	run.stage = StageMounted
	logger.Info("bootstrap mounted",
		zap.Int("state_keys", len(run.state.Value)),
		zap.Duration("duration", time.Since(run.started)),
	)
	return &Result{
		RunID:   run.id,
		Variant: b.variant.Name(),
		Payload: run.payload,
		State:   run.state,
		Store:   st,
		Mount:   mount,
	}, nil
}
