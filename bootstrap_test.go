package bootstate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/goliatone/go-bootstate/controls"
	"github.com/goliatone/go-bootstate/pkg/activity"
	"github.com/goliatone/go-bootstate/store"
)

type stubVariant struct {
	derive func(Payload) (map[string]any, error)
}

func (stubVariant) Name() string   { return "stub" }
func (stubVariant) Anchor() Anchor { return SQLLabAnchor }

func (stubVariant) Plan() MergePlan {
	return MergePlan{
		Defaults: map[string]any{"title": "untitled"},
		Reserved: func(now time.Time) map[string]any {
			return map[string]any{"startedAt": float64(now.UnixMilli()), "networkOn": true}
		},
		Strip: []string{"secret"},
	}
}

func (v stubVariant) Derive(_ context.Context, payload Payload) (map[string]any, error) {
	if v.derive != nil {
		return v.derive(payload)
	}
	return map[string]any{"count": float64(len(payload))}, nil
}

const stubPage = `<html><body><div id="app" data-bootstrap='{"a": 1, "secret": "x", "networkOn": false}'></div></body></html>`

func TestRunMountsStore(t *testing.T) {
	capture := &activity.CaptureHook{}
	var rendered Mount
	var renderedState map[string]any
	sessionCalled := false

	b, err := New(stubVariant{},
		WithClock(fixedClock),
		WithRunIDs(func() string { return "4b1f9a3e-1c55-4c47-9d4c-2f4b0c7a1e10" }),
		WithSessionInit(SessionInitializerFunc(func(context.Context) error {
			sessionCalled = true
			return nil
		})),
		WithGlobals(map[string]any{"csrf_token": "abc"}),
		WithActivityHooks(activity.Hooks{capture, nil}),
		WithActor("", "tenant-1"),
		WithRenderer(RendererFunc(func(_ context.Context, st *store.Store, mount Mount) error {
			rendered = mount
			renderedState = st.GetState()
			return nil
		})),
	)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if len(b.ActivityHooks()) != 1 {
		t.Fatalf("expected nil hooks dropped, got %d", len(b.ActivityHooks()))
	}

	result, err := b.Run(context.Background(), strings.NewReader(stubPage))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !sessionCalled {
		t.Fatalf("session initializer not called")
	}

	want := map[string]any{
		"a":         1.0,
		"title":     "untitled",
		"startedAt": float64(fixedNow.UnixMilli()),
		"networkOn": true,
		"count":     3.0,
	}
	if diff := cmp.Diff(want, result.State.Value); diff != "" {
		t.Fatalf("initial state mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, renderedState); diff != "" {
		t.Fatalf("rendered state mismatch (-want +got):\n%s", diff)
	}
	if rendered.ID != "app" || rendered.Node == nil || rendered.Globals["csrf_token"] != "abc" {
		t.Fatalf("unexpected mount %+v", rendered)
	}
	if result.RunID != "4b1f9a3e-1c55-4c47-9d4c-2f4b0c7a1e10" {
		t.Fatalf("unexpected run id %q", result.RunID)
	}

	if len(capture.Events) != 1 {
		t.Fatalf("expected one activity event, got %d", len(capture.Events))
	}
	event := capture.Events[0]
	if event.Verb != activity.VerbBootstrapMounted || event.ObjectID != result.RunID || event.Channel != "bootstrap" {
		t.Fatalf("unexpected event %+v", event)
	}
	if event.TenantID != "tenant-1" || event.Metadata["variant"] != "stub" || event.Metadata["stage"] != StageMounted {
		t.Fatalf("unexpected event metadata %+v", event)
	}
}

func TestRunReadsClockOnce(t *testing.T) {
	reads := 0
	clock := func() time.Time {
		reads++
		return time.UnixMilli(int64(reads) * 1000)
	}
	capture := &activity.CaptureHook{}
	b, err := New(stubVariant{}, WithClock(clock), WithActivityHooks(activity.Hooks{capture}))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	result, err := b.Run(context.Background(), strings.NewReader(stubPage))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if reads != 1 {
		t.Fatalf("expected one clock read per run, got %d", reads)
	}
	event, ok := capture.Last()
	if !ok {
		t.Fatalf("expected an activity event")
	}
	if !event.OccurredAt.Equal(result.State.CreatedAt) {
		t.Fatalf("expected event at %v, got %v", result.State.CreatedAt, event.OccurredAt)
	}
	if result.Store.GetState()["startedAt"] != 1000.0 {
		t.Fatalf("unexpected startedAt %v", result.Store.GetState()["startedAt"])
	}
}

func TestRunFailsFast(t *testing.T) {
	resolution := &controls.ResolutionError{Kind: controls.KindControl, Name: "bogus"}
	sessionErr := errors.New("csrf unavailable")
	errRender := errors.New("mount failed")

	cases := []struct {
		name    string
		page    string
		variant stubVariant
		opts    []Option
		stage   string
		check   func(t *testing.T, err error)
	}{
		{
			name:  "session",
			page:  stubPage,
			opts:  []Option{WithSessionInit(SessionInitializerFunc(func(context.Context) error { return sessionErr }))},
			stage: StageSession,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, sessionErr) {
					t.Fatalf("expected session error, got %v", err)
				}
			},
		},
		{
			name:  "missing anchor",
			page:  `<div id="other"></div>`,
			stage: StageExtract,
			check: func(t *testing.T, err error) {
				var missing *MissingAnchorError
				if !errors.As(err, &missing) {
					t.Fatalf("expected MissingAnchorError, got %v", err)
				}
				if err.Error() != `bootstate: extract: anchor element "app" not found` {
					t.Fatalf("unexpected message %q", err.Error())
				}
			},
		},
		{
			name:  "malformed payload",
			page:  `<div id="app" data-bootstrap="[]"></div>`,
			stage: StageExtract,
			check: func(t *testing.T, err error) {
				var malformed *MalformedPayloadError
				if !errors.As(err, &malformed) {
					t.Fatalf("expected MalformedPayloadError, got %v", err)
				}
			},
		},
		{
			name: "derive",
			page: stubPage,
			variant: stubVariant{derive: func(Payload) (map[string]any, error) {
				return nil, resolution
			}},
			stage: StageDerive,
			check: func(t *testing.T, err error) {
				var got *ControlResolutionError
				if !errors.As(err, &got) || got.Name != "bogus" {
					t.Fatalf("expected ControlResolutionError, got %v", err)
				}
			},
		},
		{
			name: "render",
			page: stubPage,
			opts: []Option{WithRenderer(RendererFunc(func(context.Context, *store.Store, Mount) error {
				return errRender
			}))},
			stage: StageRender,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, errRender) {
					t.Fatalf("expected render error, got %v", err)
				}
			},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			capture := &activity.CaptureHook{}
			rendered := false
			opts := append([]Option{
				WithActivityHooks(activity.Hooks{capture}),
				WithRenderer(RendererFunc(func(context.Context, *store.Store, Mount) error {
					rendered = true
					return nil
				})),
			}, tc.opts...)
			b, err := New(tc.variant, opts...)
			if err != nil {
				t.Fatalf("new: %v", err)
			}

			result, err := b.Run(context.Background(), strings.NewReader(tc.page))
			if result != nil {
				t.Fatalf("expected no result on failure, got %+v", result)
			}
			var stageErr *StageError
			if !errors.As(err, &stageErr) || stageErr.Stage != tc.stage {
				t.Fatalf("expected failure in stage %q, got %v", tc.stage, err)
			}
			tc.check(t, err)
			if rendered {
				t.Fatalf("default renderer must not run")
			}
			if len(capture.Events) != 1 || capture.Events[0].Verb != activity.VerbBootstrapFailed {
				t.Fatalf("expected one failed event, got %+v", capture.Events)
			}
			if capture.Events[0].Metadata["stage"] != tc.stage {
				t.Fatalf("expected stage %q on event, got %v", tc.stage, capture.Events[0].Metadata["stage"])
			}
		})
	}
}

func TestRunHonoursCancelledContext(t *testing.T) {
	b, err := New(stubVariant{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = b.Run(ctx, strings.NewReader(stubPage))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunLogsStagesAndSurvivesHookFailure(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	hookErr := errors.New("sink down")

	b, err := New(stubVariant{},
		WithLogger(zap.New(core)),
		WithActivityHooks(activity.Hooks{activity.HookFunc(func(context.Context, activity.Event) error {
			return hookErr
		})}),
	)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := b.Run(context.Background(), strings.NewReader(stubPage)); err != nil {
		t.Fatalf("run: %v", err)
	}

	stages := []string{}
	for _, entry := range logs.FilterMessage("stage complete").All() {
		stages = append(stages, entry.ContextMap()["stage"].(string))
	}
	want := []string{StageSession, StageExtract, StageDerive, StageMerge, StageStore, StageRender}
	if diff := cmp.Diff(want, stages); diff != "" {
		t.Fatalf("stage logs (-want +got):\n%s", diff)
	}
	if logs.FilterMessage("activity hooks failed").Len() != 1 {
		t.Fatalf("expected hook failure to be logged")
	}
}

func TestJSONRenderer(t *testing.T) {
	var buf bytes.Buffer
	b, err := New(stubVariant{},
		WithClock(fixedClock),
		WithRenderer(JSONRenderer(&buf)),
	)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := b.Run(context.Background(), strings.NewReader(stubPage)); err != nil {
		t.Fatalf("run: %v", err)
	}

	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("decode output: %v\n%s", err, buf.String())
	}
	if out["title"] != "untitled" || out["networkOn"] != true {
		t.Fatalf("unexpected rendered state %v", out)
	}
}

func TestNewRequiresVariant(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, ErrNilVariant) {
		t.Fatalf("expected ErrNilVariant, got %v", err)
	}
}
