package hydrate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestDecoderFromFixtures(t *testing.T) {
	fx := loadFixture(t, "hydrate_slice.json")

	for _, tc := range fx.Cases {
		tc := tc
		t.Run(tc.Name, func(t *testing.T) {
			decoder := NewDecoder[sliceMeta](buildOptions(tc)...)

			ctx := Context{
				Variant: tc.Variant,
				Field:   tc.Field,
			}

			result, err := decoder.Decode(ctx, tc.Input)

			if tc.ExpectErr != "" {
				if err == nil {
					t.Fatalf("expected error %q, got nil", tc.ExpectErr)
				}
				if !strings.Contains(err.Error(), tc.ExpectErr) {
					t.Fatalf("expected error containing %q, got %v", tc.ExpectErr, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected decode error: %v", err)
			}

			if !reflect.DeepEqual(tc.Expect, result) {
				t.Fatalf("decoded slice mismatch:\nwant: %#v\n got: %#v", tc.Expect, result)
			}
		})
	}
}

func TestDecodeDoesNotMutateInput(t *testing.T) {
	input := map[string]any{"name": "Legacy", "slice_id": 1.0}
	decoder := NewDecoder[sliceMeta](WithPreHook[sliceMeta](legacyNamePreHook))

	if _, err := decoder.Decode(Context{Field: "slice"}, input); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := input["slice_name"]; ok {
		t.Fatalf("pre-hook leaked into caller map: %#v", input)
	}
	if input["name"] != "Legacy" {
		t.Fatalf("caller map mutated: %#v", input)
	}
}

func TestDecodeNilPayload(t *testing.T) {
	decoder := NewDecoder[sliceMeta]()
	_, err := decoder.Decode(Context{Variant: "explore", Field: "slice"}, nil)
	if err == nil || !strings.Contains(err.Error(), "explore.slice is nil") {
		t.Fatalf("expected nil payload error, got %v", err)
	}
}

func buildOptions(tc fixtureCase) []DecoderOption[sliceMeta] {
	options := []DecoderOption[sliceMeta]{}

	for _, optName := range tc.Options {
		switch optName {
		case "disallow_unknown":
			options = append(options, WithDisallowUnknownFields[sliceMeta]())
		}
	}

	for _, hookName := range tc.PreHooks {
		if hookName == "legacy_name" {
			options = append(options, WithPreHook[sliceMeta](legacyNamePreHook))
		}
	}

	for _, hookName := range tc.PostHooks {
		if hookName == "default_owner" {
			options = append(options, WithPostHook[sliceMeta](defaultOwnerPostHook))
		}
	}

	return options
}

func legacyNamePreHook(_ Context, payload map[string]any) (map[string]any, error) {
	raw, ok := payload["name"]
	if !ok {
		return payload, nil
	}
	name, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("legacy name must be a string, got %T", raw)
	}
	delete(payload, "name")
	payload["slice_name"] = name
	return payload, nil
}

func defaultOwnerPostHook(ctx Context, slice *sliceMeta) error {
	if slice == nil {
		return errors.New("slice is nil")
	}
	if len(slice.Owners) == 0 {
		slice.Owners = []string{ctx.Variant + ":unowned"}
	}
	return nil
}

type fixture struct {
	Description string        `json:"description"`
	Cases       []fixtureCase `json:"cases"`
}

type fixtureCase struct {
	Name      string         `json:"name"`
	Variant   string         `json:"variant"`
	Field     string         `json:"field"`
	Input     map[string]any `json:"input"`
	Expect    sliceMeta      `json:"expect"`
	ExpectErr string         `json:"expectErr"`
	PreHooks  []string       `json:"preHooks"`
	PostHooks []string       `json:"postHooks"`
	Options   []string       `json:"options"`
}

type sliceMeta struct {
	SliceID   int      `json:"slice_id"`
	SliceName string   `json:"slice_name"`
	Owners    []string `json:"owners,omitempty"`
}

func loadFixture(t *testing.T, name string) fixture {
	t.Helper()
	path := filepath.Join("testdata", name)
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read hydrate fixture %q: %v", name, err)
	}
	var fx fixture
	if err := json.Unmarshal(raw, &fx); err != nil {
		t.Fatalf("failed to unmarshal hydrate fixture %q: %v", name, err)
	}
	return fx
}

func TestDecodeErrorPhases(t *testing.T) {
	failing := func(Context, *sliceMeta) error { return errors.New("no owner") }
	decoder := NewDecoder[sliceMeta](WithPostHook[sliceMeta](failing))

	_, err := decoder.Decode(Context{Variant: "explore", Field: "slice"}, map[string]any{"slice_id": 1.0})
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
	if decodeErr.Phase != PhasePost || decodeErr.Context.String() != "explore.slice" {
		t.Fatalf("unexpected decode error %+v", decodeErr)
	}
	if err.Error() != "hydrate: post-hook for explore.slice failed: no owner" {
		t.Fatalf("unexpected message %q", err.Error())
	}

	_, err = NewDecoder[sliceMeta]().Decode(Context{Field: "slice"}, map[string]any{"slice_id": "one"})
	if !errors.As(err, &decodeErr) || decodeErr.Phase != PhaseDecode {
		t.Fatalf("expected decode phase error, got %v", err)
	}
}
