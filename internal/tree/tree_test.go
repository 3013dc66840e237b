package tree

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type mergeFixture struct {
	Description string             `json:"description"`
	Cases       []mergeFixtureCase `json:"cases"`
}

type mergeFixtureCase struct {
	Name   string           `json:"name"`
	Layers []map[string]any `json:"layers"`
	Expect map[string]any   `json:"expect"`
}

func TestMergeFromFixture(t *testing.T) {
	fx := loadMergeFixture(t, "tree_merge.json")

	for _, tc := range fx.Cases {
		t.Run(tc.Name, func(t *testing.T) {
			got := Merge(tc.Layers...)
			if diff := cmp.Diff(tc.Expect, got); diff != "" {
				t.Fatalf("merged tree mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMergeDoesNotAliasLayers(t *testing.T) {
	weak := map[string]any{"user": map[string]any{"name": "anon"}}
	merged := Merge(weak)
	merged["user"].(map[string]any)["name"] = "changed"
	if weak["user"].(map[string]any)["name"] != "anon" {
		t.Fatalf("expected weak layer untouched, got %v", weak)
	}
}

func TestEqualNormalizesNumbers(t *testing.T) {
	a := map[string]any{"n": 3, "list": []any{int64(1), float32(2)}}
	b := map[string]any{"n": float64(3), "list": []any{json.Number("1"), 2.0}}
	if !Equal(a, b) {
		t.Fatalf("expected numeric values to compare equal")
	}
	if Equal(map[string]any{"n": 1}, map[string]any{"n": "1"}) {
		t.Fatalf("expected number and string to differ")
	}
	if Equal([]any{1, 2}, []any{2, 1}) {
		t.Fatalf("expected sequence order to matter")
	}
	if !Equal(nil, nil) || Equal(nil, map[string]any{}) {
		t.Fatalf("unexpected nil comparison")
	}
}

func TestCloneIsDeep(t *testing.T) {
	original := map[string]any{"items": []any{map[string]any{"id": 1}}}
	clone := Clone(original).(map[string]any)
	clone["items"].([]any)[0].(map[string]any)["id"] = 2
	if original["items"].([]any)[0].(map[string]any)["id"] != 1 {
		t.Fatalf("expected clone to be detached from original")
	}
}

func loadMergeFixture(t *testing.T, name string) mergeFixture {
	t.Helper()
	path := filepath.Join("testdata", name)
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read merge fixture %q: %v", name, err)
	}
	var fx mergeFixture
	if err := json.Unmarshal(raw, &fx); err != nil {
		t.Fatalf("failed to unmarshal merge fixture %q: %v", name, err)
	}
	return fx
}
