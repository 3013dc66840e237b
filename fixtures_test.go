package stores

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func loadFixture[T any](t *testing.T, name string) T {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("unable to resolve caller for fixture %q", name)
	}
	raw, err := os.ReadFile(filepath.Join(filepath.Dir(file), "testdata", name))
	if err != nil {
		t.Fatalf("failed to read fixture %q: %v", name, err)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("failed to unmarshal fixture %q: %v", name, err)
	}
	return out
}

var fixtureErrors = map[string]error{
	"invalid_path":            ErrInvalidPath,
	"root_access_denied":      ErrRootAccessDenied,
	"replace_of_missing_path": ErrReplaceOfMissingPath,
	"missing_from":            ErrMissingFrom,
	"missing_source":          ErrMissingSource,
	"test_failed":             ErrTestFailed,
	"unknown_operation":       ErrUnknownOperation,
}

func expectFixtureError(t *testing.T, name string, err error) {
	t.Helper()
	want, ok := fixtureErrors[name]
	if !ok {
		t.Fatalf("unknown fixture error %q", name)
	}
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func patchJSON(t *testing.T, ops []Operation) string {
	t.Helper()
	raw, err := MarshalPatch(ops)
	if err != nil {
		t.Fatalf("marshal patch: %v", err)
	}
	return string(raw)
}
