package miniobackend

import (
	"errors"
	"testing"

	"github.com/goliatone/go-stores/pkg/persist"
	minio "github.com/minio/minio-go/v7"
)

func TestObjectKey(t *testing.T) {
	cases := []struct {
		name   string
		prefix string
		ref    persist.Ref
		want   string
	}{
		{name: "namespace and id", prefix: "stores/", ref: persist.Ref{Namespace: "docs", ID: "readme"}, want: "stores/docs/readme.json"},
		{name: "namespace only", ref: persist.Ref{Namespace: "docs"}, want: "docs/_.json"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := objectKey(tc.prefix, tc.ref)
			if err != nil {
				t.Fatalf("object key: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}

	if _, err := objectKey("", persist.Ref{}); !errors.Is(err, persist.ErrInvalidRef) {
		t.Fatalf("expected ErrInvalidRef, got %v", err)
	}
}

func TestIsNotFound(t *testing.T) {
	if !isNotFound(minio.ErrorResponse{Code: "NoSuchKey", StatusCode: 404}) {
		t.Fatalf("expected NoSuchKey to be not found")
	}
	if isNotFound(errors.New("connection refused")) {
		t.Fatalf("expected plain errors to be reported")
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(Config{Endpoint: "localhost:9000"}); err == nil {
		t.Fatalf("expected error without bucket")
	}
	backend, err := New(Config{Endpoint: "localhost:9000", Bucket: "stores"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	key, err := backend.ObjectKey(persist.Ref{Namespace: "docs", ID: "a"})
	if err != nil || key != "docs/a.json" {
		t.Fatalf("unexpected key %q (%v)", key, err)
	}
}
