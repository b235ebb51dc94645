package filestore

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/minio/minio-go/v7"
)

func TestLocalStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	id, err := store.AddFile(ctx, strings.NewReader("1:870970\n"), -1)
	if err != nil {
		t.Fatalf("AddFile: %v", err)
	}
	if !strings.HasPrefix(URN(id), URNPrefix) {
		t.Errorf("URN = %s", URN(id))
	}

	for _, ref := range []string{id, URN(id)} {
		rc, err := store.GetFile(ctx, ref)
		if err != nil {
			t.Fatalf("GetFile(%s): %v", ref, err)
		}
		data, _ := io.ReadAll(rc)
		rc.Close()
		if string(data) != "1:870970\n" {
			t.Errorf("content = %q", data)
		}
	}

	if err := store.DeleteFile(ctx, id); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if err := store.DeleteFile(ctx, id); err != nil {
		t.Fatalf("second DeleteFile: %v", err)
	}
	_, err = store.GetFile(ctx, id)
	var fsErr *Error
	if !errors.As(err, &fsErr) || fsErr.Code != CodeFileNotFound {
		t.Fatalf("expected %s, got %v", CodeFileNotFound, err)
	}
}

func TestLocalStore_RejectsInvalidID(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetFile(context.Background(), "../etc/passwd"); err == nil {
		t.Fatal("expected error for path-like id")
	}
}

func TestClassifyMinioError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		code      string
		retryable bool
	}{
		{"no such key", minio.ErrorResponse{Code: "NoSuchKey", Message: "gone"}, CodeFileNotFound, false},
		{"no such bucket", minio.ErrorResponse{Code: "NoSuchBucket"}, CodeBucketNotFound, false},
		{"bad signature", minio.ErrorResponse{Code: "SignatureDoesNotMatch"}, CodeAuthInvalid, false},
		{"timeout", errors.New("i/o timeout"), CodeTimeout, true},
		{"refused", errors.New("dial tcp: connection refused"), CodeEndpointUnreachable, true},
		{"other", errors.New("boom"), CodeUploadFailed, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyMinioError(tt.err)
			if got.CodeValue() != tt.code || got.RetryableStatus() != tt.retryable {
				t.Errorf("got %s/%v, want %s/%v", got.Code, got.Retryable, tt.code, tt.retryable)
			}
		})
	}
}

func TestNewS3Store_Validation(t *testing.T) {
	_, err := NewS3Store(S3Config{EndpointURL: "http://localhost:9000", Bucket: "b"})
	var fsErr *Error
	if !errors.As(err, &fsErr) || fsErr.Code != CodeAuthInvalid {
		t.Fatalf("expected auth error, got %v", err)
	}
}
