package gcs

import (
	"testing"

	appconfig "github.com/feedback-system/feedback-system/internal/config"
)

// ---------------------------------------------------------------------------
// New(): constructor validation (no GCS connection required)
// ---------------------------------------------------------------------------

func TestNew_MissingBucket(t *testing.T) {
	if _, err := New(&appconfig.GCSStorageConfig{}); err == nil {
		t.Error("New() = nil error, want error for missing bucket")
	}
}

func TestNew_ServiceAccountNoCredentials(t *testing.T) {
	cfg := &appconfig.GCSStorageConfig{
		Bucket:     "feedback-exports",
		AuthMethod: "service_account",
	}
	if _, err := New(cfg); err == nil {
		t.Error("New() = nil error, want error for service_account without credentials")
	}
}

func TestNew_UnsupportedAuthMethod(t *testing.T) {
	cfg := &appconfig.GCSStorageConfig{
		Bucket:     "feedback-exports",
		AuthMethod: "not-a-valid-method",
	}
	if _, err := New(cfg); err == nil {
		t.Error("New() = nil error, want error for unsupported auth_method")
	}
}

func TestNew_NoneRequiresEndpoint(t *testing.T) {
	cfg := &appconfig.GCSStorageConfig{
		Bucket:     "feedback-exports",
		AuthMethod: "none",
	}
	if _, err := New(cfg); err == nil {
		t.Error("New() = nil error, want error for none auth without endpoint")
	}
}

func TestNew_EmulatorEndpoint(t *testing.T) {
	cfg := &appconfig.GCSStorageConfig{
		Bucket:     "feedback-exports",
		AuthMethod: "none",
		Endpoint:   "http://127.0.0.1:4443/storage/v1/",
	}
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer s.Close()
	if s.bucket != "feedback-exports" {
		t.Errorf("bucket = %q", s.bucket)
	}
}

func TestNew_ServiceAccountWithCredentialsFile(t *testing.T) {
	// A missing key file may fail at construction or on first use; either way no panic.
	cfg := &appconfig.GCSStorageConfig{
		Bucket:          "feedback-exports",
		AuthMethod:      "service_account",
		CredentialsFile: "/nonexistent/credentials.json",
	}
	_, _ = New(cfg)
}
