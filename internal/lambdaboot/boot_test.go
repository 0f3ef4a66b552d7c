package lambdaboot

import (
	"context"
	"net/http"
	"testing"

	"github.com/fpang/image-handler/internal/config"
	"github.com/fpang/image-handler/internal/request"
	"github.com/fpang/image-handler/internal/signature"
	"github.com/fpang/image-handler/internal/storage"
)

func TestInitSecrets(t *testing.T) {
	if got := InitSecrets(nil, config.Config{SecretKey: "ignored"}); got != nil {
		t.Errorf("InitSecrets() with signing off = %T, want nil", got)
	}

	static := InitSecrets(nil, config.Config{EnableSignature: true, SecretKey: "k", SecretsParam: "/p"})
	if s, ok := static.(signature.StaticSecret); !ok || string(s) != "k" {
		t.Errorf("InitSecrets() = %#v, want StaticSecret(k)", static)
	}

	fromSSM := InitSecrets(nil, config.Config{EnableSignature: true, SecretsParam: "/p"})
	if _, ok := fromSSM.(*signature.SSMSecretProvider); !ok {
		t.Errorf("InitSecrets() = %T, want *signature.SSMSecretProvider", fromSSM)
	}
}

func TestNewServiceWithoutSigning(t *testing.T) {
	cfg := config.Config{SourceBuckets: "images", EnableSignature: true}
	svc := NewService(cfg, storage.NewLocalStore(t.TempDir()), nil, nil).WithMetrics(nil)

	path, err := request.Request{Key: "missing.png"}.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	// No validator is wired, so the unsigned request reaches the store.
	resp := svc.Handle(context.Background(), request.Event{Path: path})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404 from the local store", resp.StatusCode)
	}
}
