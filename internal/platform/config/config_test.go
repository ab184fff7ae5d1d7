package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	env := map[string]string{
		"API_FIRESTORE_PROJECT_ID": "gm-dev",
	}

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Orders.ShippingCost != 60 {
		t.Errorf("expected default shipping cost 60, got %d", cfg.Orders.ShippingCost)
	}
	if cfg.Auth.TokenTTL != 24*time.Hour {
		t.Errorf("unexpected token ttl: %s", cfg.Auth.TokenTTL)
	}
	if cfg.Events.ProjectID != "gm-dev" {
		t.Errorf("events project should fall back to firestore project, got %s", cfg.Events.ProjectID)
	}
	if cfg.Events.OrderTopic != "order-events" || cfg.Events.EmailTopic != "email-jobs" {
		t.Errorf("unexpected topic defaults: %+v", cfg.Events)
	}
	if cfg.RateLimits.LoginPerMinute != 10 {
		t.Errorf("unexpected login rate limit: %d", cfg.RateLimits.LoginPerMinute)
	}
}

func TestLoadMissingProjectID(t *testing.T) {
	_, err := Load(context.Background(), WithoutSystemEnv(), WithEnvFile(""))

	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	found := false
	for _, field := range validation.Fields() {
		if field == "Firestore.ProjectID" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected Firestore.ProjectID in %v", validation.Fields())
	}
}

func TestLoadResolvesSecretReferences(t *testing.T) {
	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if ref != "secret://jwt-signing-key" {
			t.Fatalf("unexpected ref %q", ref)
		}
		return "resolved-key", nil
	})

	cfg, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithSecretResolver(resolver),
		WithEnvMap(map[string]string{
			"API_FIRESTORE_PROJECT_ID": "gm-dev",
			"API_AUTH_SIGNING_KEY":     "sm://jwt-signing-key",
		}),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Auth.SigningKey != "resolved-key" {
		t.Errorf("expected resolved signing key, got %q", cfg.Auth.SigningKey)
	}
}

func TestLoadRequiredSecretMissing(t *testing.T) {
	_, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithRequiredSecrets("Auth.SigningKey"),
		WithEnvMap(map[string]string{
			"API_FIRESTORE_PROJECT_ID": "gm-dev",
		}),
	)

	var missing *MissingSecretsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingSecretsError, got %v", err)
	}
	names := missing.Names()
	if len(names) != 1 || names[0] != "Auth.SigningKey" {
		t.Errorf("unexpected missing secrets: %v", names)
	}
}

func TestLoadDotEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	contents := "API_SERVER_PORT=9090\nAPI_FIRESTORE_PROJECT_ID=dotenv-project\n"
	if err := os.WriteFile(envFile, []byte(contents), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(envFile),
		WithEnvMap(map[string]string{
			"API_SERVER_PORT": "7070",
		}),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("explicit env map should win over dotenv, got %q", cfg.Server.Port)
	}
	if cfg.Firestore.ProjectID != "dotenv-project" {
		t.Errorf("dotenv value not applied, got %q", cfg.Firestore.ProjectID)
	}
}
