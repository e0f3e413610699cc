package config

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/kbukum/funnel/errors"
	"github.com/kbukum/funnel/logger"
	"github.com/kbukum/funnel/validation"
)

func TestServiceConfigApplyDefaults(t *testing.T) {
	t.Run("empty environment defaults to development", func(t *testing.T) {
		cfg := ServiceConfig{Name: "funnel"}
		cfg.ApplyDefaults()
		if cfg.Environment != "development" {
			t.Errorf("expected 'development', got %q", cfg.Environment)
		}
		if !cfg.Debug {
			t.Error("expected debug=true for development")
		}
		if cfg.Logging.Level != "debug" {
			t.Errorf("expected debug logging in development, got %q", cfg.Logging.Level)
		}
	})

	t.Run("production keeps debug false", func(t *testing.T) {
		cfg := ServiceConfig{Name: "funnel", Environment: "production"}
		cfg.ApplyDefaults()
		if cfg.Debug {
			t.Error("expected debug=false for production")
		}
		if cfg.Logging.Level != "info" {
			t.Errorf("expected info logging, got %q", cfg.Logging.Level)
		}
	})

	t.Run("explicit level wins", func(t *testing.T) {
		cfg := ServiceConfig{Name: "funnel", Logging: logger.Config{Level: "warn"}}
		cfg.ApplyDefaults()
		if cfg.Logging.Level != "warn" {
			t.Errorf("expected warn, got %q", cfg.Logging.Level)
		}
	})
}

func TestServiceConfigValidate(t *testing.T) {
	valid := logger.Config{Level: "info", Format: "json"}
	tests := []struct {
		name      string
		cfg       ServiceConfig
		wantField string
	}{
		{"valid development", ServiceConfig{Name: "funnel", Environment: "development", Logging: valid}, ""},
		{"valid production", ServiceConfig{Name: "funnel", Environment: "production", Logging: valid}, ""},
		{"missing name", ServiceConfig{Environment: "production", Logging: valid}, "name"},
		{"invalid environment", ServiceConfig{Name: "funnel", Environment: "qa", Logging: valid}, "environment"},
		{"invalid logging", ServiceConfig{Name: "funnel", Environment: "staging", Logging: logger.Config{Level: "loud", Format: "json"}}, "logging"},
		{"several problems", ServiceConfig{Environment: "qa", Logging: valid}, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.name == "several problems" {
				appErr, ok := errors.AsAppError(err)
				if !ok {
					t.Fatalf("expected AppError, got %v", err)
				}
				if fields, _ := appErr.Details["fields"].([]validation.FieldError); len(fields) != 2 {
					t.Errorf("expected 2 field errors, got %v", appErr.Details["fields"])
				}
				return
			}
			if tc.wantField == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			appErr, ok := errors.AsAppError(err)
			if !ok || appErr.Code != errors.ErrCodeConfiguration {
				t.Fatalf("expected CONFIGURATION_ERROR, got %v", err)
			}
			if appErr.Details["field"] != tc.wantField {
				t.Errorf("expected field %q, got %v", tc.wantField, appErr.Details["field"])
			}
		})
	}
}

type testConfig struct {
	ServiceConfig `yaml:",inline" mapstructure:",squash"`
	Funnel        struct {
		Workers      int           `mapstructure:"workers"`
		DrainTimeout time.Duration `mapstructure:"drain_timeout"`
	} `mapstructure:"funnel"`
}

func TestLoadConfigWithYAML(t *testing.T) {
	path := writeFile(t, "funnel.yml", `
name: funnel
environment: staging
funnel:
  workers: 6
  drain_timeout: 45s
`)

	var cfg testConfig
	if err := LoadConfig("funnel", &cfg, WithConfigFile(path), WithEnvFile("/nonexistent/.env")); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Name != "funnel" || cfg.Environment != "staging" {
		t.Errorf("unexpected service config %+v", cfg.ServiceConfig)
	}
	if cfg.Funnel.Workers != 6 {
		t.Errorf("expected 6 workers, got %d", cfg.Funnel.Workers)
	}
	if cfg.Funnel.DrainTimeout != 45*time.Second {
		t.Errorf("expected 45s drain timeout, got %s", cfg.Funnel.DrainTimeout)
	}
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "funnel.yml", "funnel:\n  workers: 6\n")
	t.Setenv("FUNNEL_WORKERS", "9")
	t.Setenv("FUNNEL_DRAIN_TIMEOUT", "2s")

	var cfg testConfig
	if err := LoadConfig("funnel", &cfg, WithConfigFile(path), WithEnvFile("/nonexistent/.env")); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Funnel.Workers != 9 {
		t.Errorf("expected env to win with 9 workers, got %d", cfg.Funnel.Workers)
	}
	if cfg.Funnel.DrainTimeout != 2*time.Second {
		t.Errorf("expected 2s, got %s", cfg.Funnel.DrainTimeout)
	}
}

func TestLoadConfigEnvFile(t *testing.T) {
	envPath := writeFile(t, ".env", "FUNNEL_TEST_ENV_FILE_WORKERS=5\n")
	t.Cleanup(func() { os.Unsetenv("FUNNEL_TEST_ENV_FILE_WORKERS") })

	var cfg struct {
		Funnel struct {
			Test struct {
				Env struct {
					File struct {
						Workers int `mapstructure:"workers"`
					} `mapstructure:"file"`
				} `mapstructure:"env"`
			} `mapstructure:"test"`
		} `mapstructure:"funnel"`
	}
	if err := LoadConfig("funnel", &cfg, WithConfigFile("/nonexistent/funnel.yml"), WithEnvFile(envPath)); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Funnel.Test.Env.File.Workers != 5 {
		t.Errorf("expected value from .env, got %d", cfg.Funnel.Test.Env.File.Workers)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	var cfg testConfig
	err := LoadConfig("funnel", &cfg, WithConfigFile("/nonexistent/path.yml"), WithEnvFile("/nonexistent/.env"))
	if err != nil {
		t.Fatalf("expected LoadConfig to succeed with missing file, got %v", err)
	}
}

func TestLoadConfigMalformedFile(t *testing.T) {
	path := writeFile(t, "funnel.yml", "funnel: [unterminated\n")

	var cfg testConfig
	err := LoadConfig("funnel", &cfg, WithConfigFile(path), WithEnvFile("/nonexistent/.env"))
	if !errors.HasCode(err, errors.ErrCodeConfiguration) {
		t.Errorf("expected CONFIGURATION_ERROR, got %v", err)
	}
}

func TestResolverPrefersFunnelYML(t *testing.T) {
	fs := &mockFS{files: map[string]bool{
		"./config/config.yml":     true,
		"./cmd/funnel/funnel.yml": true,
		".env.funnel":             true,
	}}
	resolver := &Resolver{FileSystem: fs}
	files := resolver.ResolveFiles("funnel", LoaderConfig{})
	if files.ConfigFile != "./cmd/funnel/funnel.yml" {
		t.Errorf("expected ./cmd/funnel/funnel.yml, got %q", files.ConfigFile)
	}
	if files.EnvFile != ".env.funnel" {
		t.Errorf("expected .env.funnel, got %q", files.EnvFile)
	}
}

func TestResolverExplicitPaths(t *testing.T) {
	resolver := &Resolver{FileSystem: &mockFS{}}
	files := resolver.ResolveFiles("funnel", LoaderConfig{ConfigFile: "a.yml", EnvFile: "b.env"})
	if files.ConfigFile != "a.yml" || files.EnvFile != "b.env" {
		t.Errorf("expected explicit paths, got %+v", files)
	}
}

func TestResolverNothingFound(t *testing.T) {
	resolver := &Resolver{FileSystem: &mockFS{}}
	files := resolver.ResolveFiles("funnel", LoaderConfig{})
	if files.ConfigFile != "" || files.EnvFile != "" {
		t.Errorf("expected no files, got %+v", files)
	}
}

func TestGenerateEnvKeyVariants(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"DEBUG", []string{"debug"}},
		{"FUNNEL_WORKERS", []string{"funnel_workers", "funnel.workers"}},
		{"FUNNEL_DRAIN_TIMEOUT", []string{"funnel.drain_timeout", "funnel.drain.timeout", "funnel_drain.timeout"}},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got := generateEnvKeyVariants(tc.in)
			for _, w := range tc.want {
				if !slices.Contains(got, w) {
					t.Errorf("expected %q among %v", w, got)
				}
			}
		})
	}
}

func TestLoaderOptions(t *testing.T) {
	var lc LoaderConfig
	fs := &mockFS{}
	WithFileSystem(fs)(&lc)
	WithConfigFile("/path/to/funnel.yml")(&lc)
	WithEnvFile("/path/to/.env")(&lc)
	if lc.FileSystem == nil {
		t.Error("expected FileSystem to be set")
	}
	if lc.ConfigFile != "/path/to/funnel.yml" {
		t.Errorf("expected config file path, got %q", lc.ConfigFile)
	}
	if lc.EnvFile != "/path/to/.env" {
		t.Errorf("expected env file path, got %q", lc.EnvFile)
	}
}

// --- helpers ---

type mockFS struct {
	files map[string]bool
}

func (m *mockFS) Exists(path string) bool  { return m.files[path] }
func (m *mockFS) LoadEnv(path string) error { return nil }
func (m *mockFS) Getwd() (string, error)    { return "/mock", nil }

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}
