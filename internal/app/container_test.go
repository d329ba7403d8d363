package app

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/neocities-go/neocities/internal/config"
	"github.com/neocities-go/neocities/internal/services/neocities"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

type mockNeocitiesClient struct {
	infoCalled bool
	infoResult string
}

func (m *mockNeocitiesClient) Info(ctx context.Context, site string) (*neocities.InfoResponse, error) {
	m.infoCalled = true
	result := m.infoResult
	if result == "" {
		result = "success"
	}
	return &neocities.InfoResponse{
		Response: neocities.Response{Result: result, ErrorType: "invalid_auth"},
		Info:     neocities.SiteInfo{Sitename: site},
	}, nil
}
func (m *mockNeocitiesClient) List(context.Context, string) (*neocities.ListResponse, error) {
	return &neocities.ListResponse{Response: neocities.Response{Result: "success"}}, nil
}
func (m *mockNeocitiesClient) Upload(context.Context, []string) (*neocities.Response, error) {
	return &neocities.Response{Result: "success"}, nil
}
func (m *mockNeocitiesClient) Delete(context.Context, []string) (*neocities.Response, error) {
	return &neocities.Response{Result: "success"}, nil
}
func (m *mockNeocitiesClient) Download(context.Context, string, io.Writer) error { return nil }

func baseConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Site = "mysite"
	cfg.Key = "abc"
	cfg.Delay = 0
	return cfg
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func TestNewContainerDefaults(t *testing.T) {
	cfg := baseConfig()

	container, err := NewContainer(context.Background(), cfg, "/sites/mysite", WithFs(afero.NewMemMapFs()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if container.Logger == nil {
		t.Fatal("expected logger to be initialized")
	}
	if container.Reconciler == nil {
		t.Fatal("expected reconciler to be initialized")
	}
	client, ok := container.Client.(*neocities.Client)
	if !ok {
		t.Fatalf("expected a *neocities.Client, got %T", container.Client)
	}
	if client.Site() != "mysite" || client.APIKey() != "abc" {
		t.Errorf("unexpected client credentials %s/%s", client.Site(), client.APIKey())
	}
	if client.Root() != "/sites/mysite" {
		t.Errorf("expected client to be rooted at the project, got %s", client.Root())
	}
	if client.Delay() != 0 {
		t.Errorf("expected configured delay, got %v", client.Delay())
	}
	if container.ValidateKey {
		t.Error("expected key validation to be off by default")
	}
}

func TestContainerOverrides(t *testing.T) {
	cfg := baseConfig()
	mock := &mockNeocitiesClient{}
	customLogger := buildDefaultLogger("debug")

	container, err := NewContainer(
		context.Background(),
		cfg,
		"/p",
		WithLogger(customLogger),
		WithClient(mock),
		WithFs(afero.NewMemMapFs()),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if container.Logger != customLogger {
		t.Error("expected custom logger to be used")
	}
	if container.Client != mock {
		t.Error("expected custom client to be used")
	}
	if mock.infoCalled {
		t.Error("info should not be called without key validation")
	}
}

func TestNewContainerNilConfigError(t *testing.T) {
	if _, err := NewContainer(context.Background(), nil, "."); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestWithLoggerNilError(t *testing.T) {
	_, err := NewContainer(context.Background(), baseConfig(), ".", WithLogger(nil))
	if err == nil {
		t.Fatal("expected error when logger is nil")
	}
}

func TestWithClientNilError(t *testing.T) {
	_, err := NewContainer(context.Background(), baseConfig(), ".", WithClient(nil))
	if err == nil {
		t.Fatal("expected error when client is nil")
	}
}

func TestWithFsNilError(t *testing.T) {
	_, err := NewContainer(context.Background(), baseConfig(), ".", WithFs(nil))
	if err == nil {
		t.Fatal("expected error when filesystem is nil")
	}
}

func TestKeyValidationCallsInfo(t *testing.T) {
	mock := &mockNeocitiesClient{}

	_, err := NewContainer(context.Background(), baseConfig(), "/p",
		WithClient(mock), WithFs(afero.NewMemMapFs()), WithKeyValidation(true))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !mock.infoCalled {
		t.Error("expected Info to be called during container construction")
	}
}

func TestKeyValidationFailure(t *testing.T) {
	mock := &mockNeocitiesClient{infoResult: "error"}

	_, err := NewContainer(context.Background(), baseConfig(), "/p",
		WithClient(mock), WithFs(afero.NewMemMapFs()), WithKeyValidation(true))

	var apiErr *neocities.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
}

func TestInvalidDirectionError(t *testing.T) {
	cfg := baseConfig()
	cfg.Direction = "sideways"

	if _, err := NewContainer(context.Background(), cfg, "/p", WithFs(afero.NewMemMapFs())); err == nil {
		t.Fatal("expected error for unknown direction")
	}
}

func TestCreateSiteThenLoadSite(t *testing.T) {
	fs := afero.NewMemMapFs()

	if err := config.CreateSite(fs, "mysite", "secret-key", "/sites"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	container, err := LoadSite(context.Background(), fs, "/sites/mysite", WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	client := container.Client.(*neocities.Client)
	if client.Site() != "mysite" {
		t.Errorf("expected site 'mysite', got '%s'", client.Site())
	}
	if client.APIKey() != "secret-key" {
		t.Errorf("expected key 'secret-key', got '%s'", client.APIKey())
	}
	if container.Fs != fs {
		t.Error("expected the given filesystem to be used")
	}
}

func TestLoadSiteMissingRecord(t *testing.T) {
	_, err := LoadSite(context.Background(), afero.NewMemMapFs(), "/nowhere")
	if !errors.Is(err, config.ErrConfigNotFound) {
		t.Fatalf("expected ErrConfigNotFound, got %v", err)
	}
}

func TestLoadSiteInvalidRecord(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "/p/config.toml", []byte("site = \"s\"\nkey = \"k\"\ndelay = -5\n"), 0600)

	if _, err := LoadSite(context.Background(), fs, "/p"); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestBuildDefaultLogger(t *testing.T) {
	if got := buildDefaultLogger("debug").GetLevel(); got != logrus.DebugLevel {
		t.Errorf("expected debug level, got %v", got)
	}
	if got := buildDefaultLogger("nonsense").GetLevel(); got != logrus.InfoLevel {
		t.Errorf("expected fallback to info, got %v", got)
	}
}
