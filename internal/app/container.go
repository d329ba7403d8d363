package app

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/neocities-go/neocities/internal/config"
	"github.com/neocities-go/neocities/internal/reconcile"
	"github.com/neocities-go/neocities/internal/services/neocities"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// Container centralizes the core dependencies of one site project.
// It is intentionally small and uses interfaces so callers (and tests) can
// substitute implementations easily.
type Container struct {
	Config      *config.Config
	ProjectDir  string
	Fs          afero.Fs
	Logger      *logrus.Logger
	Client      neocities.ClientAPI
	Reconciler  *reconcile.Reconciler
	ValidateKey bool

	clock clockwork.Clock
}

// Option allows customizing the container during construction.
type Option func(*Container) error

// WithLogger overrides the default logger.
func WithLogger(logger *logrus.Logger) Option {
	return func(c *Container) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		c.Logger = logger
		return nil
	}
}

// WithClient overrides the default NeoCities client.
func WithClient(client neocities.ClientAPI) Option {
	return func(c *Container) error {
		if client == nil {
			return fmt.Errorf("neocities client cannot be nil")
		}
		c.Client = client
		return nil
	}
}

// WithFs overrides the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(c *Container) error {
		if fs == nil {
			return fmt.Errorf("filesystem cannot be nil")
		}
		c.Fs = fs
		return nil
	}
}

// WithClock sets the clock the client's pacer waits on.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Container) error {
		c.clock = clock
		return nil
	}
}

// WithKeyValidation enables or disables checking the API key with an info call (default: disabled).
func WithKeyValidation(validate bool) Option {
	return func(c *Container) error {
		c.ValidateKey = validate
		return nil
	}
}

// NewContainer builds a Container for the project in projectDir from cfg.
// Options can be supplied to override specific dependencies (useful in tests).
func NewContainer(ctx context.Context, cfg *config.Config, projectDir string, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	container := &Container{
		Config:     cfg,
		ProjectDir: projectDir,
		Logger:     buildDefaultLogger(cfg.Loglevel),
	}

	// Apply options early so tests can inject mocks before defaults are created.
	for _, opt := range opts {
		if err := opt(container); err != nil {
			return nil, err
		}
	}

	if container.Fs == nil {
		container.Fs = afero.NewOsFs()
	}

	if container.Client == nil {
		delay := cfg.DelayDuration()
		container.Client = neocities.NewClient(cfg.Site, cfg.Key, neocities.Options{
			APIURL:  cfg.APIURL,
			SiteURL: cfg.SiteURL,
			Root:    projectDir,
			Delay:   &delay,
			Clock:   container.clock,
			Fs:      container.Fs,
			Logger:  container.Logger,
		})
	}

	reconciler, err := buildReconciler(container)
	if err != nil {
		return nil, err
	}
	container.Reconciler = reconciler

	if container.ValidateKey {
		info, err := container.Client.Info(ctx, cfg.Site)
		if err == nil {
			err = info.Err()
		}
		if err != nil {
			return nil, fmt.Errorf("failed to verify NeoCities API key: %w", err)
		}
	}

	return container, nil
}

// LoadSite reads the site record in projectDir and builds a Container from it.
func LoadSite(ctx context.Context, fs afero.Fs, projectDir string, opts ...Option) (*Container, error) {
	cfg, err := config.Load(fs, projectDir)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid site record in %s: %w", projectDir, err)
	}

	return NewContainer(ctx, cfg, projectDir, append([]Option{WithFs(fs)}, opts...)...)
}

func buildDefaultLogger(levelStr string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}

func buildReconciler(c *Container) (*reconcile.Reconciler, error) {
	direction, err := reconcile.ParseDirection(c.Config.Direction)
	if err != nil {
		return nil, err
	}
	policy, err := reconcile.ParseConflictPolicy(c.Config.ConflictPolicy)
	if err != nil {
		return nil, err
	}

	scanner, err := reconcile.NewScanner(c.Fs, c.ProjectDir, c.Config.Ignore)
	if err != nil {
		return nil, fmt.Errorf("failed to load ignore patterns: %w", err)
	}

	return reconcile.New(c.Client, c.Fs, scanner, reconcile.Options{
		Direction: direction,
		Policy:    policy,
	}, c.Logger), nil
}
