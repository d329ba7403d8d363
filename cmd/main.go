package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/neocities-go/neocities/internal/app"
	"github.com/neocities-go/neocities/internal/config"
	"github.com/neocities-go/neocities/internal/devserver"
	"github.com/neocities-go/neocities/internal/reconcile"
	"github.com/neocities-go/neocities/internal/services/neocities"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	projectDir string
	loglevel   string
)

func main() {
	// Root command
	rootCmd := &cobra.Command{
		Use:          "neocities",
		Short:        "NeoCities site client",
		Long:         "Manage a NeoCities site from a local project directory: inspect it, upload and delete files, and keep both sides in sync.",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&projectDir, "project", "p", ".", "Project directory holding config.toml")
	rootCmd.PersistentFlags().StringVar(&loglevel, "loglevel", "", "Override the log level of the site record")

	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newInfoCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newUploadCmd())
	rootCmd.AddCommand(newDeleteCmd())
	rootCmd.AddCommand(newSyncCmd())
	rootCmd.AddCommand(newKeyCmd())
	rootCmd.AddCommand(newDevserverCmd())

	// Version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("neocities version %s\n", version)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// loadContainer reads the site record, lets the caller adjust it, then builds
// the container.
func loadContainer(ctx context.Context, adjust func(*config.Config)) (*app.Container, error) {
	fs := afero.NewOsFs()

	cfg, err := config.Load(fs, projectDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if loglevel != "" {
		cfg.Loglevel = loglevel
	}
	if adjust != nil {
		adjust(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	container, err := app.NewContainer(ctx, cfg, projectDir, app.WithFs(fs))
	if err != nil {
		return nil, fmt.Errorf("failed to build container: %w", err)
	}
	return container, nil
}

func newInitCmd() *cobra.Command {
	var key, user, password, apiURL string
	var force bool

	cmd := &cobra.Command{
		Use:   "init <site>",
		Short: "Create a project directory and site record",
		Long:  "Create <project>/<site>/config.toml. The key is fetched with --user/--password when --key is not given. An existing record is left alone unless --force is set.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			site := args[0]
			if key == "" {
				if user == "" || password == "" {
					return fmt.Errorf("either --key or --user and --password are required")
				}
				fetched, err := neocities.FetchKey(ctx, apiURL, user, password)
				if err != nil {
					return fmt.Errorf("failed to fetch API key: %w", err)
				}
				key = fetched
			}

			fs := afero.NewOsFs()
			dir, err := config.ProjectDir(projectDir, site)
			if err != nil {
				return err
			}

			if force {
				if exists, _ := afero.Exists(fs, config.RecordPath(dir)); exists {
					if err := config.UpdateSite(fs, dir, site, key); err != nil {
						return err
					}
					fmt.Printf("Updated %s\n", config.RecordPath(dir))
					return nil
				}
			}

			if err := config.CreateSite(fs, site, key, projectDir); err != nil {
				return err
			}
			fmt.Printf("Site %s is ready in %s\n", site, dir)
			return nil
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "API key of the site")
	cmd.Flags().StringVar(&user, "user", "", "Account name, used to fetch the key")
	cmd.Flags().StringVar(&password, "password", "", "Account password, used to fetch the key")
	cmd.Flags().StringVar(&apiURL, "api-url", neocities.DefaultAPIURL, "API base URL")
	cmd.Flags().BoolVar(&force, "force", false, "Replace site and key of an existing record")
	return cmd
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info [site]",
		Short: "Show site metadata",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			container, err := loadContainer(ctx, nil)
			if err != nil {
				return err
			}

			site := ""
			if len(args) == 1 {
				site = args[0]
			}
			resp, err := container.Client.Info(ctx, site)
			if err != nil {
				return err
			}
			if err := resp.Err(); err != nil {
				return err
			}

			info := resp.Info
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "sitename\t%s\n", info.Sitename)
			fmt.Fprintf(w, "views\t%s\n", humanize.Comma(info.Views))
			fmt.Fprintf(w, "hits\t%s\n", humanize.Comma(info.Hits))
			fmt.Fprintf(w, "created\t%s\n", formatTime(info.CreatedAt))
			fmt.Fprintf(w, "last updated\t%s\n", formatTime(info.LastUpdated))
			if info.Domain != nil {
				fmt.Fprintf(w, "domain\t%s\n", *info.Domain)
			}
			if len(info.Tags) > 0 {
				fmt.Fprintf(w, "tags\t%v\n", info.Tags)
			}
			return w.Flush()
		},
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [path]",
		Short: "List remote files",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			container, err := loadContainer(ctx, nil)
			if err != nil {
				return err
			}

			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			resp, err := container.Client.List(ctx, dir)
			if err != nil {
				return err
			}
			if err := resp.Err(); err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			for _, f := range resp.Files {
				size := "-"
				if f.IsDirectory {
					size = "dir"
				} else if f.Size != nil {
					size = humanize.Bytes(uint64(*f.Size))
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", size, formatTime(f.UpdatedAt), f.Path)
			}
			return w.Flush()
		},
	}
}

func newUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <files...>",
		Short: "Upload files in one request",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			container, err := loadContainer(ctx, nil)
			if err != nil {
				return err
			}

			resp, err := container.Client.Upload(ctx, args)
			if err != nil {
				return err
			}
			if err := resp.Err(); err != nil {
				return err
			}
			fmt.Println(resp.Message)
			return nil
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <paths...>",
		Short: "Delete remote files in one request",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			container, err := loadContainer(ctx, nil)
			if err != nil {
				return err
			}

			resp, err := container.Client.Delete(ctx, args)
			if err != nil {
				return err
			}
			if err := resp.Err(); err != nil {
				return err
			}
			fmt.Println(resp.Message)
			return nil
		},
	}
}

func newSyncCmd() *cobra.Command {
	var dryRun bool
	var direction, policy string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the project directory with the site",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			container, err := loadContainer(ctx, func(cfg *config.Config) {
				if direction != "" {
					cfg.Direction = direction
				}
				if policy != "" {
					cfg.ConflictPolicy = policy
				}
			})
			if err != nil {
				return err
			}

			lock := app.NewProjectLock(container.ProjectDir)
			if err := lock.Lock(); err != nil {
				return err
			}
			defer func() {
				if err := lock.Unlock(); err != nil {
					container.Logger.Warnf("Failed to release project lock: %v", err)
				}
			}()

			container.Logger.Infof("Syncing %s (direction %s, conflicts %s)",
				container.Config.Site, container.Config.Direction, container.Config.ConflictPolicy)

			result, err := container.Reconciler.Sync(ctx, dryRun)
			if err != nil {
				return err
			}

			printResult(result)
			return result.Err()
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show the plan without changing anything")
	cmd.Flags().StringVar(&direction, "direction", "", "both, push or pull (default from config)")
	cmd.Flags().StringVar(&policy, "conflict", "", "newer, local or remote (default from config)")
	return cmd
}

func printResult(result *reconcile.Result) {
	plan := result.Plan
	if result.DryRun {
		printSet := func(label string, paths []string) {
			sort.Strings(paths)
			for _, p := range paths {
				fmt.Printf("%-14s %s\n", label, p)
			}
		}
		printSet("upload", plan.Upload.ToSlice())
		printSet("delete-remote", plan.DeleteRemote.ToSlice())
		printSet("download", plan.Download.ToSlice())
		printSet("delete-local", plan.DeleteLocal.ToSlice())
		fmt.Printf("%d change(s) planned, %d file(s) unchanged\n", plan.Len(), plan.Unchanged.Cardinality())
		return
	}

	for _, o := range result.Outcomes {
		status := "ok"
		if o.Err != nil {
			status = "FAILED: " + o.Err.Error()
		}
		fmt.Printf("%-14s %s %s\n", o.Action, o.Path, status)
	}
	fmt.Printf("%d succeeded, %d failed, %d unchanged\n",
		result.Succeeded(), len(result.Failed()), plan.Unchanged.Cardinality())
}

func newKeyCmd() *cobra.Command {
	var user, password, apiURL string

	cmd := &cobra.Command{
		Use:   "key",
		Short: "Fetch the API key of an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			key, err := neocities.FetchKey(ctx, apiURL, user, password)
			if err != nil {
				return err
			}
			fmt.Println(key)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "Account name")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	cmd.Flags().StringVar(&apiURL, "api-url", neocities.DefaultAPIURL, "API base URL")
	cmd.MarkFlagRequired("user")
	cmd.MarkFlagRequired("password")
	return cmd
}

func newDevserverCmd() *cobra.Command {
	var cfg devserver.Config
	var root string

	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Run a local stand-in for the NeoCities API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			logger := logrus.New()
			logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"})
			if level, err := logrus.ParseLevel(loglevel); err == nil {
				logger.SetLevel(level)
				cfg.Debug = level >= logrus.DebugLevel
			}

			abs, err := filepath.Abs(root)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(abs, 0755); err != nil {
				return fmt.Errorf("failed to create %s: %w", abs, err)
			}

			server := devserver.NewServer(cfg, afero.NewBasePathFs(afero.NewOsFs(), abs), logger)
			return server.StartWithContext(ctx)
		},
	}
	cmd.Flags().StringVar(&root, "root", "devsite", "Directory holding the hosted files")
	cmd.Flags().StringVar(&cfg.Site, "site", "devsite", "Site name")
	cmd.Flags().StringVar(&cfg.APIKey, "key", "devkey", "API key accepted by the server")
	cmd.Flags().StringVar(&cfg.Username, "user", "dev", "Account name accepted by the key endpoint")
	cmd.Flags().StringVar(&cfg.Password, "password", "dev", "Account password accepted by the key endpoint")
	cmd.Flags().StringVar(&cfg.BindAddress, "addr", "127.0.0.1", "Bind address")
	cmd.Flags().IntVar(&cfg.Port, "port", 4567, "TCP port")
	return cmd
}

func formatTime(ts neocities.Timestamp) string {
	if ts.IsZero() {
		return "-"
	}
	return humanize.Time(ts.Time)
}
