package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/atotto/clipboard"
	"github.com/charmbracelet/fang"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/evanschultz/selftrack/internal/adapters/server"
	"github.com/evanschultz/selftrack/internal/adapters/storage/sqlite"
	"github.com/evanschultz/selftrack/internal/app"
	"github.com/evanschultz/selftrack/internal/capture"
	"github.com/evanschultz/selftrack/internal/config"
	"github.com/evanschultz/selftrack/internal/platform"
)

// version is stamped at build time.
var version = "dev"

// program is the subset of tea.Program used by the view command.
type program interface {
	Run() (tea.Model, error)
}

// Process-level collaborators, replaced in tests.
var (
	programFactory = func(m tea.Model) program {
		return tea.NewProgram(m)
	}
	newSnapshotter = capture.NewPlatformSnapshotter
	newIdleSource  = capture.NewPlatformIdleSource
	clipboardWrite = clipboard.WriteAll
	runServer      = server.Run
)

func main() {
	// fang has already rendered the error on stderr.
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

// run executes one CLI invocation.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	if args == nil {
		args = []string{}
	}

	root := newRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetIn(os.Stdin)
	return fang.Execute(ctx, root,
		fang.WithVersion(version),
		fang.WithoutManpage(),
		fang.WithNotifySignal(os.Interrupt, syscall.SIGTERM),
	)
}

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	dbPath     string
	appName    string
	devMode    bool
}

// newRootCommand builds the command tree. Running it without a subcommand opens the report browser.
func newRootCommand() *cobra.Command {
	opts := &rootOptions{appName: platform.DefaultAppName, devMode: version == "dev"}
	if envDev, ok := parseBoolEnv("SELFTRACK_DEV_MODE"); ok {
		opts.devMode = envDev
	}
	if envApp := strings.TrimSpace(os.Getenv("SELFTRACK_APP_NAME")); envApp != "" {
		opts.appName = envApp
	}

	var view viewOptions
	root := &cobra.Command{
		Use:   "selftrack",
		Short: "Track focused-window activity and aggregate it into reports",
		Long: "selftrack polls the focused window, stores activity periods in batches, " +
			"and classifies them into per-program and per-project reports.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runView(cmd, opts, view)
		},
	}
	bindViewFlags(root, &view)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to config TOML")
	flags.StringVar(&opts.dbPath, "db", "", "path to sqlite database")
	flags.StringVar(&opts.appName, "app", opts.appName, "application name for config/data path resolution")
	flags.BoolVar(&opts.devMode, "dev", opts.devMode, "use dev mode paths (<app>-dev)")

	root.AddCommand(
		newPathsCommand(opts),
		newTrackCommand(opts),
		newReportCommand(opts),
		newBatchesCommand(opts),
		newViewCommand(opts),
		newServeCommand(opts),
		newExportCommand(opts),
		newImportCommand(opts),
	)
	return root
}

// locations are the resolved config and database paths for one invocation.
type locations struct {
	paths        platform.Paths
	configPath   string
	dbPath       string
	dbOverridden bool
}

// resolveLocations applies flag, environment, then platform defaults.
func resolveLocations(opts rootOptions) (locations, error) {
	paths, err := platform.DefaultPathsWithOptions(platform.Options{
		AppName: opts.appName,
		DevMode: opts.devMode,
	})
	if err != nil {
		return locations{}, err
	}
	loc := locations{
		paths:      paths,
		configPath: strings.TrimSpace(opts.configPath),
		dbPath:     strings.TrimSpace(opts.dbPath),
	}
	if loc.configPath == "" {
		if envPath := strings.TrimSpace(os.Getenv("SELFTRACK_CONFIG")); envPath != "" {
			loc.configPath = envPath
		} else {
			loc.configPath = paths.ConfigPath
		}
	}
	loc.dbOverridden = loc.dbPath != ""
	if !loc.dbOverridden {
		if envPath := strings.TrimSpace(os.Getenv("SELFTRACK_DB_PATH")); envPath != "" {
			loc.dbPath = envPath
			loc.dbOverridden = true
		} else {
			loc.dbPath = paths.DBPath
		}
	}
	return loc, nil
}

// loadConfig reads the TOML config on top of the platform defaults.
func (l locations) loadConfig() (config.Config, error) {
	defaults := config.Default(l.dbPath, l.paths.ExportsDir, l.paths.RawDir)
	cfg, err := config.Load(l.configPath, defaults)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config %q: %w", l.configPath, err)
	}
	if l.dbOverridden {
		cfg.Database.Path = l.dbPath
	}
	return cfg, nil
}

// session is the wired runtime of one command: config, logger, store and service.
type session struct {
	opts     rootOptions
	loc      locations
	cfg      config.Config
	location *time.Location
	logger   *runtimeLogger
	repo     *sqlite.Repository
	svc      *app.Service
	stderr   io.Writer
}

// openSession loads config, configures logging and opens the period store.
// A muted console keeps runtime logs in the dev-file sink only.
func openSession(opts rootOptions, command string, stderr io.Writer, muteConsole bool) (*session, error) {
	loc, err := resolveLocations(opts)
	if err != nil {
		return nil, err
	}
	cfg, err := loc.loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := newRuntimeLogger(stderr, opts.appName, opts.devMode, cfg.Logging, time.Now)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	logger.SetConsoleEnabled(!muteConsole)
	s := &session{opts: opts, loc: loc, cfg: cfg, logger: logger, stderr: stderr}

	logger.Info("startup configuration resolved", "app", opts.appName, "dev_mode", opts.devMode, "command", command)
	logger.Debug("runtime paths resolved", "config_path", loc.configPath, "data_dir", loc.paths.DataDir, "db_path", cfg.Database.Path)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Debug("dev file logging enabled", "path", devPath)
	}

	osTag, err := cfg.OperatingSystem()
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("resolve operating system: %w", err)
	}
	location, err := cfg.Location()
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("resolve time zone: %w", err)
	}
	s.location = location
	catalog, err := cfg.Catalog()
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("build rule catalog: %w", err)
	}
	if !catalog.HasDefault(osTag) {
		logger.Warn("no default rule for operating system; unmatched periods will fail aggregation", "os", osTag)
	}
	logger.Debug("rule catalog ready", "rules", catalog.Len(), "os", osTag, "time_zone", location.String())

	repo, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("sqlite open failed", "db_path", cfg.Database.Path, "err", err)
		s.Close()
		return nil, fmt.Errorf("open sqlite repository: %w", err)
	}
	s.repo = repo
	logger.Debug("sqlite repository ready", "db_path", cfg.Database.Path)

	aggregator, err := app.NewAggregator(catalog, app.AggregatorConfig{
		OperatingSystem: osTag,
		Location:        location,
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	s.svc = app.NewService(repo, aggregator, uuid.NewString, time.Now)
	return s, nil
}

// Close releases the store and the dev log file.
func (s *session) Close() {
	if s == nil {
		return
	}
	if s.repo != nil {
		if err := s.repo.Close(); err != nil {
			s.logger.Warn("sqlite close failed", "db_path", s.cfg.Database.Path, "err", err)
		}
	}
	if err := s.logger.Close(); err != nil && s.logger.ConsoleEnabled() {
		_, _ = fmt.Fprintf(s.stderr, "warning: close runtime log sink: %v\n", err)
	}
}

// flow wraps one command body with start/complete/failed log events.
func (s *session) flow(command string, fn func() error) error {
	s.logger.Info("command flow start", "command", command)
	if err := fn(); err != nil {
		s.logger.Error("command flow failed", "command", command, "err", err)
		return fmt.Errorf("run %s command: %w", command, err)
	}
	s.logger.Info("command flow complete", "command", command)
	return nil
}

// withSession opens a session for the command, runs fn inside a logged flow and closes it.
func withSession(cmd *cobra.Command, opts *rootOptions, command string, fn func(context.Context, *session) error) error {
	s, err := openSession(*opts, command, cmd.ErrOrStderr(), false)
	if err != nil {
		return err
	}
	defer s.Close()
	return s.flow(command, func() error {
		return fn(cmd.Context(), s)
	})
}

// parseBoolEnv reads a boolean environment variable; ok is false when unset or malformed.
func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
