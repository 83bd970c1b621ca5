package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/fang"
	charmLog "github.com/charmbracelet/log"
	"github.com/evanschultz/kandrag/internal/adapters/storage/sqlite"
	"github.com/evanschultz/kandrag/internal/app"
	"github.com/evanschultz/kandrag/internal/collision"
	"github.com/evanschultz/kandrag/internal/config"
	"github.com/evanschultz/kandrag/internal/platform"
	"github.com/evanschultz/kandrag/internal/tui"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// version stores a package-level helper value.
var version = "dev"

// Environment variables read when building the root command.
const (
	envDevMode = "KANDRAG_DEV_MODE"
	envAppName = "KANDRAG_APP_NAME"
)

// program represents program data used by this package.
type program interface {
	Run() (tea.Model, error)
}

// programFactory stores a package-level helper value.
var programFactory = func(m tea.Model) program {
	return tea.NewProgram(m)
}

// main handles main.
func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

// rootFlags holds persistent flag values shared by every command.
type rootFlags struct {
	configPath string
	dbPath     string
	appName    string
	devMode    bool
}

// run builds the command tree and executes args through fang.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	root := newRootCommand(stderr)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return fang.Execute(ctx, root, fang.WithVersion(version))
}

// newRootCommand builds the kandrag command tree.
func newRootCommand(stderr io.Writer) *cobra.Command {
	flags := &rootFlags{appName: platform.DefaultAppName, devMode: version == "dev"}
	if envDev, ok := parseBoolEnv(envDevMode); ok {
		flags.devMode = envDev
	}
	if envApp := strings.TrimSpace(os.Getenv(envAppName)); envApp != "" {
		flags.appName = envApp
	}

	root := &cobra.Command{
		Use:   "kandrag",
		Short: "Drag-and-drop kanban board for the terminal",
		Long: `kandrag opens a kanban board in the terminal. Cards are reordered by
dragging them with the mouse or by grabbing them with the keyboard.
Every committed move is written to a local sqlite database.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd.Context(), flags, stderr, "tui", runTUI)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "path to config TOML")
	pf.StringVar(&flags.dbPath, "db", "", "path to sqlite database")
	pf.StringVar(&flags.appName, "app", flags.appName, "application name for config/data path resolution")
	pf.BoolVar(&flags.devMode, "dev", flags.devMode, "use dev mode paths (<app>-dev), dev log file and strict drag contracts")

	root.AddCommand(
		newPathsCommand(flags),
		newExportCommand(flags, stderr),
		newImportCommand(flags, stderr),
		newCardCommand(flags, stderr),
		newMoveCommand(flags, stderr),
		newLogCommand(flags, stderr),
		newServeCommand(flags, stderr),
	)
	return root
}

// resolvePaths applies flag and environment overrides to platform defaults.
func resolvePaths(flags *rootFlags) (platform.Paths, error) {
	return platform.Resolve(platform.Request{
		AppName:    flags.appName,
		DevMode:    flags.devMode,
		ConfigFlag: flags.configPath,
		DBFlag:     flags.dbPath,
	})
}

// session holds the resources one command runs against.
type session struct {
	flags    rootFlags
	resolved platform.Paths
	cfg      config.Config
	logger   *runtimeLogger
	repo     *sqlite.Repository
	svc      *app.Service
}

// withSession opens a session, runs fn, and closes the session.
func withSession(ctx context.Context, flags *rootFlags, stderr io.Writer, command string, fn func(context.Context, *session) error) error {
	s, err := openSession(ctx, flags, stderr, command == "tui")
	if err != nil {
		return err
	}
	defer s.close(stderr)

	s.logger.Info("command flow start", "command", command)
	if err := fn(ctx, s); err != nil {
		s.logger.Error("command flow failed", "command", command, "err", err)
		return fmt.Errorf("run %s command: %w", command, err)
	}
	s.logger.Info("command flow complete", "command", command)
	return nil
}

// openSession resolves configuration, logging and storage for one command.
func openSession(ctx context.Context, flags *rootFlags, stderr io.Writer, interactive bool) (*session, error) {
	resolved, err := resolvePaths(flags)
	if err != nil {
		return nil, err
	}

	defaultCfg := config.Default(resolved.DBPath)
	cfg, err := config.Load(resolved.ConfigPath, defaultCfg)
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", resolved.ConfigPath, err)
	}
	if resolved.DBOverridden {
		cfg.Database.Path = resolved.DBPath
	}

	logger, err := newRuntimeLogger(stderr, flags.appName, flags.devMode, cfg.Logging, time.Now)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	if interactive {
		// The board owns the terminal; runtime logs go to the dev file only.
		logger.SetConsoleEnabled(false)
	}

	logger.Info("startup configuration resolved", "app", flags.appName, "dev_mode", flags.devMode)
	logger.Debug("runtime paths resolved", "config_path", resolved.ConfigPath, "data_dir", resolved.DataDir, "db_path", cfg.Database.Path)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}

	logger.Info("opening sqlite repository", "db_path", cfg.Database.Path)
	repo, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("sqlite open failed", "db_path", cfg.Database.Path, "err", err)
		_ = logger.Close()
		return nil, fmt.Errorf("open sqlite repository: %w", err)
	}

	svc := app.NewService(repo, uuid.NewString, nil, app.ServiceConfig{
		StateTemplates: stateTemplates(cfg.Board.States),
	})
	if err := svc.EnsureDefaultColumns(ctx); err != nil {
		logger.Error("seed default columns failed", "err", err)
		_ = repo.Close()
		_ = logger.Close()
		return nil, fmt.Errorf("seed default columns: %w", err)
	}
	logger.Debug("application service initialized", "states", len(cfg.Board.States))

	return &session{
		flags:    *flags,
		resolved: resolved,
		cfg:      cfg,
		logger:   logger,
		repo:     repo,
		svc:      svc,
	}, nil
}

// close releases storage and log sinks.
func (s *session) close(stderr io.Writer) {
	if err := s.repo.Close(); err != nil {
		s.logger.Warn("sqlite close failed", "db_path", s.cfg.Database.Path, "err", err)
	}
	if err := s.logger.Close(); err != nil && s.logger.shouldLogToSink(s.logger.consoleSink) {
		_, _ = fmt.Fprintf(stderr, "warning: close runtime log sink: %v\n", err)
	}
}

// strictContracts reports whether engine contract violations should panic.
func (s *session) strictContracts() bool {
	return s.cfg.Drag.StrictContracts || s.flags.devMode
}

// controllerOptions maps configuration onto drag controller options.
func (s *session) controllerOptions() []app.ControllerOption {
	return []app.ControllerOption{
		app.WithResolver(collision.Resolver{MaxDistance: s.cfg.Drag.MaxSnapDistance}),
		app.WithStrictContracts(s.strictContracts()),
		app.WithLogger(s.logger.EngineSink()),
	}
}

// runTUI runs the board program.
func runTUI(_ context.Context, s *session) error {
	m := tui.NewModel(
		s.svc,
		tui.WithKeyConfig(tui.KeyConfig{
			Grab:   s.cfg.Keys.Grab,
			Drop:   s.cfg.Keys.Drop,
			Cancel: s.cfg.Keys.Cancel,
			CopyID: s.cfg.Keys.CopyID,
		}),
		tui.WithMaxSnapDistance(s.cfg.Drag.MaxSnapDistance),
		tui.WithStrictContracts(s.strictContracts()),
		tui.WithLogger(s.logger.EngineSink()),
	)
	s.logger.Info("starting tui program loop", "strict_contracts", s.strictContracts())
	if _, err := programFactory(m).Run(); err != nil {
		s.logger.Error("tui program terminated with error", "err", err)
		return fmt.Errorf("run tui program: %w", err)
	}
	return nil
}

// stateTemplates maps configured board states to seed column templates.
func stateTemplates(states []config.StateConfig) []app.StateTemplate {
	out := make([]app.StateTemplate, 0, len(states))
	for _, state := range states {
		out = append(out, app.StateTemplate{ID: state.ID, Name: state.Name, Position: state.Position})
	}
	return out
}

// parseBoolEnv parses input into a normalized form.
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

// runtimeLogger fans log events to a styled console sink and an optional dev-file sink.
type runtimeLogger struct {
	sinks          []*charmLog.Logger
	consoleSink    *charmLog.Logger
	fileSink       *charmLog.Logger
	consoleEnabled bool
	closeFile      func() error
	devLog         string
}

// newRuntimeLogger configures runtime log sinks from CLI/config state.
func newRuntimeLogger(stderr io.Writer, appName string, devMode bool, cfg config.LoggingConfig, now func() time.Time) (*runtimeLogger, error) {
	level, err := charmLog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse logging level %q: %w", cfg.Level, err)
	}

	if now == nil {
		now = time.Now
	}
	if stderr == nil {
		stderr = io.Discard
	}

	consoleLogger := charmLog.NewWithOptions(stderr, charmLog.Options{
		Level:           level,
		Prefix:          appName,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       charmLog.TextFormatter,
	})

	logger := &runtimeLogger{
		sinks:          []*charmLog.Logger{consoleLogger},
		consoleSink:    consoleLogger,
		consoleEnabled: true,
	}
	if !devMode || !cfg.DevFile.Enabled {
		return logger, nil
	}

	devLogPath, err := devLogFilePath(cfg.DevFile.Dir, appName, now().UTC())
	if err != nil {
		return nil, fmt.Errorf("resolve dev log file path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(devLogPath), 0o755); err != nil {
		return nil, fmt.Errorf("create dev log dir: %w", err)
	}
	logFile, err := os.OpenFile(devLogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open dev log file: %w", err)
	}

	fileLogger := charmLog.NewWithOptions(logFile, charmLog.Options{
		Level:           level,
		Prefix:          appName,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       charmLog.LogfmtFormatter,
	})
	logger.sinks = append(logger.sinks, fileLogger)
	logger.fileSink = fileLogger
	logger.closeFile = logFile.Close
	logger.devLog = devLogPath
	return logger, nil
}

// DevLogPath returns the active dev log file path.
func (l *runtimeLogger) DevLogPath() string {
	if l == nil {
		return ""
	}
	return l.devLog
}

// EngineSink returns the single sink handed to the drag controller: the dev
// file when present, otherwise the console while it is enabled.
func (l *runtimeLogger) EngineSink() *charmLog.Logger {
	if l == nil {
		return nil
	}
	if l.fileSink != nil {
		return l.fileSink
	}
	if l.consoleEnabled {
		return l.consoleSink
	}
	return nil
}

// Close closes the optional dev-file sink.
func (l *runtimeLogger) Close() error {
	if l == nil || l.closeFile == nil {
		return nil
	}
	return l.closeFile()
}

// SetConsoleEnabled toggles whether the console sink receives runtime events.
func (l *runtimeLogger) SetConsoleEnabled(enabled bool) {
	if l == nil {
		return
	}
	l.consoleEnabled = enabled
}

// shouldLogToSink reports whether one sink should receive runtime output.
func (l *runtimeLogger) shouldLogToSink(sink *charmLog.Logger) bool {
	if l == nil || sink == nil {
		return false
	}
	if sink == l.consoleSink && !l.consoleEnabled {
		return false
	}
	return true
}

// Debug logs a debug event to all configured sinks.
func (l *runtimeLogger) Debug(msg string, keyvals ...any) {
	l.emit(charmLog.DebugLevel, msg, keyvals...)
}

// Info logs an informational event to all configured sinks.
func (l *runtimeLogger) Info(msg string, keyvals ...any) {
	l.emit(charmLog.InfoLevel, msg, keyvals...)
}

// Warn logs a warning event to all configured sinks.
func (l *runtimeLogger) Warn(msg string, keyvals ...any) {
	l.emit(charmLog.WarnLevel, msg, keyvals...)
}

// Error logs an error event to all configured sinks.
func (l *runtimeLogger) Error(msg string, keyvals ...any) {
	l.emit(charmLog.ErrorLevel, msg, keyvals...)
}

// emit writes one event to every enabled sink.
func (l *runtimeLogger) emit(level charmLog.Level, msg string, keyvals ...any) {
	if l == nil {
		return
	}
	for _, sink := range l.sinks {
		if !l.shouldLogToSink(sink) {
			continue
		}
		sink.Log(level, msg, keyvals...)
	}
}

// devLogFilePath resolves a workspace-local dev log file path for the current run day.
func devLogFilePath(configDir, appName string, now time.Time) (string, error) {
	baseDir := strings.TrimSpace(configDir)
	if baseDir == "" {
		baseDir = ".kandrag/log"
	}
	if !filepath.IsAbs(baseDir) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolve working dir: %w", err)
		}
		baseDir = filepath.Join(workspaceRootFrom(cwd), baseDir)
	}
	fileStem := sanitizeLogFileStem(appName)
	fileName := fmt.Sprintf("%s-%s.log", fileStem, now.Format("20060102"))
	return filepath.Join(filepath.Clean(baseDir), fileName), nil
}

// workspaceRootFrom resolves the nearest ancestor workspace marker for stable local log placement.
func workspaceRootFrom(start string) string {
	start = filepath.Clean(strings.TrimSpace(start))
	if start == "" {
		return "."
	}
	dir := start
	for {
		if hasWorkspaceMarker(dir) {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return start
		}
		dir = parent
	}
}

// hasWorkspaceMarker reports whether a directory looks like a project workspace root.
func hasWorkspaceMarker(dir string) bool {
	for _, marker := range []string{"go.mod", ".git"} {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return true
		}
	}
	return false
}

// sanitizeLogFileStem normalizes app names into safe file-name segments.
func sanitizeLogFileStem(appName string) string {
	stem := strings.TrimSpace(appName)
	if stem == "" {
		return "kandrag"
	}
	replacer := strings.NewReplacer("/", "-", "\\", "-", ":", "-", " ", "-")
	stem = strings.Trim(replacer.Replace(stem), "-")
	if stem == "" {
		return "kandrag"
	}
	return stem
}
