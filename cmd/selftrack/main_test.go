package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/xuri/excelize/v2"

	"github.com/evanschultz/selftrack/internal/adapters/server"
	"github.com/evanschultz/selftrack/internal/app"
	"github.com/evanschultz/selftrack/internal/capture"
	"github.com/evanschultz/selftrack/internal/config"
	"github.com/evanschultz/selftrack/internal/domain"
)

// TestMain keeps CLI tests out of dev-mode paths and dev log files.
func TestMain(m *testing.M) {
	_ = os.Setenv("SELFTRACK_DEV_MODE", "false")
	os.Exit(m.Run())
}

type fakeProgram struct {
	runErr error
}

func (f fakeProgram) Run() (tea.Model, error) {
	return nil, f.runErr
}

type fixedWindow struct {
	win capture.Window
}

func (f fixedWindow) ActiveWindow(context.Context) (capture.Window, error) {
	return f.win, nil
}

// cliEnv is one isolated set of config, database and export paths.
type cliEnv struct {
	dir     string
	cfgPath string
	dbPath  string
	exports string
}

func newCLIEnv(t *testing.T) cliEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg-config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "xdg-data"))
	env := cliEnv{
		dir:     dir,
		cfgPath: filepath.Join(dir, "config.toml"),
		dbPath:  filepath.Join(dir, "selftrack.db"),
		exports: filepath.Join(dir, "exports"),
	}
	content := `
[logging]
level = "error"

[report]
operating_system = "linux"
time_zone = "UTC"
export_dir = "` + filepath.ToSlash(env.exports) + `"
default_format = "markdown"
`
	if err := os.WriteFile(env.cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return env
}

func (e cliEnv) args(args ...string) []string {
	return append([]string{"--config", e.cfgPath, "--db", e.dbPath}, args...)
}

// run executes the CLI and returns stdout.
func (e cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out strings.Builder
	err := run(context.Background(), e.args(args...), &out, io.Discard)
	return out.String(), err
}

func writePeriodFile(t *testing.T, path string) {
	t.Helper()
	periods := []domain.ActivityPeriod{
		{Start: 0, End: 60_000, Details: domain.ActivityDetails{Title: "main.go - selftrack - Visual Studio Code", Executable: "code", Interactive: domain.InteractionActive}},
		{Start: 60_000, End: 90_000, Details: domain.ActivityDetails{Title: "notes", Executable: "gedit", Interactive: domain.InteractionInactive}},
	}
	data, err := json.Marshal(periods)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func stubCapture(t *testing.T, win capture.Window) {
	t.Helper()
	origSnap, origIdle := newSnapshotter, newIdleSource
	t.Cleanup(func() {
		newSnapshotter = origSnap
		newIdleSource = origIdle
	})
	newSnapshotter = func(domain.OperatingSystem) (capture.Snapshotter, error) {
		return fixedWindow{win: win}, nil
	}
	newIdleSource = func(domain.OperatingSystem) capture.IdleSource {
		return capture.NeverIdle{}
	}
}

func TestRunVersion(t *testing.T) {
	var out strings.Builder
	if err := run(context.Background(), []string{"--version"}, &out, io.Discard); err != nil {
		t.Fatalf("run(version) error = %v", err)
	}
	if !strings.Contains(out.String(), "selftrack") || !strings.Contains(out.String(), version) {
		t.Fatalf("expected version output, got %q", out.String())
	}
}

func TestRunUnknownCommand(t *testing.T) {
	env := newCLIEnv(t)
	if _, err := env.run(t, "frobnicate"); err == nil {
		t.Fatal("expected unknown command error")
	}
}

func TestRunPaths(t *testing.T) {
	env := newCLIEnv(t)
	out, err := env.run(t, "paths", "--create")
	if err != nil {
		t.Fatalf("run(paths) error = %v", err)
	}
	for _, want := range []string{"app: selftrack", "dev_mode: false", "config: " + env.cfgPath, "db: " + env.dbPath, "exports: " + env.exports} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in paths output, got %q", want, out)
		}
	}
	if info, err := os.Stat(env.exports); err != nil || !info.IsDir() {
		t.Fatalf("expected exports dir to be created, err = %v", err)
	}
}

func TestRunPathsUsesEnvironmentOverrides(t *testing.T) {
	env := newCLIEnv(t)
	envDB := filepath.Join(env.dir, "env.db")
	t.Setenv("SELFTRACK_CONFIG", env.cfgPath)
	t.Setenv("SELFTRACK_DB_PATH", envDB)
	t.Setenv("SELFTRACK_APP_NAME", "tracker")

	var out strings.Builder
	if err := run(context.Background(), []string{"paths"}, &out, io.Discard); err != nil {
		t.Fatalf("run(paths) error = %v", err)
	}
	for _, want := range []string{"app: tracker", "config: " + env.cfgPath, "db: " + envDB} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("expected %q in paths output, got %q", want, out.String())
		}
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	env := newCLIEnv(t)
	if err := os.WriteFile(env.cfgPath, []byte("[logging]\nlevel = \"loud\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	_, err := env.run(t, "batches")
	if err == nil || !strings.Contains(err.Error(), "load config") {
		t.Fatalf("expected load config error, got %v", err)
	}
}

func TestRunReportFromFile(t *testing.T) {
	env := newCLIEnv(t)
	in := filepath.Join(env.dir, "raw.json")
	writePeriodFile(t, in)

	out, err := env.run(t, "report", "--in", in)
	if err != nil {
		t.Fatalf("run(report) error = %v", err)
	}
	for _, want := range []string{"# Activity report", "Visual Studio Code", "selftrack", "1 minute"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in markdown report, got %q", want, out)
		}
	}

	out, err = env.run(t, "report", "--in", in, "--format", "json")
	if err != nil {
		t.Fatalf("run(report json) error = %v", err)
	}
	var report domain.FinalReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if report.PeriodCount() != 2 || report.TotalDuration != "1 minute, 30 seconds" {
		t.Fatalf("unexpected report %#v", report)
	}
	if report.TotalActiveDuration != "1 minute" || report.TotalInactiveDuration != "30 seconds" {
		t.Fatalf("unexpected interaction totals %q / %q", report.TotalActiveDuration, report.TotalInactiveDuration)
	}
}

func TestRunReportExportsXLSXToDirectory(t *testing.T) {
	env := newCLIEnv(t)
	in := filepath.Join(env.dir, "session one.json")
	writePeriodFile(t, in)

	out, err := env.run(t, "report", "--in", in, "--format", "xlsx")
	if err != nil {
		t.Fatalf("run(report xlsx) error = %v", err)
	}
	want := filepath.Join(env.exports, "activity_report_session_one.xlsx")
	if !strings.Contains(out, want) {
		t.Fatalf("expected export path %q in output, got %q", want, out)
	}
	f, err := excelize.OpenFile(want)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows("Details")
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header plus two detail rows, got %d", len(rows))
	}
}

func TestRunReportRejectsBinaryStdout(t *testing.T) {
	env := newCLIEnv(t)
	in := filepath.Join(env.dir, "raw.json")
	writePeriodFile(t, in)
	if _, err := env.run(t, "report", "--in", in, "--format", "xlsx", "--out", "-"); err == nil {
		t.Fatal("expected error writing xlsx to stdout")
	}
}

func TestRunReportCopiesMarkdown(t *testing.T) {
	env := newCLIEnv(t)
	in := filepath.Join(env.dir, "raw.json")
	writePeriodFile(t, in)

	orig := clipboardWrite
	t.Cleanup(func() { clipboardWrite = orig })
	var copied string
	clipboardWrite = func(text string) error {
		copied = text
		return nil
	}
	outPath := filepath.Join(env.dir, "out", "report.md")
	if _, err := env.run(t, "report", "--in", in, "--out", outPath, "--copy"); err != nil {
		t.Fatalf("run(report copy) error = %v", err)
	}
	if !strings.HasPrefix(copied, "# Activity report") {
		t.Fatalf("expected markdown on clipboard, got %q", copied)
	}
	written, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(written) != copied {
		t.Fatal("expected exported markdown to match clipboard text")
	}
}

func TestRunReportWithoutBatches(t *testing.T) {
	env := newCLIEnv(t)
	_, err := env.run(t, "report")
	if !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRunReportRejectsConflictingSources(t *testing.T) {
	env := newCLIEnv(t)
	if _, err := env.run(t, "report", "--in", "a.json", "--batch", "b"); err == nil {
		t.Fatal("expected mutually exclusive flag error")
	}
}

func TestRunTrackThenReport(t *testing.T) {
	env := newCLIEnv(t)
	stubCapture(t, capture.Window{Title: "main.go - selftrack - Visual Studio Code", Executable: "code"})

	out, err := env.run(t, "track", "--name", "morning", "--for", "50ms", "--raw")
	if err != nil {
		t.Fatalf("run(track) error = %v", err)
	}
	if !strings.Contains(out, "recorded 1 periods in batch morning") {
		t.Fatalf("unexpected track output %q", out)
	}

	out, err = env.run(t, "batches")
	if err != nil {
		t.Fatalf("run(batches) error = %v", err)
	}
	if !strings.Contains(out, "morning") || !strings.Contains(out, "linux") {
		t.Fatalf("expected batch row, got %q", out)
	}

	out, err = env.run(t, "report", "--batch", "latest", "--format", "json")
	if err != nil {
		t.Fatalf("run(report) error = %v", err)
	}
	var report domain.FinalReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	program, ok := report.Program("Visual Studio Code")
	if !ok {
		t.Fatalf("expected Visual Studio Code program, got %#v", report.Activities)
	}
	if _, ok := program.Project("selftrack"); !ok {
		t.Fatalf("expected selftrack project, got %#v", program.Projects)
	}
}

func TestRunTrackWritesRawFile(t *testing.T) {
	env := newCLIEnv(t)
	rawDir := filepath.Join(env.dir, "raw")
	content := `
[logging]
level = "error"

[report]
operating_system = "linux"

[tracking]
raw_dir = "` + filepath.ToSlash(rawDir) + `"
write_raw = true
`
	if err := os.WriteFile(env.cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	stubCapture(t, capture.Window{Title: "notes", Executable: "gedit"})

	if _, err := env.run(t, "track", "--name", "raw-session", "--for", "30ms"); err != nil {
		t.Fatalf("run(track) error = %v", err)
	}
	data, err := os.ReadFile(filepath.Join(rawDir, "raw-session.json"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	periods, err := app.DecodePeriods(data)
	if err != nil {
		t.Fatalf("DecodePeriods() error = %v", err)
	}
	if len(periods) != 1 || periods[0].Details.Executable != "gedit" {
		t.Fatalf("unexpected raw periods %#v", periods)
	}
}

func TestRunTrackUnsupportedPlatform(t *testing.T) {
	env := newCLIEnv(t)
	orig := newSnapshotter
	t.Cleanup(func() { newSnapshotter = orig })
	newSnapshotter = func(domain.OperatingSystem) (capture.Snapshotter, error) {
		return nil, capture.ErrUnsupportedPlatform
	}
	_, err := env.run(t, "track", "--for", "10ms")
	if !errors.Is(err, capture.ErrUnsupportedPlatform) {
		t.Fatalf("expected ErrUnsupportedPlatform, got %v", err)
	}
}

func TestRunExportImportRoundTrip(t *testing.T) {
	env := newCLIEnv(t)
	stubCapture(t, capture.Window{Title: "notes", Executable: "gedit"})
	if _, err := env.run(t, "track", "--name", "exported", "--for", "30ms"); err != nil {
		t.Fatalf("run(track) error = %v", err)
	}

	snapPath := filepath.Join(env.dir, "snapshot.json")
	if _, err := env.run(t, "export", "--out", snapPath); err != nil {
		t.Fatalf("run(export) error = %v", err)
	}
	content, err := os.ReadFile(snapPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	var snap app.Snapshot
	if err := json.Unmarshal(content, &snap); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(snap.Batches) != 1 || snap.Batches[0].Name != "exported" || len(snap.Batches[0].Periods) != 1 {
		t.Fatalf("unexpected snapshot %#v", snap)
	}

	other := newCLIEnv(t)
	if _, err := other.run(t, "import", "--in", snapPath); err != nil {
		t.Fatalf("run(import) error = %v", err)
	}
	out, err := other.run(t, "batches")
	if err != nil {
		t.Fatalf("run(batches) error = %v", err)
	}
	if !strings.Contains(out, "exported") {
		t.Fatalf("expected imported batch, got %q", out)
	}
}

func TestRunImportRequiresInput(t *testing.T) {
	env := newCLIEnv(t)
	if _, err := env.run(t, "import"); err == nil {
		t.Fatal("expected required flag error")
	}
}

func TestRunBatchesEmpty(t *testing.T) {
	env := newCLIEnv(t)
	out, err := env.run(t, "batches")
	if err != nil {
		t.Fatalf("run(batches) error = %v", err)
	}
	if out != "no batches recorded\n" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestRunStartsProgram(t *testing.T) {
	env := newCLIEnv(t)
	orig := programFactory
	t.Cleanup(func() { programFactory = orig })
	started := 0
	programFactory = func(tea.Model) program {
		started++
		return fakeProgram{}
	}

	if _, err := env.run(t); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	in := filepath.Join(env.dir, "raw.json")
	writePeriodFile(t, in)
	if _, err := env.run(t, "view", "--in", in); err != nil {
		t.Fatalf("run(view) error = %v", err)
	}
	if started != 2 {
		t.Fatalf("expected two program runs, got %d", started)
	}
}

func TestRunViewPropagatesProgramError(t *testing.T) {
	env := newCLIEnv(t)
	orig := programFactory
	t.Cleanup(func() { programFactory = orig })
	boom := errors.New("boom")
	programFactory = func(tea.Model) program { return fakeProgram{runErr: boom} }

	if _, err := env.run(t, "view"); !errors.Is(err, boom) {
		t.Fatalf("expected program error, got %v", err)
	}
}

func TestRunViewUnknownBatch(t *testing.T) {
	env := newCLIEnv(t)
	if _, err := env.run(t, "view", "--batch", "missing"); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRunServeUsesConfigAndFlags(t *testing.T) {
	env := newCLIEnv(t)
	orig := runServer
	t.Cleanup(func() { runServer = orig })
	var got server.Config
	runServer = func(ctx context.Context, cfg server.Config, deps server.Dependencies) error {
		got = cfg
		if deps.Reports == nil {
			return errors.New("missing report service")
		}
		batches, err := deps.Reports.ListBatches(ctx)
		if err != nil {
			return err
		}
		if len(batches) != 0 {
			return errors.New("expected empty store")
		}
		return nil
	}

	if _, err := env.run(t, "serve", "--bind", "127.0.0.1:9999", "--metrics=false"); err != nil {
		t.Fatalf("run(serve) error = %v", err)
	}
	if got.HTTPBind != "127.0.0.1:9999" || got.EnableMetrics {
		t.Fatalf("unexpected server config %#v", got)
	}
	if got.APIEndpoint != "/api/v1" || got.MCPEndpoint != "/mcp" || got.ServerName != "selftrack" || got.ServerVersion != version {
		t.Fatalf("expected config defaults, got %#v", got)
	}
}

func TestServeConfigKeepsConfiguredMetrics(t *testing.T) {
	cfg := config.Default("db", "exports", "raw").Server
	got := serveConfig(cfg, serveOptions{metrics: false}, nil)
	if !got.EnableMetrics {
		t.Fatal("expected config metrics setting when flag is unchanged")
	}
}

func TestParseRange(t *testing.T) {
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	from, to, err := parseRange("2026-03-04", "", time.UTC, now)
	if err != nil {
		t.Fatalf("parseRange() error = %v", err)
	}
	if !from.Equal(time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)) || !to.Equal(now) {
		t.Fatalf("unexpected range %s - %s", from, to)
	}
	from, to, err = parseRange("2026-03-04 08:00:00", "2026-03-04T09:30:00Z", time.UTC, now)
	if err != nil {
		t.Fatalf("parseRange() error = %v", err)
	}
	if to.Sub(from) != 90*time.Minute {
		t.Fatalf("unexpected span %s", to.Sub(from))
	}
	if _, _, err := parseRange("", "2026-03-04", time.UTC, now); err == nil {
		t.Fatal("expected missing --from error")
	}
	if _, _, err := parseRange("yesterday", "", time.UTC, now); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestBatchTable(t *testing.T) {
	started := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
	ended := started.Add(time.Hour)
	out := batchTable([]app.BatchSummary{
		{Batch: domain.Batch{ID: "b1", Name: "open-one", OperatingSystem: domain.OSLinux, StartedAt: started}, PeriodCount: 3},
		{Batch: domain.Batch{ID: "b2", Name: "done", OperatingSystem: domain.OSWindows, StartedAt: started, EndedAt: &ended}, PeriodCount: 0},
	}, time.UTC)
	for _, want := range []string{"open-one", "open", "2026-03-04 10:00:00", "win32", "PERIODS"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in table, got %q", want, out)
		}
	}
}

func TestDevLogFilePath(t *testing.T) {
	now := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	dir := t.TempDir()
	got, err := devLogFilePath(dir, "self track", now)
	if err != nil {
		t.Fatalf("devLogFilePath() error = %v", err)
	}
	if got != filepath.Join(dir, "self-track-20260304.log") {
		t.Fatalf("unexpected dev log path %q", got)
	}
	if sanitizeLogFileStem(" / ") != "selftrack" {
		t.Fatalf("expected fallback stem, got %q", sanitizeLogFileStem(" / "))
	}
}

func TestWorkspaceRootFrom(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "go.mod"), []byte("module x\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if got := workspaceRootFrom(nested); got != root {
		t.Fatalf("workspaceRootFrom() = %q, want %q", got, root)
	}
}

func TestRuntimeLoggerDevFileSink(t *testing.T) {
	dir := t.TempDir()
	var console strings.Builder
	logger, err := newRuntimeLogger(&console, "selftrack", true, config.LoggingConfig{
		Level:   "info",
		DevFile: config.DevFileConfig{Enabled: true, Dir: dir},
	}, func() time.Time { return time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC) })
	if err != nil {
		t.Fatalf("newRuntimeLogger() error = %v", err)
	}
	logger.SetConsoleEnabled(false)
	logger.Info("batch started", "batch_id", "b1")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if console.Len() != 0 {
		t.Fatalf("expected muted console, got %q", console.String())
	}
	data, err := os.ReadFile(logger.DevLogPath())
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "batch started") || !strings.Contains(string(data), "batch_id=b1") {
		t.Fatalf("unexpected dev log content %q", string(data))
	}
}

func TestRuntimeLoggerRejectsBadLevel(t *testing.T) {
	if _, err := newRuntimeLogger(io.Discard, "selftrack", false, config.LoggingConfig{Level: "loud"}, nil); err == nil {
		t.Fatal("expected level parse error")
	}
}
