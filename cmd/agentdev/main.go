// agentdev is the developer workflow runner for LangGraph agent projects:
// dev-server lifecycle, test/lint/format/spell dispatch, run history, and
// project settings tooling.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"agentdev/pkg/config"
	"agentdev/pkg/contextpack"
	"agentdev/pkg/devserver"
	"agentdev/pkg/logx"
	"agentdev/pkg/metrics"
	"agentdev/pkg/persistence"
	"agentdev/pkg/project"
	"agentdev/pkg/tasks"
	"agentdev/pkg/tasks/watch"
	"agentdev/pkg/version"
)

// logFilesToKeep bounds log rotation in .agentdev/logs.
const logFilesToKeep = 4

// globalFlags are accepted by every command.
type globalFlags struct {
	projectDir string
	tee        bool
	debug      bool
}

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	command := tasks.Normalize(strings.TrimLeft(os.Args[1], "-"))
	args := os.Args[2:]

	switch command {
	case "help", "h":
		printUsage(os.Stdout)
		os.Exit(0)
	case "version", "v":
		printVersion()
		os.Exit(0)
	}

	exitCode := run(command, args)
	if err := logx.CloseLogFile(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
	}
	os.Exit(exitCode)
}

// run executes one command and returns the process exit code. Kept separate
// from main so defers inside command handlers fire before os.Exit.
func run(command string, args []string) int {
	flagSet := flag.NewFlagSet(command, flag.ExitOnError)
	flagSet.Usage = func() { printUsage(os.Stderr) }

	var global globalFlags
	flagSet.StringVar(&global.projectDir, "projectdir", ".", "Project directory")
	flagSet.BoolVar(&global.tee, "tee", false, "Log to both console and file (default: file only)")
	flagSet.BoolVar(&global.debug, "debug", false, "Enable debug logging")

	// Command-specific flags.
	testPath := flagSet.String("path", "", "Test path override (test-family commands)")
	noBrowser := flagSet.Bool("no-browser", false, "Do not open the studio UI (start)")
	limit := flagSet.Int("n", 20, "Number of runs to show (history)")
	prom := flagSet.Bool("prom", false, "Emit Prometheus text exposition format (stats)")
	packOut := flagSet.String("out", "", "Output file, default stdout (pack)")
	packBudget := flagSet.Int("budget", contextpack.DefaultTotalBudget, "Total token budget (pack)")
	packFileBudget := flagSet.Int("file-budget", contextpack.DefaultFileBudget, "Per-file token budget (pack)")

	if err := flagSet.Parse(args); err != nil {
		return 1
	}

	projectDir, err := filepath.Abs(global.projectDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid project directory: %v\n", err)
		return 1
	}

	// Log rotation comes up before anything that logs.
	logsDir := filepath.Join(projectDir, config.ProjectConfigDir, "logs")
	if err := logx.InitializeLogFile(logsDir, logFilesToKeep, global.tee); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize log file: %v\n", err)
		return 1
	}
	if global.debug {
		logx.SetDebug(true)
	}

	if err := config.LoadConfig(projectDir); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if command != "secrets" {
		loadStoredSecrets(projectDir)
	}
	cfg, err := config.GetConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch command {
	case "start", "stop", "clean", "dev":
		return runLifecycle(ctx, command, projectDir, cfg, *noBrowser)
	case "history":
		return runHistory(projectDir, *limit)
	case "stats":
		return runStats(projectDir, *prom)
	case "project":
		return runProject(projectDir)
	case "pack":
		return runPack(projectDir, cfg, *packOut, *packBudget, *packFileBudget)
	case "secrets":
		return runSecrets(projectDir, flagSet.Args())
	default:
		return runTask(ctx, command, projectDir, cfg, tasks.RunOpts{TestPath: *testPath})
	}
}

// runLifecycle handles the dev-server commands.
func runLifecycle(ctx context.Context, command, projectDir string, cfg config.Config, noBrowser bool) int {
	manager := devserver.NewManager(projectDir, cfg.Server, metrics.NewCollector())

	switch command {
	case "stop":
		if err := manager.Stop(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	case "clean":
		if err := manager.Clean(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	case "dev":
		code, err := manager.Dev(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return code
	default: // start
		if !noBrowser && !devserver.IsInteractive() {
			noBrowser = true
		}
		code, err := manager.Start(ctx, noBrowser)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return code
	}
}

// runTask dispatches to the task registry: builtins, custom tasks from
// .agentdev/tasks.yaml, and the watch-mode wrapper.
func runTask(ctx context.Context, command, projectDir string, cfg config.Config, opts tasks.RunOpts) int {
	registry := tasks.NewRegistry()

	custom, err := config.LoadCustomTasks(projectDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if err := registry.AddCustom(custom); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if _, err := registry.Get(command); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		printUsage(os.Stderr)
		return 1
	}

	runner := tasks.NewRunner(projectDir, registry, openStore(projectDir), metrics.NewCollector())

	if command == "test_watch" {
		return runWatch(ctx, projectDir, runner, opts)
	}

	code, err := runner.Run(ctx, command, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return code
}

// runWatch reruns the watch task on file changes until interrupted.
func runWatch(ctx context.Context, projectDir string, runner *tasks.Runner, opts tasks.RunOpts) int {
	watcher, err := watch.New(projectDir, func(ctx context.Context) {
		if _, err := runner.Run(ctx, "test_watch", opts); err != nil && ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if err := watcher.Run(ctx); err != nil && err != context.Canceled {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// openStore opens the run-history store. A broken database is a warning,
// never a blocked task.
func openStore(projectDir string) *persistence.Store {
	dbPath := filepath.Join(projectDir, config.ProjectConfigDir, "history.db")
	if err := persistence.Initialize(dbPath, ""); err != nil {
		logx.Warnf("Run history unavailable: %v", err)
		return nil
	}

	store, err := persistence.GlobalStore()
	if err != nil {
		logx.Warnf("Run history unavailable: %v", err)
		return nil
	}
	return store
}

func runHistory(projectDir string, limit int) int {
	store := openStore(projectDir)
	if store == nil {
		fmt.Fprintln(os.Stderr, "Error: run history unavailable")
		return 1
	}

	runs, err := store.RecentRuns(limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if len(runs) == 0 {
		fmt.Println("No recorded runs yet.")
		return 0
	}

	fmt.Printf("%-20s %-18s %6s %10s\n", "STARTED", "TASK", "EXIT", "DURATION")
	for _, r := range runs {
		fmt.Printf("%-20s %-18s %6d %10s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Task, r.ExitCode, r.Duration.Round(1e7))
	}
	return 0
}

func runStats(projectDir string, prom bool) int {
	store := openStore(projectDir)
	if store == nil {
		fmt.Fprintln(os.Stderr, "Error: run history unavailable")
		return 1
	}

	stats, err := store.TaskStats()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if len(stats) == 0 {
		fmt.Println("No recorded runs yet.")
		return 0
	}

	if prom {
		// Replay history into a collector so the exposition format
		// matches what the status endpoint serves live.
		collector := metrics.NewCollector()
		runs, err := store.RecentRuns(10000)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		for _, r := range runs {
			collector.RecordTaskRun(r.Task, r.ExitCode, r.Duration)
		}
		if err := collector.WriteText(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	fmt.Printf("%-18s %6s %9s %12s\n", "TASK", "RUNS", "FAILURES", "AVG DURATION")
	for _, s := range stats {
		fmt.Printf("%-18s %6d %9d %12s\n", s.Task, s.Runs, s.Failures, s.AvgDuration.Round(1e7))
	}
	return 0
}

// runProject prints a summary of the project's optimization settings.
func runProject(projectDir string) int {
	if !project.Exists(projectDir) {
		fmt.Printf("No %s in %s.\n", project.SettingsFilename, projectDir)
		return 0
	}

	settings, err := project.Load(projectDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	title := settings.Title()
	if title == "" {
		title = "(untitled)"
	}
	fmt.Printf("Project: %s\n", title)
	if desc := settings.Description(); desc != "" {
		fmt.Printf("  %s\n", desc)
	}

	constraints := settings.Constraints()
	fmt.Printf("Constraints: %d\n", len(constraints))
	for _, c := range constraints {
		rank := ""
		if c.Rank != nil {
			rank = fmt.Sprintf(" rank=%d", *c.Rank)
		}
		fmt.Printf("  [%s]%s %s: %s\n", c.Type, rank, c.Name, c.Description)
	}

	if settings.SchemaDefinition() != nil {
		fmt.Println("API schema: defined")
	} else {
		fmt.Println("API schema: not defined")
	}
	return 0
}

func runPack(projectDir string, cfg config.Config, outPath string, budget, fileBudget int) int {
	out := os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	packer := contextpack.NewPacker(projectDir, contextpack.Options{
		TotalBudget:     budget,
		FileBudget:      fileBudget,
		ExtraIgnoreDirs: []string{cfg.Server.StateDir},
	})

	tokens, err := packer.Pack(out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if outPath != "" {
		fmt.Printf("Wrote %s (%d tokens)\n", outPath, tokens)
	}
	return 0
}

func printVersion() {
	fmt.Printf("agentdev %s\n", version.Version)
	fmt.Printf("  commit: %s\n", version.Commit)
	fmt.Printf("  built:  %s\n", version.Date)
}

func printUsage(w *os.File) {
	fmt.Fprintf(w, "agentdev - developer workflow runner for LangGraph agent projects\n\n")
	fmt.Fprintf(w, "Usage:\n  agentdev <command> [flags]\n\n")
	fmt.Fprintf(w, "Dev server:\n")
	fmt.Fprintf(w, "  start              stop prior instance, launch dev server, open studio UI\n")
	fmt.Fprintf(w, "  stop               kill dev server on the configured port, clear state dir\n")
	fmt.Fprintf(w, "  clean              stop with confirmation\n")
	fmt.Fprintf(w, "  dev                launch dev server in the foreground only\n\n")
	fmt.Fprintf(w, "Tasks:\n")
	for _, task := range tasks.NewRegistry().List() {
		fmt.Fprintf(w, "  %-18s %s\n", task.Name, task.Description)
	}
	fmt.Fprintf(w, "\nTooling:\n")
	fmt.Fprintf(w, "  history            show recent task runs\n")
	fmt.Fprintf(w, "  stats              show aggregated task-run statistics (-prom for exposition format)\n")
	fmt.Fprintf(w, "  project            show project settings from %s\n", project.SettingsFilename)
	fmt.Fprintf(w, "  pack               write a token-budgeted context snapshot of the project\n")
	fmt.Fprintf(w, "  secrets            set | list | rm entries in the encrypted secrets file\n")
	fmt.Fprintf(w, "  version            print version information\n")
	fmt.Fprintf(w, "  help               this text\n\n")
	fmt.Fprintf(w, "Common flags:\n")
	fmt.Fprintf(w, "  -projectdir DIR    project directory (default \".\")\n")
	fmt.Fprintf(w, "  -path PATH         test path override for test-family commands\n")
	fmt.Fprintf(w, "  -tee               log to console as well as the log file\n")
	fmt.Fprintf(w, "  -debug             enable debug logging\n")
	fmt.Fprintf(w, "\nTEST_FILE=tests/unit_tests/test_graph.py agentdev test  also works.\n")
}
