package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/closecrowd/apyshell/internal/engine"
	"github.com/closecrowd/apyshell/internal/extensions"
	"github.com/closecrowd/apyshell/internal/object"
	"github.com/closecrowd/apyshell/internal/repl"
	"github.com/closecrowd/apyshell/internal/util"
	"github.com/closecrowd/apyshell/internal/util/future"
)

var (
	Version   = "dev"
	BuildDate = "unknown"
	Commit    = "unknown"

	help        bool
	version     bool
	interactive bool
	// logging
	logLevel string
	logFile  string
	// shell config
	optionsFile string
	scriptDirs  string
	extNames    string
	pidFile     string
	initScript  string
	globalFuncs bool
	raiseErrors bool
	noPrint     bool
	initVars    string
)

func init() {
	flag.BoolVar(&help, "help", false, "Display help information and exit")
	flag.BoolVar(&help, "h", false, "Display help information and exit")
	flag.BoolVar(&version, "version", false, "Display version information and exit")
	flag.BoolVar(&version, "v", false, "Display version information and exit")
	flag.BoolVar(&interactive, "i", false, "Start an interactive session instead of running a script")
	// shell config
	flag.StringVar(&optionsFile, "options", "", "TOML options file")
	flag.StringVar(&scriptDirs, "scriptdir", "", "Script search path, ':'-separated")
	flag.StringVar(&extNames, "extensions", "", "Extensions to load at startup, ','-separated")
	flag.StringVar(&pidFile, "pidfile", "", "Write the process id to this file while running")
	flag.StringVar(&initScript, "initscript", "", "Script run before the main script; its procs persist")
	flag.BoolVar(&globalFuncs, "global-funcs", false, "Let def statements overwrite existing symbols")
	flag.BoolVar(&raiseErrors, "raise-errors", false, "Return script faults as process failures")
	flag.BoolVar(&noPrint, "no-print", false, "Suppress script print() output")
	flag.StringVar(&initVars, "vars", "", "Initial script variables as name=value pairs, ','-separated")
	// log config
	flag.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error, none")
	flag.StringVar(&logFile, "log-file", "", "Log file path (if not set, logs to stderr)")
}

func main() {
	flag.Parse()

	if version {
		printVersion()
		return
	}
	if help {
		printHelp()
		return
	}

	cfg := util.DefaultConfiguration()
	cfg.Version = Version
	cfg.BuildDate = BuildDate
	cfg.Commit = Commit
	if err := util.LoadOptions(optionsFile, &cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	overlayFlags(&cfg)

	logWriter := configureLogWriter(cfg.LogFile)
	slog.SetDefault(slog.New(slog.NewJSONHandler(logWriter, &slog.HandlerOptions{
		Level: logLevelFromString(cfg.LogLevel),
	})))

	if flag.NArg() < 1 && !interactive {
		printHelp()
		os.Exit(2)
	}
	scriptName := flag.Arg(0)

	if cfg.PidFile != "" {
		if err := writePidFile(cfg.PidFile); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		defer os.Remove(cfg.PidFile)
	}

	var scriptArgs []string
	if flag.NArg() > 1 {
		scriptArgs = flag.Args()[1:]
	}
	os.Exit(run(cfg, scriptName, scriptArgs))
}

// run builds the engine, loads extensions, and executes the script while
// watching for SIGINT/SIGTERM. Returns the process exit code.
func run(cfg util.Configuration, scriptName string, scriptArgs []string) int {
	eng := engine.New(engine.Options{
		ScriptDirs:  cfg.ScriptDirs,
		GlobalFuncs: cfg.GlobalFuncs,
		RaiseErrors: cfg.RaiseErrors,
		NoPrint:     cfg.NoPrint,
	})
	mgr := extensions.NewManager(eng, cfg.ExtensionOptions, slog.Default())
	defer mgr.Shutdown()

	for _, name := range cfg.Extensions {
		if err := mgr.Load(name); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
	}
	seedVars(eng, scriptArgs)

	if initScript != "" {
		if _, err := eng.LoadScript(initScript, true); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}

	if interactive {
		repl.Start(eng, os.Stdin, os.Stdout)
		if requested, code := eng.ExitRequested(); requested {
			return int(code)
		}
		return 0
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	fut := future.New(func() (object.Object, error) {
		return eng.LoadScript(scriptName, false)
	})

	select {
	case sig := <-sigs:
		slog.Info("signal received, aborting script", "signal", sig.String())
		eng.AbortRun()
		<-fut.Done()
	case <-fut.Done():
	}

	if _, err := fut.Await(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		printFaultContext(eng, scriptName, err)
		return 1
	}
	if requested, code := eng.ExitRequested(); requested {
		return int(code)
	}
	return 0
}

// overlayFlags applies command-line flags over the options file.
func overlayFlags(cfg *util.Configuration) {
	if scriptDirs != "" {
		cfg.ScriptDirs = strings.Split(scriptDirs, ":")
	}
	if extNames != "" {
		cfg.Extensions = strings.Split(extNames, ",")
	}
	if pidFile != "" {
		cfg.PidFile = pidFile
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFile != "" {
		cfg.LogFile = logFile
	}
	if globalFuncs {
		cfg.GlobalFuncs = true
	}
	if raiseErrors {
		cfg.RaiseErrors = true
	}
	if noPrint {
		cfg.NoPrint = true
	}
}

// seedVars installs the script's argument list and any -vars pairs before
// the script runs.
func seedVars(eng *engine.Engine, scriptArgs []string) {
	argv := &object.List{}
	for _, a := range scriptArgs {
		argv.Elements = append(argv.Elements, &object.Str{Value: a})
	}
	eng.SetSysVar("argv_", argv)

	if initVars == "" {
		return
	}
	for _, pair := range strings.Split(initVars, ",") {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		if err := eng.SetVar(strings.TrimSpace(name), parseVar(value)); err != nil {
			slog.Warn("initial variable rejected", "name", name, "err", err)
		}
	}
}

// parseVar guesses int, then float, then falls back to string.
func parseVar(s string) object.Object {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return &object.Int{Value: n}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return &object.Float{Value: f}
	}
	return &object.Str{Value: s}
}

// printFaultContext shows the lines around the fault when the script can
// be re-read and the engine recorded a fault line.
func printFaultContext(eng *engine.Engine, scriptName string, err error) {
	line, ok := eng.GetVar("errline_")
	if !ok {
		return
	}
	n, ok := line.(*object.Int)
	if !ok || n.Value < 1 {
		return
	}
	path, ferr := eng.FindScript(scriptName)
	if ferr != nil {
		return
	}
	src, ferr := os.ReadFile(path)
	if ferr != nil {
		return
	}
	if ctx := util.ContextLines(string(src), int(n.Value)); ctx != "" {
		fmt.Fprint(os.Stderr, ctx)
	}
}

func writePidFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("pidfile: %w", err)
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644)
}

func configureLogWriter(path string) *os.File {
	if path == "" {
		return os.Stderr
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create log directory for '%s': %v; falling back to stderr\n", path, err)
		return os.Stderr
	}
	w, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file '%s': %v; falling back to stderr\n", path, err)
		return os.Stderr
	}
	return w
}

func printVersion() {
	fmt.Printf("apyshell version 'v%s' %s %s\n", Version, BuildDate, Commit)
}

func printHelp() {
	fmt.Printf(`Usage: apyshell [options] script [args...]

Options:
  -options <path>     TOML options file with shell and extension settings.
  -scriptdir <dirs>   Script search path, ':'-separated. Default is '.'
  -extensions <list>  Extensions to load at startup, ','-separated.
  -vars <pairs>       Initial script variables as name=value pairs.
  -pidfile <path>     Write the process id to this file while running.
  -initscript <name>  Script run before the main script; its procs persist.
  -global-funcs       Let def statements overwrite existing symbols.
  -raise-errors       Return script faults as process failures.
  -no-print           Suppress script print() output.
  -i                  Start an interactive session instead of running a script.
  -help               Display this help information and exit.
  -version            Display version information and exit.
  -log-level <level>  Set the log level: debug, info, warn, error. Default is 'error'.
  -log-file <path>    Specify a log file to write logs. Default is stderr.

Examples:
  apyshell demo                          Run demo.apy from the script path
  apyshell -extensions=fileext,sqlext collect arg1
  apyshell -options=/etc/apyshell.toml monitor

Version Information:
  Version:    %s
  Build Date: %s
  Commit:     %s
`, Version, BuildDate, Commit)
}

func logLevelFromString(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "none":
		return slog.Level(12)
	default:
		return slog.LevelError
	}
}
