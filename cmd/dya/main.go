package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/robottwo/dya/internal/bash"
	"github.com/robottwo/dya/internal/completion"
	"github.com/robottwo/dya/internal/config"
	"github.com/robottwo/dya/internal/core"
	"github.com/robottwo/dya/internal/datasource"
	"github.com/robottwo/dya/internal/executor"
	"github.com/robottwo/dya/internal/history"
	"github.com/robottwo/dya/internal/logging"
	"github.com/robottwo/dya/internal/match"
	"github.com/robottwo/dya/internal/shell"
	"github.com/robottwo/dya/internal/store"
	"github.com/robottwo/dya/internal/styles"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

var BUILD_VERSION = "dev"

var configFile = flag.String("config", "", "use a custom config file instead of the discovered dya.yaml")
var cacheFile = flag.String("cache", "", "use a custom cache file (.json, or .db for sqlite)")
var noCache = flag.Bool("no-cache", false, "keep data source results in memory only")
var logLevel = flag.String("log-level", "", "log file level: debug, info, warn or error")

var helpFlag bool
var versionFlag bool

const (
	exitTimeout   = 124
	exitCancelled = 130

	maxLogSize = 4 << 20
)

func init() {
	flag.BoolVar(&helpFlag, "h", false, "display help information")
	flag.BoolVar(&helpFlag, "help", false, "display help information")

	flag.BoolVar(&versionFlag, "v", false, "display build version")
	flag.BoolVar(&versionFlag, "version", false, "display build version")
}

// main runs one alias when tokens are given (dya deploy prod) and the
// interactive shell otherwise.
func main() {
	flag.Parse()

	if versionFlag {
		fmt.Println(BUILD_VERSION)
		return
	}

	if helpFlag {
		printUsage()
		return
	}

	os.Exit(run(context.Background(), flag.Args()))
}

func run(ctx context.Context, args []string) int {
	logger, closeLog, err := initializeLogger(consoleFor(len(args) == 0))
	if err != nil {
		fmt.Fprintln(os.Stderr, styles.ERROR("Error: "+err.Error()))
		return 1
	}
	defer closeLog()

	logger.Info("-------- new dya session --------", zap.Strings("args", os.Args))

	configPath := *configFile
	if configPath == "" {
		configPath = core.ConfigFile()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to load config", zap.Error(err))
		fmt.Fprintln(os.Stderr, styles.ERROR("Error: "+err.Error()))
		return 1
	}

	st, err := initializeStore(logger)
	if err != nil {
		logger.Error("failed to open cache", zap.Error(err))
		fmt.Fprintln(os.Stderr, styles.ERROR("Error: "+err.Error()))
		return 1
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("failed to close cache", zap.Error(err))
		}
	}()

	runner := bash.NewRunner(logger)
	resolver := datasource.NewResolver(cfg.Sources, st,
		datasource.WithRunner(runner),
		datasource.WithLogger(logger),
	)
	matcher := match.New(cfg.Tree, resolver)
	exec := executor.New(runner, executor.WithLogger(logger))

	if len(args) > 0 {
		return runOnce(ctx, args, resolver, matcher, exec)
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintln(os.Stderr, styles.ERROR("Error: the interactive shell needs a terminal"))
		return 1
	}

	err = shell.Run(ctx, &shell.Session{
		Matcher:   matcher,
		Completer: completion.NewEngine(matcher),
		Executor:  exec,
		History:   history.New(st, cfg.Global.HistorySize),
		Resolver:  resolver,
		Global:    cfg.Global,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("unhandled error", zap.Error(err))
		fmt.Fprintln(os.Stderr, styles.ERROR("Error: "+err.Error()))
		return 1
	}
	return 0
}

func runOnce(ctx context.Context, args []string, resolver *datasource.Resolver, matcher *match.Matcher, exec *executor.Executor) int {
	resolver.ResolveAll(ctx)

	res, ok := matcher.FindCommand(ctx, args)
	if !ok {
		fmt.Println(styles.ERROR("Error: Command not found."))
		return 1
	}

	if res.Help {
		exec.PrintHelp(res)
		return 0
	}

	err := exec.Execute(ctx, res)
	if msg := executor.Message(err); msg != "" {
		fmt.Fprintln(os.Stderr, styles.ERROR(msg))
	}
	return exitCode(err)
}

func exitCode(err error) int {
	var strict *executor.StrictViolationError
	switch {
	case err == nil:
		return 0
	case errors.Is(err, executor.ErrTimeout):
		return exitTimeout
	case errors.Is(err, executor.ErrCancelled):
		return exitCancelled
	case errors.As(err, &strict):
		return 2
	}
	return bash.ExitCode(err)
}

// consoleFor picks where warnings are echoed. The line editor owns the terminal
// in the interactive shell, so there they only reach the log file.
func consoleFor(interactive bool) io.Writer {
	if interactive {
		return nil
	}
	return os.Stderr
}

func initializeLogger(console io.Writer) (*zap.Logger, func(), error) {
	level, err := logging.ParseLevel(*logLevel)
	if err != nil {
		return nil, nil, err
	}
	if BUILD_VERSION == "dev" && *logLevel == "" {
		level = zapcore.DebugLevel
	}

	// Rotation failures only leave extra files behind.
	_ = core.RotateLogFiles()

	return logging.New(logging.Options{
		Level:   level,
		File:    core.LogFile(),
		MaxSize: maxLogSize,
		Console: console,
	})
}

func initializeStore(logger *zap.Logger) (store.Store, error) {
	if *noCache {
		return store.NewMemory(), nil
	}
	path := *cacheFile
	if path == "" {
		path = core.CacheFile()
	}
	return store.Open(path, logger)
}

func printUsage() {
	fmt.Println(styles.HEADER("Usage:") + " dya [flags] [alias tokens...]")
	fmt.Println("\nDynamic aliases with data-driven completion.")
	fmt.Println()

	fmt.Println(styles.HEADER("Options:"))

	// Group aliases like -h and -help together
	printed := make(map[string]bool)

	flag.VisitAll(func(f *flag.Flag) {
		if printed[f.Name] {
			return
		}

		aliases := []string{f.Name}
		flag.VisitAll(func(p *flag.Flag) {
			if p.Name == f.Name {
				return
			}
			if p.Usage == f.Usage {
				aliases = append(aliases, p.Name)
				printed[p.Name] = true
			}
		})
		printed[f.Name] = true

		var shortFlags, longFlags []string
		for _, name := range aliases {
			if len(name) == 1 {
				shortFlags = append(shortFlags, "-"+name)
			} else {
				longFlags = append(longFlags, "-"+name)
			}
		}

		flagStr := strings.Join(append(shortFlags, longFlags...), ", ")

		argName, usage := flag.UnquoteUsage(f)
		if argName != "" {
			flagStr += " <" + argName + ">"
		}

		fmt.Printf("  %-28s %s\n", flagStr, usage)
	})

	fmt.Println()
	fmt.Println(styles.HEADER("Interactive Shell:"))
	fmt.Printf("  %-28s %s\n", "-h, --help", "List data sources and commands")
	fmt.Printf("  %-28s %s\n", "<alias> -h", "Show help for one command")
	fmt.Printf("  %-28s %s\n", "exit, quit", "Leave the shell")
}
