package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"orbit/internal/agent"
	"orbit/internal/ask"
	"orbit/internal/bus"
	"orbit/internal/config"
	"orbit/internal/llm"
	"orbit/internal/logging"
	"orbit/internal/screenshot"
	"orbit/internal/store"
	"orbit/internal/windows"
)

const version = "0.3.0"

var (
	workspace string
	verbose   bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "orbit",
	Short: "orbit - desktop overlay assistant core",
	Long: `orbit runs the overlay assistant core: a fixed header window with
feature panels orchestrated over an intent bus, and an ask subsystem that
streams completions, delegates search questions to a browsing daemon, and
enriches finished answers in the background.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		if workspace == "" {
			workspace, _ = os.Getwd()
		}
		if err := logging.Initialize(workspace); err != nil {
			logger.Warn("file logging unavailable", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the overlay core until interrupted",
	Long: `Starts the window orchestrator, the ask coordinator and the config
watcher, then services intents until SIGINT/SIGTERM. Without a native
shell attached, windows are tracked virtually.`,
	RunE: runOverlay,
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question and print the streamed answer",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the orbit version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("orbit %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "workspace directory (default: cwd)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	rootCmd.AddCommand(runCmd, askCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// buildCoordinator wires the ask stack from config. The store and
// provider are optional: a missing database or credentials degrade the
// coordinator, they do not prevent construction.
func buildCoordinator(cfg *config.Config, events *bus.Bus, onUpdate func(ask.Update)) (*ask.Coordinator, func()) {
	var provider llm.Provider
	if cfg.IsLLMConfigured() {
		var err error
		provider, err = llm.NewProvider(cfg.LLM)
		if err != nil {
			logger.Warn("completion provider unavailable", zap.Error(err))
		}
	}

	opts := ask.Options{
		Events:   events,
		OnUpdate: onUpdate,
		Capturer: screenshot.New(cfg.Screenshot),
	}
	cleanup := func() {}

	if cfg.Agent.Enabled {
		opts.Delegate = agent.NewClient(cfg)
	}
	if provider != nil && cfg.Enhancement.Enabled {
		opts.Enhancer = ask.NewEnhancer(provider, cfg.Enhancement.MinLength)
	}
	if cfg.Store.DatabasePath != "" {
		db, err := store.New(resolvePath(cfg.Store.DatabasePath))
		if err != nil {
			logger.Warn("conversation store unavailable", zap.Error(err))
		} else {
			opts.Store = db
			cleanup = func() { db.Close() }
		}
	}

	var streaming llm.StreamingProvider
	if provider != nil {
		streaming = provider
	} else {
		streaming = unconfiguredProvider{}
	}

	return ask.NewCoordinator(cfg, streaming, opts), cleanup
}

func resolvePath(p string) string {
	if strings.HasPrefix(p, "/") {
		return p
	}
	return workspace + "/" + p
}

func runOverlay(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.DefaultPath(workspace))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	events := bus.New()
	defer events.Close()

	registry := windows.NewRegistry()
	screen := windows.StaticScreen{Work: windows.Bounds{Width: 1920, Height: 1080}}
	orch, err := windows.New(registry, screen, windows.InstantAnimator{}, windows.VirtualFactory{}, nil, windows.Options{
		HeaderWidth:       cfg.Windows.HeaderWidth,
		HeaderHeight:      cfg.Windows.HeaderHeight,
		HeaderMarginTop:   cfg.Windows.HeaderMarginTop,
		SettingsHideDelay: cfg.GetSettingsHideDelay(),
		EnforceInterval:   cfg.GetEnforceInterval(),
		AnimOffsetX:       cfg.Windows.AnimOffsetX,
		AnimOffsetY:       cfg.Windows.AnimOffsetY,
	})
	if err != nil {
		return fmt.Errorf("failed to start orchestrator: %w", err)
	}

	coordinator, cleanup := buildCoordinator(cfg, events, nil)
	defer cleanup()
	defer coordinator.Close()

	watcher, err := config.Watch(config.DefaultPath(workspace), func(next *config.Config) {
		logger.Info("config reloaded")
		_ = logging.ReloadConfig()
	})
	if err != nil {
		logger.Warn("config watcher unavailable", zap.Error(err))
	} else {
		defer watcher.Close()
	}

	orch.HandleHeaderStateChanged("main")
	logger.Info("orbit core running", zap.String("workspace", workspace))

	orch.Run(ctx, events)
	logger.Info("orbit core stopped")
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.DefaultPath(workspace))
	if err != nil {
		return err
	}

	question := strings.Join(args, " ")

	done := make(chan ask.Update, 1)
	var printed int
	coordinator, cleanup := buildCoordinator(cfg, nil, func(u ask.Update) {
		// Print only the streamed suffix so tokens appear as they arrive.
		if len(u.Response) > printed {
			fmt.Print(u.Response[printed:])
			printed = len(u.Response)
		}
		if u.State == ask.StateDone || u.State == ask.StateError {
			select {
			case done <- u:
			default:
			}
		}
	})
	defer cleanup()

	coordinator.Submit(question, nil)

	final := <-done
	fmt.Println()
	if final.State == ask.StateError {
		return fmt.Errorf("%s", final.Err)
	}
	return nil
}

// unconfiguredProvider stands in when no credentials are set; the
// coordinator fails fast on its config check before ever calling this.
type unconfiguredProvider struct{}

func (unconfiguredProvider) StreamChat(ctx context.Context, messages []llm.ChatMessage) (io.ReadCloser, error) {
	return nil, ask.ErrNotConfigured
}
