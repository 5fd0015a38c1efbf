package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configPath string
	logLevel   string

	cfg     config
	dataDir string
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "studybuddy",
	Short: "Study Buddy chat client and relay",
	Long: `Study Buddy sends your questions to a chat backend and shows the Markdown replies.

Run "studybuddy ui" for the web client, "studybuddy chat" for the terminal client,
or "studybuddy relay" to run the backend the clients talk to.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		envErr := godotenv.Load()

		cfgDir, err := os.UserConfigDir()
		if err != nil {
			return fmt.Errorf("error getting user config dir: %w", err)
		}
		dataDir = filepath.Join(cfgDir, "studybuddy")
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return fmt.Errorf("error creating config directory: %w", err)
		}

		if configPath == "" {
			configPath = filepath.Join(dataDir, "config.yaml")
		}
		cfg, err = loadConfig(configPath, dataDir)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}

		// The terminal client owns the screen, so its logs go to a file.
		var logFile string
		if cmd.Name() == chatCmd.Name() {
			logFile = filepath.Join(dataDir, "studybuddy.log")
		}
		logger, err = newLogger(cfg.LogLevel, logFile)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		if envErr != nil {
			logger.Debug("No .env file loaded", zap.String("err", envErr.Error()))
		}
		return nil
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func newLogger(level, file string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	if file != "" {
		zc.OutputPaths = []string{file}
		zc.ErrorOutputPaths = []string{file}
	}
	return zc.Build()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default <user config dir>/studybuddy/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	sessionCmd.Flags().BoolVar(&resetSession, "reset", false, "forget the stored session identifier")

	rootCmd.AddCommand(uiCmd, chatCmd, sendCmd, uploadCmd, sessionCmd, relayCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
