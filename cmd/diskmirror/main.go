package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/diskmirror/diskmirror/internal/client"
	"github.com/diskmirror/diskmirror/internal/client/config"
	"github.com/diskmirror/diskmirror/internal/utils"
	"github.com/diskmirror/diskmirror/internal/version"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	envPrefix      = "DISKMIRROR"
	configFileName = "config"
	logFilePrefix  = "diskmirror"
)

var (
	home, _ = os.UserHomeDir()

	// legacyEnv lists the variable names older deployments export.
	legacyEnv = map[string]string{
		"token":      "TOKEN",
		"local_dir":  "BASE_DIR_PATH",
		"remote_dir": "CLOUD_DIR_NAME",
		"log_dir":    "LOG_DIR_PATH",
		"interval":   "CHECK_INTERVAL",
	}

	cyan = color.New(color.FgHiCyan, color.Bold).SprintFunc()
)

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "diskmirror",
		Short:   "Mirror a local directory onto a remote disk",
		Version: version.Detailed(),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			// all good now, no more usage on errors
			cmd.SilenceUsage = true

			logger, closeLogs, err := newLogger(cfg.LogDir, os.Stdout)
			if err != nil {
				return err
			}
			defer closeLogs()
			slog.SetDefault(logger)

			fmt.Fprintln(cmd.OutOrStdout(), cyan(version.AppName+" "+version.Short()))

			c, err := client.New(cfg, logger)
			if err != nil {
				logger.Error("failed to create client", "error", err)
				return err
			}

			if err := c.Start(cmd.Context()); err != nil {
				logger.Error("mirror stopped", "error", err)
				return err
			}
			logger.Info("Bye!")
			return nil
		},
	}

	cmd.Flags().SortFlags = false
	cmd.Flags().StringP("token", "t", "", "OAuth token for the disk API")
	cmd.Flags().StringP("local-dir", "d", "", "Local directory to mirror")
	cmd.Flags().StringP("remote-dir", "r", "", "Remote directory name (default: base name of the local dir)")
	cmd.Flags().String("log-dir", config.DefaultLogDir, "Directory for log files and the lock file")
	cmd.Flags().IntP("interval", "i", int(config.DefaultInterval/time.Second), "Seconds to wait between sync cycles")
	cmd.Flags().String("api-url", config.DefaultAPIURL, "Disk API base URL")
	cmd.Flags().String("ignore-file", "", "File with gitignore-style patterns to leave out of the mirror")
	cmd.Flags().Bool("once", false, "Run a single sync cycle and exit")
	cmd.PersistentFlags().StringP("config", "c", "", "Config file (json, yaml or toml)")

	cmd.AddCommand(newVersionCmd())
	return cmd
}

func main() {
	// Setup root context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// loadConfig resolves every setting from flags, the environment, a .env file
// and an optional config file, in that order of precedence.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	// values already in the environment win over .env
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()

	if flag := cmd.Flag("config"); flag != nil && flag.Changed {
		v.SetConfigFile(flag.Value.String())
	} else {
		v.AddConfigPath(filepath.Join(home, ".config", "diskmirror"))
		v.SetConfigName(configFileName)
	}

	if err := v.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		var notFound viper.ConfigFileNotFoundError
		if !enoent && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config read '%s': %w", v.ConfigFileUsed(), err)
		}
	}

	// Bind flags to viper
	for key, flag := range map[string]string{
		"token":       "token",
		"local_dir":   "local-dir",
		"remote_dir":  "remote-dir",
		"log_dir":     "log-dir",
		"interval":    "interval",
		"api_url":     "api-url",
		"ignore_file": "ignore-file",
		"once":        "once",
	} {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}

	// Set up environment variables
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		if err := v.BindEnv(key, envPrefix+"_"+strings.ToUpper(key), legacy); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	v.SetDefault("log_dir", config.DefaultLogDir)
	v.SetDefault("api_url", config.DefaultAPIURL)
	v.SetDefault("max_delete_passes", config.DefaultMaxDeletePasses)

	return &config.Config{
		Token:             v.GetString("token"),
		LocalDir:          v.GetString("local_dir"),
		RemoteDir:         v.GetString("remote_dir"),
		LogDir:            v.GetString("log_dir"),
		Interval:          time.Duration(v.GetInt("interval")) * time.Second,
		APIURL:            v.GetString("api_url"),
		IgnoreFile:        v.GetString("ignore_file"),
		MaxDeletePasses:   v.GetInt("max_delete_passes"),
		DeletePermanently: v.GetBool("delete_permanently"),
		Once:              v.GetBool("once"),
		Path:              v.ConfigFileUsed(),
	}, nil
}

// newLogger writes colored output to stdout and plain text with sequence
// numbers to a daily log file in logDir.
func newLogger(logDir string, stdout *os.File) (*slog.Logger, func(), error) {
	logFile, err := utils.NewDailyFile(logDir, logFilePrefix)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	stdoutHandler := tint.NewHandler(stdout, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(stdout.Fd()),
	})

	logInterceptor := utils.NewLogInterceptor(logFile)
	fileHandler := newFileHandler(logInterceptor)

	logger := slog.New(utils.NewMultiLogHandler(stdoutHandler, fileHandler))

	closeLogs := func() {
		_ = logInterceptor.Close()
		_ = logFile.Close()
	}
	return logger, closeLogs, nil
}

func newFileHandler(w io.Writer) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: slog.LevelDebug,
		// Do not include time as it is added by the log interceptor.
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	})
}
