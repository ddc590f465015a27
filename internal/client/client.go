package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/diskmirror/diskmirror/internal/client/config"
	"github.com/diskmirror/diskmirror/internal/client/workspace"
	"github.com/diskmirror/diskmirror/internal/diskapi"
	"github.com/diskmirror/diskmirror/internal/mirror"
	"github.com/diskmirror/diskmirror/internal/utils"
	"github.com/spf13/afero"
)

type Client struct {
	config    *config.Config
	workspace *workspace.Workspace
	disk      *diskapi.Client
	engine    *mirror.Engine
	logger    *slog.Logger
}

func New(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	ws, err := workspace.NewWorkspace(cfg.LocalDir, cfg.LogDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}

	disk, err := diskapi.New(&diskapi.Config{
		BaseURL: cfg.APIURL,
		Token:   cfg.Token,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create disk client: %w", err)
	}

	fs := afero.NewOsFs()
	ignore, err := mirror.LoadIgnoreList(fs, cfg.IgnoreFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load ignore list: %w", err)
	}

	engine, err := mirror.NewEngine(disk, mirror.Options{
		LocalDir:          ws.LocalDir,
		RemoteDir:         cfg.RemoteDir,
		Interval:          cfg.Interval,
		MaxDeletePasses:   cfg.MaxDeletePasses,
		DeletePermanently: cfg.DeletePermanently,
		Fs:                fs,
		Ignore:            ignore,
		Logger:            logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create mirror engine: %w", err)
	}

	return &Client{
		config:    cfg,
		workspace: ws,
		disk:      disk,
		engine:    engine,
		logger:    logger,
	}, nil
}

// Start mirrors until ctx is cancelled, or runs a single cycle when the
// config asks for it. Only a local scan failure or a held lock is an error.
func (c *Client) Start(ctx context.Context) error {
	c.logger.Info("diskmirror start",
		"local", c.config.LocalDir,
		"remote", c.config.RemoteDir,
		"api", c.config.APIURL,
		"token", utils.MaskSecret(c.config.Token),
		"interval", c.config.Interval,
		"ignore", c.config.IgnoreFile,
	)

	if err := c.workspace.Setup(); err != nil {
		return err
	}
	defer func() {
		if err := c.workspace.Unlock(); err != nil {
			c.logger.Warn("failed to release lock", "path", c.workspace.LockPath(), "error", err)
		}
	}()
	defer c.disk.Close()

	var err error
	if c.config.Once {
		err = c.runOnce(ctx)
	} else {
		err = c.engine.Run(ctx)
	}

	if errors.Is(err, context.Canceled) {
		c.logger.Info("received interrupt signal, stopping client")
		err = nil
	}
	c.logger.Info("diskmirror stop")
	return err
}

func (c *Client) runOnce(ctx context.Context) error {
	report, err := c.engine.RunCycle(ctx)
	if err != nil {
		return err
	}
	if report.Failures > 0 {
		c.logger.Warn("cycle finished with failures",
			"failures", report.Failures,
			"took", report.Duration,
		)
	}
	return nil
}
