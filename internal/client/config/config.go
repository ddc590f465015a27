package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/diskmirror/diskmirror/internal/diskapi"
	"github.com/diskmirror/diskmirror/internal/mirror"
	"github.com/diskmirror/diskmirror/internal/utils"
)

const (
	DefaultLogDir          = "logs"
	DefaultInterval        = mirror.DefaultInterval
	DefaultAPIURL          = diskapi.DefaultBaseURL
	DefaultMaxDeletePasses = mirror.DefaultMaxDeletePasses
)

var (
	ErrNoToken         = errors.New("token is required")
	ErrNoLocalDir      = errors.New("local dir is required")
	ErrLocalDirMissing = errors.New("local dir is not a directory")
	ErrBadRemoteDir    = errors.New("remote dir must be a single path component")
	ErrBadAPIURL       = errors.New("api url must be an absolute http(s) url")
)

type Config struct {
	Token             string
	LocalDir          string
	RemoteDir         string
	LogDir            string
	Interval          time.Duration
	APIURL            string
	IgnoreFile        string
	MaxDeletePasses   int
	DeletePermanently bool
	Once              bool
	Path              string
}

// Validate fills defaults, resolves paths to absolute ones and rejects
// settings the mirror cannot run with.
func (c *Config) Validate() error {
	if c.Token == "" {
		return ErrNoToken
	}

	if c.LocalDir == "" {
		return ErrNoLocalDir
	}
	localDir, err := utils.ResolvePath(c.LocalDir)
	if err != nil {
		return fmt.Errorf("local dir: %w", err)
	}
	if !utils.DirExists(localDir) {
		return fmt.Errorf("%w: %s", ErrLocalDirMissing, localDir)
	}
	c.LocalDir = localDir

	if c.RemoteDir == "" {
		c.RemoteDir = filepath.Base(localDir)
	}
	c.RemoteDir = strings.Trim(strings.TrimPrefix(c.RemoteDir, "disk:"), "/")
	if err := validateRemoteDir(c.RemoteDir); err != nil {
		return err
	}

	if c.LogDir == "" {
		c.LogDir = DefaultLogDir
	}
	logDir, err := utils.ResolvePath(c.LogDir)
	if err != nil {
		return fmt.Errorf("log dir: %w", err)
	}
	c.LogDir = logDir

	if c.IgnoreFile != "" {
		ignoreFile, err := utils.ResolvePath(c.IgnoreFile)
		if err != nil {
			return fmt.Errorf("ignore file: %w", err)
		}
		c.IgnoreFile = ignoreFile
	}

	// an absent or broken interval falls back to the default instead of failing
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}

	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	if err := validateURL(c.APIURL); err != nil {
		return err
	}

	if c.MaxDeletePasses < 0 {
		return fmt.Errorf("max delete passes must not be negative: %d", c.MaxDeletePasses)
	}
	if c.MaxDeletePasses == 0 {
		c.MaxDeletePasses = DefaultMaxDeletePasses
	}

	return nil
}

func validateRemoteDir(dir string) error {
	if dir == "" || dir == "." || dir == ".." || strings.ContainsAny(dir, `/\`) {
		return fmt.Errorf("%w: %q", ErrBadRemoteDir, dir)
	}
	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBadAPIURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrBadAPIURL, raw)
	}
	return nil
}

// LockFile is where the single-instance lock lives.
func (c *Config) LockFile() string {
	return filepath.Join(c.LogDir, "diskmirror.lock")
}
