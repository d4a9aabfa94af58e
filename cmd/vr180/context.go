package main

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"vr180/internal/config"
	"vr180/internal/ipc"
)

type commandContext struct {
	configFlag *string
	apiFlag    *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, apiFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		apiFlag:    apiFlag,
	}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// baseURL resolves the daemon address from --api or paths.api_bind.
func (c *commandContext) baseURL() (string, error) {
	if c.apiFlag != nil {
		if flag := strings.TrimSpace(*c.apiFlag); flag != "" {
			return ipc.BaseURL(flag), nil
		}
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(cfg.Paths.APIBind) == "" {
		return "", errors.New("daemon API disabled: set paths.api_bind or pass --api")
	}
	return ipc.BaseURL(cfg.Paths.APIBind), nil
}

func (c *commandContext) client() (*ipc.Client, error) {
	url, err := c.baseURL()
	if err != nil {
		return nil, err
	}
	return ipc.New(url), nil
}

// withClient runs fn with a daemon client and rewrites connection failures
// into a hint.
func (c *commandContext) withClient(fn func(*ipc.Client) error) error {
	client, err := c.client()
	if err != nil {
		return err
	}
	if err := fn(client); err != nil {
		return wrapClientError(err)
	}
	return nil
}

func wrapClientError(err error) error {
	if errors.Is(err, ipc.ErrDaemonUnavailable) {
		return fmt.Errorf("connect to daemon: %w; start the daemon with `vr180 start`", err)
	}
	return err
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
