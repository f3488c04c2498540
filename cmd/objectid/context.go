package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/Goosie/nostr-object-identity/internal/config"
	"github.com/Goosie/nostr-object-identity/internal/identity"
	"github.com/Goosie/nostr-object-identity/internal/logging"
	"github.com/Goosie/nostr-object-identity/internal/registry"
)

type commandContext struct {
	configFlag *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
}

func newCommandContext(configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

func (c *commandContext) log() *slog.Logger {
	c.loggerOnce.Do(func() {
		logger, err := logging.NewFromConfig(c.config)
		if err != nil {
			fmt.Fprintf(os.Stderr, "logging disabled: %v\n", err)
			logger = logging.NewNop()
		}
		c.logger = logger
	})
	return c.logger
}

// withService builds the identity service for one command. When
// withRegistry is set the registry is opened for the duration of fn.
func (c *commandContext) withService(withRegistry bool, fn func(*identity.Service) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	var store *registry.Store
	if withRegistry {
		store, err = registry.Open(cfg)
		if err != nil {
			return fmt.Errorf("open registry: %w", err)
		}
		defer store.Close()
	}
	return fn(identity.New(cfg, store, c.log()))
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

// readImage loads an image argument. "-" reads standard input.
func readImage(cmd *cobra.Command, arg string) ([]byte, error) {
	arg = strings.TrimSpace(arg)
	if arg == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	path, err := config.ExpandPath(arg)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image %q: %w", path, err)
	}
	return data, nil
}
