package main

import (
	"fmt"
	"strings"
	"sync"

	"feedsift/internal/config"
)

type commandContext struct {
	apiFlag    *string
	configFlag *string
	tokenFlag  *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(apiFlag, configFlag, tokenFlag *string) *commandContext {
	return &commandContext{
		apiFlag:    apiFlag,
		configFlag: configFlag,
		tokenFlag:  tokenFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// client resolves the daemon API endpoint: the --api flag wins, then the
// configured bind address.
func (c *commandContext) client() (*apiClient, error) {
	base := ""
	if c.apiFlag != nil {
		base = strings.TrimSpace(*c.apiFlag)
	}
	token := ""
	if c.tokenFlag != nil {
		token = strings.TrimSpace(*c.tokenFlag)
	}

	if base == "" || token == "" {
		cfg, err := c.ensureConfig()
		if err != nil {
			return nil, err
		}
		if base == "" {
			bind := strings.TrimSpace(cfg.Paths.APIBind)
			if bind == "" {
				return nil, fmt.Errorf("no API endpoint: set paths.api_bind in the config or pass --api")
			}
			base = "http://" + bind
		}
		if token == "" {
			token = strings.TrimSpace(cfg.Paths.APIToken)
		}
	}

	return newAPIClient(base, token), nil
}
