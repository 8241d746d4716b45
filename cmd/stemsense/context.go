package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"stemsense/internal/config"
)

type commandContext struct {
	serverFlag *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	client *http.Client
}

func newCommandContext(serverFlag, configFlag *string) *commandContext {
	return &commandContext{
		serverFlag: serverFlag,
		configFlag: configFlag,
		client:     &http.Client{Timeout: 30 * time.Second},
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

// baseURL resolves the daemon address: the --server flag wins, then the
// configured bind address, then the default local port.
func (c *commandContext) baseURL() string {
	if c.serverFlag != nil {
		if server := strings.TrimSpace(*c.serverFlag); server != "" {
			return strings.TrimRight(server, "/")
		}
	}
	if cfg, err := c.ensureConfig(); err == nil && cfg != nil {
		bind := strings.TrimSpace(cfg.Paths.APIBind)
		if bind != "" {
			host, port, found := strings.Cut(bind, ":")
			if found && (host == "" || host == "0.0.0.0" || host == "::") {
				bind = "127.0.0.1:" + port
			}
			return "http://" + bind
		}
	}
	return "http://127.0.0.1:8000"
}

func (c *commandContext) getJSON(path string, out any) error {
	resp, err := c.client.Get(c.baseURL() + path)
	if err != nil {
		return wrapDialError(err, c.baseURL())
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func (c *commandContext) postForm(path string, form url.Values, out any) error {
	resp, err := c.client.PostForm(c.baseURL()+path, form)
	if err != nil {
		return wrapDialError(err, c.baseURL())
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		var payload struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
			return fmt.Errorf("%s", payload.Error)
		}
		return fmt.Errorf("daemon returned %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func wrapDialError(err error, server string) error {
	return fmt.Errorf("connect to daemon at %s: %w (start it with `stemsensed`)", server, err)
}
