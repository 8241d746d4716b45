package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeStorage(); err != nil {
		return err
	}
	c.normalizeTools()
	c.normalizeNotifications()
	c.normalizeGateway()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DownloadDir) == "" {
		c.Paths.DownloadDir = defaultDownloadDir
	}
	if c.Paths.DownloadDir, err = expandPath(c.Paths.DownloadDir); err != nil {
		return fmt.Errorf("paths.download_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StemsDir) == "" {
		c.Paths.StemsDir = defaultStemsDir
	}
	if c.Paths.StemsDir, err = expandPath(c.Paths.StemsDir); err != nil {
		return fmt.Errorf("paths.stems_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ExportDir) == "" {
		c.Paths.ExportDir = defaultExportDir
	}
	if c.Paths.ExportDir, err = expandPath(c.Paths.ExportDir); err != nil {
		return fmt.Errorf("paths.export_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeStorage() error {
	var err error
	if strings.TrimSpace(c.Storage.BucketDir) == "" {
		c.Storage.BucketDir = defaultBucketDir
	}
	if c.Storage.BucketDir, err = expandPath(c.Storage.BucketDir); err != nil {
		return fmt.Errorf("storage.bucket_dir: %w", err)
	}
	if c.Storage.SigningSecret == "" {
		if value, ok := os.LookupEnv("STEMSENSE_SIGNING_SECRET"); ok {
			c.Storage.SigningSecret = value
		}
	}
	c.Storage.BaseURL = strings.TrimRight(strings.TrimSpace(c.Storage.BaseURL), "/")
	if c.Storage.BaseURL == "" {
		c.Storage.BaseURL = "http://" + c.Paths.APIBind
	}
	if c.Storage.URLTTLMinutes <= 0 {
		c.Storage.URLTTLMinutes = defaultURLTTLMinutes
	}
	return nil
}

func (c *Config) normalizeTools() {
	if strings.TrimSpace(c.Tools.YtDlpBinary) == "" {
		c.Tools.YtDlpBinary = defaultYtDlpBinary
	}
	if strings.TrimSpace(c.Tools.DemucsBinary) == "" {
		c.Tools.DemucsBinary = defaultDemucsBinary
	}
	if strings.TrimSpace(c.Tools.DemucsModel) == "" {
		c.Tools.DemucsModel = defaultDemucsModel
	}
	c.Tools.DemucsDevice = strings.TrimSpace(c.Tools.DemucsDevice)
	c.Tools.AnalyzerBinary = strings.TrimSpace(c.Tools.AnalyzerBinary)
	if c.Tools.DownloadRetries < 0 {
		c.Tools.DownloadRetries = 0
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeGateway() {
	c.Gateway.FrontendOrigin = strings.TrimRight(strings.TrimSpace(c.Gateway.FrontendOrigin), "/")
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
