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
	if err := c.normalizeDatabase(); err != nil {
		return err
	}
	c.normalizeBlob()
	c.normalizeDataset()
	c.normalizeCaptioner()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ImportDir) != "" {
		if c.Paths.ImportDir, err = expandPath(c.Paths.ImportDir); err != nil {
			return fmt.Errorf("paths.import_dir: %w", err)
		}
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeDatabase() error {
	c.Database.Backend = strings.ToLower(strings.TrimSpace(c.Database.Backend))
	if c.Database.Backend == "" {
		c.Database.Backend = defaultDatabaseBackend
	}
	if strings.TrimSpace(c.Database.SQLitePath) != "" {
		expanded, err := expandPath(c.Database.SQLitePath)
		if err != nil {
			return fmt.Errorf("database.sqlite_path: %w", err)
		}
		c.Database.SQLitePath = expanded
	}
	c.Database.PostgresDSN = strings.TrimSpace(c.Database.PostgresDSN)
	if c.Database.PostgresDSN == "" {
		c.Database.PostgresDSN = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	}
	c.Database.SyncDSN = strings.TrimSpace(c.Database.SyncDSN)
	if c.Database.SyncDSN == "" {
		c.Database.SyncDSN = strings.TrimSpace(os.Getenv("SYNC_DATABASE_URL"))
	}
	return nil
}

func (c *Config) normalizeBlob() {
	c.Blob.Endpoint = strings.TrimSpace(c.Blob.Endpoint)
	if c.Blob.Endpoint == "" {
		c.Blob.Endpoint = strings.TrimSpace(os.Getenv("BLOB_ENDPOINT"))
	}
	c.Blob.Region = strings.TrimSpace(c.Blob.Region)
	c.Blob.Bucket = strings.TrimSpace(c.Blob.Bucket)
	if c.Blob.Bucket == "" {
		c.Blob.Bucket = strings.TrimSpace(os.Getenv("BLOB_BUCKET"))
	}
	c.Blob.AccessKeyID = strings.TrimSpace(c.Blob.AccessKeyID)
	if c.Blob.AccessKeyID == "" {
		c.Blob.AccessKeyID = strings.TrimSpace(os.Getenv("BLOB_ACCESS_KEY_ID"))
	}
	c.Blob.SecretAccessKey = strings.TrimSpace(c.Blob.SecretAccessKey)
	if c.Blob.SecretAccessKey == "" {
		c.Blob.SecretAccessKey = strings.TrimSpace(os.Getenv("BLOB_SECRET_ACCESS_KEY"))
	}
	c.Blob.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.Blob.PublicBaseURL), "/")
	if c.Blob.PublicBaseURL == "" {
		c.Blob.PublicBaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("BLOB_PUBLIC_URL")), "/")
	}
	if c.Blob.TimeoutSeconds <= 0 {
		c.Blob.TimeoutSeconds = defaultBlobTimeout
	}
}

func (c *Config) normalizeDataset() {
	c.Dataset.Endpoint = strings.TrimRight(strings.TrimSpace(c.Dataset.Endpoint), "/")
	if c.Dataset.Endpoint == "" {
		c.Dataset.Endpoint = defaultDatasetEndpoint
	}
	c.Dataset.Repo = strings.TrimSpace(c.Dataset.Repo)
	c.Dataset.Branch = strings.TrimSpace(c.Dataset.Branch)
	if c.Dataset.Branch == "" {
		c.Dataset.Branch = defaultDatasetBranch
	}
	c.Dataset.Token = strings.TrimSpace(c.Dataset.Token)
	if c.Dataset.Token == "" {
		if value, ok := os.LookupEnv("HUGGING_FACE_HUB_TOKEN"); ok {
			c.Dataset.Token = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("HF_TOKEN"); ok {
			c.Dataset.Token = strings.TrimSpace(value)
		}
	}
	if c.Dataset.TimeoutSeconds <= 0 {
		c.Dataset.TimeoutSeconds = defaultDatasetTimeout
	}
}

func (c *Config) normalizeCaptioner() {
	c.Captioner.APIKey = strings.TrimSpace(c.Captioner.APIKey)
	if c.Captioner.APIKey == "" {
		if value, ok := os.LookupEnv("CAPTIONER_API_KEY"); ok {
			c.Captioner.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("HF_TOKEN"); ok {
			c.Captioner.APIKey = strings.TrimSpace(value)
		}
	}
	c.Captioner.BaseURL = strings.TrimSpace(c.Captioner.BaseURL)
	if c.Captioner.BaseURL == "" {
		c.Captioner.BaseURL = defaultCaptionerBaseURL
	}
	c.Captioner.Model = strings.TrimSpace(c.Captioner.Model)
	if c.Captioner.Model == "" {
		c.Captioner.Model = defaultCaptionerModel
	}
	c.Captioner.Locale = strings.TrimSpace(c.Captioner.Locale)
	if c.Captioner.Locale == "" {
		c.Captioner.Locale = defaultCaptionerLocale
	}
	if c.Captioner.TimeoutSeconds <= 0 {
		c.Captioner.TimeoutSeconds = defaultCaptionerTimeout
	}
	if c.Captioner.MaxRetries <= 0 {
		c.Captioner.MaxRetries = defaultCaptionerRetries
	}
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
