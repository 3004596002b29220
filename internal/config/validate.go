package config

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// Validate checks that the configuration is internally consistent. It does not
// require credentials so read-only CLI commands work against a bare config;
// callers that publish or caption should also call ValidatePublishing or
// ValidateCaptioning.
func (c *Config) Validate() error {
	switch c.Database.Backend {
	case "sqlite":
	case "postgres":
		if c.Database.PostgresDSN == "" {
			return fmt.Errorf("database.postgres_dsn is required when backend is postgres (or set DATABASE_URL)")
		}
	default:
		return fmt.Errorf("database.backend: unsupported value %q (want sqlite or postgres)", c.Database.Backend)
	}

	if _, err := language.Parse(c.Captioner.Locale); err != nil {
		return fmt.Errorf("captioner.locale: invalid language tag %q: %w", c.Captioner.Locale, err)
	}

	if c.Convert.MaxWidth <= 0 || c.Convert.MaxHeight <= 0 {
		return fmt.Errorf("convert.max_width and convert.max_height must be positive")
	}
	if c.Convert.Quality < 1 || c.Convert.Quality > 100 {
		return fmt.Errorf("convert.quality must be between 1 and 100")
	}

	if c.Workflow.BatchSize <= 0 {
		return fmt.Errorf("workflow.batch_size must be positive")
	}
	if c.Workflow.AssetWorkers <= 0 {
		return fmt.Errorf("workflow.asset_workers must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return fmt.Errorf("workflow.heartbeat_timeout must exceed workflow.heartbeat_interval")
	}
	return nil
}

// ValidatePublishing checks the settings required by the imaging stage.
func (c *Config) ValidatePublishing() error {
	var missing []string
	if c.Blob.Bucket == "" {
		missing = append(missing, "blob.bucket")
	}
	if c.Blob.PublicBaseURL == "" {
		missing = append(missing, "blob.public_base_url")
	}
	if c.Blob.AccessKeyID == "" {
		missing = append(missing, "blob.access_key_id")
	}
	if c.Blob.SecretAccessKey == "" {
		missing = append(missing, "blob.secret_access_key")
	}
	if c.Dataset.Enabled {
		if c.Dataset.Repo == "" {
			missing = append(missing, "dataset.repo")
		}
		if c.Dataset.Token == "" {
			missing = append(missing, "dataset.token")
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("publishing configuration incomplete: %s", strings.Join(missing, ", "))
	}
	return nil
}

// ValidateCaptioning checks the settings required by the captioning stage.
func (c *Config) ValidateCaptioning() error {
	if c.Captioner.APIKey == "" {
		return fmt.Errorf("captioner.api_key is required (or set CAPTIONER_API_KEY)")
	}
	return nil
}
