package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/HerbigniauxBenoit/spsync/internal/utils"
)

// Config holds application configuration. Everything is sourced from the
// environment so the binary runs unchanged as a CLI, a container, or a
// scheduled job.
type Config struct {
	// SiteURL is the full SharePoint site URL, e.g.
	// https://contoso.sharepoint.com/sites/Engineering
	SiteURL string

	// DriveName is the document library to sync from
	DriveName string

	// FolderPath is the folder inside the drive to sync, "/" for the root
	FolderPath string

	// StorageAccount is the Azure storage account receiving artifacts
	StorageAccount string

	// Container is the blob container name
	Container string

	// BlobPrefix is an optional key prefix inside the container
	BlobPrefix string

	// LocalStorePath switches the artifact store to a local SQLite file
	// rooted at this directory, bypassing blob storage entirely
	LocalStorePath string

	// TenantID, ClientID and ClientSecret select client-credential auth.
	// When tenant/client are unset the default Azure credential chain is
	// used instead.
	TenantID     string
	ClientID     string
	ClientSecret string

	// DeleteOrphans enables removal of artifacts no longer present remotely
	DeleteOrphans bool

	// DryRun logs mutations instead of applying them
	DryRun bool

	// ForceFullSync ignores any persisted delta token for this run
	ForceFullSync bool

	// SyncPermissions enables permission fetch and ACL metadata propagation
	SyncPermissions bool

	// Concurrency is the number of parallel item workers
	Concurrency int

	// Schedule is an optional cron expression for serve mode
	Schedule string

	// HTTPAddr is the listen address for the trigger endpoint
	HTTPAddr string

	// MaxRetries is the maximum number of retries for Graph API calls
	MaxRetries int

	// RetryBaseDelay is the base delay for exponential backoff in milliseconds
	RetryBaseDelay int

	// RequestTimeout is the per-request timeout in seconds
	RequestTimeout int

	// LogLevel sets the logging verbosity (debug, info, warn, error)
	LogLevel string

	// LogFile mirrors log output to a file when set
	LogFile string
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		DriveName:       "Documents",
		FolderPath:      "/",
		Container:       "sharepoint-sync",
		SyncPermissions: true,
		Concurrency:     utils.DefaultConcurrency,
		HTTPAddr:        ":8080",
		MaxRetries:      utils.DefaultMaxRetries,
		RetryBaseDelay:  utils.DefaultRetryDelayMs,
		RequestTimeout:  utils.DefaultRequestTimeoutSeconds,
		LogLevel:        "info",
	}
}

// Load builds the configuration from defaults overlaid with environment
// variables, then validates it. Any problem is reported as a configuration
// error so callers exit before touching the remote.
func Load() (*Config, error) {
	cfg := DefaultConfig()
	if problems := cfg.loadFromEnv(); len(problems) > 0 {
		return nil, utils.NewAppError(utils.ErrCodeConfigInvalid,
			"invalid configuration: "+strings.Join(problems, "; "), nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromEnv overlays environment variables onto the config. Parse failures
// are collected rather than silently ignored.
func (c *Config) loadFromEnv() []string {
	var problems []string

	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			b, err := ParseBool(v)
			if err != nil {
				problems = append(problems, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = b
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				problems = append(problems, fmt.Sprintf("%s: invalid integer %q", key, v))
				return
			}
			*dst = n
		}
	}

	setString("SHAREPOINT_SITE_URL", &c.SiteURL)
	setString("SHAREPOINT_DRIVE_NAME", &c.DriveName)
	setString("SHAREPOINT_FOLDER_PATH", &c.FolderPath)

	setString("AZURE_STORAGE_ACCOUNT_NAME", &c.StorageAccount)
	setString("AZURE_BLOB_CONTAINER_NAME", &c.Container)
	setString("AZURE_BLOB_PREFIX", &c.BlobPrefix)
	setString("LOCAL_STORE_PATH", &c.LocalStorePath)

	setString("AZURE_TENANT_ID", &c.TenantID)
	setString("AZURE_CLIENT_ID", &c.ClientID)
	setString("AZURE_CLIENT_SECRET", &c.ClientSecret)

	setBool("DELETE_ORPHANED_BLOBS", &c.DeleteOrphans)
	setBool("DRY_RUN", &c.DryRun)
	setBool("FORCE_FULL_SYNC", &c.ForceFullSync)
	setBool("SYNC_PERMISSIONS", &c.SyncPermissions)

	setInt("SYNC_CONCURRENCY", &c.Concurrency)
	setString("SYNC_SCHEDULE", &c.Schedule)
	setString("HTTP_ADDR", &c.HTTPAddr)

	setInt("GRAPH_MAX_RETRIES", &c.MaxRetries)
	setInt("GRAPH_RETRY_BASE_MS", &c.RetryBaseDelay)
	setInt("GRAPH_TIMEOUT_SECONDS", &c.RequestTimeout)

	setString("LOG_LEVEL", &c.LogLevel)
	setString("LOG_FILE", &c.LogFile)

	return problems
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var problems []string

	if c.SiteURL == "" {
		problems = append(problems, "SHAREPOINT_SITE_URL is required")
	} else if _, _, err := c.SiteHostAndPath(); err != nil {
		problems = append(problems, fmt.Sprintf("SHAREPOINT_SITE_URL: %v", err))
	}

	if c.DriveName == "" {
		problems = append(problems, "SHAREPOINT_DRIVE_NAME must not be empty")
	}

	if c.LocalStorePath == "" && c.StorageAccount == "" {
		problems = append(problems, "AZURE_STORAGE_ACCOUNT_NAME is required unless LOCAL_STORE_PATH is set")
	}
	if c.Container == "" {
		problems = append(problems, "AZURE_BLOB_CONTAINER_NAME must not be empty")
	}

	if (c.TenantID == "") != (c.ClientID == "") {
		problems = append(problems, "AZURE_TENANT_ID and AZURE_CLIENT_ID must be set together")
	}

	if c.Concurrency < 1 {
		problems = append(problems, fmt.Sprintf("SYNC_CONCURRENCY must be at least 1, got: %d", c.Concurrency))
	}
	if c.MaxRetries < 0 || c.MaxRetries > 10 {
		problems = append(problems, fmt.Sprintf("GRAPH_MAX_RETRIES must be between 0 and 10, got: %d", c.MaxRetries))
	}
	if c.RetryBaseDelay < 100 || c.RetryBaseDelay > 60000 {
		problems = append(problems, fmt.Sprintf("GRAPH_RETRY_BASE_MS must be between 100 and 60000, got: %d", c.RetryBaseDelay))
	}
	if c.RequestTimeout < 1 || c.RequestTimeout > 3600 {
		problems = append(problems, fmt.Sprintf("GRAPH_TIMEOUT_SECONDS must be between 1 and 3600, got: %d", c.RequestTimeout))
	}

	validLogLevels := []string{"debug", "info", "warn", "warning", "error"}
	isValid := false
	for _, level := range validLogLevels {
		if strings.ToLower(c.LogLevel) == level {
			isValid = true
			break
		}
	}
	if !isValid {
		problems = append(problems, fmt.Sprintf("LOG_LEVEL: invalid level %q (must be one of: %s)",
			c.LogLevel, strings.Join(validLogLevels, ", ")))
	}

	if len(problems) > 0 {
		return utils.NewAppError(utils.ErrCodeConfigInvalid,
			"invalid configuration: "+strings.Join(problems, "; "), nil)
	}
	return nil
}

// SiteHostAndPath splits the site URL into the hostname and server-relative
// site path used by the Graph sites endpoint, e.g.
// ("contoso.sharepoint.com", "/sites/Engineering").
func (c *Config) SiteHostAndPath() (string, string, error) {
	u, err := url.Parse(c.SiteURL)
	if err != nil {
		return "", "", fmt.Errorf("not a valid URL: %w", err)
	}
	if u.Scheme != "https" {
		return "", "", fmt.Errorf("must be an https URL, got scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("missing hostname")
	}
	return u.Host, strings.TrimSuffix(u.Path, "/"), nil
}

// NormalizedFolderPath returns the sync root relative to the drive root,
// without surrounding slashes. Empty string means the drive root itself.
func (c *Config) NormalizedFolderPath() string {
	return strings.Trim(strings.TrimSpace(c.FolderPath), "/")
}

// UseLocalStore reports whether artifacts go to local SQLite instead of blobs.
func (c *Config) UseLocalStore() bool {
	return c.LocalStorePath != ""
}

// UseClientSecretAuth reports whether client-credential auth is configured.
// The secret itself may still come from the OS keyring at connect time.
func (c *Config) UseClientSecretAuth() bool {
	return c.TenantID != "" && c.ClientID != ""
}

// GetRequestTimeout returns the request timeout as a duration
func (c *Config) GetRequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// ParseBool parses an operator-supplied boolean. Unlike strconv.ParseBool it
// accepts the yes/no and on/off spellings, and unlike a permissive parser it
// rejects anything else instead of defaulting.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean value %q", s)
}
