package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// MaxToleranceSec bounds the nearest-match tolerance (one day).
const MaxToleranceSec = 86400

// Global configuration structure.
type Global struct {
	// Merge defaults
	ToleranceSec       float64 `mapstructure:"tolerance_sec" yaml:"tolerance_sec" validate:"gte=0,lte=86400"`
	TimestampThreshold float64 `mapstructure:"timestamp_threshold" yaml:"timestamp_threshold" validate:"gt=0,lte=1"`
	DefaultTitle       string  `mapstructure:"default_title" yaml:"default_title" validate:"required"`
	Y1Min              float64 `mapstructure:"y1_min" yaml:"y1_min"`
	Y1Max              float64 `mapstructure:"y1_max" yaml:"y1_max" validate:"gtefield=Y1Min"`
	Delimiter          string  `mapstructure:"delimiter" yaml:"delimiter" validate:"delimiter"`
	// PlotlyJSFile, when set, is inlined into the trend viewer so it works offline.
	PlotlyJSFile       string  `mapstructure:"plotly_js_file" yaml:"plotly_js_file"`

	// Exports store
	ExportsDir  string `mapstructure:"exports_dir" yaml:"exports_dir"`
	RecentLimit int    `mapstructure:"recent_limit" yaml:"recent_limit" validate:"gte=1,lte=1000"`

	// HTTP server
	ListenAddr  string `mapstructure:"listen_addr" yaml:"listen_addr" validate:"required"`
	MaxUploadMB int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" validate:"gte=1,lte=1024"`

	// Logging
	LogLevel string `mapstructure:"log_level" yaml:"log_level" validate:"oneof=debug info warn warning error"`
	SeqURL   string `mapstructure:"seq_url" yaml:"seq_url" validate:"omitempty,url"`

	// Publishing: GitHub contents API
	GitHubRepo      string `mapstructure:"github_repo" yaml:"github_repo" validate:"omitempty,contains=/"`
	GitHubBranch    string `mapstructure:"github_branch" yaml:"github_branch"`
	GitHubPath      string `mapstructure:"github_path" yaml:"github_path"`
	GitHubToken     string `mapstructure:"github_token" yaml:"-"`
	StaticSiteBase  string `mapstructure:"static_site_base" yaml:"static_site_base" validate:"omitempty,url"`
	DatedSubfolders bool   `mapstructure:"dated_subfolders" yaml:"dated_subfolders"`

	// Publishing: Google Drive
	GDriveFolderID   string `mapstructure:"gdrive_folder_id" yaml:"gdrive_folder_id"`
	GDriveSAJSONBase string `mapstructure:"gdrive_sa_json_b64" yaml:"-"`

	// Publishing: Google Cloud Storage
	GCSBucket          string `mapstructure:"gcs_bucket" yaml:"gcs_bucket"`
	GCSCredentialsFile string `mapstructure:"gcs_credentials_file" yaml:"gcs_credentials_file"`
	GCSPrefix          string `mapstructure:"gcs_prefix" yaml:"gcs_prefix"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("delimiter", func(fl validator.FieldLevel) bool {
		d := fl.Field().String()
		return d == "" || delimiterRune(d) != 0
	})
}

// Validate checks field ranges and formats.
func (c *Global) Validate() error {
	if err := validate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// DelimiterRune maps the delimiter setting to a rune; 0 means auto-detect.
func (c *Global) DelimiterRune() rune { return delimiterRune(c.Delimiter) }

func delimiterRune(d string) rune {
	switch d {
	case ",":
		return ','
	case ";":
		return ';'
	case "tab", "\t":
		return '\t'
	case "|":
		return '|'
	}
	return 0
}

// Dir returns ~/.trendmerge.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".trendmerge"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.trendmerge/config.yaml, creating the directory if necessary.
// Secrets (tokens, service-account keys) are never written.
func Save(c *Global, cfgFile string) error {
	var path string
	if cfgFile != "" {
		path = cfgFile
	} else {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("TRENDMERGE")
	v.AutomaticEnv()

	v.SetDefault("tolerance_sec", 5)
	v.SetDefault("timestamp_threshold", 0.8)
	v.SetDefault("default_title", "CW Loop")
	v.SetDefault("y1_min", 0)
	v.SetDefault("y1_max", 100)
	v.SetDefault("delimiter", "")
	v.SetDefault("plotly_js_file", "")
	v.SetDefault("exports_dir", "")
	v.SetDefault("recent_limit", 30)
	v.SetDefault("listen_addr", ":5000")
	v.SetDefault("max_upload_mb", 64)
	v.SetDefault("log_level", "info")
	v.SetDefault("seq_url", "")
	v.SetDefault("github_repo", "")
	v.SetDefault("github_branch", "main")
	v.SetDefault("github_path", "")
	v.SetDefault("github_token", "")
	v.SetDefault("static_site_base", "")
	v.SetDefault("dated_subfolders", true)
	v.SetDefault("gdrive_folder_id", "")
	v.SetDefault("gdrive_sa_json_b64", "")
	v.SetDefault("gcs_bucket", "")
	v.SetDefault("gcs_credentials_file", "")
	v.SetDefault("gcs_prefix", "")

	// Deployment environments name these without the prefix.
	_ = v.BindEnv("github_token", "TRENDMERGE_GITHUB_TOKEN", "GH_TOKEN")
	_ = v.BindEnv("gdrive_sa_json_b64", "TRENDMERGE_GDRIVE_SA_JSON_B64", "GDRIVE_SA_JSON_B64")
	_ = v.BindEnv("gdrive_folder_id", "TRENDMERGE_GDRIVE_FOLDER_ID", "GDRIVE_FOLDER_ID")
	_ = v.BindEnv("github_repo", "TRENDMERGE_GITHUB_REPO", "STATIC_REPO")
	_ = v.BindEnv("github_branch", "TRENDMERGE_GITHUB_BRANCH", "STATIC_BRANCH")
	_ = v.BindEnv("static_site_base", "TRENDMERGE_STATIC_SITE_BASE", "STATIC_SITE_BASE")
	return v
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := newViper()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.ExportsDir == "" {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		c.ExportsDir = filepath.Join(dir, "exports")
	}
	return &c, nil
}

// Keys lists every configuration key, sorted.
func Keys() []string {
	keys := newViper().AllKeys()
	sort.Strings(keys)
	return keys
}

// secretKeys are only read from the environment.
var secretKeys = map[string]bool{"github_token": true, "gdrive_sa_json_b64": true}

// Set assigns a single key from its string form, converting it to the
// field's type.
func Set(c *Global, key, value string) error {
	if secretKeys[key] {
		return fmt.Errorf("%s is read from the environment and cannot be saved", key)
	}
	known := false
	for _, k := range Keys() {
		if k == key {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown config key %q", key)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(b)); err != nil {
		return fmt.Errorf("reload config: %w", err)
	}
	v.Set(key, value)
	var out Global
	if err := v.Unmarshal(&out); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	out.GitHubToken = c.GitHubToken
	out.GDriveSAJSONBase = c.GDriveSAJSONBase
	*c = out
	return nil
}
