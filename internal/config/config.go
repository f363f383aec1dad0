// Package config loads the framework configuration and resolves effective
// option maps per collector.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the application configuration.
type Config struct {
	// DBPath is the bbolt database file for scan and event persistence.
	DBPath string `mapstructure:"db_path" yaml:"db_path"`

	// CacheDir is where the response cache persists. Empty disables the
	// on-disk cache (memory only).
	CacheDir string `mapstructure:"cache_dir" yaml:"cache_dir"`

	// MaxThreads bounds the event bus worker pool.
	MaxThreads int `mapstructure:"max_threads" yaml:"max_threads"`

	// FetchTimeout is the default outbound HTTP timeout in seconds.
	FetchTimeout int `mapstructure:"fetch_timeout" yaml:"fetch_timeout"`

	// FetchRate caps outbound HTTP requests per second across all
	// collectors of a scan. Zero disables throttling.
	FetchRate float64 `mapstructure:"fetch_rate" yaml:"fetch_rate"`

	// UserAgent is sent on every HTTP request.
	UserAgent string `mapstructure:"user_agent" yaml:"user_agent"`

	// DNSServer overrides the system resolver when set; host or host:port.
	DNSServer string `mapstructure:"dns_server" yaml:"dns_server"`

	// InternetTLDs is the source of the public-suffix list: a URL or a
	// local file path.
	InternetTLDs string `mapstructure:"internet_tlds" yaml:"internet_tlds"`

	// InternetTLDsCacheHours bounds how long the fetched TLD list is reused.
	InternetTLDsCacheHours int `mapstructure:"internet_tlds_cache" yaml:"internet_tlds_cache"`

	// GenericUsers is a comma-separated list of e-mail local parts treated
	// as generic (abuse, admin, ...). They produce EMAILADDR_GENERIC.
	GenericUsers string `mapstructure:"generic_users" yaml:"generic_users"`

	// Outbound SOCKS proxy settings. Type is "4", "5", "HTTP" or "TOR".
	SocksType     string `mapstructure:"socks_type" yaml:"socks_type"`
	SocksAddr     string `mapstructure:"socks_addr" yaml:"socks_addr"`
	SocksPort     int    `mapstructure:"socks_port" yaml:"socks_port"`
	SocksUser     string `mapstructure:"socks_user" yaml:"socks_user"`
	SocksPassword string `mapstructure:"socks_password" yaml:"socks_password"`
	TorCtlPort    int    `mapstructure:"tor_ctl_port" yaml:"tor_ctl_port"`

	Debug       bool `mapstructure:"debug" yaml:"debug"`
	FatalErrors bool `mapstructure:"fatal_errors" yaml:"fatal_errors"`

	// MaxCohost caps CO_HOSTED_SITE emissions per collector per scan.
	MaxCohost int `mapstructure:"max_cohost" yaml:"max_cohost"`

	// MaxNetblock / MaxV6Netblock are the largest netblocks (smallest
	// prefix numbers) that will still be enumerated address-by-address.
	MaxNetblock   int `mapstructure:"max_netblock" yaml:"max_netblock"`
	MaxV6Netblock int `mapstructure:"max_v6_netblock" yaml:"max_v6_netblock"`

	// MaxHandlerErrors is how many recovered handler failures a single
	// collector may accumulate before being put into error state.
	MaxHandlerErrors int `mapstructure:"max_handler_errors" yaml:"max_handler_errors"`

	// EnabledCollectors selects which registered collectors run. Empty
	// means all.
	EnabledCollectors []string `mapstructure:"enabled_collectors" yaml:"enabled_collectors"`

	// Collectors holds per-collector option overrides keyed by collector id.
	Collectors map[string]map[string]any `mapstructure:"collectors" yaml:"collectors"`
}

// Load reads and parses configuration from a YAML file. If path is empty,
// searches for recongraph.yaml in the current directory, ./configs and
// ~/.config/recongraph/. A missing file yields the built-in defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("recongraph")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")

		homeDir, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(homeDir, ".config", "recongraph"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []error

	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path cannot be empty"))
	}

	if c.MaxThreads <= 0 {
		errs = append(errs, errors.New("max_threads must be positive"))
	}

	if c.FetchTimeout <= 0 {
		errs = append(errs, errors.New("fetch_timeout must be positive"))
	}

	if c.FetchRate < 0 {
		errs = append(errs, errors.New("fetch_rate cannot be negative"))
	}

	if c.MaxNetblock < 0 || c.MaxNetblock > 32 {
		errs = append(errs, errors.New("max_netblock must be between 0 and 32"))
	}

	if c.MaxV6Netblock < 0 || c.MaxV6Netblock > 128 {
		errs = append(errs, errors.New("max_v6_netblock must be between 0 and 128"))
	}

	if c.MaxHandlerErrors <= 0 {
		errs = append(errs, errors.New("max_handler_errors must be positive"))
	}

	switch c.SocksType {
	case "", "4", "5", "HTTP", "TOR":
	default:
		errs = append(errs, fmt.Errorf("invalid socks_type %q", c.SocksType))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// FrameworkOpts returns the framework-level option map that flows into every
// collector. Framework option names start with an underscore to distinguish
// them from collector-local options.
func (c *Config) FrameworkOpts() map[string]any {
	return map[string]any{
		"_fetchtimeout":       c.FetchTimeout,
		"_useragent":          c.UserAgent,
		"_dnsserver":          c.DNSServer,
		"_internettlds":       c.InternetTLDs,
		"_internettlds_cache": c.InternetTLDsCacheHours,
		"_genericusers":       c.GenericUsers,
		"_socks1type":         c.SocksType,
		"_socks2addr":         c.SocksAddr,
		"_socks3port":         c.SocksPort,
		"_socks4user":         c.SocksUser,
		"_socks5pwd":          c.SocksPassword,
		"_torctlport":         c.TorCtlPort,
		"_debug":              c.Debug,
		"_fatalerrors":        c.FatalErrors,
	}
}

// ResolveOptions layers the effective option map for one collector:
// built-in defaults from the collector, then the framework options, then the
// user's per-collector overrides from the config file.
func (c *Config) ResolveOptions(collectorID string, defaults map[string]any) map[string]any {
	out := make(map[string]any, len(defaults))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range c.FrameworkOpts() {
		out[k] = v
	}
	for k, v := range c.Collectors[collectorID] {
		out[k] = v
	}
	return out
}
