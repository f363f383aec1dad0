package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// setDefaults registers the built-in defaults with viper so a missing or
// partial config file still yields a usable configuration.
func setDefaults(v *viper.Viper) {
	v.SetDefault("db_path", "recongraph.db")
	v.SetDefault("cache_dir", ".recongraph-cache")
	v.SetDefault("max_threads", 10)
	v.SetDefault("fetch_timeout", 30)
	v.SetDefault("fetch_rate", 0.0)
	v.SetDefault("user_agent", "recongraph/1.0")
	v.SetDefault("dns_server", "")
	v.SetDefault("internet_tlds", "https://publicsuffix.org/list/effective_tld_names.dat")
	v.SetDefault("internet_tlds_cache", 72)
	v.SetDefault("generic_users",
		"abuse,admin,billing,compliance,devnull,dns,ftp,hostmaster,inoc,ispfeedback,ispsupport,"+
			"list,list-request,maildaemon,marketing,noc,no-reply,noreply,null,peering,peering-notify,"+
			"peering-request,phish,phishing,postmaster,privacy,registrar,registry,root,routing-registry,"+
			"rr,sales,security,spam,support,sysadmin,tech,undisclosed-recipients,unsubscribe,usenet,"+
			"uucp,webmaster,www")
	v.SetDefault("socks_type", "")
	v.SetDefault("socks_addr", "")
	v.SetDefault("socks_port", 0)
	v.SetDefault("debug", false)
	v.SetDefault("fatal_errors", false)
	v.SetDefault("max_cohost", 100)
	v.SetDefault("max_netblock", 24)
	v.SetDefault("max_v6_netblock", 120)
	v.SetDefault("max_handler_errors", 5)
}

// DefaultConfig returns a Config with the built-in default values.
func DefaultConfig() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	// Unmarshalling pure defaults cannot fail.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// WriteDefault writes a default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
