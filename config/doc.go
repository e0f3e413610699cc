// Package config loads funnel configuration from files and the environment.
//
// It uses Viper to read a YAML file (funnel.yml or config.yml, searched in
// the usual locations) and then overlays environment variables, optionally
// loaded from a .env file. Every variable is bound under several nested key
// spellings, so FUNNEL_WORKERS reaches the funnel.workers key.
//
// # Usage
//
//	type Config struct {
//	    config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
//	    Funnel funnel.Config `yaml:"funnel" mapstructure:"funnel"`
//	}
//
//	var cfg Config
//	err := config.LoadConfig("funnel", &cfg)
package config
