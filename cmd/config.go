package cmd

import (
	"strings"

	"github.com/hashmap-kz/stressgen/internal/fixture"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "STRESSGEN"

// progress events are logged at info, keep a plain run quiet
const defaultLogLevel = "warn"

const (
	keyConfig    = "config"
	keyDir       = "dir"
	keyFiles     = "files"
	keyItems     = "items"
	keyTaskEvery = "task-every"
	keyPrefix    = "prefix"
	keyLogLevel  = "log-level"
)

// Config is the resolved configuration of a run.
// Precedence: flags, then STRESSGEN_* environment, then the config file, then defaults.
type Config struct {
	Dir      string
	LogLevel string
	Params   fixture.Params
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

func addGenerateFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.String(keyConfig, "", "Path to a YAML config file")
	f.String(keyDir, fixture.DefaultDir, "Directory to write fixtures into (its parent must exist)")
	f.Int(keyFiles, fixture.DefaultFiles, "Number of files to write")
	f.Int(keyItems, fixture.DefaultItems, "Number of list items per file")
	f.Int(keyTaskEvery, fixture.DefaultTaskEvery, "Make every n-th list item a task")
	f.String(keyPrefix, fixture.DefaultPrefix, "File name prefix")
	f.String(keyLogLevel, defaultLogLevel, "Log level: debug, info, warn, error")
}

func loadConfig(v *viper.Viper, cmd *cobra.Command) (*Config, error) {
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, errors.Wrap(err, "bind flags")
	}

	if path := v.GetString(keyConfig); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}

	counts := make(map[string]int, 3)
	for _, key := range []string{keyFiles, keyItems, keyTaskEvery} {
		n, err := cast.ToIntE(v.Get(key))
		if err != nil {
			return nil, errors.Wrapf(err, "%s", key)
		}
		counts[key] = n
	}

	cfg := &Config{
		Dir:      v.GetString(keyDir),
		LogLevel: v.GetString(keyLogLevel),
		Params: fixture.Params{
			Prefix:    v.GetString(keyPrefix),
			Files:     counts[keyFiles],
			Items:     counts[keyItems],
			TaskEvery: counts[keyTaskEvery],
		},
	}
	if cfg.Dir == "" {
		return nil, errors.New("target directory is empty")
	}
	if err := cfg.Params.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
