package config

import (
	"sort"
	"time"

	"github.com/dshills/semtok/internal/config/loader"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SEMTOK_"

// envAliases are accepted in addition to the SEMTOK_SECTION_KEY spelling.
var envAliases = map[string]string{
	"SEMTOK_CLANGD": "server.path",
}

type setter func(c *Config, raw string) error

func stringField(get func(*Config) *string) setter {
	return func(c *Config, raw string) error {
		*get(c) = raw
		return nil
	}
}

func listField(get func(*Config) *[]string) setter {
	return func(c *Config, raw string) error {
		v, err := loader.ParseList(raw)
		if err != nil {
			return err
		}
		*get(c) = v
		return nil
	}
}

func intField(get func(*Config) *int) setter {
	return func(c *Config, raw string) error {
		v, err := loader.ParseInt(raw)
		if err != nil {
			return err
		}
		*get(c) = v
		return nil
	}
}

func boolField(get func(*Config) *bool) setter {
	return func(c *Config, raw string) error {
		v, err := loader.ParseBool(raw)
		if err != nil {
			return err
		}
		*get(c) = v
		return nil
	}
}

func durationField(get func(*Config) *Duration) setter {
	return func(c *Config, raw string) error {
		v, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		*get(c) = Duration(v)
		return nil
	}
}

// envSetters maps each overridable config path to its typed setter.
var envSetters = map[string]setter{
	"server.path":   stringField(func(c *Config) *string { return &c.Server.Path }),
	"server.args":   listField(func(c *Config) *[]string { return &c.Server.Args }),
	"server.env":    listField(func(c *Config) *[]string { return &c.Server.Env }),
	"server.stderr": stringField(func(c *Config) *string { return &c.Server.Stderr }),

	"document.uri":         stringField(func(c *Config) *string { return &c.Document.URI }),
	"document.language_id": stringField(func(c *Config) *string { return &c.Document.LanguageID }),
	"document.root_path":   stringField(func(c *Config) *string { return &c.Document.RootPath }),

	"client.name":    stringField(func(c *Config) *string { return &c.Client.Name }),
	"client.version": stringField(func(c *Config) *string { return &c.Client.Version }),
	"client.trace":   stringField(func(c *Config) *string { return &c.Client.Trace }),

	"sync.max_in_flight":    intField(func(c *Config) *int { return &c.Sync.MaxInFlight }),
	"sync.poll_interval":    durationField(func(c *Config) *Duration { return &c.Sync.PollInterval }),
	"sync.tick_interval":    durationField(func(c *Config) *Duration { return &c.Sync.TickInterval }),
	"sync.init_timeout":     durationField(func(c *Config) *Duration { return &c.Sync.InitTimeout }),
	"sync.shutdown_timeout": durationField(func(c *Config) *Duration { return &c.Sync.ShutdownTimeout }),
	"sync.exit_grace":       durationField(func(c *Config) *Duration { return &c.Sync.ExitGrace }),

	"log.level":        stringField(func(c *Config) *string { return &c.Log.Level }),
	"log.format":       stringField(func(c *Config) *string { return &c.Log.Format }),
	"log.output_paths": listField(func(c *Config) *[]string { return &c.Log.OutputPaths }),
	"log.development":  boolField(func(c *Config) *bool { return &c.Log.Development }),

	"metrics.addr":      stringField(func(c *Config) *string { return &c.Metrics.Addr }),
	"metrics.path":      stringField(func(c *Config) *string { return &c.Metrics.Path }),
	"metrics.namespace": stringField(func(c *Config) *string { return &c.Metrics.Namespace }),
}

// ApplyEnv applies overrides keyed by config path. Unknown paths are
// ignored so unrelated SEMTOK_* variables do not break startup.
func (c *Config) ApplyEnv(values map[string]string) error {
	paths := make([]string, 0, len(values))
	for p := range values {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		set, ok := envSetters[p]
		if !ok {
			continue
		}
		if err := set(c, values[p]); err != nil {
			return &EnvError{Path: p, Value: values[p], Err: err}
		}
	}
	return nil
}

// EnvPaths lists every path an environment variable can override.
func EnvPaths() []string {
	paths := make([]string, 0, len(envSetters))
	for p := range envSetters {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func newEnvLoader() *loader.EnvLoader {
	return loader.NewEnvLoaderWithMapping(EnvPrefix, envAliases)
}
