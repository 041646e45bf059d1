package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v3"

	"github.com/tuumday/hotdeal-console/internal/app"
)

// envPrefix is stripped from environment variables during config loading (e.g., HOTDEAL_API__ORIGIN → api.origin)
const envPrefix = "HOTDEAL_"

// loadConfig loads application configuration from various sources with precedence:
// defaults → config file → .env file → environment variables → CLI flags
func loadConfig(configPath, envFile string, cmd *cli.Command, environFunc func() []string) (*app.Config, error) {
	k := koanf.New(".")

	// 0. Defaults whose zero value is meaningful
	defaults := map[string]any{"log_level": app.DefaultConfigLogLevel.String()}
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	// 1. Load from config file if provided
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	// 2. Load from .env file if present
	if envFile != "" {
		dotenv, err := godotenv.Read(envFile)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("loading env file: %w", err)
		default:
			values := make(map[string]any)
			for key, value := range dotenv {
				if nested, ok := envKey(key); ok {
					values[nested] = value
				}
			}
			if err := k.Load(confmap.Provider(values, "."), nil); err != nil {
				return nil, fmt.Errorf("loading env file: %w", err)
			}
		}
	}

	// 3. Load from environment variables
	envProvider := env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			nested, _ := envKey(key)
			return nested, value
		},
		EnvironFunc: environFunc,
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	// 4. Load from CLI flags if provided
	if cmd != nil {
		flagValues := extractAndTransformFlags(cmd)
		if err := k.Load(confmap.Provider(flagValues, "."), nil); err != nil {
			return nil, fmt.Errorf("loading CLI flags: %w", err)
		}
	}

	config := &app.Config{}
	if err := k.UnmarshalWithConf("", config, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := config.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("applying defaults: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// envKey maps HOTDEAL_STORAGE__REDIS__ADDR to storage.redis.addr.
func envKey(key string) (string, bool) {
	stripped, ok := strings.CutPrefix(key, envPrefix)
	if !ok {
		return "", false
	}
	return strings.ToLower(strings.ReplaceAll(stripped, "__", ".")), true
}

// configFlags lists the flags that map onto config keys. Other flags only steer the command.
var configFlags = map[string]bool{
	"log-level":           true,
	"log-format":          true,
	"telemetry--exporter": true,
	"api--origin":         true,
	"api--base-url":       true,
	"api--timeout":        true,
	"storage--durable":    true,
	"storage--session":    true,
}

// extractAndTransformFlags transforms CLI flag names to match config structure.
// Includes parent flags. Examples: --api--origin → api.origin, --log-level → log_level
func extractAndTransformFlags(cmd *cli.Command) map[string]any {
	values := make(map[string]any)

	// FlagNames() includes flags from parent commands (via lineage)
	for _, name := range cmd.FlagNames() {
		if !configFlags[name] {
			continue
		}
		// Skip unset flags to preserve precedence from earlier config sources
		if !cmd.IsSet(name) {
			continue
		}

		if value := cmd.Value(name); value != nil {
			key := strings.ReplaceAll(name, "--", ".")
			key = strings.ReplaceAll(key, "-", "_")
			values[key] = value
		}
	}

	return values
}
