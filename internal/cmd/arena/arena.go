// Package arena parses arena service flags and launches the service.
package arena

import (
	"context"
	"flag"

	entrypoint "github.com/louisbranch/skirmish.space/internal/platform/cmd"
	server "github.com/louisbranch/skirmish.space/internal/services/arena/app"
)

// Config holds arena command configuration.
type Config struct {
	Port int `env:"SKIRMISH_SPACE_ARENA_PORT" envDefault:"8095"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The arena gRPC server port")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the arena gRPC service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceArena, func(context.Context) error {
		return server.Run(ctx, cfg.Port)
	})
}
