package cli

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"quiz-client/internal/auth"
	"quiz-client/internal/config"
	infraredis "quiz-client/internal/infra/redis"
)

var errRedisRequired = errors.New("redis.addr must be configured to manage tokens")

// NewTokenCmd manages stored bearer tokens. Only the Redis store is
// reachable from outside the server process.
func NewTokenCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage stored bearer tokens",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <userID> <token>",
		Short: "Store a bearer token for a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTokenStore(cmd.Context(), *configPath, func(ctx context.Context, store auth.TokenStore) error {
				if err := auth.CheckToken(args[1], time.Now()); err != nil {
					return err
				}
				if err := store.SetToken(ctx, args[0], args[1]); err != nil {
					return err
				}
				cmd.Printf("token stored for %s\n", args[0])
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clear <userID>",
		Short: "Remove a user's bearer token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTokenStore(cmd.Context(), *configPath, func(ctx context.Context, store auth.TokenStore) error {
				if err := store.ClearToken(ctx, args[0]); err != nil {
					return err
				}
				cmd.Printf("token cleared for %s\n", args[0])
				return nil
			})
		},
	})
	return cmd
}

func withTokenStore(ctx context.Context, configPath string, fn func(context.Context, auth.TokenStore) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Redis.Addr == "" {
		return errRedisRequired
	}
	client := newRedisClient(cfg)
	defer client.Close()
	return fn(ctx, infraredis.NewTokenStore(client, config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)))
}
