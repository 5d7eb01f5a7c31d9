package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pomeg-dev/nextpress-go/internal/application/container"
	"github.com/pomeg-dev/nextpress-go/internal/application/services"
	"github.com/pomeg-dev/nextpress-go/internal/domain/entities/content"
	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/security"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	var seed bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the content schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withContainer(cmd, func(ctx context.Context, c *container.Container) error {
				if err := c.Migrate(ctx, seed); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ schema ready on %s\n", c.DB.GetConnectionInfo())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "insert starter content and reading settings")
	return cmd
}

func newResolveCmd() *cobra.Command {
	var (
		includeContent bool
		id             int64
		preview        bool
	)
	cmd := &cobra.Command{
		Use:   "resolve [path]",
		Short: "Resolve a path the way GET /router does and print the payload",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return withContainer(cmd, func(ctx context.Context, c *container.Container) error {
				result, err := c.RouterService.Route(ctx, services.RouteRequest{
					Path:           path,
					IncludeContent: includeContent,
					ExplicitID:     id,
					Preview:        preview,
				})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result.Body())
			})
		},
	}
	cmd.Flags().BoolVar(&includeContent, "include-content", true, "include blocks and templates")
	cmd.Flags().Int64Var(&id, "id", 0, "resolve this content ID instead of the path")
	cmd.Flags().BoolVar(&preview, "preview", false, "bypass the route cache and overlay the latest revision")
	return cmd
}

func newInvalidateCmd() *cobra.Command {
	var (
		kind         string
		previousPath string
	)
	cmd := &cobra.Command{
		Use:   "invalidate <content-id>",
		Short: "Run an invalidation pass for a content item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid content id %q", args[0])
			}
			changeKind, err := content.ParseChangeKind(kind)
			if err != nil {
				return err
			}
			event := content.InvalidationEvent{ContentID: id, Kind: changeKind}
			if cmd.Flags().Changed("previous-path") {
				event.PreviousPath = &previousPath
			}
			return withContainer(cmd, func(ctx context.Context, c *container.Container) error {
				return printJSON(cmd.OutOrStdout(), c.InvalidationService.OnContentMutated(ctx, event))
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", string(content.ChangeUpdated), "change kind (created, updated, trashed, deleted, restored)")
	cmd.Flags().StringVar(&previousPath, "previous-path", "", "route path the content occupied before the change")
	return cmd
}

func newTokenCmd() *cobra.Command {
	var (
		subject   string
		ttl       time.Duration
		newSecret bool
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the hook and cache endpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if newSecret {
				secret, err := security.GenerateSecureKey(32)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), secret)
				return nil
			}

			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			if cfg.HookSecret == "" {
				return fmt.Errorf("HOOK_SECRET is not set")
			}
			token, err := security.GenerateHookToken(cfg.HookSecret, subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "wordpress", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 365*24*time.Hour, "token lifetime")
	cmd.Flags().BoolVar(&newSecret, "new-secret", false, "print a fresh random HOOK_SECRET instead of a token")
	return cmd
}
