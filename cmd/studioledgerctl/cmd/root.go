package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/studioledger/internal/audit"
	"github.com/smallbiznis/studioledger/internal/booking"
	"github.com/smallbiznis/studioledger/internal/campaign"
	"github.com/smallbiznis/studioledger/internal/clock"
	"github.com/smallbiznis/studioledger/internal/config"
	"github.com/smallbiznis/studioledger/internal/invoice"
	"github.com/smallbiznis/studioledger/internal/notification"
	"github.com/smallbiznis/studioledger/internal/observability"
	"github.com/smallbiznis/studioledger/internal/providers"
	"github.com/smallbiznis/studioledger/internal/ratelimit"
	"github.com/smallbiznis/studioledger/internal/scheduler"
	"github.com/smallbiznis/studioledger/internal/studio"
	"github.com/smallbiznis/studioledger/internal/studiocontext"
	"github.com/smallbiznis/studioledger/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "studioledgerctl",
	Short: "Operator CLI for studioledger",
	Long: `studioledgerctl runs maintenance tasks against a studioledger database:
schema migrations, the recurring-invoice and payment-reminder sweeps, and
campaign delivery. It reads the same environment as the API server.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().Duration("timeout", 10*time.Minute, "Upper bound for the whole command")
}

// runApp starts the service graph without the HTTP server or the sweep loop,
// fills targets and calls fn.
func runApp(cmd *cobra.Command, fn func(ctx context.Context) error, targets ...any) error {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	app := fx.New(
		fx.NopLogger,
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,
		audit.Module,
		studio.Module,
		booking.Module,
		providers.Module,
		notification.Module,
		invoice.Module,
		campaign.Module,
		ratelimit.Module,
		fx.Provide(scheduler.ProvideConfig, scheduler.New),
		fx.Populate(targets...),
	)
	if err := app.Start(ctx); err != nil {
		return err
	}
	defer func() {
		_ = app.Stop(context.WithoutCancel(ctx))
	}()

	return fn(ctx)
}

// studioContext scopes ctx to the studio named by --studio.
func studioContext(ctx context.Context, cmd *cobra.Command) (context.Context, snowflake.ID, error) {
	raw, _ := cmd.Flags().GetString("studio")
	studioID, err := snowflake.ParseString(raw)
	if err != nil || studioID == 0 {
		return ctx, 0, fmt.Errorf("invalid --studio %q", raw)
	}
	ctx = studiocontext.WithStudioID(ctx, studioID)
	if userID, _ := cmd.Flags().GetString("user"); userID != "" {
		ctx = studiocontext.WithUserID(ctx, userID)
	} else {
		ctx = studiocontext.WithActor(ctx, "system")
	}
	return ctx, studioID, nil
}

func printJSON(cmd *cobra.Command, value any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func registerSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(3)
	if err != nil {
		panic(err)
	}
	return node
}
