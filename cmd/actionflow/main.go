package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "actionflow",
	Short: "Product workflow editor",
	Long: `actionflow edits the workflow of a product stored on an Odoo server.
Concepts:
- Action: one step of the workflow (dpi.workflow.line), with state, priority and an optional order stage.
- Relation: a directed link source -> target stored on the source action (related_line_ids).
- Main action: the first action returned for the product, the entry of the workflow.
- Session: the server, database and uid saved by 'actionflow login' and reused by every other command.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfigFile(viper.GetString("config"))
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("ACTIONFLOW")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "YAML config file")
	flags.String("session-db", defaultSessionDB(), "SQLite session database path")
	flags.String("redis-addr", "", "store the session in Redis at this address instead of SQLite")
	flags.String("session-key", "odoo_auth", "name the session is stored under")
	flags.Int64P("product", "p", 0, "product id whose workflow is edited")
	flags.Duration("timeout", defaultTimeout, "timeout of a single remote call")
	flags.String("log-level", "warn", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")
	flags.StringP("output", "o", "table", "output format (table, json, yaml)")
	for _, name := range []string{"config", "session-db", "redis-addr", "session-key", "product", "timeout", "log-level", "log-format", "output"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(logoutCmd())
	rootCmd.AddCommand(productsCmd())
	rootCmd.AddCommand(stagesCmd())
	rootCmd.AddCommand(graphCmd())
	rootCmd.AddCommand(connectCmd())
	rootCmd.AddCommand(disconnectCmd())
	rootCmd.AddCommand(createCmd())
	rootCmd.AddCommand(updateCmd())
	rootCmd.AddCommand(deleteCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(mcpCmd())
	rootCmd.AddCommand(versionCmd())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
