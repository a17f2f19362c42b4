package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cloudcraver/cloudcraver/internal/config"
	"github.com/cloudcraver/cloudcraver/internal/logging"
)

var (
	// Global flags
	cfgFile   string
	actorFlag string
	verbose   bool

	cfg *config.Config

	// rootCmd represents the base command
	rootCmd = &cobra.Command{
		Use:   "cloudcraver",
		Short: "Cloud Craver - infrastructure change governance",
		Long: `Cloud Craver gates privileged infrastructure operations behind
role-based access control and a change-approval workflow.

Privileged actors request approval for a change, designated approvers
approve or reject it, and every state transition lands in an immutable
audit trail. All state is persisted locally between invocations.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if actorFlag != "" {
				c.Actor = actorFlag
			}
			if verbose {
				c.LogLevel = "debug"
			}
			logging.Configure(c.LogLevel, c.LogFormat)
			cfg = c
			return nil
		},
	}
)

// Execute adds all child commands to the root command and runs it.
func Execute() error { return rootCmd.Execute() }

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&actorFlag, "actor", "", "Acting user id (defaults to CLOUDCRAVER_ACTOR)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
}
