package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/vpsctl/internal/domain/config"
)

var planCmd = &cobra.Command{
	Use:   "plan host|cluster",
	Short: "Show which steps a playbook would apply",
	Long: `Plan evaluates every step's precondition without changing anything.

Without a terminal the answers file and VPSCTL_* variables are used as-is.
Probes that need root report "unknown" when run as another user.`,
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{string(config.RunHost), string(config.RunCluster)},
	RunE:      runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	kind := config.RunKind(args[0])
	ctx := cmd.Context()

	var answers config.Answers
	var err error
	if isInteractive() {
		answers, err = gatherAnswers(ctx, kind)
	} else {
		answers, err = loadAnswers(answersFile, os.LookupEnv)
		if err == nil && kind == config.RunCluster && answers.DBPassword == "" {
			// Plans never create the role; any valid password will do.
			answers.DBPassword, err = config.GeneratePassword(24)
		}
	}
	if err != nil {
		return err
	}

	plan, err := newRunner(newLogger(os.Stderr)).Plan(ctx, kind, answers)
	if err != nil {
		return fmt.Errorf("plan failed: %w", err)
	}
	printPlan(cmd.OutOrStdout(), kind, plan, verbose)
	return nil
}
