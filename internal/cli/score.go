package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"setlist-quiz-service/internal/config"
	"setlist-quiz-service/internal/domain"
)

// NewScoreCmd runs the batch scorer for one show from the command line.
func NewScoreCmd(configPath *string) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "score <slug>",
		Short: "Score every unscored submission of a show",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			svc, err := buildServices(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			report, err := svc.quizzes.ComputeScores(cmd.Context(), args[0], force)
			var windowErr *domain.ScoringWindowError
			if errors.As(err, &windowErr) {
				return fmt.Errorf("%w; rerun with --force to score now", err)
			}
			if err != nil {
				if report.Scored > 0 {
					fmt.Fprintf(cmd.ErrOrStderr(), "scored %d submissions before failing\n", report.Scored)
				}
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "ignore the scoring-enabled flag and the scoring window")
	return cmd
}

