package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/xuri/excelize/v2"

	"setlist-quiz-service/internal/config"
	"setlist-quiz-service/internal/domain"
)

const leaderboardSheet = "Leaderboard"

// NewExportCmd writes a show's full leaderboard to an .xlsx file.
func NewExportCmd(configPath *string) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export <slug>",
		Short: "Export a show's scored submissions to Excel",
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

			show, entries, err := svc.quizzes.FullLeaderboard(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if out == "" {
				out = show.Slug + "-leaderboard.xlsx"
			}
			err = writeFile(out, func(w io.Writer) error {
				return writeLeaderboardXLSX(w, show, entries)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s\n", len(entries), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "output file (default <slug>-leaderboard.xlsx)")
	return cmd
}

// writeFile creates path and fills it with write. A failed write or close removes
// the partial file.
func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()
	return write(f)
}

func writeLeaderboardXLSX(w io.Writer, show domain.QuizConfig, entries []domain.LeaderboardEntry) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", leaderboardSheet); err != nil {
		return err
	}
	sw, err := f.NewStreamWriter(leaderboardSheet)
	if err != nil {
		return err
	}

	if err := sw.SetRow("A1", []interface{}{"Rank", "Username", "Score", "Submitted (" + show.Timezone + ")"}); err != nil {
		return err
	}
	for i, e := range entries {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			i + 1,
			sanitizeForExcel(e.Username),
			e.Score,
			e.Timestamp.In(show.Location).Format("2006-01-02 15:04:05"),
		}
		if err := sw.SetRow(cell, row); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}
	return f.Write(w)
}

// sanitizeForExcel keeps usernames from being read as formulas.
func sanitizeForExcel(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + s
	}
	return s
}
