package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/emberline/ember/internal/daemon"
)

func init() {
	episodesCmd.Flags().IntVar(&episodesLimit, "limit", 20, "Maximum rows to show")
	rootCmd.AddCommand(episodesCmd)
}

var episodesLimit int

var episodesCmd = &cobra.Command{
	Use:   "episodes",
	Short: "Show recent abort episodes",
	RunE:  runEpisodes,
}

func runEpisodes(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	episodes, err := d.DB.ListEpisodes(episodesLimit)
	if err != nil {
		return err
	}

	if len(episodes) == 0 {
		fmt.Println("No abort episodes recorded. Good.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tTASK\tREASON\tTRIGGER\tPEAK\tELAPSED\tALERTS")
	for _, ep := range episodes {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.1f\t%.1f\t%.0fs\t%d\n",
			ep.CreatedAt.Format("2006-01-02 15:04"),
			ep.TaskID, ep.Reason, ep.TempAtTrigger, ep.PeakTemp,
			ep.Elapsed, ep.AlertCount)
	}
	return w.Flush()
}
