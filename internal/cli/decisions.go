package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/emberline/ember/internal/daemon"
	"github.com/emberline/ember/internal/domain"
)

func init() {
	decisionsCmd.Flags().IntVar(&decisionsLimit, "limit", 20, "Maximum rows to show")
	decisionsCmd.Flags().StringVar(&decisionsTask, "task", "", "Only show decisions for this task")
	rootCmd.AddCommand(decisionsCmd)
}

var (
	decisionsLimit int
	decisionsTask  string
)

var decisionsCmd = &cobra.Command{
	Use:   "decisions",
	Short: "Show the recent dispatch decision log",
	RunE:  runDecisions,
}

func runDecisions(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	var decisions []domain.Decision
	if decisionsTask != "" {
		decisions, err = d.DB.DecisionsForTask(decisionsTask, decisionsLimit)
	} else {
		decisions, err = d.DB.ListDecisions(decisionsLimit)
	}
	if err != nil {
		return err
	}

	if len(decisions) == 0 {
		fmt.Println("No decisions recorded yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tTASK\tVERDICT\tREASON\tRETRY")
	for _, dec := range decisions {
		retry := "-"
		if dec.RetryIn > 0 {
			retry = dec.RetryIn.String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			dec.CreatedAt.Format("2006-01-02 15:04"),
			dec.TaskID, dec.Verdict, dec.Reason, retry)
	}
	return w.Flush()
}
