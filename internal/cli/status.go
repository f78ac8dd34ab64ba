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
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show device temperature, thermal zone, and active monitors",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	profile, err := d.DB.GetProfile(d.Config.Node.DeviceID)
	if err != nil {
		profile = domain.GenericProfile()
	}

	temp, err := d.Temps.Read()
	if err != nil {
		fmt.Println("Temperature: unavailable (sensor error)")
	} else {
		fmt.Printf("Temperature: %.1f°C (%s zone)\n", temp, profile.ZoneFor(temp))
	}

	pending, err := d.DB.CountPending("")
	if err == nil {
		fmt.Printf("Queued tasks: %d\n", pending)
	}

	monitored := d.Supervisor.Monitored()
	if len(monitored) == 0 {
		fmt.Println("No tasks under supervision.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TASK\tSTATE\tBASELINE\tPEAK\tALERTS")
	for _, id := range monitored {
		st, err := d.Supervisor.Stats(id)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%.1f\t%.1f\t%d\n",
			st.TaskID, st.State, st.Baseline, st.PeakTemp, st.AlertCount)
	}
	return w.Flush()
}
