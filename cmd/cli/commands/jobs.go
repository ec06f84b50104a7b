package commands

import (
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dreamtools/dream-background-remover/internal/model"
)

var statusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show the state of a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var status model.JobStatusResponse
		if err := doJSON(http.MethodGet, "/api/jobs/"+args[0], nil, &status); err != nil {
			return err
		}

		fmt.Printf("Job:    %s\n", status.JobID)
		fmt.Printf("Target: %s\n", status.Target)
		fmt.Printf("Mode:   %s\n", status.Mode)
		fmt.Printf("State:  %s\n", status.State)
		if status.Message != "" {
			fmt.Printf("Info:   %s\n", status.Message)
		}
		return nil
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Cancel a running job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp model.JobCancelResponse
		if err := doJSON(http.MethodPost, "/api/jobs/"+args[0]+"/cancel", nil, &resp); err != nil {
			return err
		}
		fmt.Printf("Job %s: %s\n", resp.JobID, resp.State)
		return nil
	},
}

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of entries to show")
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recently finished jobs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var entries []model.HistoryEntry
		path := fmt.Sprintf("/api/jobs/history?limit=%d", historyLimit)
		if err := doJSON(http.MethodGet, path, nil, &entries); err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No finished jobs")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "FINISHED\tSTATE\tMODE\tTARGET\tINFO")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				e.FinishedAt.Local().Format("2006-01-02 15:04"),
				e.State, e.Mode, e.Target, e.Message)
		}
		return w.Flush()
	},
}
