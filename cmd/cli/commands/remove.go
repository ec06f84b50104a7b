package commands

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/dreamtools/dream-background-remover/internal/model"
)

var (
	removeMode   string
	removeModel  string
	removeAPIKey string
	removeWatch  bool
)

func init() {
	removeCmd.Flags().StringVarP(&removeMode, "mode", "m", "file",
		"Result mode: 'layer' (scaled to source size) or 'file'")
	removeCmd.Flags().StringVar(&removeModel, "model", "",
		"Model key override (851-labs or bria)")
	removeCmd.Flags().StringVar(&removeAPIKey, "api-key", "",
		"Replicate API key override for this job")
	removeCmd.Flags().BoolVarP(&removeWatch, "watch", "w", true,
		"Wait for the job and report the outcome")
}

var removeCmd = &cobra.Command{
	Use:   "remove <image-file>",
	Short: "Remove the background from an image file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read image: %w", err)
		}

		mode := model.ModeCreateFile
		if removeMode == "layer" {
			mode = model.ModeCreateLayer
		} else if removeMode != "file" {
			return fmt.Errorf("invalid mode %q (want 'layer' or 'file')", removeMode)
		}

		req := model.JobStartRequest{
			Target: path,
			Mode:   mode,
			Image:  base64.StdEncoding.EncodeToString(data),
			APIKey: removeAPIKey,
			Model:  removeModel,
		}

		var started model.JobStartResponse
		if err := doJSON(http.MethodPost, "/api/jobs", &req, &started); err != nil {
			return err
		}
		fmt.Printf("Job %s started (%s)\n", started.JobID, started.State)

		if !removeWatch {
			return nil
		}
		return watchJob(started.JobID)
	},
}

// watchJob polls until the job reaches a terminal state.
func watchJob(jobID string) error {
	lastState := model.JobState("")
	for {
		time.Sleep(2 * time.Second)

		var status model.JobStatusResponse
		if err := doJSON(http.MethodGet, "/api/jobs/"+jobID, nil, &status); err != nil {
			return err
		}

		if status.State != lastState {
			fmt.Printf("  %s\n", status.State)
			lastState = status.State
		}

		if !status.State.Terminal() {
			continue
		}

		switch status.State {
		case model.JobStateSucceeded:
			fmt.Printf("Done: %s\n", status.Message)
			return nil
		case model.JobStateCancelled:
			fmt.Println("Cancelled")
			return nil
		default:
			if status.Message != "" {
				return fmt.Errorf("job failed: %s", status.Message)
			}
			return fmt.Errorf("job failed")
		}
	}
}
