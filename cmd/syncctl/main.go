package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// syncctl drives the server's sync trigger endpoint from the command line.
func main() {
	rootCmd := &cobra.Command{
		Use:   "syncctl",
		Short: "Trigger performance syncs against a running server",
	}
	rootCmd.AddCommand(runCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	var addr, token, date, start, end, player string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Sync one day (default today) or a closed date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (start == "") != (end == "") {
				return fmt.Errorf("--start and --end must be given together")
			}

			q := url.Values{}
			if date != "" {
				q.Set("date", date)
			}
			if start != "" {
				q.Set("start", start)
				q.Set("end", end)
			}
			if player != "" {
				q.Set("player_id", player)
			}

			req, err := http.NewRequest(http.MethodPost, addr+"/sync/run?"+q.Encode(), nil)
			if err != nil {
				return err
			}
			if token != "" {
				req.Header.Set("Authorization", "Bearer "+token)
			}

			client := &http.Client{Timeout: 10 * time.Minute}
			resp, err := client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			fmt.Println(string(body))
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("sync failed: %s", resp.Status)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "http://localhost:8080", "Server base URL")
	cmd.Flags().StringVar(&token, "token", os.Getenv("SYNC_TOKEN"), "Bearer token for the trigger endpoint")
	cmd.Flags().StringVar(&date, "date", "", "Single day to sync (YYYY-MM-DD)")
	cmd.Flags().StringVar(&start, "start", "", "Range start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "Range end (YYYY-MM-DD)")
	cmd.Flags().StringVar(&player, "player", "", "Video asset id to pin")

	return cmd
}
