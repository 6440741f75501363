package commands

import (
	"fmt"
	"os"
	"sort"

	"slotwatch/lib/scrapers/examportal"
	"slotwatch/lib/telemetry"
	"slotwatch/lib/util/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(checkCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Performs a single fetch and prints the detected statuses.",
	Run: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(*verbose)
		ctx := serviceutil.SignalContext()

		cfg, err := readConfig()
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}

		client, err := examportal.NewClient(ctx, examportal.ClientOptions{
			EntryUrl: cfg.Portal.EntryUrl,
			Username: cfg.Portal.Username,
			Password: cfg.Portal.Password,
			Region:   cfg.Portal.Region,
		})
		if err != nil {
			serviceutil.Fatal("failed to create portal client", err)
		}

		markup, err := client.Fetch(ctx)
		if err != nil {
			serviceutil.Fatal("failed to fetch the portal", err)
		}
		snapshot := examportal.Analyze(markup, cfg.Portal.Categories)

		categories := make([]string, 0, len(snapshot))
		for category := range snapshot {
			categories = append(categories, category)
		}
		sort.Strings(categories)

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Category", "Status"})
		for _, category := range categories {
			t.AppendRow(table.Row{category, snapshot[category].String()})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()

		fmt.Println("target page:", client.TargetPage())
	},
}
