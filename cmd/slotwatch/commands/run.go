package commands

import (
	"context"
	"log/slog"

	"slotwatch/lib/healthcheck"
	"slotwatch/lib/notify"
	"slotwatch/lib/scrapers/examportal"
	"slotwatch/lib/telemetry"
	"slotwatch/lib/util/serviceutil"
	"slotwatch/services/slotmonitor"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Runs the slot monitor until interrupted.",
	Run: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(*verbose)
		ctx := serviceutil.SignalContext()

		tel, err := telemetry.SetupFromEnv(ctx, "slotwatch")
		if err != nil {
			// telemetry.json5 is optional, traces just go nowhere
			slog.Warn("telemetry disabled", "err", err)
		} else {
			defer tel.Shutdown(context.Background())
			telemetry.InstrumentPerfStats(ctx)
		}

		cfg, err := readConfig()
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}

		notifier := buildNotifier(cfg)

		if cfg.HealthPort > 0 {
			go func() {
				if err := healthcheck.Serve(cfg.HealthPort); err != nil {
					slog.Error("healthcheck server stopped", "err", err)
				}
			}()
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

		service := slotmonitor.NewService(client, slotmonitor.Options{
			Categories: cfg.Portal.Categories,
			EntryUrl:   cfg.Portal.EntryUrl,
			Notifier:   notifier,
		})
		service.Run(ctx)
	},
}

func buildNotifier(cfg Config) notify.Notifier {
	var transports notify.Multi
	if cfg.Telegram != nil {
		telegram, err := notify.NewTelegram(*cfg.Telegram)
		if err != nil {
			serviceutil.Fatal("failed to create telegram notifier", err)
		}
		transports = append(transports, telegram)
	}
	if cfg.Smtp != nil {
		transports = append(transports, notify.NewEmail(*cfg.Smtp))
	}
	if len(transports) == 0 {
		slog.Warn("no notification transports configured, changes will only be logged")
	}
	return transports
}
