package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"streamsched/internal/config"
	"streamsched/internal/export"
	appLog "streamsched/internal/log"
	"streamsched/internal/model"
	"streamsched/internal/reconcile"
	"streamsched/internal/schedule"
	"streamsched/internal/watch"
	"streamsched/internal/youtube"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	weeks      int
	from       string
	to         string
	remove     bool
	dryRun     bool
	login      bool
	exportICS  string
	watchSpec  string
	verbose    bool
}

func main() {
	flags := parseFlags()

	if flags.verbose {
		appLog.SetLevel(appLog.LevelDebug)
	}

	// .env overlays the YAML config with deployment secrets; missing file
	// is fine.
	_ = godotenv.Load()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	conf.ApplyEnv()

	appLog.Info("effective config",
		"timezone", conf.Timezone,
		"campus", conf.CampusName,
		"privacy", conf.PrivacyStatus,
		"enabled", strings.Join(conf.EnabledServices, ","),
		"service_count", len(conf.Services),
		"dry_run", flags.dryRun,
		"remove", flags.remove,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	if flags.login {
		if err := youtube.Authorize(ctx, conf.OAuthCredentialsFile, conf.TokenFile); err != nil {
			appLog.Error("authorization failed", err)
			os.Exit(1)
		}
		return
	}

	os.Exit(run(ctx, flags, conf))
}

func run(ctx context.Context, flags flagConfig, conf *config.Config) int {
	loc, err := time.LoadLocation(conf.Timezone)
	if err != nil {
		cerr := &schedule.ConfigurationError{Violations: []string{"unknown timezone " + conf.Timezone}}
		appLog.Error("configuration validation failed", cerr, "timezone", conf.Timezone)
		return 1
	}

	client, err := youtube.NewClient(ctx, youtube.Options{
		CredentialsFile: conf.OAuthCredentialsFile,
		TokenFile:       conf.TokenFile,
		ChannelID:       conf.ChannelID,
		PlaylistID:      conf.PlaylistID,
	})
	if err != nil {
		if errors.Is(err, youtube.ErrNoToken) {
			appLog.Error("not authorized", err, "hint", "run streamsched -login once")
		} else {
			appLog.Error("failed to build broadcast client", err)
		}
		return 1
	}

	opts := schedule.BroadcastOptions{
		Privacy:     conf.PrivacyStatus,
		MadeForKids: conf.MadeForKids,
		AutoStart:   conf.AutoStart,
		AutoStop:    conf.AutoStop,
		DVREnabled:  conf.DVREnabled,
		Is360:       conf.Is360,
	}
	engine := reconcile.NewEngine(client, reconcile.SystemClock{}, conf.CampusName, loc, opts)

	if flags.remove {
		report, err := engine.RunRemove(ctx, flags.dryRun)
		if err != nil {
			appLog.Error("remove run failed", err)
			return 1
		}
		printReport(report, flags.dryRun)
		if report.HasFailures() {
			return 1
		}
		return 0
	}

	window, err := resolveWindow(flags, loc)
	if err != nil {
		appLog.Error("invalid planning window", err)
		return 1
	}

	defs := make([]schedule.Definition, 0, len(conf.Services))
	for _, sc := range conf.Services {
		defs = append(defs, schedule.Definition{
			ID:          strings.ToUpper(strings.TrimSpace(sc.ID)),
			Name:        sc.Name,
			Day:         sc.Day,
			Time:        sc.Time,
			Description: sc.Description,
		})
	}

	catalog, err := schedule.BuildCatalog(defs, conf.EnabledServices, client, conf.CampusName, loc)
	if err != nil {
		if ce, ok := schedule.AsConfigurationError(err); ok {
			for _, v := range ce.Violations {
				appLog.Warn("configuration violation", "violation", v)
			}
		}
		appLog.Error("configuration validation failed", err, "config_path", flags.configPath)
		return 1
	}

	runOnce := func(ctx context.Context) error {
		report, err := engine.RunDefault(ctx, catalog, window, flags.dryRun)
		if err != nil {
			return err
		}
		printReport(report, flags.dryRun)

		if flags.exportICS != "" {
			occs := make([]model.Occurrence, 0, len(report.Entries))
			for _, e := range report.Entries {
				occs = append(occs, e.Occurrence)
			}
			if err := export.WriteICSFile(flags.exportICS, occs, conf.CampusName, loc); err != nil {
				appLog.Error("failed to export plan", err, "path", flags.exportICS)
			} else {
				appLog.Info("exported plan", "path", flags.exportICS, "events", len(occs))
			}
		}

		if report.HasFailures() {
			return errors.New("reconciliation completed with failures")
		}
		return nil
	}

	watchSpec := flags.watchSpec
	if watchSpec == "" {
		watchSpec = conf.Watch
	}
	if watchSpec != "" {
		if err := watch.Run(ctx, watchSpec, runOnce); err != nil {
			appLog.Error("watch mode failed", err)
			return 1
		}
		return 0
	}

	if err := runOnce(ctx); err != nil {
		appLog.Error("run failed", err)
		return 1
	}
	return 0
}

// resolveWindow maps flags to a planning window. -weeks and -from/-to are
// mutually exclusive; -from and -to must come together.
func resolveWindow(flags flagConfig, loc *time.Location) (schedule.Window, error) {
	hasRange := flags.from != "" || flags.to != ""

	switch {
	case flags.weeks > 0 && hasRange:
		return schedule.Window{}, &schedule.ConfigurationError{
			Violations: []string{"-weeks and -from/-to cannot be combined"},
		}
	case flags.weeks > 0:
		return schedule.WeeksAhead(flags.weeks)
	case hasRange:
		if flags.from == "" || flags.to == "" {
			return schedule.Window{}, &schedule.ConfigurationError{
				Violations: []string{"-from and -to must both be set"},
			}
		}
		from, err := time.ParseInLocation("2006-01-02", flags.from, loc)
		if err != nil {
			return schedule.Window{}, &schedule.ConfigurationError{
				Violations: []string{"invalid -from date, want YYYY-MM-DD: " + flags.from},
			}
		}
		to, err := time.ParseInLocation("2006-01-02", flags.to, loc)
		if err != nil {
			return schedule.Window{}, &schedule.ConfigurationError{
				Violations: []string{"invalid -to date, want YYYY-MM-DD: " + flags.to},
			}
		}
		return schedule.DateRange(from, to)
	default:
		return schedule.NextWindow(), nil
	}
}

func printReport(report *model.Report, dryRun bool) {
	for _, entry := range report.Entries {
		kv := []any{
			"outcome", string(entry.Outcome),
			"service", entry.Occurrence.ServiceID,
			"start", entry.Occurrence.Start.Format(time.RFC3339),
		}
		if entry.Occurrence.Title != "" {
			kv = append(kv, "title", entry.Occurrence.Title)
		}
		if entry.Err != nil {
			appLog.Error("occurrence failed", entry.Err, kv...)
			continue
		}
		appLog.Info("occurrence", kv...)
	}

	appLog.Info("run complete",
		"matched", report.Matched,
		"created", report.Created,
		"removed", report.Removed,
		"failed", report.Failed,
		"reported", report.Reported,
		"dry_run", dryRun,
	)
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "config.yaml", "Path to config file")
	flag.IntVar(&cfg.weeks, "weeks", 0, "Schedule every occurrence within the next N weeks")
	flag.StringVar(&cfg.from, "from", "", "Start of an inclusive date range (YYYY-MM-DD)")
	flag.StringVar(&cfg.to, "to", "", "End of an inclusive date range (YYYY-MM-DD)")
	flag.BoolVar(&cfg.remove, "remove", false, "Remove all upcoming broadcasts instead of scheduling")
	flag.BoolVar(&cfg.dryRun, "dry-run", false, "Report actions without mutating remote state")
	flag.BoolVar(&cfg.login, "login", false, "Run the interactive OAuth authorization and exit")
	flag.StringVar(&cfg.exportICS, "export-ics", "", "Write the planned occurrences to an ICS file")
	flag.StringVar(&cfg.watchSpec, "watch", "", "Cron expression; re-run reconciliation on this schedule")
	flag.BoolVar(&cfg.verbose, "verbose", false, "Enable debug logging")

	flag.Parse()

	return cfg
}
