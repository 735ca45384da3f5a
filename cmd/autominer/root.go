package main

import (
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"autominer/internal/config"
	"autominer/internal/logbus"
)

type rootFlags struct {
	configPath string
	seed       int64
	headless   bool
}

func newRootCmd() *cobra.Command {
	var flags rootFlags
	root := &cobra.Command{
		Use:           "autominer",
		Short:         "Keeps a browser session mining, raiding and idling on the community site.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSession(cmd.Context(), flags, cmd)
		},
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "./config.yaml", "path to config.yaml")
	root.Flags().Int64Var(&flags.seed, "seed", 0, "random seed; overrides schedule.seed when non-zero")
	root.Flags().BoolVar(&flags.headless, "headless", false, "run chrome headless; overrides browser.headless when set")

	run := &cobra.Command{
		Use:   "run",
		Short: "Start a session (the default command).",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSession(cmd.Context(), flags, cmd)
		},
	}
	run.Flags().Int64Var(&flags.seed, "seed", 0, "random seed; overrides schedule.seed when non-zero")
	run.Flags().BoolVar(&flags.headless, "headless", false, "run chrome headless; overrides browser.headless when set")

	root.AddCommand(run, newResolveCmd(&flags))
	return root
}

func loadConfig(flags rootFlags, cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if flags.seed != 0 {
		cfg.Schedule.Seed = flags.seed
	}
	if f := cmd.Flags().Lookup("headless"); f != nil && f.Changed {
		cfg.Browser.Headless = flags.headless
	}
	return cfg, nil
}

// startLogging tees the bus into the console and the rotated session file.
func startLogging(cfg config.Config) (*logbus.Bus, func()) {
	bus := logbus.New(cfg.Log.BusSize)
	logger := logbus.NewLogger(logbus.SinkOptions{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
	sink := logbus.StartSink(bus, logger)
	return bus, func() {
		bus.Close()
		sink.Close()
	}
}

// siteHost is the key saved cookies are stored under.
func siteHost(base string) string {
	u, err := url.Parse(base)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
