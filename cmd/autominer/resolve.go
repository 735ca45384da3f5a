package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"autominer/internal/provider"
	"autominer/internal/store/sqlite"
)

func newResolveCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve",
		Short: "Print the site address currently answering and exit.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*flags, cmd)
			if err != nil {
				return err
			}
			bus, closeLogs := startLogging(cfg)
			defer closeLogs()

			ctx := cmd.Context()
			store, err := sqlite.Open(ctx, cfg.Storage.SQLitePath)
			if err != nil {
				return fmt.Errorf("open sqlite: %w", err)
			}
			defer store.Close()

			res, err := provider.New(cfg.Site, bus)
			if err != nil {
				return err
			}
			if cookies, ok, err := store.LoadCookies(ctx, siteHost(cfg.Site.BaseURL)); err == nil && ok {
				res.UseCookies(cookies)
			}
			live, err := res.Resolve(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), live)
			return nil
		},
	}
}
