package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/reqguard/pkg/fixture"
)

func newFixtureCmd(flags *globalFlags) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "fixture",
		Short: "Serve the fixture page with noRequest, ajax and http links",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Fixture.Listen = listen
			}
			a, err := newApp(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())

			srv := fixture.NewServer(a.logger)
			if err := srv.Listen(cfg.Fixture.Listen); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "fixture listening on %s/\n", srv.URL())
			return srv.Serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Override fixture.listen")
	return cmd
}
