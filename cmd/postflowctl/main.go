// Package main provides postflowctl, a command line companion to the
// postflow server for checking drafts and previewing the calendar grid.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	config "github.com/maheshrc27/postflow/configs"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/scheduling"
	"github.com/maheshrc27/postflow/internal/service"
	"github.com/maheshrc27/postflow/internal/transfer"
)

var version = "0.1.0"

var errInvalidDraft = errors.New("draft is not valid")

func main() {
	_ = godotenv.Load()

	if err := newRootCmd(config.LoadConfig(), time.Now).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.Config, now func() time.Time) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "postflowctl",
		Short:        "Check drafts and preview the publication calendar",
		Version:      version,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfg.Timezone, "tz", cfg.Timezone, "calendar timezone")

	rootCmd.AddCommand(newValidateCmd(cfg))
	rootCmd.AddCommand(newGridCmd(cfg, now))
	rootCmd.AddCommand(newSlotsCmd(cfg, now))
	rootCmd.AddCommand(newMigrateCmd(cfg))

	return rootCmd
}

func newValidateCmd(cfg *config.Config) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a draft against the platform rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var in transfer.PublicationInput
			if err := readYAML(file, &in); err != nil {
				return err
			}

			content, platforms, err := in.ToContent()
			if err != nil {
				return err
			}

			svc := service.NewPublicationService(*cfg, nil, nil, nil)
			res := svc.Validate(content, platforms)

			out := cmd.OutOrStdout()
			for _, e := range res.Errors {
				fmt.Fprintf(out, "error: %s\n", e)
			}
			for _, w := range res.Warnings {
				fmt.Fprintf(out, "warning: %s\n", w)
			}
			if !res.IsValid {
				return errInvalidDraft
			}
			fmt.Fprintln(out, "ok")
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "draft YAML file")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func newGridCmd(cfg *config.Config, now func() time.Time) *cobra.Command {
	var (
		file   string
		view   string
		anchor string
	)

	cmd := &cobra.Command{
		Use:   "grid",
		Short: "Lay publications out on the calendar grid",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var pubs []models.Publication
			if err := readYAML(file, &pubs); err != nil {
				return err
			}

			v, err := models.ParseCalendarView(view)
			if err != nil {
				return err
			}

			grid := scheduling.NewTimeGrid(cfg.Location(), cfg.SlotHeight)
			at := now()
			if anchor != "" {
				if at, err = grid.ParseDate(anchor); err != nil {
					return fmt.Errorf("invalid anchor %q: %w", anchor, err)
				}
			}

			dates := grid.Dates(v, at)
			cells := grid.AssignToSlots(pubs, dates)
			out := cmd.OutOrStdout()

			for _, key := range scheduling.SortedKeys(cells) {
				visible, hidden := scheduling.VisibleSlice(cells[key], cfg.MaxVisiblePerSlot)
				date, _ := grid.ParseDate(key.Date)
				slot, _ := grid.SlotAt(date, key.Index)

				fmt.Fprintf(out, "%s %s", key.Date, slot.Label())
				for _, p := range visible {
					fmt.Fprintf(out, " %s[%s]", p.ID, p.Status)
				}
				if hidden > 0 {
					fmt.Fprintf(out, " +%d more", hidden)
				}
				fmt.Fprintln(out)
			}

			if pos, ok := grid.CurrentTimePosition(now(), dates); ok {
				fmt.Fprintf(out, "now at %.1f\n", pos)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "publications YAML file")
	cmd.Flags().StringVar(&view, "view", "week", "day, week or month")
	cmd.Flags().StringVar(&anchor, "anchor", "", "day shown by the view, YYYY-MM-DD (default today)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func newSlotsCmd(cfg *config.Config, now func() time.Time) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "slots",
		Short: "List the time slots of a day and whether they accept drops",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			grid := scheduling.NewTimeGrid(cfg.Location(), cfg.SlotHeight)
			current := now()

			day := current
			if date != "" {
				var err error
				if day, err = grid.ParseDate(date); err != nil {
					return fmt.Errorf("invalid date %q: %w", date, err)
				}
			}

			out := cmd.OutOrStdout()
			for i, slot := range grid.Slots(day) {
				state := "open"
				if !grid.IsValidDropTarget(slot, day, current) {
					state = "past"
				}
				fmt.Fprintf(out, "%2d %s %s\n", i, slot.Label(), state)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "day to list, YYYY-MM-DD (default today)")

	return cmd
}

func newMigrateCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.PostgresURI == "" {
				return errors.New("POSTGRES_URI is not set")
			}

			db, err := sql.Open("postgres", cfg.PostgresURI)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			if err := repository.Migrate(ctx, db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrated")
			return nil
		},
	}
}

func readYAML(path string, out interface{}) error {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return nil
}
