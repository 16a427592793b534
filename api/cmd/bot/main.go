package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"relief-bot/api/internal/config"
	"relief-bot/api/internal/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var debug bool

	root := &cobra.Command{
		Use:           "relief-bot",
		Short:         "Relief check-in Telegram bot",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			level := slog.LevelInfo
			if debug {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	root.AddCommand(newServeCmd(), newMigrateCmd(), newRecordsCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot (webhook when WEBHOOK_URL is set, long polling otherwise)",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the relief_records table in DATABASE_URL",
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, closeDB, err := openRepo(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()
			if err := repo.Migrate(cmd.Context()); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "relief_records ready")
			return nil
		},
	}
}

func newRecordsCmd() *cobra.Command {
	var month string
	cmd := &cobra.Command{
		Use:   "records",
		Short: "List the records of a month from DATABASE_URL, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, closeDB, err := openRepo(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()
			recs, err := repo.List(cmd.Context(), store.Month(month))
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "TARIKH\tMASA\tGANTI\tTIDAK HADIR\tKELAS\tSUBJEK\tGAMBAR")
			for _, r := range recs {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					r.RecordDate, r.TimeSlot, r.SubstituteTeacher, r.AbsentTeacher, r.ClassName, r.Subject, r.Image1Ref)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "month to list, YYYY-MM")
	_ = cmd.MarkFlagRequired("month")
	return cmd
}

func openRepo(ctx context.Context) (*store.RecordRepo, func(), error) {
	dsn := config.DatabaseURL()
	db, d, err := store.Open(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("db connected", "dsn", store.SafeDSNSummary(dsn))
	return store.NewRecordRepo(db, d), func() { _ = db.Close() }, nil
}
