package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/aldoetobex/caseflow/internal/auth"
	"github.com/aldoetobex/caseflow/internal/config"
	"github.com/aldoetobex/caseflow/internal/logger"
	"github.com/aldoetobex/caseflow/internal/projection"
	"github.com/aldoetobex/caseflow/pkg/database"
	"github.com/aldoetobex/caseflow/pkg/models"
)

// ServeCmd runs the HTTP API until SIGINT/SIGTERM.
func ServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the case API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := logger.NewAppSLogger(cfg.Env)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := Bootstrap(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer rt.Close()

			app := NewApp(rt)
			errCh := make(chan error, 1)
			go func() {
				log.Info("server running", slog.String("port", cfg.Port))
				errCh <- app.Listen(":" + cfg.Port)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}
			log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return app.ShutdownWithContext(shutdownCtx)
		},
	}
}

// MigrateCmd creates or updates the schema and exits.
func MigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := database.Open(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}
			if err := database.Migrate(db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), color.New(color.FgGreen).Sprint("✓"), "schema up to date")
			return nil
		},
	}
}

// TokenCmd issues a bearer token for local testing.
func TokenCmd() *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token <user-id> <client|lawyer>",
		Short: "Issue a bearer token",
		Long: `Issue a signed bearer token for a client or lawyer.

Examples:
  caseflow token 6f1c... client
  caseflow token 6f1c... lawyer --ttl 1h`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			userID, err := uuid.Parse(args[0])
			if err != nil {
				return errors.Newf("invalid user id %q", args[0])
			}
			tok, err := auth.IssueToken(cfg.JWTSecret, userID, models.Actor(strings.ToUpper(args[1])), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default 7 days)")
	return cmd
}

// AuditCmd groups the read-only history commands. They act as SYSTEM.
func AuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect a case's history",
	}
	cmd.AddCommand(auditTimelineCmd(), auditStatusAtCmd())
	return cmd
}

func auditTimelineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "timeline <case-id>",
		Short: "Print a case's timeline, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caseID, err := uuid.Parse(args[0])
			if err != nil {
				return errors.Newf("invalid case id %q", args[0])
			}
			return withRuntime(cmd, func(rt *Runtime) error {
				items, err := rt.Service.Timeline(cmd.Context(), models.SystemActor(), caseID)
				if err != nil {
					return err
				}
				printTimeline(cmd.OutOrStdout(), items)
				return nil
			})
		},
	}
}

func auditStatusAtCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status-at <case-id> <RFC3339 time>",
		Short: "Print the status a case had at a point in time",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			caseID, err := uuid.Parse(args[0])
			if err != nil {
				return errors.Newf("invalid case id %q", args[0])
			}
			ts, err := time.Parse(time.RFC3339, args[1])
			if err != nil {
				return errors.Newf("invalid time %q, want RFC3339", args[1])
			}
			return withRuntime(cmd, func(rt *Runtime) error {
				status, err := rt.Service.StatusAt(cmd.Context(), models.SystemActor(), caseID, ts)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), statusColor(status).Sprint(status))
				return nil
			})
		},
	}
}

func withRuntime(cmd *cobra.Command, fn func(rt *Runtime) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	rt, err := Bootstrap(cmd.Context(), cfg, logger.NewDiscard())
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(rt)
}

func printTimeline(w io.Writer, items []projection.TimelineItem) {
	for _, it := range items {
		from := "-"
		if it.PreviousStatus != nil {
			from = string(*it.PreviousStatus)
		}
		fmt.Fprintf(w, "%s  %-8s %s -> %s\n",
			it.Timestamp.UTC().Format(time.RFC3339), it.Actor, from, statusColor(it.NewStatus).Sprint(it.NewStatus))
		fmt.Fprintf(w, "    %s\n", it.Description)
		if it.Notes != "" {
			fmt.Fprintf(w, "    notes: %s\n", it.Notes)
		}
	}
}

func statusColor(s models.CaseStatus) *color.Color {
	switch s {
	case models.StatusConcluded:
		return color.New(color.FgGreen)
	case models.StatusArchived, models.StatusRejected:
		return color.New(color.FgRed)
	case models.StatusAwaitingDocuments, models.StatusAwaitingDocumentReview:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgCyan)
	}
}
