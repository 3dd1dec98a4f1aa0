package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rongwang/claims-tracker/internal/client"
	"github.com/rongwang/claims-tracker/internal/config"
	"github.com/rongwang/claims-tracker/internal/models"
	"github.com/rongwang/claims-tracker/internal/utils"
	"github.com/rongwang/claims-tracker/internal/workflow"
	"github.com/rongwang/claims-tracker/internal/workqueue"
)

// systemActor runs operator commands with full rights
var systemActor = models.Actor{ID: "system", Name: "System", Role: models.RoleMaster}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			// SetupDatabase creates any missing tables and indexes
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			a.logger.Info().Msg("schema is up to date")
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the default users and sample claims when the database is empty",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			return a.svc.Seed(cmd.Context())
		},
	}
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import claims from a CSV spreadsheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("file")

			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.svc.ImportCSV(cmd.Context(), systemActor, f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d claim(s), %d skipped, %d row(s) dropped\n",
				res.Imported, res.Errors, res.Dropped)
			return nil
		},
	}
	cmd.Flags().String("file", "", "Path to the CSV file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func queueCmd() *cobra.Command {
	var f workqueue.Filter
	var scope string
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Print the work queue of a user through the REST API",
		RunE: func(cmd *cobra.Command, args []string) error {
			server, _ := cmd.Flags().GetString("server")
			username, _ := cmd.Flags().GetString("username")
			page, _ := cmd.Flags().GetInt("page")
			watch, _ := cmd.Flags().GetBool("watch")
			interval, _ := cmd.Flags().GetDuration("interval")

			password := os.Getenv("CLAIMS_PASSWORD")
			if password == "" {
				return fmt.Errorf("set CLAIMS_PASSWORD to sign in as %s", username)
			}

			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			loc, err := cfg.App.Location()
			if err != nil {
				return err
			}
			if server == "" {
				server = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c := client.New(server)
			user, err := c.Login(ctx, username, password)
			if err != nil {
				return err
			}

			f.Scope = workqueue.Scope(scope)
			s := client.NewSession(c, models.Actor{ID: user.OdooID, Name: user.Name, Role: user.Role}, loc)
			s.SetFilter(f)
			s.SetPage(page)

			out := cmd.OutOrStdout()
			if !watch {
				if err := s.Refresh(ctx); err != nil {
					return err
				}
				printQueue(out, s.View(time.Now()), loc)
				return nil
			}

			logger := utils.NewLogger(cfg.Server.Env)
			err = s.Poll(ctx, interval, func(p workqueue.Page, err error) {
				if err != nil {
					logger.Warn().Err(err).Msg("refresh failed")
					return
				}
				printQueue(out, p, loc)
			})
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}
	cmd.Flags().String("server", "", "Server base URL (default http://localhost:$PORT)")
	cmd.Flags().String("username", "", "User to sign in as")
	cmd.Flags().StringVar(&f.Search, "search", "", "Claim number or patient substring")
	cmd.Flags().StringVar(&f.Priority, "priority", "", "Priority filter")
	cmd.Flags().StringVar(&f.Status, "status", "", "Status filter")
	cmd.Flags().StringVar(&scope, "scope", string(workqueue.ScopeMine), "Agent scope: my, shared or all")
	cmd.Flags().StringVar(&f.Agent, "agent", "", "Assignee filter, or \"unassigned\"")
	cmd.Flags().Int("page", 1, "Page to show")
	cmd.Flags().Bool("watch", false, "Keep refreshing")
	cmd.Flags().Duration("interval", client.DefaultPollInterval, "Refresh interval with --watch")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func printQueue(out io.Writer, p workqueue.Page, loc *time.Location) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CLAIM\tPATIENT\tBALANCE\tSTATUS\tASSIGNED\tFOLLOW-UP\tDUE")
	for _, item := range p.Items {
		followUp := "-"
		if item.NextFollowUp != nil {
			followUp = workflow.FormatDay(*item.NextFollowUp, loc)
		}
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%s\t%s\t%s\t%s\n",
			item.ClaimNo, item.Patient, item.Balance,
			orDash(item.Status), orDash(item.AssignedTo), followUp, item.DueClass)
	}
	_ = tw.Flush()

	fmt.Fprintf(out, "Page %d of %d, %d claim(s). Total %d, pending %d, paid %d, overdue %d\n",
		p.Page, p.TotalPages, p.Total, p.Stats.Total, p.Stats.Pending, p.Stats.Paid, p.Stats.Overdue)
}

func orDash(s *string) string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return "-"
	}
	return *s
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "claims-server", version)
		},
	}
}
