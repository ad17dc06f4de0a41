package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/fieldops-io/fieldops/internal/config"
	"github.com/fieldops-io/fieldops/internal/logbuf"
	"github.com/fieldops-io/fieldops/pkg/protocol"
)

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check daemon health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, err := newClient().get(cmd.Context(), "/api/health", nil)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(body))
			return nil
		},
	}
}

func ticketsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "tickets", Short: "List or show tickets"}

	var status, client, order, reporter string
	var open bool
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List tickets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := map[string]string{
				"status":   status,
				"client":   client,
				"order":    order,
				"reporter": reporter,
				"limit":    strconv.Itoa(limit),
			}
			if open {
				q["open"] = "true"
			}
			body, err := newClient().get(cmd.Context(), "/api/tickets", q)
			if err != nil {
				return err
			}
			var tickets []protocol.Ticket
			if err := json.Unmarshal(body, &tickets); err != nil {
				return fmt.Errorf("decode tickets: %w", err)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tORDER\tCLIENT\tSTATUS\tCREATED")
			for _, t := range tickets {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", t.ID, t.OrderID, t.Client, t.Status, t.CreatedAt.Format(time.DateTime))
			}
			return w.Flush()
		},
	}
	list.Flags().StringVar(&status, "status", "", "exact status, e.g. \"Pending DA Action\"")
	list.Flags().BoolVar(&open, "open", false, "only tickets that are not closed")
	list.Flags().StringVar(&client, "client", "", "client name")
	list.Flags().StringVar(&order, "order", "", "order id substring")
	list.Flags().StringVar(&reporter, "reporter", "", "reporter user id")
	list.Flags().IntVar(&limit, "limit", 50, "max results")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a ticket with its log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := newClient().get(cmd.Context(), "/api/tickets/"+args[0], nil)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), prettyJSON(body))
			return nil
		},
	}

	cmd.AddCommand(list, show)
	return cmd
}

func subscriptionsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "subscriptions", Short: "Inspect chat subscriptions"}

	var role, client string
	list := &cobra.Command{
		Use:   "list",
		Short: "List subscriptions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, err := newClient().get(cmd.Context(), "/api/subscriptions", map[string]string{"role": role, "client": client})
			if err != nil {
				return err
			}
			var subs []protocol.Subscription
			if err := json.Unmarshal(body, &subs); err != nil {
				return fmt.Errorf("decode subscriptions: %w", err)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "USER\tROLE\tPHONE\tCLIENT\tCHAT")
			for _, s := range subs {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\n", s.UserID, s.Role, s.Phone, s.Client, s.ChatID)
			}
			return w.Flush()
		},
	}
	list.Flags().StringVar(&role, "role", "", "DA, Supervisor or Client")
	list.Flags().StringVar(&client, "client", "", "client name")

	cmd.AddCommand(list)
	return cmd
}

func logsCmd() *cobra.Command {
	var ticketID, role, level string
	var limit int
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent daemon logs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, err := newClient().get(cmd.Context(), "/api/logs", map[string]string{
				"ticket_id": ticketID,
				"role":      role,
				"level":     level,
				"limit":     strconv.Itoa(limit),
			})
			if err != nil {
				return err
			}
			var entries []logbuf.Entry
			if err := json.Unmarshal(body, &entries); err != nil {
				return fmt.Errorf("decode logs: %w", err)
			}
			for _, e := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %-5s %s %v\n", e.Time.Format(time.RFC3339), e.Level, e.Message, e.Attrs)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&ticketID, "ticket", "", "only entries for this ticket id")
	cmd.Flags().StringVar(&role, "role", "", "only entries for this role")
	cmd.Flags().StringVar(&level, "level", "", "minimum level (debug, info, warn, error)")
	cmd.Flags().IntVar(&limit, "limit", 100, "max entries")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Configuration helpers"}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate <path>",
		Short: "Validate a config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.Load(args[0]); err != nil {
				return fmt.Errorf("invalid: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "config is valid")
			return nil
		},
	})
	return cmd
}
