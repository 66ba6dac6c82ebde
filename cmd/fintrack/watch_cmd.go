package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"fintrack/internal/amqp"
	"fintrack/internal/cli"
	"fintrack/internal/log"
)

const shutdownTimeout = 10 * time.Second

func newWatchCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow ledger changes announced on the message broker",
		Long:  `Watch consumes the change notifications other fintrack processes publish, re-reads the selected month after each one and prints the new balance. It runs until interrupted.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if s.app.AMQP == nil {
				return errors.New("watch needs a reachable broker: set AMQP_URL")
			}
			logger := s.app.Logger.WithComponent(log.ComponentAMQP)

			ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, nil)
			ctx = log.WithContext(ctx, logger)
			fmt.Fprintf(cmd.OutOrStdout(), "Watching %s, press Ctrl+C to stop\n", s.app.Summary.Cursor())

			err := s.app.AMQP.ConsumeLedgerChanges(ctx, func(msg *amqp.LedgerChangeMessage) error {
				return handleChange(ctx, cmd, s, msg)
			})
			if errors.Is(err, context.Canceled) {
				cli.WaitForShutdown(ctx, done)
				return nil
			}
			return err
		},
	}
}

func handleChange(ctx context.Context, cmd *cobra.Command, s *session, msg *amqp.LedgerChangeMessage) error {
	log.FromContext(ctx).DebugContext(ctx, "Ledger change received",
		log.FieldKind, msg.Kind,
		log.FieldOperation, msg.Op,
		log.FieldID, msg.ID)

	view, err := s.app.Summary.Refresh(ctx)
	if err != nil {
		c := s.app.Summary.Cursor()
		log.LogError(ctx, "Refresh after ledger change failed", err,
			log.ComponentAggregator, log.OpRead, log.NewFields().WithPeriod(c.Month, c.Year))
		return fmt.Errorf("refresh %s: %w", c, err)
	}

	subject := msg.Name
	if subject == "" && msg.ID != 0 {
		subject = fmt.Sprintf("#%d", msg.ID)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s %s  balance %s: %s\n",
		msg.Timestamp.Format(time.TimeOnly), msg.Kind, msg.Op, subject,
		view.Cursor, formatAmount(view.Balance()))
	return nil
}
