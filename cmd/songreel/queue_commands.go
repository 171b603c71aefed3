package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"songreel/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage processing records",
	}
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	return queueCmd
}

func openStore(ctx *commandContext) (*queue.Store, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	return queue.Open(cfg)
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statusFlag string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List processing records",
		RunE: func(cmd *cobra.Command, args []string) error {
			var statuses []queue.Status
			if statusFlag != "" {
				status := queue.Status(strings.ToLower(strings.TrimSpace(statusFlag)))
				if !status.Valid() {
					return fmt.Errorf("unknown status %q", statusFlag)
				}
				statuses = append(statuses, status)
			}

			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.ListRecords(cmd.Context(), statuses...)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				cmd.Println("queue is empty")
				return nil
			}

			rows := make([][]string, 0, len(records))
			for _, record := range records {
				rows = append(rows, []string{
					shortID(record.ID),
					fmt.Sprintf("%d", record.SongID),
					string(record.Status),
					string(record.Stage),
					formatTimestamp(&record.UpdatedAt),
					truncate(record.ErrorMessage, 60),
				})
			}
			cmd.Println(renderTable(
				[]string{"RECORD", "SONG", "STATUS", "STAGE", "UPDATED", "ERROR"},
				rows, 1,
			))
			return nil
		},
	}
	cmd.Flags().StringVar(&statusFlag, "status", "", "Filter by status (pending, processing, completed, failed, retry)")
	return cmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show aggregate queue health",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			health, err := store.Health(cmd.Context())
			if err != nil {
				return err
			}
			rows := [][]string{
				{"pending", fmt.Sprintf("%d", health.Pending)},
				{"processing", fmt.Sprintf("%d", health.Processing)},
				{"retry", fmt.Sprintf("%d", health.Retry)},
				{"completed", fmt.Sprintf("%d", health.Completed)},
				{"failed", fmt.Sprintf("%d", health.Failed)},
				{"total", fmt.Sprintf("%d", health.Total)},
			}
			cmd.Println(renderTable([]string{"STATUS", "COUNT"}, rows, 1))
			return nil
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [record-id...]",
		Short: "Return failed records to the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			count, err := store.RetryFailed(cmd.Context(), args...)
			if err != nil {
				return err
			}
			cmd.Printf("requeued %d record(s)\n", count)
			return nil
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var failedOnly bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete terminal processing records",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			var statuses []queue.Status
			if failedOnly {
				statuses = append(statuses, queue.StatusFailed)
			}
			count, err := store.Clear(cmd.Context(), statuses...)
			if err != nil {
				return err
			}
			cmd.Printf("removed %d record(s)\n", count)
			return nil
		},
	}
	cmd.Flags().BoolVar(&failedOnly, "failed", false, "Remove only failed records")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}

func formatTimestamp(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
