package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oxidecomputer/console-sub002/internal/audit"
	"github.com/oxidecomputer/console-sub002/internal/client"
	"github.com/oxidecomputer/console-sub002/internal/events"
)

func newResetCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Restore the server to its fixture state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := o.client.Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "reset complete")
			return nil
		},
	}
}

func newStateCmd(o *options) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Dump the server's live state as fixture YAML",
		Long:  "Dump the server's live state as fixture YAML. The output can be served again with mockapi -fixtures.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := o.client.ExportState(cmd.Context())
			if err != nil {
				return err
			}
			if file == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(file, data, 0o644); err != nil {
				return err
			}
			o.log.Info("state written", zap.String("file", file), zap.Int("bytes", len(data)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "write to this file instead of stdout")
	return cmd
}

func newAuditCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the audit log",
	}

	var (
		operation string
		since     time.Duration
		follow    bool
		interval  time.Duration
	)
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Print audit entries, optionally following new ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			q := client.AuditLogQuery{OperationID: operation}
			if since > 0 {
				start := time.Now().Add(-since)
				q.StartTime = &start
			}

			seen := make(map[string]bool)
			for {
				entries, err := o.client.AuditLog(ctx, q)
				if err != nil {
					if !follow || ctx.Err() != nil {
						return err
					}
					o.log.Warn("audit poll failed", zap.Error(err))
				}
				for _, e := range entries {
					if seen[e.ID] {
						continue
					}
					seen[e.ID] = true
					if err := o.printEntry(cmd, e); err != nil {
						return err
					}
				}
				if !follow {
					return nil
				}
				// Entries completed at the same instant as the newest one may
				// still arrive, so the window restarts there and seen dedups.
				if n := len(entries); n > 0 {
					last := entries[n-1].TimeCompleted
					q.StartTime = &last
				}
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(interval):
				}
			}
		},
	}
	tail.Flags().StringVar(&operation, "operation", "", "only entries for this operation id")
	tail.Flags().DurationVar(&since, "since", 0, "only entries completed within this window")
	tail.Flags().BoolVarP(&follow, "follow", "f", false, "keep polling for new entries")
	tail.Flags().DurationVar(&interval, "interval", 2*time.Second, "poll interval with --follow")

	cmd.AddCommand(tail)
	return cmd
}

func (o *options) printEntry(cmd *cobra.Command, e audit.Entry) error {
	w := cmd.OutOrStdout()
	if o.output == "table" {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			e.TimeCompleted.Format(time.RFC3339), e.OperationID, e.Result.Kind, e.Result.HTTPStatusCode, e.Actor.SiloUserID)
		return tw.Flush()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func newEventsCmd(o *options) *cobra.Command {
	var (
		natsURL string
		prefix  string
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Stream mutation events from NATS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			o.log.Info("subscribing", zap.String("url", natsURL), zap.String("prefix", prefix))
			return events.Subscribe(cmd.Context(), natsURL, prefix, func(subject string, e events.Event) {
				data, err := json.Marshal(e)
				if err != nil {
					o.log.Warn("encode event", zap.String("subject", subject), zap.Error(err))
					return
				}
				fmt.Fprintf(w, "%s %s\n", subject, data)
			})
		},
	}
	cmd.Flags().StringVar(&natsURL, "nats-url", envOr("MOCKCTL_NATS_URL", "nats://localhost:4222"), "NATS server URL")
	cmd.Flags().StringVar(&prefix, "prefix", events.DefaultSubjectPrefix, "subject prefix")
	return cmd
}

func newOperationsCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "operations",
		Aliases: []string{"ops"},
		Short:   "List operations or call one by id",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "OPERATION\tMETHOD\tPATH")
			for _, op := range client.Operations() {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", op.ID, op.Method, op.Path)
			}
			return tw.Flush()
		},
	}

	var (
		pathArgs  []string
		queryArgs []string
		body      string
	)
	call := &cobra.Command{
		Use:   "call OPERATION",
		Short: "Send a raw document to an operation",
		Long: "Send a raw document to an operation and print the response. " +
			"With --camel the body is written with camelCase names. " +
			"A body of @FILE reads the document from FILE, @- from stdin.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := client.Params{Path: map[string]string{}, Query: map[string][]string{}}
			for _, kv := range pathArgs {
				k, v, ok := strings.Cut(kv, "=")
				if !ok {
					return fmt.Errorf("--path %q: want name=value", kv)
				}
				p.Path[k] = v
			}
			for _, kv := range queryArgs {
				k, v, ok := strings.Cut(kv, "=")
				if !ok {
					return fmt.Errorf("--query %q: want name=value", kv)
				}
				p.Query.Add(k, v)
			}
			doc, err := readBody(cmd, body)
			if err != nil {
				return err
			}
			out, err := o.client.Raw(cmd.Context(), args[0], p, doc)
			if err != nil {
				return err
			}
			if len(out) == 0 {
				return nil
			}
			var buf bytes.Buffer
			if err := json.Indent(&buf, out, "", "  "); err != nil {
				return err
			}
			buf.WriteByte('\n')
			_, err = cmd.OutOrStdout().Write(buf.Bytes())
			return err
		},
	}
	call.Flags().StringArrayVar(&pathArgs, "path", nil, "path parameter name=value (repeatable)")
	call.Flags().StringArrayVar(&queryArgs, "query", nil, "query parameter name=value (repeatable)")
	call.Flags().StringVarP(&body, "data", "d", "", "request document, @FILE or @-")

	cmd.AddCommand(call)
	return cmd
}

func readBody(cmd *cobra.Command, arg string) (json.RawMessage, error) {
	switch {
	case arg == "":
		return nil, nil
	case arg == "@-":
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(cmd.InOrStdin()); err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return buf.Bytes(), nil
	case strings.HasPrefix(arg, "@"):
		data, err := os.ReadFile(arg[1:])
		if err != nil {
			return nil, err
		}
		return data, nil
	}
	if !json.Valid([]byte(arg)) {
		return nil, fmt.Errorf("--data is not valid JSON")
	}
	return json.RawMessage(arg), nil
}
