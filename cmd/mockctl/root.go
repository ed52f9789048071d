package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oxidecomputer/console-sub002/internal/client"
	"github.com/oxidecomputer/console-sub002/internal/wire"
)

const defaultServer = "http://localhost:12220"

type options struct {
	server  string
	user    string
	camel   bool
	output  string
	verbose bool
	timeout time.Duration

	client *client.Client
	log    *zap.Logger
}

func newRootCmd() *cobra.Command {
	o := &options{log: zap.NewNop()}

	root := &cobra.Command{
		Use:           "mockctl",
		Short:         "Talk to a mockapi server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return o.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = o.log.Sync()
		},
	}
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)

	f := root.PersistentFlags()
	f.StringVar(&o.server, "server", envOr("MOCKCTL_SERVER", defaultServer), "mockapi base URL")
	f.StringVar(&o.user, "user", os.Getenv("MOCKCTL_USER"), "act as this silo user id")
	f.BoolVar(&o.camel, "camel", false, "print documents with camelCase field names")
	f.StringVarP(&o.output, "output", "o", "json", "output format: json or table")
	f.BoolVarP(&o.verbose, "verbose", "v", false, "log requests to stderr")
	f.DurationVar(&o.timeout, "timeout", 30*time.Second, "HTTP client timeout")

	root.AddCommand(
		newProjectsCmd(o),
		newDisksCmd(o),
		newInstancesCmd(o),
		newResetCmd(o),
		newStateCmd(o),
		newAuditCmd(o),
		newEventsCmd(o),
		newOperationsCmd(o),
	)

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w\n%s", err, cmd.UsageString())
	})
	return root
}

func (o *options) init() error {
	switch o.output {
	case "json", "table":
	default:
		return fmt.Errorf("unknown output format %q", o.output)
	}
	if o.verbose {
		cfg := zap.NewDevelopmentConfig()
		cfg.OutputPaths = []string{"stderr"}
		l, err := cfg.Build()
		if err != nil {
			return fmt.Errorf("build logger: %w", err)
		}
		o.log = l
	}

	opts := []client.Option{
		client.WithHTTPClient(&http.Client{Timeout: o.timeout}),
		client.WithUserAgent("mockctl"),
		client.WithRetries(2, 200*time.Millisecond),
	}
	if o.user != "" {
		opts = append(opts, client.WithUser(o.user))
	}
	if o.camel {
		opts = append(opts, client.WithCamelCase())
	}
	o.client = client.New(strings.TrimRight(o.server, "/"), opts...)
	o.log.Debug("client ready", zap.String("server", o.server), zap.String("user", o.user), zap.Bool("camel", o.camel))
	return nil
}

// print writes v, the response of operation op, in the selected format.
func (o *options) print(w io.Writer, op string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s response: %w", op, err)
	}
	if o.camel {
		if oper, ok := client.LookupOperation(op); ok && oper.Response != "" {
			if data, err = wire.ConvertJSON(oper.Response, data, wire.ToCamel); err != nil {
				return err
			}
		}
	}
	if o.output == "table" {
		return printTable(w, data)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return err
	}
	buf.WriteByte('\n')
	_, err = w.Write(buf.Bytes())
	return err
}

type row struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	State any    `json:"run_state"`
	Camel any    `json:"runState"`
}

// printTable renders a page or a single record as ID/NAME/STATE columns.
func printTable(w io.Writer, data []byte) error {
	var page struct {
		Items *[]row `json:"items"`
	}
	if err := json.Unmarshal(data, &page); err != nil {
		return err
	}
	var rows []row
	if page.Items != nil {
		rows = *page.Items
	} else {
		var r row
		if err := json.Unmarshal(data, &r); err != nil {
			return err
		}
		rows = []row{r}
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTATE")
	for _, r := range rows {
		state := r.State
		if state == nil {
			state = r.Camel
		}
		if state == nil {
			state = ""
		}
		fmt.Fprintf(tw, "%s\t%s\t%v\n", r.ID, r.Name, state)
	}
	return tw.Flush()
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
