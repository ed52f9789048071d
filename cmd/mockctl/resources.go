package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/oxidecomputer/console-sub002/internal/client"
	"github.com/oxidecomputer/console-sub002/internal/domain"
)

// pageFlags adds --limit, --page-token and --all to a list command.
type pageFlags struct {
	limit int
	token string
	all   bool
}

func (p *pageFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&p.limit, "limit", 0, "page size (server default when 0)")
	cmd.Flags().StringVar(&p.token, "page-token", "", "continue from this page token")
	cmd.Flags().BoolVar(&p.all, "all", false, "follow next_page until the listing is exhausted")
}

func (p *pageFlags) options() client.PageOptions {
	return client.PageOptions{Limit: p.limit, PageToken: p.token}
}

// list prints one page, or with --all every item collected into a single page.
func list[T any](cmd *cobra.Command, o *options, op string, params client.Params, pf *pageFlags) error {
	ctx := cmd.Context()
	var page domain.ResultsPage[T]
	if pf.all {
		items, err := client.ListAll[T](ctx, o.client, op, params)
		if err != nil {
			return err
		}
		page.Items = items
	} else {
		var err error
		if page, err = client.ListPage[T](ctx, o.client, op, params, pf.options()); err != nil {
			return err
		}
	}
	if page.Items == nil {
		page.Items = []T{}
	}
	return o.print(cmd.OutOrStdout(), op, page)
}

func projectQuery(project string) client.Params {
	return client.Params{Query: map[string][]string{"project": {project}}}
}

func requireProject(project string) error {
	if project == "" {
		return fmt.Errorf("--project is required")
	}
	return nil
}

func newProjectsCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "projects",
		Aliases: []string{"project"},
		Short:   "Manage projects",
	}

	var pf pageFlags
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return list[domain.Project](cmd, o, "project_list", client.Params{}, &pf)
		},
	}
	pf.register(listCmd)

	getCmd := &cobra.Command{
		Use:   "get NAME|ID",
		Short: "Show a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := o.client.GetProject(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return o.print(cmd.OutOrStdout(), "project_view", p)
		},
	}

	var description string
	createCmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := o.client.CreateProject(cmd.Context(), domain.ProjectCreate{Name: args[0], Description: description})
			if err != nil {
				return err
			}
			return o.print(cmd.OutOrStdout(), "project_create", p)
		},
	}
	createCmd.Flags().StringVar(&description, "description", "", "project description")

	deleteCmd := &cobra.Command{
		Use:   "delete NAME|ID",
		Short: "Delete a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.client.DeleteProject(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted project %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(listCmd, getCmd, createCmd, deleteCmd)
	return cmd
}

func newDisksCmd(o *options) *cobra.Command {
	var project string
	cmd := &cobra.Command{
		Use:     "disks",
		Aliases: []string{"disk"},
		Short:   "Manage disks",
	}
	cmd.PersistentFlags().StringVarP(&project, "project", "p", "", "project name or id")

	var pf pageFlags
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List disks in a project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireProject(project); err != nil {
				return err
			}
			return list[domain.Disk](cmd, o, "disk_list", projectQuery(project), &pf)
		},
	}
	pf.register(listCmd)

	getCmd := &cobra.Command{
		Use:   "get NAME|ID",
		Short: "Show a disk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := o.client.GetDisk(cmd.Context(), project, args[0])
			if err != nil {
				return err
			}
			return o.print(cmd.OutOrStdout(), "disk_view", d)
		},
	}

	var (
		description string
		sizeGiB     int64
		blockSize   int64
		snapshot    string
		image       string
	)
	createCmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a disk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireProject(project); err != nil {
				return err
			}
			in := domain.DiskCreate{
				Name:        args[0],
				Description: description,
				Size:        sizeGiB * domain.GiB,
				DiskSource:  domain.DiskSource{Type: domain.DiskSourceBlank, BlockSize: blockSize},
			}
			switch {
			case snapshot != "" && image != "":
				return fmt.Errorf("--snapshot and --image are mutually exclusive")
			case snapshot != "":
				in.DiskSource = domain.DiskSource{Type: domain.DiskSourceSnapshot, SnapshotID: snapshot}
			case image != "":
				in.DiskSource = domain.DiskSource{Type: domain.DiskSourceImage, ImageID: image}
			}
			d, err := o.client.CreateDisk(cmd.Context(), project, in)
			if err != nil {
				return err
			}
			return o.print(cmd.OutOrStdout(), "disk_create", d)
		},
	}
	createCmd.Flags().StringVar(&description, "description", "", "disk description")
	createCmd.Flags().Int64Var(&sizeGiB, "size", 10, "size in GiB")
	createCmd.Flags().Int64Var(&blockSize, "block-size", 4096, "block size for blank disks")
	createCmd.Flags().StringVar(&snapshot, "snapshot", "", "create from this snapshot id")
	createCmd.Flags().StringVar(&image, "image", "", "create from this image id")

	deleteCmd := &cobra.Command{
		Use:   "delete NAME|ID",
		Short: "Delete a disk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.client.DeleteDisk(cmd.Context(), project, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted disk %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(listCmd, getCmd, createCmd, deleteCmd)
	return cmd
}

func newInstancesCmd(o *options) *cobra.Command {
	var project string
	cmd := &cobra.Command{
		Use:     "instances",
		Aliases: []string{"instance"},
		Short:   "Manage instances",
	}
	cmd.PersistentFlags().StringVarP(&project, "project", "p", "", "project name or id")

	var pf pageFlags
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List instances in a project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireProject(project); err != nil {
				return err
			}
			return list[domain.Instance](cmd, o, "instance_list", projectQuery(project), &pf)
		},
	}
	pf.register(listCmd)

	getCmd := &cobra.Command{
		Use:   "get NAME|ID",
		Short: "Show an instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := o.client.GetInstance(cmd.Context(), project, args[0])
			if err != nil {
				return err
			}
			return o.print(cmd.OutOrStdout(), "instance_view", inst)
		},
	}

	var (
		description string
		hostname    string
		memoryGiB   int64
		ncpus       int
		noStart     bool
	)
	createCmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create an instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireProject(project); err != nil {
				return err
			}
			start := !noStart
			in := domain.InstanceCreate{
				Name:        args[0],
				Description: description,
				Hostname:    hostname,
				Memory:      memoryGiB * domain.GiB,
				NCPUs:       ncpus,
				Start:       &start,
			}
			if in.Hostname == "" {
				in.Hostname = args[0]
			}
			inst, err := o.client.CreateInstance(cmd.Context(), project, in)
			if err != nil {
				return err
			}
			return o.print(cmd.OutOrStdout(), "instance_create", inst)
		},
	}
	createCmd.Flags().StringVar(&description, "description", "", "instance description")
	createCmd.Flags().StringVar(&hostname, "hostname", "", "hostname (defaults to NAME)")
	createCmd.Flags().Int64Var(&memoryGiB, "memory", 2, "memory in GiB")
	createCmd.Flags().IntVar(&ncpus, "ncpus", 1, "virtual CPUs")
	createCmd.Flags().BoolVar(&noStart, "no-start", false, "leave the instance stopped")

	deleteCmd := &cobra.Command{
		Use:   "delete NAME|ID",
		Short: "Delete an instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.client.DeleteInstance(cmd.Context(), project, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted instance %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(listCmd, getCmd, createCmd, deleteCmd,
		runStateCmd(o, &project, "start", "instance_start", (*client.Client).StartInstance),
		runStateCmd(o, &project, "stop", "instance_stop", (*client.Client).StopInstance),
		runStateCmd(o, &project, "reboot", "instance_reboot", (*client.Client).RebootInstance),
	)
	return cmd
}

type runStateFunc func(c *client.Client, ctx context.Context, project, instance string) (*domain.Instance, error)

// runStateCmd builds start/stop/reboot. With --wait it polls until the
// instance leaves its transitional state.
func runStateCmd(o *options, project *string, verb, op string, fn runStateFunc) *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   verb + " NAME|ID",
		Short: fmt.Sprintf("Request an instance %s", verb),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			inst, err := fn(o.client, ctx, *project, args[0])
			if err != nil {
				return err
			}
			if wait > 0 {
				if inst, err = waitSettled(ctx, o, *project, inst, wait); err != nil {
					return err
				}
			}
			return o.print(cmd.OutOrStdout(), op, inst)
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 0, "poll until the run state settles, up to this long")
	return cmd
}

func transitional(s domain.InstanceState) bool {
	switch s {
	case domain.InstanceStarting, domain.InstanceStopping, domain.InstanceRebooting:
		return true
	}
	return false
}

func waitSettled(ctx context.Context, o *options, project string, inst *domain.Instance, limit time.Duration) (*domain.Instance, error) {
	ctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for transitional(inst.RunState) {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("instance %s still %s: %w", inst.Name, inst.RunState, ctx.Err())
		case <-ticker.C:
		}
		next, err := o.client.GetInstance(ctx, project, inst.Name)
		if err != nil {
			return nil, err
		}
		inst = next
	}
	return inst, nil
}
