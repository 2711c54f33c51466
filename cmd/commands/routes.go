package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/FACorreiaa/go-portal-shell/internal/container"
	"github.com/FACorreiaa/go-portal-shell/internal/router"
	"github.com/FACorreiaa/go-portal-shell/internal/storage"
)

func routesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Inspect the route table and module registry",
	}
	cmd.AddCommand(routesListCmd(), routesWarmCmd())
	return cmd
}

func routesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the route table",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printRoutes(cmd.OutOrStdout(), router.DefaultTable())
		},
	}
}

func printRoutes(w io.Writer, t *router.Table) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PATTERN\tKIND\tMATCH\tMODULE")
	for _, r := range t.Routes() {
		match := "prefix"
		if r.Exact {
			match = "exact"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Pattern, r.Kind, match, r.Module)
	}
	fmt.Fprintln(tw, "*\tcatch-all\t-\t-")
	return tw.Flush()
}

func routesWarmCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "warm [module...]",
		Short: "Load feature modules and report their state",
		Long:  "Loads the given modules, or every module in the route table, and prints the state of each.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			c, err := container.NewContainer(ctx, &cfg, logger, container.WithStorage(storage.Unavailable{}))
			if err != nil {
				return err
			}
			defer c.Close(context.Background())

			keys := args
			if len(keys) == 0 {
				keys = c.Table.Modules()
			}
			// every module is attempted; the error only decides the exit code
			warmErr := c.Registry.Preload(ctx, keys...)

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "MODULE\tSTATE\tERROR")
			for _, k := range keys {
				st := c.Registry.State(k)
				msg := ""
				if st.Err != nil {
					msg = strings.ReplaceAll(st.Err.Error(), "\n", " ")
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", k, st.State, msg)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			return warmErr
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "give up waiting after this long")
	return cmd
}
