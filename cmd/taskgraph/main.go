// Command taskgraph runs a declaratively defined unit graph to
// completion. It is the trivial packaging surface spec.md §1 marks out
// of scope for the engine's own specification, replacing the teacher's
// flag-based cmd/main.go with a cobra+viper CLI in the style of
// _examples/jkilzi-assisted-migration-agent and
// _examples/88lin-divinesense.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/taskgraph/taskgraph"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "taskgraph",
		Short: "Run a dependency-aware graph of shell-command units",
	}
	root.AddCommand(newRunCmd())
	return root
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load a graph from YAML and run it to completion",
		RunE:  runGraph,
	}
	flags := cmd.Flags()
	flags.String("graph", "", "path to the graph YAML file (required)")
	flags.Int("workers-per-tag", 3, "bounded worker pool size per tag")
	flags.String("log-level", "info", "debug, info, warn, or error")

	_ = viper.BindPFlag("graph", flags.Lookup("graph"))
	_ = viper.BindPFlag("workers-per-tag", flags.Lookup("workers-per-tag"))
	_ = viper.BindPFlag("log-level", flags.Lookup("log-level"))
	viper.SetEnvPrefix("taskgraph")
	viper.AutomaticEnv()

	_ = cmd.MarkFlagRequired("graph")
	return cmd
}

func runGraph(cmd *cobra.Command, args []string) error {
	graphPath := viper.GetString("graph")
	workersPerTag := viper.GetInt("workers-per-tag")
	logLevel := taskgraph.ParseLogLevel(viper.GetString("log-level"))

	logger, err := taskgraph.NewLogger(logLevel)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	units, err := taskgraph.LoadGraphFromYAML(graphPath)
	if err != nil {
		return fmt.Errorf("load graph: %w", err)
	}

	sched, err := taskgraph.NewScheduler(logger)
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	for _, u := range units {
		if err := sched.Schedule(u); err != nil {
			return fmt.Errorf("schedule %s: %w", u.ID(), err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	exec := taskgraph.NewExecutor(sched, taskgraph.WithWorkersPerTag(workersPerTag), taskgraph.WithLogger(logger))
	if err := exec.Run(ctx); err != nil {
		return fmt.Errorf("run: %w", err)
	}

	var failed int
	for _, u := range units {
		switch u.Status() {
		case taskgraph.StatusFailed:
			failed++
			fmt.Fprintln(os.Stderr, &taskgraph.ExecutionError{UnitID: u.ID(), Tag: u.Tag(), Err: u.Err()})
		case taskgraph.StatusCanceled:
			failed++
			fmt.Fprintf(os.Stderr, "%s: canceled\n", u.ID())
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d unit(s) did not complete successfully", failed)
	}
	return nil
}
