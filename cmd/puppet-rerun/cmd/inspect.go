package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/psantana5/puppet-rerun/internal/classify"
	"github.com/psantana5/puppet-rerun/internal/rerun"
	"github.com/psantana5/puppet-rerun/internal/snapshot"
	"github.com/psantana5/puppet-rerun/internal/watch"
)

var inspectOutput string

var inspectCmd = &cobra.Command{
	Use:   "inspect [pid]",
	Short: "Show what a rerun of the given process would do",
	Long: `Captures the argv and environment of a live process (default: this
command's parent), classifies it the way a rerun would, and reports the
normalized invocation and the current lock state without detaching
anything.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().StringVarP(&inspectOutput, "output", "o", "table",
		"Output format: table, json, yaml")
}

// InspectReport is what a rerun would decide for the inspected process.
type InspectReport struct {
	PID        int               `json:"pid" yaml:"pid"`
	Comm       string            `json:"comm,omitempty" yaml:"comm,omitempty"`
	StartedAt  string            `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	Argv       []string          `json:"argv" yaml:"argv"`
	Normalized []string          `json:"normalized" yaml:"normalized"`
	IsService  bool              `json:"is_service" yaml:"is_service"`
	IsNoop     bool              `json:"is_noop" yaml:"is_noop"`
	Lockfile   string            `json:"lockfile" yaml:"lockfile"`
	Locked     bool              `json:"locked" yaml:"locked"`
	Env        map[string]string `json:"env" yaml:"env"`
}

func runInspect(cmd *cobra.Command, args []string) error {
	pid := os.Getppid()
	if len(args) == 1 {
		parsed, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid pid %q: %w", args[0], err)
		}
		pid = parsed
	}

	snap, err := snapshot.Capture(pid)
	if err != nil {
		return err
	}

	cfg := activeConfig()
	mode := classify.Classify(snap.Argv, cfg.Binary)
	lockfile := cfg.Lockfile
	if lockfile == "" {
		lockfile = rerun.DefaultLockfile
	}

	report := InspectReport{
		PID:        snap.ParentPID,
		Comm:       snap.Comm,
		Argv:       snap.Argv,
		Normalized: mode.Argv,
		IsService:  mode.IsService,
		IsNoop:     classify.IsNoop(mode.Argv),
		Lockfile:   lockfile,
		Locked:     watch.Locked(lockfile),
		Env:        snap.Env,
	}
	if !snap.StartedAt.IsZero() {
		report.StartedAt = snap.StartedAt.Format(time.RFC3339)
	}

	switch inspectOutput {
	case "json":
		output, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		fmt.Println(string(output))

	case "yaml":
		output, err := yaml.Marshal(report)
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		fmt.Print(string(output))

	default:
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Property", "Value")

		table.Append([]string{"PID", strconv.Itoa(report.PID)})
		if report.Comm != "" {
			table.Append([]string{"Command", report.Comm})
		}
		if report.StartedAt != "" {
			table.Append([]string{"Started", report.StartedAt})
		}
		table.Append([]string{"Argv", fmt.Sprintf("%q", report.Argv)})
		table.Append([]string{"Normalized", fmt.Sprintf("%q", report.Normalized)})
		table.Append([]string{"Service-style", fmt.Sprintf("%t", report.IsService)})
		table.Append([]string{"Dry run", fmt.Sprintf("%t", report.IsNoop)})
		table.Append([]string{"Lockfile", report.Lockfile})
		table.Append([]string{"Locked", fmt.Sprintf("%t", report.Locked)})
		table.Render()

		envTable := tablewriter.NewWriter(os.Stdout)
		envTable.Header("Variable", "Value")
		names := make([]string, 0, len(report.Env))
		for name := range report.Env {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			envTable.Append(name, report.Env[name])
		}
		envTable.Render()
	}

	return nil
}
