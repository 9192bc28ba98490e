package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gosuri/uitable"
	"gopkg.in/yaml.v3"

	"github.com/netonboard/netonboard/pkg/engine"
	"github.com/netonboard/netonboard/pkg/policy"
	"github.com/netonboard/netonboard/pkg/stores"
)

// Output formats.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// outputFormat resolves the --output flag against the global --json flag.
func outputFormat(flag string) (string, error) {
	if jsonOutput {
		return formatJSON, nil
	}
	switch flag {
	case "", formatTable:
		return formatTable, nil
	case formatJSON, formatYAML:
		return flag, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", flag)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func newTable() *uitable.Table {
	table := uitable.New()
	table.MaxColWidth = 60
	table.Wrap = true
	return table
}

// writePlan renders a plan in the given format.
func writePlan(w io.Writer, plan *engine.Plan, format string) error {
	switch format {
	case formatJSON:
		return writeJSON(w, plan)
	case formatYAML:
		return writeYAML(w, plan)
	}

	s := plan.Summary()
	fmt.Fprintf(w, "Plan %s (partition %s)\n", plan.ID, plan.Partition)
	fmt.Fprintf(w, "%d steps in %d stages, %d transactions, %d device groups, %d skipped\n\n",
		s.Steps, s.Stages, s.Transactions, s.DeviceGroups, s.Skipped)

	if plan.IsEmpty() {
		fmt.Fprintln(w, "Nothing to delete.")
	} else {
		table := newTable()
		table.AddRow("ORDER", "CLASS", "INSTANCE", "MODE", "TARGET")
		for _, step := range plan.Steps() {
			mode := string(step.Mode)
			if step.Group != "" {
				mode += " (" + step.Group + ")"
			}
			table.AddRow(step.Order, step.Class, step.Instance, mode, step.Target())
		}
		fmt.Fprintln(w, table)
	}

	if len(plan.Skipped) > 0 {
		fmt.Fprintln(w)
		table := newTable()
		table.AddRow("SKIPPED CLASS", "INSTANCE", "REASON")
		for _, skipped := range plan.Skipped {
			table.AddRow(skipped.Class, skipped.Instance, skipped.Reason)
		}
		fmt.Fprintln(w, table)
	}
	return nil
}

// writeResult renders a pass result. YAML falls back to JSON.
func writeResult(w io.Writer, result *engine.PassResult, format string) error {
	if format != formatTable {
		return writeJSON(w, result)
	}

	fmt.Fprintf(w, "Pass %s %s in %s\n", result.ID, result.Status, result.Duration().Round(time.Millisecond))
	fmt.Fprintf(w, "%d succeeded, %d failed, %d not attempted\n",
		result.Count(engine.StepStatusSucceeded),
		result.Count(engine.StepStatusFailed),
		result.Count(engine.StepStatusNotAttempted))

	if len(result.Outcomes) == 0 {
		return nil
	}

	fmt.Fprintln(w)
	table := newTable()
	table.AddRow("ORDER", "CLASS", "INSTANCE", "STATUS", "ERROR")
	for _, o := range result.Outcomes {
		table.AddRow(o.Step.Order, o.Step.Class, o.Step.Instance, o.Status, o.Error)
	}
	fmt.Fprintln(w, table)
	return nil
}

func writePasses(w io.Writer, passes []*stores.Pass, format string) error {
	switch format {
	case formatJSON:
		return writeJSON(w, passes)
	case formatYAML:
		return writeYAML(w, passes)
	}

	if len(passes) == 0 {
		fmt.Fprintln(w, "No passes recorded.")
		return nil
	}

	table := newTable()
	table.AddRow("ID", "STARTED", "PARTITION", "STATUS", "STEPS", "DURATION", "ERROR")
	for _, p := range passes {
		errMsg := ""
		if p.Error != nil {
			errMsg = *p.Error
		}
		table.AddRow(p.ID, humanize.Time(p.StartedAt), p.Partition, p.Status, p.StepCount,
			p.Duration().Round(time.Millisecond), errMsg)
	}
	fmt.Fprintln(w, table)
	return nil
}

func writeSteps(w io.Writer, pass *stores.Pass, steps []*stores.StepRecord, format string) error {
	switch format {
	case formatJSON:
		return writeJSON(w, map[string]interface{}{"pass": pass, "steps": steps})
	case formatYAML:
		return writeYAML(w, map[string]interface{}{"pass": pass, "steps": steps})
	}

	fmt.Fprintf(w, "Pass %s %s, started %s\n\n", pass.ID, pass.Status, pass.StartedAt.Format(time.RFC3339))

	table := newTable()
	table.AddRow("#", "ORDER", "CLASS", "INSTANCE", "STATUS", "DURATION", "ERROR")
	for _, s := range steps {
		errMsg := ""
		if s.Error != nil {
			errMsg = *s.Error
		}
		table.AddRow(s.Position, s.StageOrder, s.Class, s.Instance, s.Status,
			(time.Duration(s.DurationMS) * time.Millisecond).String(), errMsg)
	}
	fmt.Fprintln(w, table)
	return nil
}

func writePolicies(w io.Writer, policies []policy.Policy, format string) error {
	switch format {
	case formatJSON:
		return writeJSON(w, policies)
	case formatYAML:
		return writeYAML(w, policies)
	}

	table := newTable()
	table.AddRow("NAME", "SEVERITY", "ENABLED", "BUILT-IN", "DESCRIPTION")
	for _, p := range policies {
		table.AddRow(p.Name, p.Severity, p.Enabled, p.Builtin, p.Description)
	}
	fmt.Fprintln(w, table)
	return nil
}
