package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/viper"

	"github.com/TSGCFO/langchain-agent/analytics"
	"github.com/TSGCFO/langchain-agent/core"
)

var stdout io.Writer = os.Stdout

func printJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(stdout)
	tw.AppendHeader(header)
	return tw
}

func printTask(task *core.Task, taskErr error) error {
	resp := core.TaskResponse{TaskID: task.ID, Status: task.CurrentStatus(), Result: task.Result()}
	if taskErr != nil {
		resp.Error = taskErr.Error()
	}
	if viper.GetBool("json") {
		return printJSON(resp)
	}
	tw := newTable(table.Row{"Task", "Status", "Result", "Error"})
	tw.AppendRow(table.Row{resp.TaskID, resp.Status, formatResult(resp.Result), resp.Error})
	tw.Render()
	return nil
}

func formatResult(v any) string {
	switch r := v.(type) {
	case nil:
		return ""
	case string:
		return r
	case []core.SubtaskResult:
		lines := make([]string, 0, len(r))
		for _, s := range r {
			lines = append(lines, fmt.Sprintf("%s: %v", s.ID, s.Result))
		}
		return strings.Join(lines, "\n")
	default:
		b, err := json.Marshal(r)
		if err != nil {
			return fmt.Sprintf("%v", r)
		}
		return string(b)
	}
}

func printAgents(agents []core.AgentInfo) error {
	if viper.GetBool("json") {
		return printJSON(agents)
	}
	tw := newTable(table.Row{"ID", "Name", "Role", "State", "Capabilities"})
	for _, a := range agents {
		tw.AppendRow(table.Row{a.ID, a.Name, a.Role, a.State, strings.Join(a.Capabilities, ", ")})
	}
	tw.Render()
	return nil
}

func printToolStats(stats map[string]analytics.ToolStats) error {
	if viper.GetBool("json") {
		return printJSON(stats)
	}
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)

	tw := newTable(table.Row{"Tool", "Uses", "Success Rate", "Avg Time (s)", "Top Parameters", "Top Errors"})
	for _, name := range names {
		s := stats[name]
		tw.AppendRow(table.Row{
			name,
			s.Uses,
			fmt.Sprintf("%.1f%%", s.SuccessRate*100),
			fmt.Sprintf("%.3f", s.AvgResponseTime),
			joinCounts(s.CommonParameters),
			joinCounts(s.CommonErrors),
		})
	}
	tw.Render()
	return nil
}

func printReasoning(res *analytics.ReasoningAnalysis) error {
	if viper.GetBool("json") {
		return printJSON(res)
	}
	fmt.Fprintf(stdout, "Samples: %d  Average length: %.1f characters\n", res.Samples, res.AverageLength)

	tw := newTable(table.Row{"Pattern", "Count", "Success Rate"})
	for _, p := range res.Patterns {
		tw.AppendRow(table.Row{p.Pattern, p.Count, fmt.Sprintf("%.1f%%", p.SuccessRate*100)})
	}
	tw.Render()

	pw := newTable(table.Row{"Phrase", "Count"})
	for _, c := range res.CommonPhrases {
		pw.AppendRow(table.Row{c.Value, c.Count})
	}
	pw.Render()
	return nil
}

func printPerformance(m *analytics.PerformanceMetrics) error {
	if viper.GetBool("json") {
		return printJSON(m)
	}
	tw := newTable(table.Row{"Metric", "Value"})
	tw.AppendRows([]table.Row{
		{"Window (days)", m.WindowDays},
		{"Interactions", m.Interactions},
		{"Evaluations", m.Evaluations},
		{"Success rate", fmt.Sprintf("%.1f%%", m.SuccessRate*100)},
		{"Avg execution time (s)", fmt.Sprintf("%.3f", m.AverageExecutionTime)},
		{"Tool selection accuracy", fmt.Sprintf("%.2f", m.ToolSelectionAccuracy)},
		{"Reasoning quality", fmt.Sprintf("%.2f", m.ReasoningQuality)},
		{"Task completion rate", fmt.Sprintf("%.1f%%", m.TaskCompletionRate*100)},
	})
	tw.Render()
	return nil
}

func printTrainingSet(set *analytics.TrainingSet, out string) error {
	if viper.GetBool("json") {
		if out == "-" {
			return nil
		}
		return printJSON(map[string]any{
			"out":           out,
			"examples":      len(set.Examples),
			"per_tool":      set.PerTool,
			"candidates":    set.Candidates,
			"excluded":      set.Excluded,
			"dropped_tools": set.DroppedTools,
		})
	}
	w := stdout
	if out == "-" {
		w = os.Stderr
	}
	fmt.Fprintf(w, "Candidates: %d  Excluded: %d  Dropped tools: %s\n",
		set.Candidates, set.Excluded, strings.Join(set.DroppedTools, ", "))

	tools := make([]string, 0, len(set.PerTool))
	for name := range set.PerTool {
		tools = append(tools, name)
	}
	sort.Strings(tools)
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Tool", "Examples"})
	for _, name := range tools {
		tw.AppendRow(table.Row{name, set.PerTool[name]})
	}
	tw.AppendFooter(table.Row{"Total", len(set.Examples)})
	tw.Render()
	if out != "-" {
		fmt.Fprintf(w, "Wrote %s\n", out)
	}
	return nil
}

func joinCounts(counts []analytics.Count) string {
	parts := make([]string, 0, len(counts))
	for _, c := range counts {
		parts = append(parts, fmt.Sprintf("%s (%d)", c.Value, c.Count))
	}
	return strings.Join(parts, ", ")
}
