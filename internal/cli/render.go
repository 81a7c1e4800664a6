package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/haskel/cplxfox/internal/artifact"
	"github.com/haskel/cplxfox/internal/monitor"
	"github.com/haskel/cplxfox/internal/observation"
	"github.com/haskel/cplxfox/internal/server"
	"github.com/haskel/cplxfox/internal/trainer"
)

var (
	colorPrimary   = lipgloss.Color("86")  // Cyan
	colorSecondary = lipgloss.Color("240") // Gray
	colorSuccess   = lipgloss.Color("82")  // Green
	colorWarning   = lipgloss.Color("214") // Orange
	colorDanger    = lipgloss.Color("196") // Red
	colorMuted     = lipgloss.Color("245") // Light gray
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	sectionHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorPrimary)

	progressBarEmptyStyle = lipgloss.NewStyle().
				Foreground(colorSecondary)

	tableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorPrimary).
				BorderBottom(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderForeground(colorSecondary)

	tableCellStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	labelStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorDanger).
			Bold(true)

	equationStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			PaddingLeft(2)
)

// scoreColor grades an R² value.
func scoreColor(r2 float64) lipgloss.Color {
	switch {
	case r2 >= 0.9:
		return colorSuccess
	case r2 >= 0.5:
		return colorWarning
	default:
		return colorDanger
	}
}

// usageColor grades a usage percentage.
func usageColor(percent float64) lipgloss.Color {
	switch {
	case percent >= 90:
		return colorDanger
	case percent >= 70:
		return colorWarning
	default:
		return colorSuccess
	}
}

func renderScore(r2 float64) string {
	return lipgloss.NewStyle().Foreground(scoreColor(r2)).Render(fmt.Sprintf("%.4f", r2))
}

func renderProgressBar(label string, percent float64, width int) string {
	filled := int(percent / 100 * float64(width))
	filled = max(0, min(filled, width))

	filledBar := lipgloss.NewStyle().Foreground(usageColor(percent)).Render(strings.Repeat("█", filled))
	emptyBar := progressBarEmptyStyle.Render(strings.Repeat("░", width-filled))

	return fmt.Sprintf("%s [%s%s] %5.1f%%", labelStyle.Render(label), filledBar, emptyBar, percent)
}

func field(label, value string) string {
	return fmt.Sprintf("  %s %s", labelStyle.Render(fmt.Sprintf("%-12s", label+":")), valueStyle.Render(value))
}

// renderModel prints one task model with its equation and metrics.
func renderModel(w io.Writer, task string, m *artifact.FittedModel) {
	var lines []string
	lines = append(lines, sectionHeaderStyle.Render(task))

	fields := make([]string, 0, len(m.Schema))
	for _, f := range m.Schema {
		fields = append(fields, fmt.Sprintf("%s(%s)", f.Name, f.Kind))
	}
	lines = append(lines,
		field("Fields", strings.Join(fields, ", ")),
		field("Degree", fmt.Sprint(m.Degree)),
		field("Features", fmt.Sprint(len(m.FeatureNames))),
		field("Log target", fmt.Sprint(m.IsLogTransformed)),
		field("Standardize", fmt.Sprint(m.ScalerParams != nil)),
	)
	for _, c := range m.CategoricalFeatures {
		lines = append(lines, field("Categories", fmt.Sprintf("%s: %s (baseline %s)",
			c.Field, strings.Join(c.Categories, ", "), c.Baseline)))
	}

	metrics := m.TrainingMetrics
	lines = append(lines,
		fmt.Sprintf("  %s %s  %s %s",
			labelStyle.Render("Train R²:"), renderScore(metrics.TrainR2),
			labelStyle.Render("Test R²:"), renderScore(metrics.TestR2)),
		field("Test RMSE", fmt.Sprintf("%.6g", metrics.TestRMSE)),
		field("Rows", fmt.Sprintf("%d train / %d test", metrics.TrainRows, metrics.TestRows)),
		"",
		equationStyle.Render(m.Equation()),
	)

	fmt.Fprintln(w, lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// renderArtifact prints every model of an artifact in task order.
func renderArtifact(w io.Writer, path, fingerprint string, a artifact.Artifact) {
	fmt.Fprintln(w, titleStyle.Render("CPLXFOX MODELS"))
	fmt.Fprintln(w, field("Artifact", path))
	fmt.Fprintln(w, field("Fingerprint", fingerprint))
	for _, task := range a.Tasks() {
		fmt.Fprintln(w)
		renderModel(w, task, a[task])
	}
}

// renderReport prints the per-task outcome of a training run.
func renderReport(w io.Writer, report *trainer.Report) {
	header := fmt.Sprintf("%-20s │ %6s │ %8s │ %8s │ %8s │ %10s",
		"Task", "Rows", "Dropped", "Train R²", "Test R²", "Test RMSE")
	fmt.Fprintln(w, tableHeaderStyle.Render(header))

	tasks := make([]string, 0, len(report.Results))
	for task := range report.Results {
		tasks = append(tasks, task)
	}
	sort.Strings(tasks)

	for _, task := range tasks {
		res := report.Results[task]
		metrics := res.Model.TrainingMetrics
		row := fmt.Sprintf("%-20s │ %6d │ %8d │ %8.4f │ %8.4f │ %10.4g",
			truncate(task, 20), res.Rows, res.Dropped, metrics.TrainR2, metrics.TestR2, metrics.TestRMSE)
		fmt.Fprintln(w, tableCellStyle.Render(row))
	}

	for _, task := range report.FailedTasks() {
		fmt.Fprintln(w, errorStyle.Render(fmt.Sprintf("%s: %v", task, report.Failures[task])))
	}
}

// renderRatios prints per-method counter averages.
func renderRatios(w io.Writer, ratios []observation.Ratio) {
	header := fmt.Sprintf("%-20s │ %8s │ %12s │ %12s │ %12s",
		"Task", "Samples", "Reads/method", "Blocks/method", "Insts/method")
	fmt.Fprintln(w, tableHeaderStyle.Render(header))

	for _, r := range ratios {
		row := fmt.Sprintf("%-20s │ %8d │ %12.4f │ %12.4f │ %12.4f",
			truncate(r.Task, 20), r.Samples, r.ReadsPerMethod, r.BlocksPerMethod, r.InstsPerMethod)
		fmt.Fprintln(w, tableCellStyle.Render(row))
	}
}

// renderStatus prints a server status snapshot.
func renderStatus(w io.Writer, status *server.StatusResponse) {
	fmt.Fprintln(w, titleStyle.Render("CPLXFOX STATUS"))
	fmt.Fprintln(w, field("Version", status.Version))
	fmt.Fprintln(w, field("Uptime", status.Uptime))
	fmt.Fprintln(w, field("Artifact", status.Models.Path))
	fmt.Fprintln(w, field("Fingerprint", status.Models.Fingerprint))
	fmt.Fprintln(w, field("Loaded", status.Models.LoadedAt.Format("2006-01-02 15:04:05")))
	fmt.Fprintln(w, field("Tasks", strings.Join(status.Models.Tasks, ", ")))

	if status.Host != nil {
		renderHost(w, status.Host)
	}
}

func renderHost(w io.Writer, h *monitor.HostState) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, sectionHeaderStyle.Render("Host"))
	fmt.Fprintf(w, "  %s    %s\n",
		renderProgressBar("CPU", h.CPU.UsagePercent, 20),
		renderProgressBar("Memory", h.Memory.UsagePercent, 20))
	fmt.Fprintln(w, field("Memory", fmt.Sprintf("%.1f / %.1f GB",
		float64(h.Memory.UsedBytes)/1024/1024/1024,
		float64(h.Memory.TotalBytes)/1024/1024/1024)))
	fmt.Fprintln(w, field("Process", fmt.Sprintf("pid %d, rss %.1f MB, %d goroutines",
		h.Process.PID, float64(h.Process.RSSBytes)/1024/1024, h.Process.Goroutines)))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
