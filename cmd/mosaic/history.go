package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/mosaic/internal/state"
)

var (
	historyLimit int
	historyPurge time.Duration
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show past runs",
	Long: `List recent generate runs, or show one run part by part.

A run ID may be abbreviated to any unique prefix shown in the list.
Use --purge to delete runs older than a duration, e.g. --purge 720h.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to list")
	historyCmd.Flags().DurationVar(&historyPurge, "purge", 0, "Delete runs older than this duration")
}

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	faintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusStyles = map[state.RunStatus]lipgloss.Style{
		state.RunRunning:     lipgloss.NewStyle().Foreground(lipgloss.Color("33")),
		state.RunCompleted:   lipgloss.NewStyle().Foreground(lipgloss.Color("34")),
		state.RunPartial:     lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		state.RunFailed:      lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		state.RunCanceled:    lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		state.RunInterrupted: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
)

func runHistory(cmd *cobra.Command, args []string) error {
	if cfg.State.Path == "" {
		fmt.Println("Run history is disabled (state.path is empty).")
		return nil
	}
	if _, err := os.Stat(cfg.State.Path); os.IsNotExist(err) {
		fmt.Println("No runs yet. Run 'mosaic generate <request>' to start.")
		return nil
	}

	db, err := state.Open(cfg.State.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	if historyPurge > 0 {
		n, err := db.PurgeOldRuns(historyPurge)
		if err != nil {
			return fmt.Errorf("purge runs: %w", err)
		}
		fmt.Printf("Deleted %d run(s) older than %s\n", n, formatDuration(historyPurge))
		return nil
	}

	if len(args) == 1 {
		run, err := findRun(db, args[0])
		if err != nil {
			return err
		}
		fmt.Print(formatRunDetail(run, time.Now()))
		return nil
	}

	runs, err := db.ListRuns(historyLimit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("No runs yet. Run 'mosaic generate <request>' to start.")
		return nil
	}
	fmt.Print(formatRunTable(runs, time.Now()))
	return nil
}

// findRun resolves a full run ID or a unique prefix of a recent one.
func findRun(db state.RunStore, id string) (*state.Run, error) {
	run, err := db.GetRun(id)
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	if run != nil {
		return run, nil
	}

	runs, err := db.ListRuns(0)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	var match string
	for _, r := range runs {
		if !strings.HasPrefix(r.ID, id) {
			continue
		}
		if match != "" {
			return nil, fmt.Errorf("run ID prefix %q is ambiguous", id)
		}
		match = r.ID
	}
	if match == "" {
		return nil, fmt.Errorf("run %s not found", id)
	}
	run, err = db.GetRun(match)
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

func formatRunTable(runs []state.Run, now time.Time) string {
	idCol := lipgloss.NewStyle().Width(10)
	statusCol := lipgloss.NewStyle().Width(13)
	partsCol := lipgloss.NewStyle().Width(8)
	ageCol := lipgloss.NewStyle().Width(7)

	var b strings.Builder
	b.WriteString(headerStyle.Render(
		idCol.Render("ID")+statusCol.Render("STATUS")+partsCol.Render("PARTS")+ageCol.Render("AGE")+"REQUEST",
	) + "\n")
	for _, r := range runs {
		parts := "-"
		if r.Total > 0 {
			parts = fmt.Sprintf("%d/%d", r.Completed, r.Total)
		}
		b.WriteString(idCol.Render(shortID(r.ID)))
		b.WriteString(statusCol.Render(statusStyle(r.Status).Render(string(r.Status))))
		b.WriteString(partsCol.Render(parts))
		b.WriteString(ageCol.Render(formatDuration(now.Sub(r.StartedAt))))
		b.WriteString(truncate(r.Request, 60))
		b.WriteString("\n")
	}
	return b.String()
}

func formatRunDetail(r *state.Run, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", headerStyle.Render("Run"), r.ID)
	fmt.Fprintf(&b, "Request:  %s\n", r.Request)
	fmt.Fprintf(&b, "Status:   %s\n", statusStyle(r.Status).Render(string(r.Status)))
	fmt.Fprintf(&b, "Refine:   %t\n", r.Refine)
	fmt.Fprintf(&b, "Parts:    %d of %d generated\n", r.Completed, r.Total)
	if r.TokensUsed > 0 {
		fmt.Fprintf(&b, "Tokens:   %s\n", formatNumber(r.TokensUsed))
	}
	fmt.Fprintf(&b, "Started:  %s (%s ago)\n", r.StartedAt.Local().Format(time.DateTime), formatDuration(now.Sub(r.StartedAt)))
	if r.FinishedAt != nil {
		fmt.Fprintf(&b, "Duration: %s\n", formatDuration(r.FinishedAt.Sub(r.StartedAt)))
	}
	if r.OutputPath != "" {
		fmt.Fprintf(&b, "Output:   %s\n", r.OutputPath)
	}
	if r.Error != "" {
		fmt.Fprintf(&b, "Error:    %s\n", errorStyle.Render(r.Error))
	}

	if len(r.Outcomes) > 0 {
		b.WriteString("\n")
		for _, o := range r.Outcomes {
			fmt.Fprintf(&b, "%2d. %-8s %-10s %s\n", o.Index+1, o.Type, o.State, faintStyle.Render(truncate(o.Prompt, 70)))
			if o.Error != "" {
				fmt.Fprintf(&b, "    %s\n", errorStyle.Render(o.Error))
			}
		}
	}
	return b.String()
}

func statusStyle(s state.RunStatus) lipgloss.Style {
	if st, ok := statusStyles[s]; ok {
		return st
	}
	return lipgloss.NewStyle()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m > 0 {
			return fmt.Sprintf("%dh%dm", h, m)
		}
		return fmt.Sprintf("%dh", h)
	}
	days := int(d.Hours()) / 24
	return fmt.Sprintf("%dd", days)
}

// formatNumber formats a number with commas.
func formatNumber(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	offset := len(s) % 3
	if offset > 0 {
		result.WriteString(s[:offset])
		result.WriteString(",")
	}
	for i := offset; i < len(s); i += 3 {
		result.WriteString(s[i : i+3])
		if i+3 < len(s) {
			result.WriteString(",")
		}
	}
	return result.String()
}
