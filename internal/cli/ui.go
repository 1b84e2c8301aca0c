package cli

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/depglobe/pkg/pipeline"
	"github.com/matzehuels/depglobe/pkg/usage"
)

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")  // Teal - primary actions
	colorGreen  = lipgloss.Color("35")  // Green - success
	colorYellow = lipgloss.Color("220") // Amber - warnings
	colorWhite  = lipgloss.Color("255") // Bright white - values
	colorGray   = lipgloss.Color("245") // Gray - secondary text
	colorDim    = lipgloss.Color("240") // Dim gray - muted text
)

// =============================================================================
// Styles
// =============================================================================

var (
	styleDim     = lipgloss.NewStyle().Foreground(colorDim)
	styleValue   = lipgloss.NewStyle().Foreground(colorWhite)
	styleNumber  = lipgloss.NewStyle().Foreground(colorCyan)
	styleWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleKey     = lipgloss.NewStyle().Foreground(colorGray).Width(14)

	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)
)

const (
	iconSuccess = "✓"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
)

// =============================================================================
// Status Output
// =============================================================================

func printSuccess(format string, args ...any) {
	fmt.Println(styleIconSuccess.Render(iconSuccess) + " " + fmt.Sprintf(format, args...))
}

func printWarning(format string, args ...any) {
	fmt.Println(styleIconWarning.Render(iconWarning) + " " + styleWarning.Render(fmt.Sprintf(format, args...)))
}

func printInfo(format string, args ...any) {
	fmt.Println(styleIconInfo.Render(iconInfo) + " " + fmt.Sprintf(format, args...))
}

// printDetail prints an indented, dimmed line.
func printDetail(format string, args ...any) {
	fmt.Println("  " + styleDim.Render(fmt.Sprintf(format, args...)))
}

// printFile prints a file output line.
func printFile(path string) {
	fmt.Println("  " + styleDim.Render(iconArrow) + " " + styleValue.Render(path))
}

func printKeyValue(key, value string) {
	fmt.Println("  " + styleKey.Render(key) + " " + styleValue.Render(value))
}

func printCount(key string, n int) {
	fmt.Println("  " + styleKey.Render(key) + " " + styleNumber.Render(strconv.Itoa(n)))
}

// =============================================================================
// Run Summary
// =============================================================================

// printSummary prints what a collection run did.
func printSummary(result *pipeline.Result, prior []usage.Usage, dest string, dryRun bool) {
	s := result.Stats
	if dryRun {
		printInfo("Dry run: %d usages resolved, nothing saved", len(result.Usages))
	} else {
		printSuccess("Saved %d usages (%d new)", len(result.Usages), result.Added(prior))
		printFile(dest)
	}
	printKeyValue("run", s.RunID)
	printCount("prior", s.Prior)
	printCount("repositories", s.Repositories)
	printCount("dependents", s.Dependents)
	printCount("accounts", s.Accounts)
	printCount("account calls", s.AccountCalls)
	printCount("geocode calls", s.GeocodeCalls)

	if skipped := s.SkippedNoLocation + s.SkippedInvalid + s.SkippedUnresolved; skipped > 0 {
		printDetail("skipped %d accounts: %d without location, %d invalid, %d unresolved",
			skipped, s.SkippedNoLocation, s.SkippedInvalid, s.SkippedUnresolved)
	}
}
