package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	MutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	WarnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	LabelStyle = lipgloss.NewStyle().
			Width(22).
			Foreground(lipgloss.Color("245"))

	barFull  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	barEmpty = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
)

// Field renders an aligned "label value" line
func Field(label string, value interface{}) string {
	return LabelStyle.Render(label) + fmt.Sprint(value)
}

// ProgressBar renders done/target as a fixed-width bar with a percentage
func ProgressBar(done, target, width int) string {
	if width <= 0 {
		width = 20
	}
	ratio := 0.0
	if target > 0 {
		ratio = float64(done) / float64(target)
	}
	if ratio > 1 {
		ratio = 1
	}
	filled := int(ratio * float64(width))
	bar := barFull.Render(strings.Repeat("█", filled)) + barEmpty.Render(strings.Repeat("░", width-filled))
	pct := 0.0
	if target > 0 {
		pct = float64(done) * 100 / float64(target)
	}
	return fmt.Sprintf("%s %5.1f%%", bar, pct)
}
