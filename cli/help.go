package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

const (
	maxWidth = 72
	minWidth = 40
)

// helpStyles is the palette of the styled help output.
type helpStyles struct {
	Title   lipgloss.Style
	Section lipgloss.Style
	Command lipgloss.Style
	Sub     lipgloss.Style
	Flag    lipgloss.Style
	Muted   lipgloss.Style
	Error   lipgloss.Style
}

func defaultHelpStyles() helpStyles {
	return helpStyles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("208")),
		Section: lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("208")),
		Command: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Sub:     lipgloss.NewStyle().Foreground(lipgloss.Color("14")),
		Flag:    lipgloss.NewStyle().Foreground(lipgloss.Color("13")),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		Error:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
	}
}

// getTerminalWidth returns the terminal width capped at maxWidth.
func getTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width < minWidth {
		return maxWidth
	}
	return min(width, maxWidth)
}

// wrapText wraps text to width, preserving existing line breaks.
func wrapText(text string, width int) string {
	if width <= 0 {
		width = maxWidth
	}

	var result []string
	for _, paragraph := range strings.Split(text, "\n") {
		if len(paragraph) <= width {
			result = append(result, paragraph)
			continue
		}
		var line string
		for _, word := range strings.Fields(paragraph) {
			switch {
			case line == "":
				line = word
			case len(line)+1+len(word) <= width:
				line += " " + word
			default:
				result = append(result, line)
				line = word
			}
		}
		if line != "" {
			result = append(result, line)
		}
	}
	return strings.Join(result, "\n")
}

// SetStyledHelp applies the styled help output to a command.
func SetStyledHelp(cmd *cobra.Command) {
	cmd.SetHelpFunc(styledHelpFunc)
}

// ApplyStyledHelpRecursive applies styled help to a command and all its
// subcommands. Call it after every subcommand has been added.
func ApplyStyledHelpRecursive(cmd *cobra.Command) {
	cmd.SetHelpFunc(styledHelpFunc)
	cmd.SetUsageFunc(func(*cobra.Command) error { return nil })
	for _, sub := range cmd.Commands() {
		ApplyStyledHelpRecursive(sub)
	}
}

// PrintError prints a styled error with a help hint to the command's stderr.
func PrintError(cmd *cobra.Command, err error) {
	s := defaultHelpStyles()
	fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", s.Error.Render("Error:"), err.Error())
	fmt.Fprintln(cmd.ErrOrStderr(), s.Muted.Render(fmt.Sprintf("Run '%s --help' for usage.", cmd.CommandPath())))
}

// splitExamples separates an "Examples:" section from a long description.
func splitExamples(long string) (description, examples string) {
	for _, marker := range []string{"\nExamples:\n", "\nExample:\n"} {
		if idx := strings.Index(long, marker); idx != -1 {
			return strings.TrimSpace(long[:idx]), strings.TrimSpace(long[idx+len(marker):])
		}
	}
	return long, ""
}

// styleExampleLine colors the binary, subcommand and flags of one example.
func styleExampleLine(s helpStyles, line, root string) string {
	parts := strings.Fields(line)
	for i, part := range parts {
		switch {
		case i == 0 && part == root:
			parts[i] = s.Command.Render(part)
		case i == 1 && !strings.HasPrefix(part, "-"):
			parts[i] = s.Sub.Render(part)
		case strings.HasPrefix(part, "-"):
			parts[i] = s.Flag.Render(part)
		}
	}
	return "  " + strings.Join(parts, " ")
}

func styledHelpFunc(cmd *cobra.Command, _ []string) {
	renderHelp(cmd.OutOrStdout(), cmd, defaultHelpStyles(), getTerminalWidth()-2)
}

func renderHelp(w io.Writer, cmd *cobra.Command, s helpStyles, width int) {
	fmt.Fprintln(w, " "+s.Title.Render(strings.ToUpper(cmd.CommandPath())))

	description, examples := splitExamples(cmd.Long)
	if cmd.Short != "" {
		for _, line := range strings.Split(wrapText(cmd.Short, width), "\n") {
			fmt.Fprintln(w, " "+lipgloss.NewStyle().Italic(true).Render(line))
		}
	}
	if description != "" && description != cmd.Short {
		fmt.Fprintln(w)
		for _, line := range strings.Split(wrapText(description, width), "\n") {
			fmt.Fprintln(w, " "+line)
		}
	}

	if cmd.Runnable() || cmd.HasSubCommands() {
		fmt.Fprintln(w, "\n "+s.Section.Render("USAGE"))
		if cmd.Runnable() {
			fmt.Fprintf(w, " %s\n", cmd.UseLine())
		}
		if cmd.HasSubCommands() {
			fmt.Fprintf(w, " %s [command]\n", cmd.CommandPath())
		}
	}

	if cmd.HasAvailableSubCommands() {
		maxLen := 0
		for _, sub := range cmd.Commands() {
			if sub.IsAvailableCommand() {
				maxLen = max(maxLen, len(sub.Name()))
			}
		}
		fmt.Fprintln(w, "\n "+s.Section.Render("COMMANDS"))
		for _, sub := range cmd.Commands() {
			if sub.IsAvailableCommand() {
				padding := strings.Repeat(" ", maxLen-len(sub.Name()))
				fmt.Fprintf(w, " %s%s  %s\n", s.Command.Render(sub.Name()), padding, sub.Short)
			}
		}
	}

	var flags []*pflag.Flag
	cmd.LocalFlags().VisitAll(func(f *pflag.Flag) {
		if !f.Hidden {
			flags = append(flags, f)
		}
	})
	if len(flags) > 0 {
		fmt.Fprintln(w, "\n "+s.Section.Render("FLAGS"))
		maxLen := 0
		for _, f := range flags {
			maxLen = max(maxLen, len(flagName(f)))
		}
		for _, f := range flags {
			name := flagName(f)
			usage := f.Usage
			if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "[]" {
				usage += s.Muted.Render(fmt.Sprintf(" (default: %s)", f.DefValue))
			}
			fmt.Fprintf(w, " %s%s  %s\n", s.Flag.Render(name), strings.Repeat(" ", maxLen-len(name)), usage)
		}
	}

	if cmd.Example != "" {
		examples = cmd.Example
	}
	if examples != "" {
		fmt.Fprintln(w, "\n "+s.Section.Render("EXAMPLES"))
		root := cmd.Root().Name()
		for _, line := range strings.Split(examples, "\n") {
			trimmed := strings.TrimSpace(line)
			switch {
			case trimmed == "":
				fmt.Fprintln(w)
			case strings.HasPrefix(trimmed, "#"):
				fmt.Fprintln(w, " "+s.Muted.Render(trimmed))
			default:
				fmt.Fprintln(w, " "+styleExampleLine(s, trimmed, root))
			}
		}
	}

	if cmd.HasSubCommands() {
		fmt.Fprintf(w, "\n Use \"%s [command] --help\" for more information.\n", cmd.CommandPath())
	}
}

// flagName returns "-f, --flag" or "    --flag".
func flagName(f *pflag.Flag) string {
	if f.Shorthand != "" {
		return fmt.Sprintf("-%s, --%s", f.Shorthand, f.Name)
	}
	return fmt.Sprintf("    --%s", f.Name)
}
