package render

import (
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/glamour/styles"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Renderer renders markdown for terminal output.
type Renderer interface {
	Render(in string) (string, error)
}

// PlainTextRenderer returns content as-is without formatting. Used as
// a fallback when glamour rendering fails.
type PlainTextRenderer struct{}

// Render returns the input unchanged
func (p *PlainTextRenderer) Render(in string) (string, error) {
	return in, nil
}

// IsTTY returns true if stdout is connected to a terminal
func IsTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// getBaseStyle returns the appropriate glamour style based on terminal background.
func getBaseStyle() ansi.StyleConfig {
	style := styles.LightStyleConfig
	if termenv.HasDarkBackground() {
		style = styles.DarkStyleConfig
	}
	style.Document.BlockPrefix = ""
	return style
}

// getASCIIStyle returns the ASCII style with no document margin.
func getASCIIStyle() ansi.StyleConfig {
	style := styles.ASCIIStyleConfig
	style.Document.BlockPrefix = ""
	style.Document.Margin = nil
	return style
}

// NewTerminalRenderer creates a renderer appropriate for the current
// context: a styled glamour renderer on a TTY, an ASCII renderer
// otherwise, and a plain passthrough if glamour setup fails.
func NewTerminalRenderer() Renderer {
	style := getBaseStyle()
	if !IsTTY() {
		style = getASCIIStyle()
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStyles(style),
		glamour.WithWordWrap(120),
	)
	if err != nil {
		return &PlainTextRenderer{}
	}
	return renderer
}
