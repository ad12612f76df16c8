package controller

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/term"
)

// Lines taken by the pager's header and footer.
const pagerChromeHeight = 2

// TUI implements UI by collecting everything a command prints and showing it
// in a scrollable Bubble Tea viewport on Close when it does not fit the screen.
type TUI struct {
	*SimpleUI
	buf    *bytes.Buffer
	out    io.Writer
	height int
	run    func(ctx context.Context, model tea.Model) error
}

// NewTUI creates a TUI drawing on the terminal f.
func NewTUI(f *os.File) *TUI {
	height := 0
	if _, h, err := term.GetSize(f.Fd()); err == nil {
		height = h
	}

	t := newBufferedTUI(f, height)
	t.run = func(ctx context.Context, model tea.Model) error {
		_, err := tea.NewProgram(model,
			tea.WithContext(ctx),
			tea.WithOutput(f),
			tea.WithAltScreen(),
		).Run()

		return err
	}

	return t
}

func newBufferedTUI(out io.Writer, height int) *TUI {
	buf := &bytes.Buffer{}

	ui := newWriterUI(buf)
	// Styles follow the real output, not the buffer.
	ui.styles = newWriterUI(out).styles

	return &TUI{SimpleUI: ui, buf: buf, out: out, height: height}
}

// Close implements UI. Output that fits on one screen is printed directly.
func (t *TUI) Close(ctx context.Context) error {
	content := t.buf.String()
	t.buf.Reset()

	if t.height <= 0 || t.run == nil || strings.Count(content, "\n") <= t.height-pagerChromeHeight {
		_, err := io.WriteString(t.out, content)
		return err
	}

	if err := t.run(ctx, newPagerModel("failpass", content)); err != nil {
		return fmt.Errorf("pager: %w", err)
	}

	return nil
}

type pagerModel struct {
	title    string
	content  string
	viewport viewport.Model
	ready    bool
	header   lipgloss.Style
	footer   lipgloss.Style
}

func newPagerModel(title, content string) pagerModel {
	return pagerModel{
		title:   title,
		content: content,
		header:  lipgloss.NewStyle().Bold(true),
		footer:  lipgloss.NewStyle().Faint(true),
	}
}

func (pm pagerModel) Init() tea.Cmd {
	return nil
}

func (pm pagerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		height := max(msg.Height-pagerChromeHeight, 1)

		if !pm.ready {
			pm.viewport = viewport.New(msg.Width, height)
			pm.viewport.SetContent(pm.content)
			pm.ready = true

			return pm, nil
		}

		pm.viewport.Width = msg.Width
		pm.viewport.Height = height

		return pm, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return pm, tea.Quit
		case "g", "home":
			pm.viewport.GotoTop()
			return pm, nil
		case "G", "end":
			pm.viewport.GotoBottom()
			return pm, nil
		}
	}

	var cmd tea.Cmd
	pm.viewport, cmd = pm.viewport.Update(msg)

	return pm, cmd
}

func (pm pagerModel) View() string {
	if !pm.ready {
		return "Loading..."
	}

	header := pm.header.Render(pm.title)
	footer := pm.footer.Render(fmt.Sprintf("%3.f%% | ↑/k up | ↓/j down | g top | G bottom | q quit",
		pm.viewport.ScrollPercent()*100))

	return fmt.Sprintf("%s\n%s\n%s", header, pm.viewport.View(), footer)
}
