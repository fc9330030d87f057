package report

import (
	"errors"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/six502/emuctl/internal/domain"
)

var ErrUnexpectedRenderModel = errors.New("unexpected final bubbletea model type")

type renderReadyMsg struct{}

type model struct {
	report *domain.Report
	opts   RenderOptions
	styles styles
	output string
}

func newModel(report *domain.Report, opts RenderOptions) model {
	return model{
		report: report,
		opts:   opts,
		styles: newStyles(),
	}
}

func (m model) Init() tea.Cmd {
	return func() tea.Msg {
		return renderReadyMsg{}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg.(type) {
	case renderReadyMsg:
		m.output = renderView(m.report, m.opts, m.styles)
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m model) View() string {
	return m.output
}

// Render produces the report as a plain string. The program runs
// headless with discarded IO, so the caller decides where it goes.
func Render(report *domain.Report, opts RenderOptions) (string, error) {
	p := tea.NewProgram(
		newModel(report, opts),
		tea.WithInput(nil),
		tea.WithOutput(io.Discard),
	)

	finalModel, err := p.Run()
	if err != nil {
		return "", err
	}

	rendered, ok := finalModel.(model)
	if !ok {
		return "", ErrUnexpectedRenderModel
	}

	return rendered.View(), nil
}
