package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/sweeney/shake-timer/internal/logic"
)

const listWidth = 36

// View renders the UI.
func (m model) View() string {
	if m.quitting {
		return ""
	}

	header := styleTitle.Render("shake-timer")
	if m.opts.Server != "" {
		header += styleDetail.Render("  " + m.opts.Server)
	}

	var body string
	if m.mode == modeLogin {
		body = m.renderLogin()
	} else {
		body = m.renderTimer()
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, body, m.statusBar())
}

func (m model) renderLogin() string {
	form := lipgloss.JoinVertical(lipgloss.Left,
		m.username.View(),
		m.password.View(),
	)
	return stylePanelBorder.Width(listWidth).Render(form)
}

func (m model) renderTimer() string {
	style := styleElapsed
	if m.view.Timer.Running {
		style = styleElapsedRunning
	}
	elapsed := style.Render(logic.FormatSeconds(m.view.Timer.Elapsed()))

	detail := fmt.Sprintf("%s  |a| %s  sensor %s",
		m.view.Timer.State(),
		logic.FormatMagnitude(m.view.Magnitude),
		m.view.Capability)
	if m.view.CanSubmit {
		detail += "  [s] submit"
	}

	list := stylePanelBorder.Width(listWidth).Render(m.renderRecords())

	return lipgloss.JoinVertical(lipgloss.Left,
		elapsed,
		styleDetail.Render(detail),
		list,
	)
}

func (m model) renderRecords() string {
	if len(m.view.Records) == 0 {
		return styleDetail.Render("no times recorded")
	}
	var b strings.Builder
	for i, r := range m.view.Records {
		line := fmt.Sprintf("%3d  %8ss", i+1, logic.FormatSeconds(r.Elapsed()))
		if i == m.cursor {
			b.WriteString(styleListSelected.Render("> " + line))
		} else {
			b.WriteString(styleListNormal.Render("  " + line))
		}
		if i < len(m.view.Records)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func (m model) statusBar() string {
	if m.err != nil {
		return styleStatusBar.Render(styleError.Render(m.err.Error()))
	}

	var help []string
	if m.mode == modeLogin {
		help = []string{
			keys.Next.Help().Key + " " + keys.Next.Help().Desc,
			keys.Enter.Help().Key + " " + keys.Enter.Help().Desc,
		}
	} else {
		for _, k := range []struct{ key, desc string }{
			{keys.Toggle.Help().Key, keys.Toggle.Help().Desc},
			{keys.Submit.Help().Key, keys.Submit.Help().Desc},
			{keys.Delete.Help().Key, keys.Delete.Help().Desc},
			{keys.Refresh.Help().Key, keys.Refresh.Help().Desc},
			{keys.Logout.Help().Key, keys.Logout.Help().Desc},
		} {
			help = append(help, k.key+" "+k.desc)
		}
	}
	help = append(help, keys.Quit.Help().Key+" "+keys.Quit.Help().Desc)

	line := strings.Join(help, " · ")
	if m.status != "" {
		line = m.status + "  " + line
	}
	return styleStatusBar.Render(line)
}
