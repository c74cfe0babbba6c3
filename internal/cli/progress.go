package cli

import (
	"fmt"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"

	"github.com/kriswu/inkstone/internal/session"
	"github.com/kriswu/inkstone/internal/storyboard"
)

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status     lipgloss.Color
	Success    lipgloss.Color
	Error      lipgloss.Color
	Hint       lipgloss.Color
	ProgressBg lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:     lipgloss.Color("#5FAFD7"), // light blue
	Success:    lipgloss.Color("#00D787"), // green
	Error:      lipgloss.Color("#FF005F"), // red
	Hint:       lipgloss.Color("#6C6C6C"), // dim gray
	ProgressBg: lipgloss.Color("#3A3A3A"), // dark gray
}

// Style functions for dynamic theming
func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// noteMsg wraps one session notification for the bubbletea loop.
type noteMsg struct{ note session.Notification }

// progressModel renders live generation progress driven by session
// notifications rather than polling.
type progressModel struct {
	sess      *session.Session
	processID string

	progress progress.Model
	theme    Theme

	current  storyboard.Progress
	status   string
	images   []storyboard.ComicImage
	done     bool
	quitting bool
	err      error
}

// newProgressModel creates a progress model for one generation job.
func newProgressModel(s *session.Session, processID string) progressModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)
	return progressModel{
		sess:      s,
		processID: processID,
		progress:  prog,
		theme:     defaultTheme,
		status:    "waiting for backend",
	}
}

// Init starts listening for notifications.
func (m progressModel) Init() tea.Cmd {
	return tea.Batch(
		m.nextNote(),
		m.progress.Init(),
	)
}

// Update handles messages and returns the updated model.
func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			// Cancellation is client-authoritative: the session goes
			// idle now, whatever the backend does with the request.
			m.sess.CancelGeneration(m.processID)
			m.quitting = true
			m.done = true
			return m, tea.Quit
		}

	case noteMsg:
		switch n := msg.note.(type) {
		case session.GenerationProgressed:
			if n.ProcessID == m.processID {
				m.current = n.Progress
			}
		case session.GalleryReady:
			if n.ProcessID == m.processID {
				m.images = n.Images
				m.done = true
				return m, tea.Quit
			}
		case session.GenerationFailed:
			if n.ProcessID == m.processID {
				reason := n.Reason
				if n.Timeout {
					reason = "generation timed out"
				}
				m.err = fmt.Errorf("%s", reason)
				m.done = true
				return m, tea.Quit
			}
		case session.GenerationCancelled:
			if n.ProcessID == m.processID {
				m.quitting = true
				m.done = true
				return m, tea.Quit
			}
		case session.StatusMessage:
			m.status = n.Message
		case session.ConnectionLost:
			m.status = "connection lost, retrying"
		case session.Reconnected:
			m.status = fmt.Sprintf("reconnected (attempt %d)", n.Attempt)
		}
		return m, m.nextNote()

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress display.
func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

// renderContent builds the display string.
func (m progressModel) renderContent() string {
	if m.done {
		return m.finalView()
	}

	pct := float64(m.current.Percentage()) / 100

	status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", m.status))
	progressBar := m.progress.ViewAs(pct)
	counts := fmt.Sprintf("%d/%d scenes", m.current.Current, m.current.Total)
	hint := m.theme.hintStyle().Render("Press Ctrl+C to cancel")

	line := m.current.Message
	if line != "" {
		line += "\n"
	}
	return fmt.Sprintf("%s %s %s\n%s%s\n", status, progressBar, counts, line, hint)
}

// finalView renders the completion message.
func (m progressModel) finalView() string {
	if m.quitting {
		return m.theme.hintStyle().Render("\nGeneration cancelled.\n")
	}
	if m.err != nil {
		return m.theme.errorStyle().Render(fmt.Sprintf("\n✗ Generation failed: %s\n", m.err))
	}
	return m.theme.completedStyle().Render(fmt.Sprintf("✓ Generated %d images\n", len(m.images)))
}

// nextNote blocks on the notification stream inside a command so
// Update never stalls.
func (m progressModel) nextNote() tea.Cmd {
	return func() tea.Msg {
		return noteMsg{note: <-m.sess.Notifications()}
	}
}

// RunGenerationProgress runs the interactive progress UI for one job
// and returns the completed gallery. A cancelled run returns nil
// images and nil error; a failed run returns the failure.
func RunGenerationProgress(s *session.Session, processID string) ([]storyboard.ComicImage, error) {
	model := newProgressModel(s, processID)
	p := tea.NewProgram(model)

	finalModel, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("progress UI error: %w", err)
	}

	if m, ok := finalModel.(progressModel); ok {
		if m.quitting {
			return nil, nil
		}
		if m.err != nil {
			return nil, m.err
		}
		return m.images, nil
	}
	return nil, nil
}
