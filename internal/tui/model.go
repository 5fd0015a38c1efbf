// Package tui is the terminal client. It drives the same session as the web client: one composer, a
// scrolling transcript and a typing indicator while a reply is pending.
package tui

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/MegaGrindStone/study-buddy/internal/models"
	"github.com/MegaGrindStone/study-buddy/internal/session"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
)

const uploadCommand = "/upload "

// Uploader sends a selected file to the upload endpoint.
type Uploader interface {
	Upload(ctx context.Context, fileName string, content io.Reader) (models.UploadResult, error)
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")).Padding(0, 1)
	userStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	botStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Bold(true)
	hintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true)
	borderStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63"))
)

type replyMsg struct {
	reply models.Message
}

type uploadDoneMsg struct {
	fileName string
	err      error
}

// Model is the bubbletea model of the terminal client.
type Model struct {
	ctx      context.Context
	session  *session.Session
	uploader Uploader
	logger   *zap.Logger

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer

	width  int
	height int
	ready  bool
}

// NewModel creates the terminal client for sess. A nil uploader disables the /upload command.
func NewModel(ctx context.Context, sess *session.Session, uploader Uploader, logger *zap.Logger) Model {
	ti := textinput.New()
	ti.Placeholder = "Type a message..."
	ti.Prompt = "> "
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctx:      ctx,
		session:  sess,
		uploader: uploader,
		logger:   logger.With(zap.String("module", "tui")),
		input:    ti,
		viewport: viewport.New(80, 20),
		spinner:  sp,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		}

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case replyMsg:
		m.input.Focus()
		m.refresh()
		return m, textinput.Blink

	case uploadDoneMsg:
		return m, nil

	case spinner.TickMsg:
		if !m.session.Pending() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refresh()
		return m, cmd
	}

	var cmds []tea.Cmd
	if !m.session.Pending() {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	value := m.input.Value()

	if m.uploader != nil && strings.HasPrefix(value, uploadCommand) {
		path := strings.TrimSpace(strings.TrimPrefix(value, uploadCommand))
		m.input.SetValue("")
		return m, m.upload(path)
	}

	m.session.SetInput(value)
	ex, ok := m.session.Submit(m.ctx)
	if !ok {
		return m, nil
	}

	m.input.SetValue("")
	m.input.Blur()
	m.refresh()

	return m, tea.Batch(waitReply(ex), m.spinner.Tick)
}

func waitReply(ex *session.Exchange) tea.Cmd {
	return func() tea.Msg {
		<-ex.Done()
		return replyMsg{reply: ex.Reply()}
	}
}

func (m Model) upload(path string) tea.Cmd {
	uploader := m.uploader
	logger := m.logger
	ctx := m.ctx
	return func() tea.Msg {
		name := filepath.Base(path)

		f, err := os.Open(path)
		if err != nil {
			logger.Error("Failed to open file", zap.String("path", path), zap.String("err", err.Error()))
			return uploadDoneMsg{fileName: name, err: err}
		}
		defer f.Close()

		res, err := uploader.Upload(ctx, name, f)
		if err != nil {
			logger.Error("Error uploading file", zap.String("fileName", name), zap.String("err", err.Error()))
			return uploadDoneMsg{fileName: name, err: err}
		}
		logger.Info("File uploaded successfully", zap.String("fileName", res.FileName))
		return uploadDoneMsg{fileName: res.FileName}
	}
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height

	// Title line, input box (3 lines with border) and hint line.
	chatHeight := height - 6
	if chatHeight < 3 {
		chatHeight = 3
	}
	chatWidth := width - 2
	if chatWidth < 20 {
		chatWidth = 20
	}

	m.viewport.Width = chatWidth
	m.viewport.Height = chatHeight
	m.input.Width = chatWidth - 4

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(chatWidth-4),
	)
	if err != nil {
		m.logger.Error("Failed to create markdown renderer", zap.String("err", err.Error()))
	} else {
		m.renderer = renderer
	}

	m.ready = true
	m.refresh()
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) renderTranscript() string {
	msgs, pending := m.session.Snapshot()
	if len(msgs) == 0 && !pending {
		return hintStyle.Render("Start a conversation...")
	}

	var sb strings.Builder
	for _, msg := range msgs {
		if msg.IsUser() {
			sb.WriteString(userStyle.Render("You"))
			sb.WriteString("\n")
			sb.WriteString(msg.Text)
			sb.WriteString("\n\n")
			continue
		}
		sb.WriteString(botStyle.Render("Study Buddy"))
		sb.WriteString("\n")
		sb.WriteString(m.renderMarkdown(msg.Text))
		sb.WriteString("\n")
	}
	if pending {
		sb.WriteString(fmt.Sprintf("%s Typing...", m.spinner.View()))
	}
	return sb.String()
}

func (m Model) renderMarkdown(text string) string {
	if m.renderer == nil {
		return text + "\n"
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		m.logger.Error("Failed to render markdown", zap.String("err", err.Error()))
		return text + "\n"
	}
	return out
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	hint := "enter: send • esc: quit"
	if m.uploader != nil {
		hint += " • /upload <path>: upload a file"
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Study Buddy"),
		m.viewport.View(),
		borderStyle.Width(m.viewport.Width-2).Render(m.input.View()),
		hintStyle.Render(hint),
	)
}
