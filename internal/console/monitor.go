// Package console renders a live feed of proxy job events in the terminal,
// fed by the proxy's event websocket.
package console

import (
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
)

const (
	maxEvents    = 200
	retryDelay   = 3 * time.Second
	dialDeadline = 10 * time.Second
)

// wireMessage mirrors the proxy's websocket event frames.
type wireMessage struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data"`
}

type jobEvent struct {
	at      time.Time
	kind    string
	id      string
	rasters int
	pulses  int
	bytes   int
	err     string
}

// Messages
type connectedMsg struct{ conn *websocket.Conn }
type eventMsg struct{ event jobEvent }
type disconnectMsg struct{ err error }
type retryMsg time.Time

// Monitor is the top-level Bubble Tea model.
type Monitor struct {
	url      string
	insecure bool

	conn      *websocket.Conn
	connected bool
	lastErr   error

	events []jobEvent
	total  int

	spinner  spinner.Model
	width    int
	height   int
	quitting bool
}

// NewMonitor creates a monitor for the event socket at url.
func NewMonitor(url string, insecure bool) *Monitor {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	return &Monitor{
		url:      url,
		insecure: insecure,
		spinner:  s,
		events:   make([]jobEvent, 0, maxEvents),
	}
}

// SocketURL converts a proxy base URL into its event socket address.
func SocketURL(base string) (string, error) {
	base = strings.TrimRight(base, "/")
	switch {
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://") + "/ws", nil
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://") + "/ws", nil
	case strings.HasPrefix(base, "ws://"), strings.HasPrefix(base, "wss://"):
		if strings.HasSuffix(base, "/ws") {
			return base, nil
		}
		return base + "/ws", nil
	}
	return "", fmt.Errorf("unsupported proxy URL %q", base)
}

// Init starts the spinner and the first connection attempt.
func (m *Monitor) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.connectCmd())
}

func (m *Monitor) connectCmd() tea.Cmd {
	url := m.url
	insecure := m.insecure
	return func() tea.Msg {
		dialer := *websocket.DefaultDialer
		dialer.HandshakeTimeout = dialDeadline
		if insecure {
			dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}

		conn, resp, err := dialer.Dial(url, nil)
		if err != nil {
			return disconnectMsg{err: err}
		}
		if resp != nil {
			resp.Body.Close()
		}
		return connectedMsg{conn: conn}
	}
}

// readCmd blocks on the next frame; bubbletea runs it off the UI loop.
func readCmd(conn *websocket.Conn) tea.Cmd {
	return func() tea.Msg {
		var msg wireMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return disconnectMsg{err: err}
		}
		return eventMsg{event: decodeEvent(msg)}
	}
}

func retryCmd() tea.Cmd {
	return tea.Tick(retryDelay, func(t time.Time) tea.Msg {
		return retryMsg(t)
	})
}

func decodeEvent(msg wireMessage) jobEvent {
	e := jobEvent{at: time.Now(), kind: msg.Event}
	if id, ok := msg.Data["id"].(string); ok {
		e.id = id
	}
	if n, ok := msg.Data["rasters"].(float64); ok {
		e.rasters = int(n)
	}
	if n, ok := msg.Data["pulses"].(float64); ok {
		e.pulses = int(n)
	}
	if n, ok := msg.Data["bytes"].(float64); ok {
		e.bytes = int(n)
	}
	if s, ok := msg.Data["error"].(string); ok {
		e.err = s
	}
	return e
}

// Update handles messages
func (m *Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			if m.conn != nil {
				m.conn.Close()
			}
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case connectedMsg:
		m.conn = msg.conn
		m.connected = true
		m.lastErr = nil
		return m, readCmd(m.conn)

	case eventMsg:
		m.total++
		m.events = append(m.events, msg.event)
		if len(m.events) > maxEvents {
			m.events = m.events[len(m.events)-maxEvents:]
		}
		return m, readCmd(m.conn)

	case disconnectMsg:
		m.connected = false
		m.lastErr = msg.err
		if m.conn != nil {
			m.conn.Close()
			m.conn = nil
		}
		if m.quitting {
			return m, nil
		}
		return m, retryCmd()

	case retryMsg:
		return m, m.connectCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the monitor
func (m *Monitor) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render("ePOS Job Monitor"))
	b.WriteString("\n")

	if m.connected {
		b.WriteString(statusOnline.String() + textNormal.Render(" connected  "+m.url))
	} else {
		b.WriteString(m.spinner.View() + textMuted.Render(" connecting to "+m.url))
		if m.lastErr != nil {
			b.WriteString("  " + errorStyle.Render(truncate(m.lastErr.Error(), 60)))
		}
	}
	b.WriteString("\n\n")

	if len(m.events) == 0 {
		b.WriteString(textMuted.Render("Waiting for jobs..."))
		b.WriteString("\n")
	} else {
		rows := m.visibleRows()
		start := len(m.events) - rows
		if start < 0 {
			start = 0
		}
		for _, e := range m.events[start:] {
			b.WriteString(renderEvent(e))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render(fmt.Sprintf("%d events  ", m.total)) + renderHelp("q", "quit"))
	return b.String()
}

// visibleRows leaves room for the header, status and help lines.
func (m *Monitor) visibleRows() int {
	rows := m.height - 7
	if rows < 1 {
		rows = 10
	}
	if rows > maxEvents {
		rows = maxEvents
	}
	return rows
}

func renderEvent(e jobEvent) string {
	icon := statusPending
	switch e.kind {
	case "job_printed":
		icon = statusOnline
	case "job_failed":
		icon = statusOffline
	}

	line := fmt.Sprintf("%s %s %-9s %-9s rasters=%d pulses=%d bytes=%d",
		e.at.Format("15:04:05"), icon.String(), strings.TrimPrefix(e.kind, "job_"),
		shortID(e.id), e.rasters, e.pulses, e.bytes)
	if e.err != "" {
		line += "  " + errorStyle.Render(truncate(e.err, 48))
	}
	return line
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
