// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Orazio Franco, RoBoRa Project

package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/RoBoRa25/robora/pkg/roboproto"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Live TUI showing node telemetry and update progress",
	Long: `Full-screen view of a running node.

Shows the latest telemetry broadcast, a progress bar during firmware or
filesystem updates, and a scrolling event log.

Keys:
  i       request an info snapshot
  q       quit

Telemetry must be enabled on the node (config_wr enable=1 in the
telemetria section) for the drive readouts to update.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

type monitorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// monitorModel is the Bubble Tea model for the monitor TUI
type monitorModel struct {
	conn     *NodeConn
	connInfo string

	// Latest telemetry broadcast, nil until the first one arrives
	telemetry roboproto.Envelope

	// Update tracking
	updating   bool
	updateDone int
	updateMax  int
	bar        progress.Model

	// Event log
	log           []monitorLogEntry
	maxLogEntries int

	// UI state
	width    int
	height   int
	lost     bool
	quitting bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type monitorTickMsg time.Time

type monitorEnvMsg struct {
	env roboproto.Envelope
}

type monitorLostMsg struct{}

//////////////////////////////////////////////////////////////
// Model
//////////////////////////////////////////////////////////////

func initialMonitorModel(conn *NodeConn, connInfo string) monitorModel {
	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 40

	return monitorModel{
		conn:          conn,
		connInfo:      connInfo,
		bar:           bar,
		log:           make([]monitorLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return monitorTickCmd()
}

func monitorTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return monitorTickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "i":
			if !m.lost {
				m.conn.Send(roboproto.Envelope{"CMD": roboproto.CmdInfoReq})
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = m.width - 12

	case monitorTickMsg:
		return m, monitorTickCmd()

	case monitorEnvMsg:
		m.processEnvelope(msg.env)

	case monitorLostMsg:
		m.lost = true
		m.addLogEntry("Connection lost", true)
	}
	return m, nil
}

func (m *monitorModel) processEnvelope(e roboproto.Envelope) {
	switch e.Command() {
	case roboproto.CmdTelemetry:
		m.telemetry = e

	case roboproto.CmdOTA:
		m.processUpdateEvent(e)

	case roboproto.CmdHelloReply:
		m.addLogEntry(fmt.Sprintf("Connected to %s ver %s",
			e.String("server", "?"), e.String("ver", "?")), false)

	case roboproto.CmdInfo:
		m.addLogEntry(fmt.Sprintf("Info: %s ver %s, %d client(s), up %ds",
			e.String("hostname", "?"), e.String("ver", "?"),
			e.Int("clients", 0), e.Int("uptime_s", 0)), false)

	case roboproto.CmdError:
		m.addLogEntry(fmt.Sprintf("Node error: %s", e.String("msg", "?")), true)
	}
}

func (m *monitorModel) processUpdateEvent(e roboproto.Envelope) {
	switch e.String("event", "") {
	case roboproto.EventStart:
		m.updating = true
		m.updateDone = 0
		m.updateMax = e.Int("total", 0)
		if m.updateMax == 0 {
			m.updateMax = e.Int("max", 0)
		}
		m.addLogEntry(fmt.Sprintf("Update started: target=%s total=%d",
			e.String("target", "?"), e.Int("total", 0)), false)

	case roboproto.EventProgress:
		m.updating = true
		m.updateDone = e.Int("done", 0)
		if t := e.Int("total", 0); t > 0 {
			m.updateMax = t
		}

	case roboproto.EventReject:
		m.updating = false
		m.addLogEntry(fmt.Sprintf("Update rejected: %s", e.String("reason", "?")), true)

	case roboproto.EventEnd:
		m.updating = false
		if e.Bool("ok", false) {
			m.addLogEntry("Update finished OK, node restarting", false)
		} else {
			m.addLogEntry(fmt.Sprintf("Update failed: %s", e.String("message", "?")), true)
		}
	}
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	m.log = append(m.log, monitorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})
	if len(m.log) > m.maxLogEntries {
		m.log = m.log[len(m.log)-m.maxLogEntries:]
	}
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

func (m monitorModel) View() string {
	if m.quitting {
		return ""
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("RoBoRa Monitor"))
	s.WriteString("  ")
	s.WriteString(headerStyle.Render(m.connInfo))
	if m.lost {
		s.WriteString("  ")
		s.WriteString(errorStyle.Render("DISCONNECTED"))
	}
	s.WriteString("\n\n")

	s.WriteString(m.renderTelemetry(labelStyle, valueStyle, boxStyle))
	s.WriteString("\n")
	s.WriteString(m.renderUpdate(labelStyle, valueStyle, boxStyle))
	s.WriteString("\n")
	s.WriteString(m.renderEventLog(labelStyle, warningStyle, errorStyle, headerStyle, boxStyle))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render("i: info  q: quit"))

	return s.String()
}

func (m monitorModel) renderTelemetry(labelStyle, valueStyle, boxStyle lipgloss.Style) string {
	var content strings.Builder
	content.WriteString(labelStyle.Render("TELEMETRY"))
	content.WriteString(" | ")

	if m.telemetry == nil {
		content.WriteString("No telemetry data")
		return boxStyle.Width(m.width - 4).Render(content.String())
	}

	t := m.telemetry
	content.WriteString(fmt.Sprintf("%s %s  ",
		labelStyle.Render("Throttle:"),
		valueStyle.Render(fmt.Sprintf("%d", t.Int("throttle", 0)))))
	content.WriteString(fmt.Sprintf("%s %s  ",
		labelStyle.Render("Steer:"),
		valueStyle.Render(fmt.Sprintf("%d", t.Int("steer", 0)))))
	content.WriteString(fmt.Sprintf("%s %s  ",
		labelStyle.Render("Motors:"),
		valueStyle.Render(fmt.Sprintf("%d/%d", t.Int("motorA", 0), t.Int("motorB", 0)))))
	content.WriteString(fmt.Sprintf("%s %s  ",
		labelStyle.Render("LED:"),
		valueStyle.Render(t.String("led", "off"))))
	content.WriteString(fmt.Sprintf("%s %s",
		labelStyle.Render("Clients:"),
		valueStyle.Render(fmt.Sprintf("%d", t.Int("clients", 0)))))

	return boxStyle.Width(m.width - 4).Render(content.String())
}

func (m monitorModel) renderUpdate(labelStyle, valueStyle, boxStyle lipgloss.Style) string {
	var content strings.Builder
	content.WriteString(labelStyle.Render("UPDATE"))
	content.WriteString("\n")

	if !m.updating {
		content.WriteString("No update in progress")
		return boxStyle.Width(m.width - 4).Render(content.String())
	}

	pct := 0.0
	if m.updateMax > 0 {
		pct = float64(m.updateDone) / float64(m.updateMax)
	}
	content.WriteString(m.bar.ViewAs(pct))
	content.WriteString("\n")
	content.WriteString(fmt.Sprintf("%s %s",
		labelStyle.Render("Bytes:"),
		valueStyle.Render(fmt.Sprintf("%d / %d", m.updateDone, m.updateMax))))

	return boxStyle.Width(m.width - 4).Render(content.String())
}

func (m monitorModel) renderEventLog(labelStyle, warningStyle, errorStyle, headerStyle, boxStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(labelStyle.Render("EVENTS"))
	s.WriteString("\n")

	logHeight := 8
	startIdx := len(m.log) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.log) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.log); i++ {
			entry := m.log[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			icon := "i"
			style := warningStyle
			if entry.isError {
				icon = "x"
				style = errorStyle
			}
			s.WriteString(fmt.Sprintf("%s %s %s\n",
				headerStyle.Render(timestamp),
				style.Render(icon),
				entry.message))
		}
	}

	return boxStyle.Width(m.width - 4).Render(s.String())
}

//////////////////////////////////////////////////////////////
// Entry Point
//////////////////////////////////////////////////////////////

func runMonitor(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	p := tea.NewProgram(initialMonitorModel(conn, connInfo), tea.WithAltScreen())

	// Pump envelopes from the node into the program
	go func() {
		for {
			e, err := conn.Read()
			if err != nil {
				p.Send(monitorLostMsg{})
				return
			}
			p.Send(monitorEnvMsg{env: e})
		}
	}()

	_, err = p.Run()
	return err
}
