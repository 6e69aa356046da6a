// Copyright (C) 2025 Cascadia Health (dev@cascadiahealth.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/CascadiaHealth/CascadiaGate/pkg/ux"
	"github.com/CascadiaHealth/CascadiaGate/services/gateway/handlers"
)

// runChat opens the interactive TUI chat over the gateway WebSocket.
func runChat(cmd *cobra.Command, args []string) error {
	conn, err := dialChat(config)
	if err != nil {
		return err
	}
	defer conn.Close()

	events := make(chan handlers.WSEvent, 16)
	go readPump(conn, events)

	model := newChatModel(conn, events, chatSessionID)
	program := tea.NewProgram(model, tea.WithAltScreen())
	final, err := program.Run()
	if err != nil {
		return fmt.Errorf("chat session failed: %w", err)
	}
	if m, ok := final.(chatModel); ok && m.fatalErr != nil {
		return m.fatalErr
	}
	return nil
}

// dialChat upgrades the configured gateway URL to a WebSocket connection.
func dialChat(cfg Config) (*websocket.Conn, error) {
	parsed, err := url.Parse(cfg.GatewayURL)
	if err != nil {
		return nil, fmt.Errorf("invalid gateway URL: %w", err)
	}
	scheme := "ws"
	if parsed.Scheme == "https" {
		scheme = "wss"
	}
	wsURL := fmt.Sprintf("%s://%s/v1/chat/ws", scheme, parsed.Host)

	header := http.Header{}
	if cfg.APIKey != "" {
		header.Set("Authorization", "Bearer "+cfg.APIKey)
	}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to the gateway at %s: %w", wsURL, err)
	}
	return conn, nil
}

// readPump forwards server frames to the TUI until the connection closes.
func readPump(conn *websocket.Conn, events chan<- handlers.WSEvent) {
	defer close(events)
	for {
		var event handlers.WSEvent
		if err := conn.ReadJSON(&event); err != nil {
			return
		}
		events <- event
	}
}

type wsEventMsg handlers.WSEvent

type wsClosedMsg struct{}

func waitForEvent(events <-chan handlers.WSEvent) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-events
		if !ok {
			return wsClosedMsg{}
		}
		return wsEventMsg(event)
	}
}

// chatModel is the bubbletea model for the chat session.
type chatModel struct {
	conn   *websocket.Conn
	events <-chan handlers.WSEvent

	viewport viewport.Model
	textarea textarea.Model

	sessionID  string
	transcript strings.Builder
	partial    strings.Builder
	waiting    bool
	ready      bool
	width      int
	height     int
	fatalErr   error
}

func newChatModel(conn *websocket.Conn, events <-chan handlers.WSEvent, sessionID string) chatModel {
	ta := textarea.New()
	ta.Placeholder = "Ask the clinic assistant..."
	ta.Focus()
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	return chatModel{
		conn:      conn,
		events:    events,
		textarea:  ta,
		sessionID: sessionID,
	}
}

// Init implements tea.Model.
func (m chatModel) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, waitForEvent(m.events))
}

// Update implements tea.Model.
func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var taCmd, vpCmd tea.Cmd
	m.textarea, taCmd = m.textarea.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 2
		footerHeight := m.textarea.Height() + 2
		viewportHeight := m.height - headerHeight - footerHeight

		if !m.ready {
			m.viewport = viewport.New(m.width, viewportHeight)
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = viewportHeight
		}
		m.textarea.SetWidth(m.width)
		m.refreshViewport()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			if m.waiting {
				return m, tea.Batch(taCmd, vpCmd)
			}
			message := strings.TrimSpace(m.textarea.Value())
			if message == "" {
				return m, tea.Batch(taCmd, vpCmd)
			}
			if err := m.conn.WriteJSON(handlers.WSRequest{
				Action:    "chat",
				Message:   message,
				SessionID: m.sessionID,
			}); err != nil {
				m.fatalErr = fmt.Errorf("failed to send the message: %w", err)
				return m, tea.Quit
			}
			m.transcript.WriteString(ux.Styles.Highlight.Render("You: ") + message + "\n")
			m.textarea.Reset()
			m.waiting = true
			m.refreshViewport()
		}

	case wsEventMsg:
		m.applyEvent(handlers.WSEvent(msg))
		return m, tea.Batch(taCmd, vpCmd, waitForEvent(m.events))

	case wsClosedMsg:
		if m.fatalErr == nil {
			m.fatalErr = fmt.Errorf("connection closed by the gateway")
		}
		return m, tea.Quit
	}

	return m, tea.Batch(taCmd, vpCmd)
}

func (m *chatModel) applyEvent(event handlers.WSEvent) {
	switch event.Action {
	case "session_created":
		// The server assigns its own session unless we resumed one.
		if m.sessionID == "" {
			m.sessionID = event.SessionID
		}
	case "token":
		if m.partial.Len() == 0 {
			m.transcript.WriteString(ux.Styles.Success.Render("Assistant: "))
		}
		m.partial.WriteString(event.Content)
		m.refreshViewport()
	case "done":
		m.transcript.WriteString(m.partial.String() + "\n")
		if event.RedactionCount > 0 {
			m.transcript.WriteString(ux.Styles.Muted.Render(
				fmt.Sprintf("(%d PHI values were redacted from your message)", event.RedactionCount)) + "\n")
		}
		m.partial.Reset()
		m.waiting = false
		m.refreshViewport()
	case "error":
		m.transcript.WriteString(ux.Styles.Error.Render("error: "+event.Error) + "\n")
		m.partial.Reset()
		m.waiting = false
		m.refreshViewport()
	}
}

func (m *chatModel) refreshViewport() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.transcript.String() + m.partial.String())
	m.viewport.GotoBottom()
}

// View implements tea.Model.
func (m chatModel) View() string {
	if !m.ready {
		return "Connecting..."
	}

	session := m.sessionID
	if session == "" {
		session = "pending"
	}
	header := ux.Styles.Title.Render("CascadiaGate Chat") +
		ux.Styles.Muted.Render("  session "+session)

	footer := m.textarea.View() + "\n" +
		ux.Styles.Muted.Render("enter to send · esc to quit")

	return header + "\n\n" + m.viewport.View() + "\n" + footer
}
