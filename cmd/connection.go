// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Orazio Franco, RoBoRa Project

package cmd

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/term"

	"github.com/RoBoRa25/robora/pkg/roboproto"
)

// ErrConnectionClosed is returned when reading from a closed connection
var ErrConnectionClosed = fmt.Errorf("websocket connection closed")

// NodeConn is a message-level client connection to a node's command
// channel.
type NodeConn struct {
	conn   *websocket.Conn
	closed bool
}

// Send encodes and writes one command envelope.
func (c *NodeConn) Send(e roboproto.Envelope) error {
	payload, err := e.Encode()
	if err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Read blocks for the next text message and decodes it. Binary messages
// are skipped; the command channel never carries them node-to-client.
func (c *NodeConn) Read() (roboproto.Envelope, error) {
	if c.closed {
		return nil, ErrConnectionClosed
	}
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			c.closed = true
			return nil, err
		}
		if messageType != websocket.TextMessage {
			continue
		}
		return roboproto.Decode(data)
	}
}

// ReadTimeout is Read with a deadline.
func (c *NodeConn) ReadTimeout(d time.Duration) (roboproto.Envelope, error) {
	c.conn.SetReadDeadline(time.Now().Add(d))
	defer c.conn.SetReadDeadline(time.Time{})
	return c.Read()
}

func (c *NodeConn) Close() error {
	return c.conn.Close()
}

// OpenNodeConnection opens a WebSocket connection with HTTP Basic auth
func OpenNodeConnection(wsURL, username, password string, skipSSLVerify bool) (*NodeConn, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %v", err)
	}

	switch u.Scheme {
	case "ws", "wss":
		// OK
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %v", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %v", err)
	}

	return &NodeConn{conn: conn}, nil
}

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	if pw := os.Getenv("ROBORA_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %v", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// OpenConnection opens the node connection configured by the persistent
// flags.
func OpenConnection() (*NodeConn, string, error) {
	if wsURL == "" {
		return nil, "", fmt.Errorf("no connection specified (use --url)")
	}

	password := ""
	if wsUsername != "" {
		var err error
		password, err = GetPassword()
		if err != nil {
			return nil, "", err
		}
	}

	conn, err := OpenNodeConnection(wsURL, wsUsername, password, wsNoSSLVerify)
	if err != nil {
		return nil, "", err
	}

	return conn, fmt.Sprintf("WebSocket: %s", wsURL), nil
}

// httpBase translates the configured ws:// URL into the node's HTTP base
// URL for the update ingress.
func httpBase() (string, error) {
	if wsURL == "" {
		return "", fmt.Errorf("no connection specified (use --url)")
	}
	u, err := url.Parse(wsURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %v", err)
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	default:
		return "", fmt.Errorf("unsupported URL scheme: %s", u.Scheme)
	}
	u.Path = ""
	return u.String(), nil
}
