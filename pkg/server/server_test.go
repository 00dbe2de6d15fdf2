// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Orazio Franco, RoBoRa Project

package server

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RoBoRa25/robora/pkg/accum"
	"github.com/RoBoRa25/robora/pkg/device"
	"github.com/RoBoRa25/robora/pkg/params"
	"github.com/RoBoRa25/robora/pkg/roboproto"
)

func newTestNode(t *testing.T) (*Node, *httptest.Server) {
	t.Helper()
	dir := t.TempDir()

	store, err := params.Open(filepath.Join(dir, "params"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := DefaultConfig()
	cfg.Hostname = "robora-test"
	cfg.StateDir = dir
	cfg.Partitions.AppCapacity = 1024
	cfg.Partitions.FSCapacity = 512

	node, err := NewNode(cfg, store, nil)
	require.NoError(t, err)

	ts := httptest.NewServer(node.Handler())
	t.Cleanup(ts.Close)
	return node, ts
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	// Every connection starts with the node's greeting.
	greeting := readReply(t, conn)
	require.Equal(t, roboproto.CmdHelloReply, greeting.Command())
	return conn
}

func sendCmd(t *testing.T, conn *websocket.Conn, e roboproto.Envelope) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, e.MustEncode()))
}

func readReply(t *testing.T, conn *websocket.Conn) roboproto.Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	e, err := roboproto.Decode(payload)
	require.NoError(t, err)
	return e
}

// readUntil skips broadcasts until a message with the given CMD arrives.
func readUntil(t *testing.T, conn *websocket.Conn, cmd string) roboproto.Envelope {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		e := readReply(t, conn)
		if e.Command() == cmd {
			return e
		}
	}
	t.Fatalf("no %q message before deadline", cmd)
	return nil
}

// ============================================================================
// Command channel
// ============================================================================

func TestHelloRoundTrip(t *testing.T) {
	_, ts := newTestNode(t)
	conn := dialWS(t, ts)

	sendCmd(t, conn, roboproto.Envelope{"CMD": roboproto.CmdHello})
	reply := readReply(t, conn)

	assert.Equal(t, roboproto.CmdHelloReply, reply.Command())
	assert.Equal(t, "robora-test", reply.String("server", ""))
	assert.Equal(t, roboproto.Version, reply.String("ver", ""))
}

func TestUnknownCommand(t *testing.T) {
	_, ts := newTestNode(t)
	conn := dialWS(t, ts)

	sendCmd(t, conn, roboproto.Envelope{"CMD": "fly"})
	reply := readReply(t, conn)

	assert.Equal(t, roboproto.CmdError, reply.Command())
	assert.Equal(t, "unknown command", reply.String("msg", ""))
}

func TestMalformedMessage(t *testing.T) {
	_, ts := newTestNode(t)
	conn := dialWS(t, ts)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	reply := readReply(t, conn)
	assert.Equal(t, roboproto.CmdError, reply.Command())
}

func TestUnsupportedMessageKind(t *testing.T) {
	node, _ := newTestNode(t)
	c := &Client{id: 99, hub: node.hub, send: make(chan []byte, 1)}

	node.deliver(c, &accum.Message{Kind: accum.KindNone, Data: []byte("?")})

	select {
	case payload := <-c.send:
		e, err := roboproto.Decode(payload)
		require.NoError(t, err)
		assert.Equal(t, roboproto.CmdError, e.Command())
		assert.Equal(t, "unsupported message kind", e.String("msg", ""))
	default:
		t.Fatal("no error reply for unsupported message kind")
	}
}

func TestBinaryMessageIgnored(t *testing.T) {
	node, _ := newTestNode(t)
	c := &Client{id: 98, hub: node.hub, send: make(chan []byte, 1)}

	node.deliver(c, &accum.Message{Kind: accum.KindBinary, Data: []byte{1, 2, 3}})

	select {
	case payload := <-c.send:
		t.Fatalf("unexpected reply to binary message: %s", payload)
	default:
	}
}

func TestConfigReadWrite(t *testing.T) {
	_, ts := newTestNode(t)
	conn := dialWS(t, ts)

	sendCmd(t, conn, roboproto.Envelope{
		"CMD": roboproto.CmdConfigWrite, "key": "maxVel", "value": "80",
	})
	reply := readReply(t, conn)
	assert.Equal(t, roboproto.CmdConfigWrite, reply.Command())
	assert.Equal(t, "OK", reply.String("status", ""))

	sendCmd(t, conn, roboproto.Envelope{
		"CMD": roboproto.CmdConfigRead, "key": "maxVel",
	})
	reply = readReply(t, conn)
	assert.Equal(t, roboproto.CmdConfigRead, reply.Command())
	assert.Equal(t, "80", reply.String("value", ""))
}

func TestMoveAcknowledged(t *testing.T) {
	node, ts := newTestNode(t)
	conn := dialWS(t, ts)

	sendCmd(t, conn, roboproto.Envelope{
		"CMD": roboproto.CmdMove, "throttle": 50, "steer": 0,
	})
	reply := readReply(t, conn)

	assert.Equal(t, roboproto.CmdMove, reply.Command())
	assert.Equal(t, "OK", reply.String("status", ""))
	assert.Equal(t, 50, node.motors.Throttle())
}

func TestConfigWriteReloadsMotors(t *testing.T) {
	node, ts := newTestNode(t)
	conn := dialWS(t, ts)

	sendCmd(t, conn, roboproto.Envelope{
		"CMD": roboproto.CmdConfigWrite, "key": "maxVel", "value": "50",
	})
	readReply(t, conn)

	sendCmd(t, conn, roboproto.Envelope{
		"CMD": roboproto.CmdMove, "throttle": 127, "steer": 0,
	})
	readReply(t, conn)

	left, right := node.motors.Targets()
	assert.Equal(t, 50, left)
	assert.Equal(t, 50, right)
}

func TestConfigListing(t *testing.T) {
	_, ts := newTestNode(t)
	conn := dialWS(t, ts)

	sendCmd(t, conn, roboproto.Envelope{"CMD": roboproto.CmdConfigReq})
	reply := readReply(t, conn)

	assert.Equal(t, roboproto.CmdConfigReq, reply.Command())
	for _, section := range []string{"connessione", "motore", "telemetria"} {
		assert.Contains(t, reply, section)
	}
}

func TestInfoReq(t *testing.T) {
	_, ts := newTestNode(t)
	conn := dialWS(t, ts)

	sendCmd(t, conn, roboproto.Envelope{"CMD": roboproto.CmdInfoReq})
	reply := readReply(t, conn)

	assert.Equal(t, roboproto.CmdInfo, reply.Command())
	assert.Equal(t, "robora-test", reply.String("hostname", ""))
	assert.Contains(t, reply, "partitions")
}

func TestDisplayMsg(t *testing.T) {
	node, ts := newTestNode(t)
	conn := dialWS(t, ts)

	sendCmd(t, conn, roboproto.Envelope{
		"CMD":      roboproto.CmdDisplayMsg,
		"rows":     []string{"HELLO", "ROVER"},
		"size":     2,
		"truncate": true,
		"scroll":   true,
	})
	reply := readReply(t, conn)
	assert.Equal(t, roboproto.CmdDisplayMsg, reply.Command())
	assert.Equal(t, "OK", reply.String("status", ""))

	msg, ok := node.display.Current()
	require.True(t, ok)
	assert.Equal(t, []string{"HELLO", "ROVER"}, msg.Lines)
	assert.Equal(t, 2, msg.Size)
	assert.True(t, msg.Truncate)
	assert.True(t, msg.Scroll)
	// Scroll delay falls back to the stock value when absent.
	assert.Equal(t, device.DefaultScrollDelayMs, msg.DelayMs)
}

func TestLastClientStopsMotors(t *testing.T) {
	node, ts := newTestNode(t)
	conn := dialWS(t, ts)

	sendCmd(t, conn, roboproto.Envelope{
		"CMD": roboproto.CmdMove, "throttle": 100, "steer": 0,
	})
	readReply(t, conn)
	left, _ := node.motors.Targets()
	require.NotZero(t, left)

	conn.Close()
	require.Eventually(t, func() bool {
		l, r := node.motors.Targets()
		return l == 0 && r == 0
	}, 2*time.Second, 10*time.Millisecond)
}

// ============================================================================
// Update ingress
// ============================================================================

func TestStreamUpload(t *testing.T) {
	node, ts := newTestNode(t)
	watcher := dialWS(t, ts)

	image := bytes.Repeat([]byte{0xAB}, 600)
	sum := md5.Sum(image)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/ota", bytes.NewReader(image))
	require.NoError(t, err)
	req.Header.Set(headerTarget, roboproto.TargetApp)
	req.Header.Set(headerMD5, hex.EncodeToString(sum[:]))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))

	start := readUntil(t, watcher, roboproto.CmdOTA)
	assert.Equal(t, roboproto.EventStart, start.String("event", ""))
	assert.Equal(t, roboproto.TargetApp, start.String("target", ""))

	var end roboproto.Envelope
	for {
		e := readUntil(t, watcher, roboproto.CmdOTA)
		if e.String("event", "") == roboproto.EventEnd {
			end = e
			break
		}
		assert.Equal(t, roboproto.EventProgress, e.String("event", ""))
	}
	assert.True(t, end.Bool("ok", false))

	committed, err := os.ReadFile(filepath.Join(node.provider.Dir(), "app0.img"))
	require.NoError(t, err)
	assert.Equal(t, image, committed)
}

func TestStreamUploadTooBig(t *testing.T) {
	_, ts := newTestNode(t)

	image := bytes.Repeat([]byte{0x01}, 2048) // app capacity is 1024
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/ota", bytes.NewReader(image))
	require.NoError(t, err)
	req.Header.Set(headerTarget, roboproto.TargetApp)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Equal(t, "Too big", strings.TrimSpace(string(body)))
}

func TestStreamUploadUnknownTarget(t *testing.T) {
	_, ts := newTestNode(t)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/ota", bytes.NewReader([]byte{1, 2, 3}))
	require.NoError(t, err)
	req.Header.Set(headerTarget, "bootloader")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Partition not found", strings.TrimSpace(string(body)))
}

func TestFormUpload(t *testing.T) {
	_, ts := newTestNode(t)

	image := bytes.Repeat([]byte{0xCD}, 300)
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("target", roboproto.TargetFS))
	fw, err := mw.CreateFormFile("update", "fs.img")
	require.NoError(t, err)
	_, err = fw.Write(image)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(ts.URL+"/update", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))
}

func TestFormUploadWithoutFile(t *testing.T) {
	_, ts := newTestNode(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("target", roboproto.TargetApp))
	require.NoError(t, mw.Close())

	resp, err := http.Post(ts.URL+"/update", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpdateRejectsGet(t *testing.T) {
	_, ts := newTestNode(t)
	resp, err := http.Get(ts.URL + "/ota")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
