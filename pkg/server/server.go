// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Orazio Franco, RoBoRa Project

package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/RoBoRa25/robora/pkg/accum"
	"github.com/RoBoRa25/robora/pkg/command"
	"github.com/RoBoRa25/robora/pkg/device"
	"github.com/RoBoRa25/robora/pkg/params"
	"github.com/RoBoRa25/robora/pkg/partition"
	"github.com/RoBoRa25/robora/pkg/roboproto"
	"github.com/RoBoRa25/robora/pkg/sched"
	"github.com/RoBoRa25/robora/pkg/update"
)

// readChunk is the reassembly granularity on the ingress side.
const readChunk = 4 * 1024

// Node is the assembled control node: command channel, update ingress and
// the device state behind them.
type Node struct {
	cfg Config
	log *zap.Logger

	hub       *Hub
	pool      *accum.Pool
	registry  *command.Registry
	session   *update.Session
	store     *params.Store
	provider  *partition.FileProvider
	manifests *update.ManifestStore

	motors    *device.Motors
	fnkeys    *device.FnKeys
	leds      *device.LEDs
	display   *device.Display
	telemetry *device.Telemetry

	upgrader websocket.Upgrader

	// dispatchMu serializes command handlers and update session calls so
	// the session state machine never sees interleaved ingress.
	dispatchMu sync.Mutex

	startedAt   time.Time
	restartOnce sync.Once
	restartCh   chan struct{}
}

// NewNode assembles a node from its configuration and an open parameter
// store. The caller owns the store's lifecycle.
func NewNode(cfg Config, store *params.Store, log *zap.Logger) (*Node, error) {
	if log == nil {
		log = zap.NewNop()
	}

	provider, err := partition.NewFileProvider(
		filepath.Join(cfg.StateDir, "partitions"),
		cfg.Partitions.AppCapacity,
		cfg.Partitions.FSCapacity,
	)
	if err != nil {
		return nil, err
	}
	manifests, err := update.NewManifestStore(filepath.Join(cfg.StateDir, "manifests"))
	if err != nil {
		return nil, err
	}

	n := &Node{
		cfg:       cfg,
		log:       log,
		store:     store,
		provider:  provider,
		manifests: manifests,
		pool:      accum.NewPool(cfg.Channel.MaxClients, cfg.Channel.MaxMessageSize),
		motors:    device.NewMotors(store.MotorConfig()),
		fnkeys:    device.NewFnKeys(),
		leds:      device.NewLEDs(),
		display:   device.NewDisplay(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  readChunk,
			WriteBufferSize: readChunk,
			// The web UI is served from anywhere on the local network.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		startedAt: time.Now(),
		restartCh: make(chan struct{}),
	}

	n.hub = NewHub(log.Named("hub"), n.motors.Stop)
	n.leds.BindDefaults(n.fnkeys)

	emit := update.EmitterFunc(func(e roboproto.Envelope) {
		n.hub.Broadcast(e.MustEncode())
	})
	n.session = update.NewSession(provider, emit, manifests, func() {
		n.scheduleRestart(roboproto.RebootDelayUpdate, "update installed")
	}, log.Named("update"))

	n.telemetry = device.NewTelemetry(n.sampleTelemetry(), func(e roboproto.Envelope) {
		n.hub.Broadcast(e.MustEncode())
	}, store.TelemetryConfig(), log.Named("telemetry"))

	n.registry = command.NewRegistry(log.Named("command"))
	n.registerHandlers()
	return n, nil
}

// RestartRequested is closed when a command or a finished update asked for
// a node restart. The process supervisor brings the node back up.
func (n *Node) RestartRequested() <-chan struct{} {
	return n.restartCh
}

func (n *Node) scheduleRestart(delay time.Duration, reason string) {
	n.log.Info("restart scheduled",
		zap.Duration("delay", delay),
		zap.String("reason", reason))
	sched.After(delay, func() {
		n.restartOnce.Do(func() { close(n.restartCh) })
	})
}

// Handler returns the node's HTTP surface: the command channel plus the
// two update ingress encodings.
func (n *Node) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", n.handleWS)
	mux.HandleFunc("/update", n.handleUpdateForm)
	mux.HandleFunc("/ota", n.handleUpdateStream)
	return mux
}

// Run serves until the context is cancelled, then drains with a short
// shutdown grace. The telemetry loop lives and dies with the server.
func (n *Node) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    n.cfg.Listen,
		Handler: n.Handler(),
	}

	tctx, tcancel := context.WithCancel(ctx)
	defer tcancel()
	go n.telemetry.Run(tctx)

	errCh := make(chan error, 1)
	go func() {
		n.log.Info("node listening", zap.String("addr", n.cfg.Listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shCtx)
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// handleWS upgrades the connection and runs its read loop. The connection
// is admitted even when the accumulator pool is full; its messages are
// answered with errors until a slot frees up.
func (n *Node) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := n.upgrader.Upgrade(w, r, nil)
	if err != nil {
		n.log.Debug("upgrade failed", zap.Error(err))
		return
	}
	c := n.hub.Add(conn)
	c.Send(roboproto.HelloReply(n.cfg.Hostname).MustEncode())
	if err := n.pool.Acquire(c.ID()); err != nil {
		n.log.Warn("no accumulator slot for new client",
			zap.Uint64("client", c.ID()))
		c.Send(roboproto.ErrorReply("server busy").MustEncode())
	}
	n.readPump(c)
}

func (n *Node) readPump(c *Client) {
	defer func() {
		n.pool.Release(c.ID())
		n.hub.Remove(c)
		c.conn.Close()
	}()

	// Transport-level ceiling; the accumulator enforces the logical limit
	// with a per-message reject instead of a dropped connection.
	c.conn.SetReadLimit(int64(n.cfg.Channel.MaxMessageSize) * 2)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		mt, rd, err := c.conn.NextReader()
		if err != nil {
			return
		}
		var kind accum.Kind
		switch mt {
		case websocket.TextMessage:
			kind = accum.KindText
		case websocket.BinaryMessage:
			kind = accum.KindBinary
		default:
			continue
		}
		n.ingestMessage(c, kind, rd)
	}
}

// ingestMessage feeds one wire message through the accumulator chunk by
// chunk and dispatches the reassembled result.
func (n *Node) ingestMessage(c *Client, kind accum.Kind, rd io.Reader) {
	buf := make([]byte, readChunk)
	first := true
	for {
		nr, rerr := rd.Read(buf)
		if nr > 0 {
			msg, err := n.pool.Ingest(c.ID(), accum.Frame{
				First:   first,
				Kind:    kind,
				Payload: buf[:nr],
			})
			first = false
			if err != nil {
				n.rejectIngest(c, err)
				io.Copy(io.Discard, rd)
				return
			}
			if msg != nil {
				// A zero-length final chunk never follows a message the
				// accumulator already completed.
				n.deliver(c, msg)
				return
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return
		}
	}

	msg, err := n.pool.Ingest(c.ID(), accum.Frame{First: first, Final: true, Kind: kind})
	if err != nil {
		n.rejectIngest(c, err)
		return
	}
	if msg != nil {
		n.deliver(c, msg)
	}
}

func (n *Node) rejectIngest(c *Client, err error) {
	n.log.Debug("message rejected",
		zap.Uint64("client", c.ID()),
		zap.Error(err))
	switch {
	case errors.Is(err, accum.ErrPayloadTooLarge):
		c.Send(roboproto.ErrorReply("message too large").MustEncode())
	case errors.Is(err, accum.ErrPoolExhausted):
		c.Send(roboproto.ErrorReply("server busy").MustEncode())
	default:
		c.Send(roboproto.ErrorReply(err.Error()).MustEncode())
	}
}

func (n *Node) deliver(c *Client, msg *accum.Message) {
	switch msg.Kind {
	case accum.KindText:
	case accum.KindBinary:
		// Reserved; accepted but not acted on.
		n.log.Debug("binary message ignored",
			zap.Uint64("client", c.ID()),
			zap.Int("len", len(msg.Data)))
		return
	default:
		c.Send(roboproto.ErrorReply("unsupported message kind").MustEncode())
		return
	}
	n.dispatchMu.Lock()
	defer n.dispatchMu.Unlock()
	n.registry.Dispatch(msg.Data, clientResponder{node: n, client: c})
}

// clientResponder routes handler replies back through the hub.
type clientResponder struct {
	node   *Node
	client *Client
}

func (r clientResponder) Reply(e roboproto.Envelope) {
	r.client.Send(e.MustEncode())
}

func (r clientResponder) Broadcast(e roboproto.Envelope) {
	r.node.hub.Broadcast(e.MustEncode())
}
