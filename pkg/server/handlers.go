// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Orazio Franco, RoBoRa Project

package server

import (
	"runtime"
	"time"

	"github.com/shirou/gopsutil/host"
	"github.com/shirou/gopsutil/load"
	"github.com/shirou/gopsutil/mem"
	"go.uber.org/zap"

	"github.com/RoBoRa25/robora/pkg/command"
	"github.com/RoBoRa25/robora/pkg/device"
	"github.com/RoBoRa25/robora/pkg/params"
	"github.com/RoBoRa25/robora/pkg/roboproto"
)

// registerHandlers binds every command the node answers. Handlers run
// under dispatchMu, one at a time.
func (n *Node) registerHandlers() {
	reg := n.registry
	reg.Register(roboproto.CmdHello, n.cmdHello)
	reg.Register(roboproto.CmdReboot, n.cmdReboot)
	reg.Register(roboproto.CmdConfigReq, n.cmdConfigReq)
	reg.Register(roboproto.CmdConfigRead, n.cmdConfigRead)
	reg.Register(roboproto.CmdConfigWrite, n.cmdConfigWrite)
	reg.Register(roboproto.CmdInfoReq, n.cmdInfoReq)
	reg.Register(roboproto.CmdMove, n.cmdMove)
	reg.Register(roboproto.CmdFunction, n.cmdFunction)
	reg.Register(roboproto.CmdResetMemory, n.cmdResetMemory)
	reg.Register(roboproto.CmdDisplayMsg, n.cmdDisplayMsg)
}

func (n *Node) cmdHello(r command.Responder, e roboproto.Envelope) {
	r.Reply(roboproto.HelloReply(n.cfg.Hostname))
}

func (n *Node) cmdReboot(r command.Responder, e roboproto.Envelope) {
	r.Reply(roboproto.AckReply("rebooting"))
	n.scheduleRestart(roboproto.RebootDelayCommand, "reboot command")
}

func (n *Node) cmdConfigReq(r command.Responder, e roboproto.Envelope) {
	r.Reply(n.store.Listing())
}

func (n *Node) cmdConfigRead(r command.Responder, e roboproto.Envelope) {
	key := e.String("key", "")
	value, err := n.store.Get(key)
	if err != nil {
		r.Reply(roboproto.ErrorReply("unknown key"))
		return
	}
	r.Reply(roboproto.Envelope{
		"CMD":   roboproto.CmdConfigRead,
		"key":   key,
		"value": value,
	})
}

func (n *Node) cmdConfigWrite(r command.Responder, e roboproto.Envelope) {
	key := e.String("key", "")
	value := e.String("value", "")
	if err := n.store.Put(key, value); err != nil {
		r.Reply(roboproto.ErrorReply("unknown key"))
		return
	}
	n.reloadFor(key)
	r.Reply(roboproto.StatusOK(roboproto.CmdConfigWrite))
}

// reloadFor pushes a fresh snapshot into whichever subsystem the written
// key belongs to.
func (n *Node) reloadFor(key string) {
	ns, _, ok := params.Lookup(key)
	if !ok {
		return
	}
	switch ns.Name {
	case "moto_cfg":
		n.motors.Reload(n.store.MotorConfig())
	case "tele_cfg":
		n.telemetry.Reload(n.store.TelemetryConfig())
	}
}

func (n *Node) cmdInfoReq(r command.Responder, e roboproto.Envelope) {
	info := roboproto.Envelope{
		"CMD":      roboproto.CmdInfo,
		"ver":      roboproto.Version,
		"hostname": n.cfg.Hostname,
		"uptime_s": int64(time.Since(n.startedAt).Seconds()),
		"clients":  n.hub.Count(),
		"go":       runtime.Version(),
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		info["mem_total"] = vm.Total
		info["mem_free"] = vm.Available
	}
	if avg, err := load.Avg(); err == nil {
		info["load1"] = avg.Load1
	}
	if up, err := host.Uptime(); err == nil {
		info["host_uptime_s"] = up
	}

	parts := map[string]any{}
	for _, target := range []string{roboproto.TargetApp, roboproto.TargetFS} {
		part, err := n.provider.Partition(target)
		if err != nil {
			continue
		}
		entry := map[string]any{
			"part": part.Label(),
			"max":  part.Capacity(),
		}
		if size, err := part.Size(); err == nil {
			entry["size"] = size
		}
		if m, err := n.manifests.Load(target); err == nil {
			entry["md5"] = m.MD5
			entry["flashed_at"] = m.CompletedAt.Format(time.RFC3339)
		}
		parts[target] = entry
	}
	info["partitions"] = parts

	r.Reply(info)
}

func (n *Node) cmdMove(r command.Responder, e roboproto.Envelope) {
	throttle := e.Int("throttle", 0)
	steer := e.Int("steer", 0)
	n.motors.Apply(throttle, steer)
	r.Reply(roboproto.StatusOK(roboproto.CmdMove))
}

func (n *Node) cmdFunction(r command.Responder, e roboproto.Envelope) {
	idx := e.Int("n", -1)
	on := e.Bool("state", false)
	if err := n.fnkeys.Set(idx, on); err != nil {
		r.Reply(roboproto.ErrorReply(err.Error()))
		return
	}
	r.Reply(roboproto.StatusOK(roboproto.CmdFunction))
}

func (n *Node) cmdResetMemory(r command.Responder, e roboproto.Envelope) {
	if err := n.store.ResetDefaults(); err != nil {
		n.log.Error("reset defaults failed", zap.Error(err))
		r.Reply(roboproto.ErrorReply("reset failed"))
		return
	}
	r.Reply(roboproto.AckReply("memory reset"))
	n.scheduleRestart(roboproto.RebootDelayCommand, "memory reset")
}

func (n *Node) cmdDisplayMsg(r command.Responder, e roboproto.Envelope) {
	msg := device.DisplayMessage{
		Lines:    e.Strings("rows"),
		Size:     e.Int("size", 1),
		Invert:   e.Bool("invert", false),
		Truncate: e.Bool("truncate", false),
		Scroll:   e.Bool("scroll", false),
		DelayMs:  e.Int("delay", device.DefaultScrollDelayMs),
		Loop:     e.Bool("loop", false),
	}
	n.display.Load(msg)
	r.Reply(roboproto.StatusOK(roboproto.CmdDisplayMsg))
}

// sampleTelemetry builds the telemetry sampler: drive state plus a couple
// of host figures cheap enough to read four times a second.
func (n *Node) sampleTelemetry() device.Sampler {
	return device.SamplerFunc(func() roboproto.Envelope {
		left, right := n.motors.Targets()
		e := roboproto.Envelope{
			"throttle": n.motors.Throttle(),
			"steer":    n.motors.Steer(),
			"motorA":   left,
			"motorB":   right,
			"led":      n.leds.Mode().String(),
			"clients":  n.hub.Count(),
		}
		if vm, err := mem.VirtualMemory(); err == nil {
			e["mem_free"] = vm.Available
		}
		return e
	})
}
