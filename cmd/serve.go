// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Orazio Franco, RoBoRa Project

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/RoBoRa25/robora/pkg/params"
	"github.com/RoBoRa25/robora/pkg/server"
)

var (
	serveConfig string
	serveDebug  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the RoBoRa control node",
	Long: `Run the control node: the WebSocket command channel on /ws and the
update ingress on /update (multipart form) and /ota (raw octet stream).

A reboot command or a completed update makes the process exit cleanly with
status 0 after the deferred restart delay; the process supervisor is
expected to bring it back up.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&serveConfig, "config", "c", "", "Path to YAML config file")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug logging")
}

func runServe(cmd *cobra.Command, args []string) error {
	logCfg := zap.NewProductionConfig()
	if serveDebug {
		logCfg = zap.NewDevelopmentConfig()
	}
	log, err := logCfg.Build()
	if err != nil {
		return fmt.Errorf("logger: %v", err)
	}
	defer log.Sync()

	cfg, err := server.LoadConfig(serveConfig)
	if err != nil {
		return err
	}

	store, err := params.Open(filepath.Join(cfg.StateDir, "params"), log.Named("params"))
	if err != nil {
		return fmt.Errorf("open parameter store: %v", err)
	}
	defer store.Close()

	node, err := server.NewNode(cfg, store, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-node.RestartRequested():
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := node.Run(runCtx); err != nil {
		return err
	}
	select {
	case <-node.RestartRequested():
		// Clean exit; the supervisor restarts the node.
		log.Info("restarting for supervisor")
	default:
	}
	return nil
}
