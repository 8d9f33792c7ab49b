// Copyright 2019 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

// Command tpm2-resourcemgrd is a demo daemon wiring a resourcemgr.ResourceManager
// to the in-memory accessbroker.Simulator, since this repo has no real TPM
// transport in scope. It exists to exercise the configuration, logging and
// process-lifecycle stack end to end, not as a production TPM daemon.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	resourcemgr "github.com/tpm2-software/tpm2-resourcemgr"
	"github.com/tpm2-software/tpm2-resourcemgr/accessbroker"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tpm2-resourcemgrd",
		Short: "TPM 2.0 resource manager daemon",
		RunE:  run,
	}
	addResourceManagerFlags(cmd.Flags())
	return cmd
}

func run(cmd *cobra.Command, _ []string) error {
	log := logrus.New()
	level, err := logrus.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		return err
	}
	log.SetLevel(level)
	entry := log.WithFields(logrus.Fields{
		"device": viper.GetString("device"),
		"listen": viper.GetString("listen"),
	})

	broker := accessbroker.NewSimulator(viper.GetInt("slots"))
	sink := &logSink{logger: entry}

	rm := resourcemgr.New(broker, resourcemgr.Config{QueueDepth: viper.GetInt("queue-depth")},
		resourcemgr.WithLogger(logrusLogger{entry: entry}),
		resourcemgr.WithSink(sink),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		rm.Run(ctx)
	}()

	entry.Info("resource manager started")
	runDemoTraffic(rm, entry, viper.GetInt("quota"))

	<-ctx.Done()
	entry.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rm.Shutdown(shutdownCtx); err != nil {
		entry.Errorf("shutdown did not complete cleanly: %v", err)
	}
	<-workerDone
	return nil
}

// runDemoTraffic submits one CreatePrimary from a single demo connection,
// proving the wiring works end to end in the absence of a real client
// transport. The sink logs the response's rc and whether it carries a
// handle; the handle value itself is not logged.
func runDemoTraffic(rm *resourcemgr.ResourceManager, log *logrus.Entry, quota int) {
	conn := resourcemgr.NewConnection(quota)
	createPrimary := resourcemgr.NewTpm2Command(conn, resourcemgr.TagNoSessions, resourcemgr.CommandCreatePrimary, nil, nil)
	rm.Enqueue(createPrimary)
	log.Debug("submitted demo CreatePrimary")
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
