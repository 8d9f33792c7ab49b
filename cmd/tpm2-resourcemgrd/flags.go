// Copyright 2019 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package main

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// addResourceManagerFlags registers the daemon's flags on flags and binds
// each one into viper, the same two-step registration rancher-elemental-toolkit
// uses for its own commands.
func addResourceManagerFlags(flags *pflag.FlagSet) {
	flags.String("device", "/dev/tpmrm0", "TPM device path the access broker would open")
	flags.Int("quota", 27, "per-connection transient object quota")
	flags.Int("queue-depth", 64, "depth of the resource manager's input queue")
	flags.Int("slots", 3, "number of physical transient slots simulated")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("listen", "/run/tpm2-resourcemgrd.sock", "socket a real transport would listen on (unused by the demo traffic generator)")

	for _, name := range []string{"device", "quota", "queue-depth", "slots", "log-level", "listen"} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}
}
