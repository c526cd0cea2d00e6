package cmd

import (
	"fmt"
	"os"

	"github.com/beansdb-go/dkv/cmd/client"
	"github.com/beansdb-go/dkv/cmd/compact"
	"github.com/spf13/cobra"
)

const Version = "0.1.0"

var (
	// RootCmd represents the base command when called without any subcommands.
	RootCmd = &cobra.Command{
		Use:   "dkv",
		Short: "sharded key-value access layer and data file compactor",
		Long: fmt.Sprintf(`dkv (v%s)

A client-side sharding and quorum access layer over a set of
memcached-protocol replicas, plus an offline compactor for their
append-only data files.`, Version),
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dkv",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dkv v%s\n", Version)
		},
	}
)

func init() {
	RootCmd.AddCommand(client.ClientCommands)
	RootCmd.AddCommand(compact.CompactCmd)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(); it only needs to happen
// once to RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
