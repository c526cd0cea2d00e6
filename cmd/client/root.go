// Package client implements the "dkv client" command group: ad hoc
// get/set operations against a cluster described by a servers config
// file, driving lib/client directly with no RPC layer in between.
package client

import (
	"fmt"

	cmdutil "github.com/beansdb-go/dkv/cmd/util"
	"github.com/beansdb-go/dkv/lib/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ClientCommands is the "client" command group.
var ClientCommands = &cobra.Command{
	Use:   "client",
	Short: "Read and write keys against a dkv cluster",
}

func init() {
	cobra.OnInitialize(cmdutil.InitConfig)

	key := "config"
	ClientCommands.PersistentFlags().String(key, "servers.yaml", cmdutil.WrapString("Path to the servers config file (maps endpoint -> owned bucket IDs)"))

	key = "buckets"
	ClientCommands.PersistentFlags().Int(key, 16, cmdutil.WrapString("Number of buckets partitioning the hash space"))

	key = "w"
	ClientCommands.PersistentFlags().Int(key, 1, cmdutil.WrapString("Write quorum: number of replicas that must accept a write"))

	ClientCommands.AddCommand(getCmd)
	ClientCommands.AddCommand(setCmd)

	ClientCommands.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return cmdutil.BindCommandFlags(cmd)
	}
}

func newClient() (*client.Client, error) {
	servers, err := cmdutil.LoadServers(viper.GetString("config"))
	if err != nil {
		return nil, fmt.Errorf("loading servers config: %w", err)
	}

	return client.New(client.Config{
		Servers:      servers,
		BucketsCount: viper.GetInt("buckets"),
		W:            viper.GetInt("w"),
	}), nil
}

var getCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Get the value for a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		value, ok, err := c.Get(args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("key %q not found", args[0])
		}

		fmt.Println(string(value))
		return nil
	},
}

var setCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set the value for a key",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		if err := c.Set(args[0], []byte(args[1])); err != nil {
			return err
		}

		fmt.Println("OK")
		return nil
	},
}
