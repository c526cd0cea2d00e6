// Package util holds shared command-line helpers used by the other cmd
// subpackages: help-text wrapping and config loading via viper.
package util

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Wrap is the number of characters to wrap help text at.
const Wrap int = 50

// WrapString wraps text at Wrap characters on word boundaries.
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// InitConfig loads .env files and wires environment variable lookup into
// viper, using the DKV_ prefix (e.g. DKV_BUCKETS=32).
func InitConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("dkv")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// BindCommandFlags binds a command's flags to viper so environment
// variables and config files can override defaults.
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// ServersConfig is the on-disk shape of the --config file: an endpoint
// address mapped to the list of bucket IDs it owns.
type ServersConfig struct {
	Servers map[string][]int `mapstructure:"servers" json:"servers" yaml:"servers"`
}

// LoadServers reads a servers config file (JSON or YAML, detected by
// extension) at path and returns the endpoint -> bucket IDs map.
func LoadServers(path string) (map[string][]int, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg ServersConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return cfg.Servers, nil
}
