package naturegraph

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "naturegraph",
		Short: "naturegraph: TNFD knowledge graph tool",
		Long: `naturegraph builds a knowledge graph of nature-related risks, locations,
organisations and mitigation actions from disclosure documents, and answers
questions over it with hybrid vector, keyword and graph retrieval.

Configuration is read from $HOME/.naturegraph.yaml or ./.naturegraph.yaml,
NATUREGRAPH_* environment variables, and the flags below.`,
		SilenceUsage: true,
	}
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.naturegraph.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().String("db-driver", "neo4j", "graph store (neo4j, embedded)")
	rootCmd.PersistentFlags().String("db-path", "", "embedded store directory (empty for in-memory)")

	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("database.driver", rootCmd.PersistentFlags().Lookup("db-driver"))
	_ = viper.BindPFlag("database.path", rootCmd.PersistentFlags().Lookup("db-path"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".naturegraph")
	}

	viper.SetEnvPrefix("NATUREGRAPH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
