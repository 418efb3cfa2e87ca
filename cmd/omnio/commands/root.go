// Package commands implements the omnio CLI's subcommands, grounded on
// the teacher's cmd/dittofsctl/commands layout: one file per verb, each
// registered onto a shared root *cobra.Command, with persistent flags
// read through viper so OMNIO_* environment variables and a config file
// both work alongside explicit flags.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tai-kun/omnio-sub001/cmd/omnio/cmdutil"
)

var cfgFile string

// Root is the omnio root command. main.go calls Root.Execute().
var Root = &cobra.Command{
	Use:   "omnio",
	Short: "Omnio is a metadata-driven object storage engine",
	Long: `omnio drives an embedded Omnio storage engine directly: put, get,
stat, list, search, remove and copy objects, and run metadata-catalog
migrations, all against a local bucket rooted at --data-dir.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	Root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.omnio.yaml)")
	Root.PersistentFlags().String("data-dir", "./omnio-data", "root directory for bucket storage and the default duckdb catalog file")
	Root.PersistentFlags().String("bucket", "", "bucket name (required)")
	Root.PersistentFlags().String("catalog", "duckdb", "metadata catalog backend: duckdb or memory")
	Root.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	Root.PersistentFlags().String("log-format", "text", "log format: text or json")
	Root.PersistentFlags().BoolP("json", "j", false, "emit JSON instead of a table")
	Root.PersistentFlags().Bool("trace", false, "emit OpenTelemetry spans for this invocation (stdout exporter)")
	Root.PersistentFlags().Float64("trace-sample-rate", 1.0, "fraction of spans to sample when --trace is set")

	_ = viper.BindPFlag("data_dir", Root.PersistentFlags().Lookup("data-dir"))
	_ = viper.BindPFlag("bucket", Root.PersistentFlags().Lookup("bucket"))
	_ = viper.BindPFlag("catalog", Root.PersistentFlags().Lookup("catalog"))
	_ = viper.BindPFlag("log_level", Root.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log_format", Root.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("json", Root.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("trace", Root.PersistentFlags().Lookup("trace"))
	_ = viper.BindPFlag("trace_sample_rate", Root.PersistentFlags().Lookup("trace-sample-rate"))

	Root.AddCommand(putCmd, getCmd, statCmd, lsCmd, searchCmd, rmCmd, cpCmd, migrateCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigName(".omnio")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("omnio")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "using config file:", viper.ConfigFileUsed())
	}
}

// bindFlags transfers the resolved viper values (flag > env > config
// file > default) into cmdutil.Flags before any subcommand's RunE runs.
func bindFlags(cmd *cobra.Command) error {
	cmdutil.Flags.DataDir = viper.GetString("data_dir")
	cmdutil.Flags.Bucket = viper.GetString("bucket")
	cmdutil.Flags.CatalogKind = viper.GetString("catalog")
	cmdutil.Flags.LogLevel = viper.GetString("log_level")
	cmdutil.Flags.LogFormat = viper.GetString("log_format")
	cmdutil.Flags.JSON = viper.GetBool("json")
	cmdutil.Flags.TraceEnabled = viper.GetBool("trace")
	cmdutil.Flags.TraceSampleRate = viper.GetFloat64("trace_sample_rate")
	return cmdutil.InitTracing()
}
