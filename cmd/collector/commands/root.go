// Package commands implements the collector CLI's cobra command tree. The
// engine itself is collector-agnostic (spec.md §1); this package only shows
// how a concrete collector would wire configuration and logging into it —
// registering an actual step catalog is left to the caller.
package commands

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jupiterone/integration-sdk-go/common/logger"
	"github.com/jupiterone/integration-sdk-go/config"
)

type GlobalConfig struct {
	Debug      bool
	JSON       bool
	StorageDir string
}

var Global = &GlobalConfig{}

func init() {
	RootCmd.PersistentFlags().BoolVarP(&Global.Debug, "debug", "d", false, "Enable verbose debug output.")
	RootCmd.PersistentFlags().BoolVarP(&Global.JSON, "json", "j", false, "Enable structured JSON output.")
	RootCmd.PersistentFlags().StringVarP(&Global.StorageDir, "storage-dir", "s", ".jupiterone", "Directory to materialize collected graph objects into.")
}

// Execute adds all child commands to the root command and runs it. It is
// called once by main.main.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// configSpec is the engine's own config surface (spec.md §6): the
// integration instance id and persister base URL every run needs,
// regardless of what a concrete collector's own steps additionally require.
var configSpec = config.Spec{
	{Name: "integration_instance_id", Type: config.FieldTypeString, Required: true},
	{Name: "api_base_url", Type: config.FieldTypeString, Required: true},
	{Name: "skip_synchronization", Type: config.FieldTypeBoolean, Required: false},
}

func newLogFactory() logger.LogFactory {
	level := logrus.InfoLevel
	if Global.Debug {
		level = logrus.DebugLevel
	}
	factory := logger.NewLogFactory(level, nil)
	if !Global.JSON {
		return factory
	}
	return func(subsystem string) logger.Log {
		log := factory(subsystem)
		if l, ok := log.(*logger.LogrusLogger); ok {
			l.Logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02 15:04:05"})
		}
		return log
	}
}

var RootCmd = &cobra.Command{
	Use:   "collector",
	Short: "Run an integration's collection and synchronization job",
}
