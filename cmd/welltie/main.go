package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/chrissnell/welltie/internal/app"
	"github.com/chrissnell/welltie/internal/log"
	"github.com/chrissnell/welltie/pkg/config"
	"github.com/spf13/cobra"
)

const version = "1.0-" + runtime.GOOS + "/" + runtime.GOARCH

var (
	cfgFile        string
	debug          bool
	referencePath  string
	comparisonPath string
	jsonOutput     bool

	rootCmd = &cobra.Command{
		Use:     "welltie",
		Short:   "Depth-tie a repeat well log against a reference log",
		Version: version,
		Long: `welltie finds the depth shift that best aligns a comparison log with a
reference log, joins the two, and segments the depth intervals where they
disagree.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return log.Init(debug)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			log.Sync()
		},
	}
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfgFile, "config", "c", "", "Path to YAML configuration file (defaults apply when omitted)")
	pf.BoolVar(&debug, "debug", false, "Turn on debugging output")
	pf.StringVarP(&referencePath, "reference", "r", "", "Reference log CSV (depth,value)")
	pf.StringVarP(&comparisonPath, "comparison", "m", "", "Comparison log CSV (depth,value)")
	pf.BoolVar(&jsonOutput, "json", false, "Print results as JSON")

	rootCmd.AddCommand(scanCmd, syncCmd, saveCmd, serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openApp loads the configuration, opens the session store, and reads the
// primary logs named on the command line.
func openApp() (*app.App, *config.ConfigData, error) {
	cfg, err := config.NewYAMLProvider(cfgFile).LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	a, err := app.New(cfg, log.GetSugaredLogger())
	if err != nil {
		return nil, nil, err
	}
	if err := a.Load(app.Inputs{Reference: referencePath, Comparison: comparisonPath}); err != nil {
		a.Close()
		return nil, nil, err
	}
	return a, cfg, nil
}
