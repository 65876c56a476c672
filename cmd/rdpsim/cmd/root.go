// Package cmd provides the command-line interface of rdpsim.
package cmd

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Flags that are not given on the command line are read from RDPSIM_<FLAG>
// environment variables, for example RDPSIM_POLICY or RDPSIM_SIZE.
const envPrefix = "RDPSIM_"

// NewRootCmd creates the rdpsim command with all its subcommands.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rdpsim",
		Short: "rdpsim evaluates cache replacement policies on memory traces.",
		Long: `rdpsim replays memory access traces through a set-associative ` +
			`cache and reports how LRU and instruction-based reuse distance ` +
			`prediction (IBRDP) replacement compare. Flags can also be set ` +
			`with RDPSIM_* environment variables or a .env file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			if err := loadEnvFile(envFile); err != nil {
				return err
			}

			return applyEnv(cmd.Flags())
		},
	}

	rootCmd.PersistentFlags().String("env-file", ".env",
		"file with RDPSIM_* variables, ignored if missing")

	rootCmd.AddCommand(
		newRunCmd(),
		newAnalyzeCmd(),
		newGenCmd(),
		newReportCmd(),
	)

	return rootCmd
}

// Execute runs the rdpsim command with the arguments of the process.
func Execute() {
	log.SetFlags(0)
	log.SetPrefix("rdpsim: ")

	err := NewRootCmd().Execute()
	if err != nil {
		os.Exit(1)
	}
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}

	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	return err
}

func applyEnv(flags *pflag.FlagSet) error {
	var err error

	flags.VisitAll(func(f *pflag.Flag) {
		if err != nil || f.Changed {
			return
		}

		name := envPrefix +
			strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))

		value, ok := os.LookupEnv(name)
		if !ok {
			return
		}

		err = flags.Set(f.Name, value)
	})

	return err
}
