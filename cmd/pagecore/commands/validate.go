package commands

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/pagecore/pkg/config"
	"github.com/openfroyo/pagecore/pkg/scenario"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [scenario|dir]...",
		Short: "Validate the config and scenario files",
		Long: `Validate the configuration and scenarios without launching a browser.

This command checks:
  - YAML and CUE syntax
  - Schema conformance of every scenario step
  - Field constraints of the configuration
  - Step structure (one kind per step, triggers only on waits)`,
		Example: `  # Validate the default config and a directory of scenarios
  pagecore validate scenarios/

  # Validate a CUE config only
  pagecore validate -c pagecore.cue`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return printProblems(cmd, err)
			}
			log.Info().Str("config", cfg.Source).Msg("Configuration is valid")

			if len(args) == 0 {
				return nil
			}
			scenarios, err := scenario.LoadAll(args)
			if err != nil {
				return printProblems(cmd, err)
			}
			for _, sc := range scenarios {
				fmt.Fprintf(cmd.OutOrStdout(), "ok  %s  (%d steps)\n", sc.Name, len(sc.Steps))
			}
			return nil
		},
	}
	return cmd
}

// printProblems prints each validation problem on its own line.
func printProblems(cmd *cobra.Command, err error) error {
	var verrs config.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	if jsonOutput {
		if perr := printJSON(cmd.OutOrStdout(), verrs); perr != nil {
			return perr
		}
	} else {
		for _, e := range verrs {
			fmt.Fprintln(cmd.OutOrStdout(), e.Error())
		}
	}
	return fmt.Errorf("validation failed with %d problem(s)", len(verrs))
}
