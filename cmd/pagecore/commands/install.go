package commands

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/pagecore/pkg/browser/pwbrowser"
)

func newInstallCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "install [browser]...",
		Short: "Install the Playwright driver and browsers",
		Example: `  # Install the driver and every browser
  pagecore install

  # Install chromium only
  pagecore install chromium`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Info().Strs("browsers", args).Msg("Installing Playwright")
			if err := pwbrowser.Install(args...); err != nil {
				return err
			}
			log.Info().Msg("Install complete")
			return nil
		},
	}
}
