package commands

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/pagecore/pkg/browser/pwbrowser"
	"github.com/openfroyo/pagecore/pkg/config"
	"github.com/openfroyo/pagecore/pkg/scenario"
)

func newRunCommand() *cobra.Command {
	var (
		watch           bool
		headed          bool
		updateSnapshots bool
		browserEngine   string
		journal         string
	)

	cmd := &cobra.Command{
		Use:   "run <scenario|dir>...",
		Short: "Run browser scenarios",
		Long: `Run one or more scenarios against a launched browser.

Every scenario gets a fresh browser context. A run stops at its first hard
failure; soft assertion failures are collected and reported at the end.
Directories are expanded to the .yaml and .yml files they contain.`,
		Example: `  # Run one scenario headless
  pagecore run scenarios/login.yaml

  # Run a directory with a visible browser, updating snapshot baselines
  pagecore run --headed --update-snapshots scenarios/

  # Rerun whenever a scenario or the config changes
  pagecore run -c pagecore.yaml --watch scenarios/`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if headed {
				cfg.Browser.Headless = false
			}
			if updateSnapshots {
				cfg.Snapshots.Update = true
			}
			if browserEngine != "" {
				cfg.Browser.Engine = browserEngine
			}
			if journal != "" {
				cfg.Journal.Enabled = true
				cfg.Journal.Path = journal
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			env, err := openEnvironment(ctx, cfg)
			if err != nil {
				return err
			}
			defer env.Close()
			ctx = env.tel.WithContext(ctx)

			log.Info().
				Str("engine", cfg.Browser.Engine).
				Bool("headless", cfg.Browser.Headless).
				Msg("Launching browser")
			session, err := pwbrowser.Launch(cfg.Browser)
			if err != nil {
				return err
			}
			defer session.Close()

			b := &batch{
				session: session,
				runner:  scenario.NewRunner(cfg, env.tel),
				paths:   args,
				out:     cmd.OutOrStdout(),
			}
			err = b.run(ctx)
			if !watch {
				return err
			}
			if err != nil {
				log.Warn().Err(err).Msg("Run failed, watching for changes")
			}

			paths := append([]string{}, args...)
			configFile := ""
			if cfg.Source != "" {
				paths = append(paths, cfg.Source)
				configFile, _ = filepath.Abs(cfg.Source)
			}
			w := config.NewWatcher(env.tel.Logger, config.DefaultDebounce)
			err = w.Watch(ctx, paths, func(path string) {
				if configFile != "" && path == configFile {
					next, err := loadConfig()
					if err != nil {
						log.Error().Err(err).Msg("Config reload failed, keeping the previous one")
					} else {
						next.Snapshots.Update = cfg.Snapshots.Update
						b.runner = scenario.NewRunner(next, env.tel)
					}
				}
				log.Info().Str("file", path).Msg("Change detected, rerunning")
				if err := b.run(ctx); err != nil {
					log.Warn().Err(err).Msg("Run failed")
				}
			})
			if err != nil {
				return err
			}
			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "rerun when scenarios or the config change")
	cmd.Flags().BoolVar(&headed, "headed", false, "show the browser window")
	cmd.Flags().BoolVar(&updateSnapshots, "update-snapshots", false, "rewrite snapshot baselines instead of comparing")
	cmd.Flags().StringVar(&browserEngine, "browser", "", "browser engine (chromium, firefox, webkit)")
	cmd.Flags().StringVar(&journal, "journal", "", "record runs to this SQLite journal")

	return cmd
}

// batch runs a set of scenario paths on one browser session.
type batch struct {
	session *pwbrowser.Session
	runner  *scenario.Runner
	paths   []string
	out     io.Writer
}

// run loads the scenarios afresh and runs them in order. It fails when any
// scenario has a hard failure; soft failures only show in the reports.
func (b *batch) run(ctx context.Context) error {
	scenarios, err := scenario.LoadAll(b.paths)
	if err != nil {
		return err
	}

	var reports []*scenario.Report
	failed := 0
	for _, sc := range scenarios {
		if ctx.Err() != nil {
			break
		}
		report, err := b.one(ctx, sc)
		if report == nil {
			return err
		}
		reports = append(reports, report)
		if err != nil {
			failed++
		}
		if !jsonOutput {
			if err := report.WriteText(b.out); err != nil {
				return err
			}
		}
	}

	if jsonOutput {
		out := make([]reportJSON, len(reports))
		for i, r := range reports {
			out[i] = toJSON(r)
		}
		if err := printJSON(b.out, out); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d scenarios failed", failed, len(scenarios))
	}
	return ctx.Err()
}

func (b *batch) one(ctx context.Context, sc *scenario.Scenario) (*scenario.Report, error) {
	var width, height int
	if sc.Viewport != nil {
		width, height = sc.Viewport.Width, sc.Viewport.Height
	}
	page, err := b.session.NewPage(width, height)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := page.Close(); err != nil {
			log.Debug().Err(err).Str("scenario", sc.Name).Msg("Page close failed")
		}
	}()
	return b.runner.Run(ctx, page, sc)
}

type reportJSON struct {
	RunID        string    `json:"run_id"`
	Scenario     string    `json:"scenario"`
	Status       string    `json:"status"`
	Executed     int       `json:"executed"`
	Total        int       `json:"total"`
	FailedStep   *int      `json:"failed_step,omitempty"`
	Error        string    `json:"error,omitempty"`
	SoftFailures []string  `json:"soft_failures,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	DurationMs   int64     `json:"duration_ms"`
}

func toJSON(r *scenario.Report) reportJSON {
	out := reportJSON{
		RunID:      r.RunID,
		Scenario:   r.Scenario,
		Status:     string(r.Status),
		Executed:   r.Executed,
		Total:      r.Total,
		StartedAt:  r.StartedAt,
		DurationMs: r.Duration.Milliseconds(),
	}
	if r.Failure != nil {
		step := r.Failure.Index + 1
		out.FailedStep = &step
		out.Error = r.Failure.Err.Error()
	}
	for _, f := range r.SoftFailures {
		out.SoftFailures = append(out.SoftFailures, f.Message)
	}
	return out
}
