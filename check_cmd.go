package main

import (
	"fmt"
	"sort"

	"github.com/dgnsrekt/parley/internal/audio"
	"github.com/dgnsrekt/parley/internal/config"
	"github.com/dgnsrekt/parley/internal/tts"
	"github.com/dgnsrekt/parley/internal/ttypes"
	"github.com/spf13/cobra"
)

var checkQuick bool

var checkCmd = &cobra.Command{
	Use:     "check [SCRIPT]",
	Short:   "Validate the configuration, synthesis engine and a script",
	Long:    paragraph(fmt.Sprintf("\n%s the configuration and that the selected synthesis engine is usable. When a script is given it is parsed as well.", keyword("Check"))),
	Example: paragraph("parley check\nparley check --engine piper tavern.yml\nparley check --quick --engine piper"),
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()

		engine, err := tts.ValidateEngineSelection(playEngine, ttypes.EngineType(cfg.TTS.Engine))
		if err != nil {
			return err
		}

		if checkQuick {
			if err := tts.QuickValidation(engine, cfg.TTS.Piper.Binary); err != nil {
				return err
			}
			fmt.Fprintf(w, "engine:   %s\n", engine)
			return nil
		}

		res := tts.ValidateEngine(engine, cfg.ToPiper().PiperPaths)
		if !res.Available {
			if res.Guidance != "" {
				return fmt.Errorf("%w\n\n%s", res.Error, res.Guidance)
			}
			return res.Error
		}
		fmt.Fprintf(w, "engine:   %s\n", engine)
		keys := make([]string, 0, len(res.Details))
		for k := range res.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "  %s: %s\n", k, res.Details[k])
		}

		fmt.Fprintf(w, "backend:  %s\n", cfg.Audio.Backend)
		if cfg.Audio.Backend == config.BackendOto {
			pc, err := cfg.ToPlayer()
			if err != nil {
				return err
			}
			if err := audio.ValidatePlayerConfig(pc); err != nil {
				return err
			}
			fmt.Fprintf(w, "  %d Hz, %d channel(s)\n", pc.SampleRate, pc.Channels)
		}

		r, err := cfg.Resolver()
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "interrupts (new \\ current):")
		table := r.Table()
		for n := range table {
			fmt.Fprintf(w, "  P%d", n)
			for c := range table[n] {
				fmt.Fprintf(w, " %-16s", table[n][c])
			}
			fmt.Fprintln(w)
		}

		if len(args) == 1 {
			sc, err := loadScript(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "script:   %d lines, %d speakers, last line at %s\n",
				len(sc.Lines), len(sc.speakers()), sc.duration())
		}
		return nil
	},
}
