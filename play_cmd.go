package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/parley/internal/events"
	"github.com/dgnsrekt/parley/ui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	playEngine    string
	playBackend   string
	playSpeakers  []string
	playWatch     bool
	playPlain     bool
	playNoLipSync bool
	mouse         bool

	playCmd = &cobra.Command{
		Use:   "play SCRIPT",
		Short: "Play a dialogue script",
		Long: paragraph(fmt.Sprintf("\n%s a YAML dialogue script through the scheduler. Lines start at their %s offset; "+
			"higher priority lines interrupt, crossfade over or wait for what is playing.", keyword("Play"), keyword("at"))),
		Example: paragraph("parley play tavern.yml\nparley play --engine piper --speaker guard tavern.yml\nparley play --watch --backend mock tavern.yml"),
		Args:    cobra.ExactArgs(1),
		RunE:    runPlay,
	}
)

func runPlay(cmd *cobra.Command, args []string) error {
	path := args[0]

	prepare := func(sc *script) (*script, error) {
		return sc.filterSpeakers(playSpeakers)
	}
	sc, err := loadScript(path)
	if err != nil {
		return err
	}
	if sc, err = prepare(sc); err != nil {
		return err
	}

	c := cfg
	if playNoLipSync {
		c.LipSync.Enabled = false
	}

	sess, err := newSession(c, playEngine, playBackend, log.Default())
	if err != nil {
		return err
	}
	defer sess.Close() //nolint:errcheck

	for id, name := range sc.Speakers {
		sess.scheduler.Subtitles().SetSpeakerName(id, name)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()

	var changes <-chan *script
	if playWatch {
		if changes, err = watchScript(ctx, path, prepare, log.Default()); err != nil {
			return err
		}
	}

	log.Info("Playing script", "path", path, "lines", len(sc.Lines), "engine", sess.engine, "length", sc.duration())

	d := newDirector(sess)
	if playPlain || !term.IsTerminal(int(os.Stdout.Fd())) { //nolint:gosec
		return runPlain(ctx, sess, d, sc, changes)
	}
	return runInteractive(ctx, sess, d, sc, changes, filepath.Base(path))
}

// runPlain prints subtitles and interruptions as log lines on stderr.
func runPlain(ctx context.Context, sess *session, d *director, sc *script, changes <-chan *script) error {
	out := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.000",
		Level:           configuredLevel(),
	})
	unsubscribe := sess.bus.SubscribeAll(ui.NewLogSink(out).Handle)
	defer unsubscribe()

	return d.run(ctx, sc, changes)
}

// runInteractive shows the TUI while the director plays the script. The
// TUI stays up after the script ends until the user quits.
func runInteractive(ctx context.Context, sess *session, d *director, sc *script, changes <-chan *script, title string) error {
	uiCfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}
	uiCfg.Title = title
	uiCfg.Stats = sess.stats
	uiCfg.EnableMouse = mouse
	if !cfg.LipSync.Enabled || playNoLipSync {
		uiCfg.ShowVisemes = false
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sink := events.NewChanSink(256)
	unsubscribe := sess.bus.SubscribeAll(sink.Handle)
	defer unsubscribe()

	directed := make(chan error, 1)
	go func() { directed <- d.run(ctx, sc, changes) }()

	// forward events until the director is done, then close the stream
	stream := make(chan events.Event)
	go func() {
		defer close(stream)
		for {
			select {
			case e := <-sink.C():
				select {
				case stream <- e:
				case <-ctx.Done():
					return
				}
			case err := <-directed:
				directed <- err
				for {
					select {
					case e := <-sink.C():
						select {
						case stream <- e:
						case <-ctx.Done():
							return
						}
					default:
						return
					}
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	if _, err := ui.NewProgram(uiCfg, sess.scheduler, stream).Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	cancel()

	if n := sink.Dropped(); n > 0 {
		log.Warn("TUI fell behind, events dropped", "count", n)
	}
	return <-directed
}
