// Package main provides the entry point for the Comprendo lesson player.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/erikh2000/comprendo-player/internal/config"
	"github.com/erikh2000/comprendo-player/internal/fetch"
	"github.com/erikh2000/comprendo-player/internal/manifest"
	"github.com/erikh2000/comprendo-player/ui"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	resume     bool
	watch      bool
	cfg        config.Config

	rootCmd = &cobra.Command{
		Use:   "comprendo [LESSON]",
		Short: "Practice Spanish with narrated lessons",
		Long: paragraph(
			fmt.Sprintf("\nPlay narrated Spanish lessons and %s when asked.", keyword("answer out loud")),
		),
		Example: paragraph("comprendo\ncomprendo saludos\ncomprendo --resume\ncomprendo --watch ./lessons/saludos.json"),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.MaximumNArgs(1),
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return validateOptions()
		},
		RunE: execute,
	}
)

func validateOptions() error {
	var err error
	cfg, err = config.LoadFromViper(viper.GetViper())
	if err != nil {
		return err
	}

	dir, err := dataDir()
	if err != nil {
		return err
	}
	if cfg.Store.Dir == "" {
		cfg.Store.Dir = filepath.Join(dir, "store")
	}
	if cfg.Sound.Dir == "" {
		cfg.Sound.Dir = filepath.Join(dir, "sounds")
	}

	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	return nil
}

func dataDir() (string, error) {
	if d := os.Getenv("COMPRENDO_DATA_HOME"); d != "" {
		return d, nil
	}
	dirs, err := gap.NewScope(gap.User, "comprendo").DataDirs()
	if err != nil || len(dirs) == 0 {
		return "", fmt.Errorf("could not find data directory: %w", err)
	}
	return dirs[0], nil
}

func execute(_ *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("comprendo needs a terminal; use `comprendo lessons` to list lessons")
	}
	if watch && len(args) == 0 {
		return errors.New("--watch needs a local lesson file")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	go a.run(ctx)

	var lessonURL string
	switch {
	case len(args) == 1:
		lessonURL, err = resolveLesson(ctx, a.syncer, a.store, args[0])
		if err != nil {
			return err
		}
	case resume:
		lessonURL, err = manifest.CurrentLessonURL(a.store)
		if err != nil {
			return fmt.Errorf("unable to read current lesson: %w", err)
		}
		if lessonURL == "" {
			return errors.New("no lesson to resume; pick one with `comprendo lessons`")
		}
	}

	if watch {
		p, ok := fetch.LocalPath(lessonURL)
		if !ok {
			return fmt.Errorf("--watch only works with local lessons, not %s", lessonURL)
		}
		w, err := watchLesson(ctx, p, func() { a.restart(ctx, lessonURL) })
		if err != nil {
			return err
		}
		defer w.Close() //nolint:errcheck
	}

	return runTUI(ctx, a, lessonURL)
}

// resolveLesson turns a command-line argument into a lesson URL: URLs and
// existing files are used as is, anything else is looked up by name in the
// lesson manifest. The result becomes the current lesson.
func resolveLesson(ctx context.Context, syncer *manifest.Syncer, s manifest.Store, arg string) (string, error) {
	lessonURL := arg
	if !strings.Contains(arg, "://") {
		if _, err := os.Stat(arg); err == nil {
			abs, err := filepath.Abs(arg)
			if err != nil {
				return "", fmt.Errorf("unable to get absolute path: %w", err)
			}
			lessonURL = abs
		} else {
			m, _, err := syncer.Sync(ctx)
			if err != nil {
				log.Warn("Using cached lesson manifest", "error", err)
			}
			found := m.Search(arg)
			if len(found) == 0 {
				return "", fmt.Errorf("no lesson matches %q", arg)
			}
			log.Debug("Resolved lesson", "query", arg, "name", found[0].Name, "url", found[0].URL)
			lessonURL = found[0].URL
		}
	}

	if err := manifest.SetCurrentLessonURL(s, lessonURL); err != nil {
		log.Warn("Could not remember current lesson", "url", lessonURL, "error", err)
	}
	return lessonURL, nil
}

func runTUI(ctx context.Context, a *app, lessonURL string) error {
	// Read environment to get debugging stuff
	uiCfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}
	uiCfg.LessonURL = lessonURL
	uiCfg.RefreshInterval = cfg.Manifest.RefreshInterval

	if _, err := ui.NewProgram(ctx, uiCfg, a.services()).Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	return nil
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	config.SetDefaults(viper.GetViper())
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().String("manifest", "", "lesson manifest URL")
	rootCmd.PersistentFlags().Bool("debug", false, "log debug messages")
	rootCmd.Flags().BoolVarP(&resume, "resume", "r", false, "play the lesson you played last")
	rootCmd.Flags().BoolVarP(&watch, "watch", "w", false, "restart the lesson when its local files change")
	rootCmd.Flags().Duration("silence-timeout", 0, "how long to wait for an answer")
	rootCmd.Flags().Int("sample-rate", 0, "audio output sample rate (44100 or 48000)")

	// Config bindings
	_ = viper.BindPFlag("manifest.url", rootCmd.PersistentFlags().Lookup("manifest"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("speech.silence_timeout", rootCmd.Flags().Lookup("silence-timeout"))
	_ = viper.BindPFlag("audio.sample_rate", rootCmd.Flags().Lookup("sample-rate"))

	rootCmd.AddCommand(lessonsCmd, configCmd, manCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "comprendo")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "comprendo")}, dirs...)
	}

	if c := os.Getenv("COMPRENDO_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("comprendo")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("comprendo")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	configFile = filepath.Join(dirs[0], "comprendo.yml")
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
