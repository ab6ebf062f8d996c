package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# where the lesson list is published
manifest:
  url: "http://seespacelabs-comprendo.s3-website-us-east-1.amazonaws.com/lesson-manifest.json"
  # how often to check for new lessons while playing (0 disables)
  refresh_interval: 5m

speech:
  # language the learner answers in
  locale: "es"
  # how long to wait for an answer before moving on
  silence_timeout: 5s
  # time between listening cues
  pulse_interval: 1s

audio:
  # 44100 or 48000
  sample_rate: 44100
  buffer_size: 4096
  # used to decode lesson audio
  ffmpeg: "ffmpeg"
  timeout: 2m

fetch:
  requests_per_minute: 120
  timeout: 30s

# defaults to the user data directory
# sound:
#   dir: "~/.local/share/comprendo/sounds"
# store:
#   dir: "~/.local/share/comprendo/store"
store:
  # zstd level for large cached records (0 disables compression)
  compression_level: 3

lesson:
  # shown when the learner should speak
  prompt: "Responde, por favor."

# log debug messages
debug: false
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the comprendo config file",
	Long:    paragraph(fmt.Sprintf("\n%s the comprendo config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("comprendo config\ncomprendo config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	// an invalid config file must still be editable
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("Comprendo", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
