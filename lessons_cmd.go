package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/erikh2000/comprendo-player/internal/manifest"
)

var offline bool

var lessonsCmd = &cobra.Command{
	Use:     "lessons [QUERY]",
	Short:   "List the available lessons",
	Long:    paragraph(fmt.Sprintf("\n%s the lessons in the manifest, best matches first when a query is given. The current lesson is marked with a star.", keyword("List"))),
	Example: paragraph("comprendo lessons\ncomprendo lessons restaurante\ncomprendo lessons --offline"),
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, syncer, err := openStore(cfg, newFetcher(cfg))
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		var m manifest.Manifest
		if offline {
			m, err = syncer.Cached()
		} else {
			m, _, err = syncer.Sync(cmd.Context())
		}
		if err != nil {
			return fmt.Errorf("unable to load lessons: %w", err)
		}

		lessons := m.Lessons
		if len(args) == 1 {
			lessons = m.Search(args[0])
		}
		current, err := manifest.CurrentLessonURL(st)
		if err != nil {
			log.Warn("Could not read current lesson", "error", err)
		}
		age, err := syncer.Age(time.Now())
		if err != nil {
			age = -1
		}
		return printLessons(os.Stdout, lessons, current, age, termWidth())
	},
}

func init() {
	lessonsCmd.Flags().BoolVar(&offline, "offline", false, "only show the cached manifest")
}

// termWidth returns the width of stdout, or 80 when it is not a terminal.
func termWidth() int {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return 80
	}
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return min(w, 120)
}

func printLessons(w io.Writer, lessons []manifest.Entry, current string, age time.Duration, width int) error {
	if len(lessons) == 0 {
		_, err := fmt.Fprintln(w, "No lessons found.")
		return err
	}
	for _, e := range lessons {
		mark := " "
		if e.URL == current {
			mark = "*"
		}
		name := runewidth.Truncate(e.Name, max(width-4, 10), "…")
		if _, err := fmt.Fprintf(w, "%s %s\n", mark, name); err != nil {
			return err
		}
	}
	if age >= 0 {
		_, err := fmt.Fprintf(w, "\n%d lessons, updated %s\n", len(lessons), humanize.Time(time.Now().Add(-age)))
		return err
	}
	return nil
}
