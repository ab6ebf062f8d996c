package lesson

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/erikh2000/comprendo-player/internal/audio"
	"github.com/erikh2000/comprendo-player/internal/fetch"
)

// Fetcher retrieves raw resource bytes.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

type descriptor struct {
	Mp3URL      string `json:"mp3url"`
	Mp3URLCamel string `json:"mp3Url"`
	AudioURL    string `json:"audioUrl"`
	MarksURL    string `json:"marksUrl"`
	SSML        string `json:"ssml"`
	LessonName  string `json:"lessonName"`
}

func (d descriptor) audioURL() string {
	switch {
	case d.Mp3URL != "":
		return d.Mp3URL
	case d.Mp3URLCamel != "":
		return d.Mp3URLCamel
	default:
		return d.AudioURL
	}
}

// Loader builds Lessons from their descriptor URLs.
type Loader struct {
	fetcher Fetcher
	decoder audio.Decoder
	logger  *log.Logger
}

// NewLoader creates a Loader. A nil logger uses the default logger.
func NewLoader(f Fetcher, d audio.Decoder, logger *log.Logger) *Loader {
	if logger == nil {
		logger = log.Default()
	}
	return &Loader{fetcher: f, decoder: d, logger: logger}
}

// Load fetches and parses the lesson at lessonURL. Any failure aborts the
// whole load.
func (l *Loader) Load(ctx context.Context, lessonURL string) (*Lesson, error) {
	start := time.Now()

	body, err := l.fetcher.Get(ctx, lessonURL)
	if err != nil {
		return nil, fmt.Errorf("fetch lesson descriptor: %w", err)
	}
	var desc descriptor
	if err := json.Unmarshal(body, &desc); err != nil {
		return nil, fmt.Errorf("decode lesson descriptor %s: %w", lessonURL, err)
	}

	audioURL := desc.audioURL()
	switch {
	case audioURL == "":
		return nil, &DescriptorError{URL: lessonURL, Field: "mp3Url"}
	case desc.MarksURL == "":
		return nil, &DescriptorError{URL: lessonURL, Field: "marksUrl"}
	case desc.SSML == "":
		return nil, &DescriptorError{URL: lessonURL, Field: "ssml"}
	case desc.LessonName == "":
		return nil, &DescriptorError{URL: lessonURL, Field: "lessonName"}
	}
	audioURL = fetch.HTTPToHTTPS(audioURL)
	marksURL := fetch.HTTPToHTTPS(desc.MarksURL)

	texts, err := parseLineTexts(desc.SSML)
	if err != nil {
		return nil, err
	}

	var (
		buf  *audio.Buffer
		rows []markRow
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		buf, err = l.decoder.Decode(gctx, audioURL)
		if err != nil {
			return fmt.Errorf("decode lesson audio: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		data, err := l.fetcher.Get(gctx, marksURL)
		if err != nil {
			return fmt.Errorf("fetch marks: %w", err)
		}
		rows, err = parseMarks(data, marksURL)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	lines := buildLines(rows, texts, buf.DurationMillis())
	lesson := &Lesson{
		Name:                 desc.LessonName,
		Audio:                buf,
		Lines:                lines,
		PracticeAfterLineNos: buildPracticeAfterLineNos(rows, lines),
		InputEvents:          buildInputEvents(rows, lines),
	}

	l.logger.Info("Loaded lesson",
		"name", lesson.Name,
		"lines", len(lines),
		"practices", len(lesson.PracticeAfterLineNos),
		"inputs", len(lesson.InputEvents),
		"duration", time.Since(start))
	if len(texts) != len(lines) {
		l.logger.Warn("SSML line count does not match line marks", "texts", len(texts), "marks", len(lines))
	}
	return lesson, nil
}
