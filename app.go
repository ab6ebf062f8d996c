package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/erikh2000/comprendo-player/internal/audio"
	"github.com/erikh2000/comprendo-player/internal/config"
	"github.com/erikh2000/comprendo-player/internal/fetch"
	"github.com/erikh2000/comprendo-player/internal/lesson"
	"github.com/erikh2000/comprendo-player/internal/loop"
	"github.com/erikh2000/comprendo-player/internal/manifest"
	"github.com/erikh2000/comprendo-player/internal/player"
	"github.com/erikh2000/comprendo-player/internal/soundfx"
	"github.com/erikh2000/comprendo-player/internal/speech"
	"github.com/erikh2000/comprendo-player/internal/store"
	"github.com/erikh2000/comprendo-player/ui"
)

// app owns everything a playing session needs.
type app struct {
	loop       *loop.Loop
	store      *store.Store
	output     *audio.OtoPlayer
	syncer     *manifest.Syncer
	engine     *player.Engine
	session    *speech.Session
	recognizer *speech.TextRecognizer
	effects    *soundfx.Effects
	events     *ui.Events
}

// openStore opens the local store and a manifest syncer on top of it.
func openStore(cfg config.Config, fetcher manifest.Fetcher) (*store.Store, *manifest.Syncer, error) {
	st, err := store.New(afero.NewOsFs(), cfg.Store.Dir, cfg.Store.CompressionLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to open store: %w", err)
	}
	syncer := manifest.NewSyncer(cfg.Manifest.URL, fetcher, st, log.WithPrefix("manifest"))
	return st, syncer, nil
}

func newFetcher(cfg config.Config) *fetch.Client {
	return fetch.New(cfg.FetchConfig(),
		fetch.WithFs(afero.NewOsFs()),
		fetch.WithLogger(log.WithPrefix("fetch")),
	)
}

func newApp(cfg config.Config) (*app, error) {
	fetcher := newFetcher(cfg)

	decoder := audio.NewFFmpegDecoder(fetcher, cfg.DecoderConfig(), log.WithPrefix("audio"))
	if err := decoder.Validate(); err != nil {
		return nil, fmt.Errorf("unable to decode lesson audio: %w", err)
	}

	st, syncer, err := openStore(cfg, fetcher)
	if err != nil {
		return nil, err
	}

	output, err := audio.NewOtoPlayer(cfg.PlayerConfig(), log.WithPrefix("audio"))
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("unable to open audio output: %w", err)
	}
	backend := audio.Combine(decoder, output)

	l := loop.New()
	post := func(fn func()) {
		if !l.Post(fn) {
			log.Debug("Dropped event after shutdown")
		}
	}

	effects := soundfx.New(backend, afero.NewOsFs(), cfg.Sound.Dir, log.WithPrefix("sound"))
	recognizer := speech.NewTextRecognizer()
	session := speech.NewSession(cfg.SpeechConfig(), recognizer, l.Clock(), post,
		speech.WithPulse(effects.PlayListenPulse),
		speech.WithLogger(log.WithPrefix("speech")),
	)

	events := ui.NewEvents()
	loader := lesson.NewLoader(fetcher, backend, log.WithPrefix("lesson"))
	engine := player.New(loader, session, backend, post, events.PlayerCallbacks(), cfg.PlayerEngineConfig(), log.WithPrefix("player"))

	return &app{
		loop:       l,
		store:      st,
		output:     output,
		syncer:     syncer,
		engine:     engine,
		session:    session,
		recognizer: recognizer,
		effects:    effects,
		events:     events,
	}, nil
}

// run drives the event loop until ctx is done.
func (a *app) run(ctx context.Context) {
	if err := a.loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, loop.ErrClosed) {
		log.Error("Event loop stopped", "error", err)
	}
}

// restart reloads the lesson at url, once speech is ready.
func (a *app) restart(ctx context.Context, url string) {
	if err := a.engine.Start(ctx, url); err != nil {
		if errors.Is(err, player.ErrNotInitialized) {
			log.Debug("Lesson changed before playback began", "url", url)
			return
		}
		log.Error("Could not reload lesson", "url", url, "error", err)
		return
	}
	log.Info("Reloaded lesson", "url", url)
}

func (a *app) services() *ui.Services {
	return &ui.Services{
		Post:       func(fn func()) { a.loop.Post(fn) },
		Engine:     a.engine,
		Session:    a.session,
		Recognizer: a.recognizer,
		Effects:    a.effects,
		Syncer:     a.syncer,
		Store:      a.store,
		Events:     a.events,
	}
}

func (a *app) Close() {
	a.events.Close()
	a.loop.Close()
	if err := a.output.Close(); err != nil {
		log.Warn("Closing audio output", "error", err)
	}
	if err := a.store.Close(); err != nil {
		log.Warn("Closing store", "error", err)
	}
}
