// Package core wires the stores, the remote gateway and the learning
// components into one App shared by the web and terminal front-ends.
package core

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/littleexplorer/explorer/internal/ai"
	"github.com/littleexplorer/explorer/internal/catalog"
	"github.com/littleexplorer/explorer/internal/db"
	"github.com/littleexplorer/explorer/internal/events"
	"github.com/littleexplorer/explorer/internal/games"
	"github.com/littleexplorer/explorer/internal/garden"
	"github.com/littleexplorer/explorer/internal/imagecache"
	"github.com/littleexplorer/explorer/internal/logger"
	"github.com/littleexplorer/explorer/internal/render"
	"github.com/littleexplorer/explorer/internal/rewards"
	"github.com/littleexplorer/explorer/internal/speech"
)

// SketchSize is the edge of the square a drawing is scaled to.
const SketchSize = 512

// Store is the local persistence the App needs.
type Store interface {
	db.ImageStore
	db.ProgressStore
	ListProgress(ctx context.Context) ([]*db.ProgressEntry, error)
	ExportToJSON(ctx context.Context, filePath string) error
	ImageCount(ctx context.Context) (int, error)
}

// Options configure New. Store, Gateway and Seed are required.
type Options struct {
	Seed       *catalog.Seed
	Store      Store
	Gateway    ai.Gateway
	Speaker    speech.Sayer
	Recognizer speech.Recognizer

	// APIKey is polled by the credential monitor. Nil disables the banner.
	APIKey             func() string
	CredentialInterval time.Duration

	RandSeed int64
	Log      *logger.Logger
}

// App is the coordinator behind both front-ends.
type App struct {
	Bus           *events.Bus
	Ledger        *rewards.Ledger
	Catalog       *catalog.Catalog
	Garden        *garden.Garden
	Images        *imagecache.Cache
	Pronunciation *speech.Checker
	Credentials   *CredentialMonitor
	Feed          *Feed

	store   Store
	gateway ai.Gateway
	speaker speech.Sayer
	log     *logger.Logger

	rngMu sync.Mutex
	rng   *rand.Rand

	stopFeed func()
	observed sync.WaitGroup
}

// Drawing is a recognised sketch redrawn as a cartoon.
type Drawing struct {
	ID    string `json:"id"`
	Word  string `json:"word"`
	Stars int    `json:"stars"`
	Image []byte `json:"-"`
}

// New builds the App and loads persisted progress.
func New(ctx context.Context, opts Options) (*App, error) {
	if opts.Seed == nil || opts.Store == nil || opts.Gateway == nil {
		return nil, fmt.Errorf("seed, store and gateway are required")
	}
	log := opts.Log
	if log == nil {
		log = logger.NewNop()
	}
	speaker := opts.Speaker
	if speaker == nil {
		speaker = silent{}
	}

	bus := events.NewBus()
	a := &App{
		Bus:           bus,
		Ledger:        rewards.NewLedger(opts.Store, bus, log),
		Catalog:       catalog.New(opts.Seed, opts.Store, opts.Gateway, bus, log),
		Garden:        garden.New(opts.Store, log),
		Images:        imagecache.New(opts.Store, opts.Gateway, log),
		Pronunciation: speech.NewChecker(opts.Recognizer, speaker, bus, log),
		Feed:          NewFeed(DefaultFeedSize),
		store:         opts.Store,
		gateway:       opts.Gateway,
		speaker:       speaker,
		log:           log.With("component", "app"),
		rng:           rand.New(rand.NewPCG(uint64(opts.RandSeed), uint64(opts.RandSeed>>1)+1)),
	}
	if opts.APIKey != nil {
		a.Credentials = NewCredentialMonitor(opts.APIKey, opts.CredentialInterval, log)
	}

	if err := a.Ledger.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load rewards: %w", err)
	}
	if err := a.Catalog.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	if err := a.Garden.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load garden: %w", err)
	}

	a.stopFeed = bus.Subscribe(func(ctx context.Context, e events.Event) {
		a.Feed.Add(FeedItemFor(e, false))
	})
	a.observe(a.Ledger.Subscribe())
	return a, nil
}

// Close detaches observers. The store is owned by the caller.
func (a *App) Close() {
	if a.stopFeed != nil {
		a.stopFeed()
	}
	a.Ledger.Close()
	a.observed.Wait()
}

// OnCelebration registers fn for sticker unlocks. fn runs on its own
// goroutine and may be slow.
func (a *App) OnCelebration(fn func(rewards.Celebration)) {
	a.observe(a.Ledger.Subscribe(), fn)
}

// observe drains a celebration channel, announcing each unlock.
func (a *App) observe(ch <-chan rewards.Celebration, fns ...func(rewards.Celebration)) {
	a.observed.Add(1)
	go func() {
		defer a.observed.Done()
		for c := range ch {
			if len(fns) == 0 {
				a.speaker.Speak("You got the " + c.Sticker.Name + " sticker!")
				a.log.Info("celebration", "sticker", c.Sticker.ID)
			}
			for _, fn := range fns {
				fn(c)
			}
		}
	}()
}

// Card looks up a card by ID.
func (a *App) Card(id string) (catalog.Card, error) {
	card, ok := a.Catalog.Card(id)
	if !ok {
		return catalog.Card{}, fmt.Errorf("%w: %s", catalog.ErrUnknownCard, id)
	}
	return card, nil
}

// CardImage returns the picture for a card, generating it on first use.
func (a *App) CardImage(ctx context.Context, cardID string) (imagecache.Image, error) {
	card, err := a.Card(cardID)
	if err != nil {
		return imagecache.Image{}, err
	}
	categoryName := card.Category
	if cat, ok := a.Catalog.Category(card.Category); ok {
		categoryName = cat.Name
	}
	return a.Images.GetOrCreate(ctx, card.ID, ai.CardPrompt(card.Word, categoryName))
}

// Placeholder renders the offline picture for a card.
func (a *App) Placeholder(cardID string) ([]byte, error) {
	card, err := a.Card(cardID)
	if err != nil {
		return nil, err
	}
	color := ""
	if cat, ok := a.Catalog.Category(card.Category); ok {
		color = cat.Color
	}
	return render.Placeholder(card.Word, color)
}

// Chat asks the companion for a reply. Failures are logged and answered
// with ai.ChatFallback so the conversation never stalls.
func (a *App) Chat(ctx context.Context, message string) string {
	message = strings.TrimSpace(message)
	if message == "" {
		return ai.ChatFallback
	}
	reply, err := a.gateway.Chat(ctx, message)
	if err != nil {
		a.log.Warn("chat failed", "kind", ai.KindOf(err).String(), "error", err)
		return ai.ChatFallback
	}
	return reply
}

// SketchMagic redraws a child's sketch. A nil Drawing with a nil error
// means the drawing was not recognised. Recognised drawings are announced
// and earn stars.
func (a *App) SketchMagic(ctx context.Context, sketch []byte) (*Drawing, error) {
	normalized, err := render.NormalizeSketch(sketch, SketchSize)
	if err != nil {
		a.log.Debug("sending sketch as uploaded", "error", err)
		normalized = sketch
	}
	res, err := a.gateway.SketchToCartoon(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}

	d := &Drawing{ID: "sketch-" + uuid.NewString(), Word: res.Word, Stars: rewards.StarsPerDrawing, Image: res.Image}
	a.Images.Put(ctx, d.ID, d.Image)
	a.speaker.Speak(fmt.Sprintf("Wow! It's a %s!", res.Word))
	a.Bus.Publish(ctx, events.StarsEarned{N: rewards.StarsPerDrawing, Reason: "drawing"})
	return d, nil
}

// Drawing returns a previously redrawn sketch.
func (a *App) Drawing(ctx context.Context, id string) ([]byte, bool) {
	if !strings.HasPrefix(id, "sketch-") {
		return nil, false
	}
	img, ok := a.Images.Peek(ctx, id)
	return img.Data, ok
}

// SpeakCard reads a card's word aloud.
func (a *App) SpeakCard(cardID string) error {
	card, err := a.Card(cardID)
	if err != nil {
		return err
	}
	a.speaker.Speak(card.Word)
	return nil
}

// Say reads arbitrary text aloud.
func (a *App) Say(text string) {
	a.speaker.Speak(text)
}

// Visit records that a card was studied and grows its plant.
func (a *App) Visit(ctx context.Context, cardID string) (garden.Plant, error) {
	card, err := a.Card(cardID)
	if err != nil {
		return garden.Plant{}, err
	}
	return a.Garden.Visit(ctx, card)
}

// CheckPronunciation compares a recording with the card's word.
func (a *App) CheckPronunciation(ctx context.Context, cardID string, audio []byte) (speech.Attempt, error) {
	card, err := a.Card(cardID)
	if err != nil {
		return speech.Attempt{}, err
	}
	return a.Pronunciation.Check(ctx, card, audio)
}

// NewGame creates a mini-game drawing from the whole catalog. Each game
// gets its own random source.
func (a *App) NewGame(name string) (games.Game, error) {
	a.rngMu.Lock()
	rng := rand.New(rand.NewPCG(a.rng.Uint64(), a.rng.Uint64()))
	a.rngMu.Unlock()

	return games.New(name, games.Deps{
		Cards:   a.Catalog,
		Rand:    rng,
		Bus:     a.Bus,
		Speaker: a.speaker,
	})
}

// CredentialMissing reports whether the AI key banner should show.
func (a *App) CredentialMissing() bool {
	return a.Credentials != nil && a.Credentials.Missing()
}

type silent struct{}

func (silent) Speak(string) {}

// Progress returns every stored progress blob for a backup download.
func (a *App) Progress(ctx context.Context) ([]*db.ProgressEntry, error) {
	return a.store.ListProgress(ctx)
}

// BackupProgress writes every progress blob to a JSON file at path.
func (a *App) BackupProgress(ctx context.Context, path string) error {
	if err := a.store.ExportToJSON(ctx, path); err != nil {
		return err
	}
	a.log.Info("progress backed up", "path", path)
	return nil
}

// CachedImages returns how many pictures are stored on this device.
func (a *App) CachedImages(ctx context.Context) int {
	n, err := a.store.ImageCount(ctx)
	if err != nil {
		a.log.Warn("failed to count cached images", "error", err)
		return 0
	}
	return n
}
