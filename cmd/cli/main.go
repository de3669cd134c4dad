package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"

	"github.com/littleexplorer/explorer/internal/ai"
	"github.com/littleexplorer/explorer/internal/catalog"
	"github.com/littleexplorer/explorer/internal/config"
	"github.com/littleexplorer/explorer/internal/core"
	"github.com/littleexplorer/explorer/internal/db"
	"github.com/littleexplorer/explorer/internal/games"
	"github.com/littleexplorer/explorer/internal/garden"
	"github.com/littleexplorer/explorer/internal/logger"
	"github.com/littleexplorer/explorer/internal/rewards"
	"github.com/littleexplorer/explorer/internal/speech"
)

const (
	envFile    = ".env"
	backupFile = "explorer-backup.json"
)

type view int

const (
	viewMenu view = iota
	viewCategories
	viewCards
	viewGamePicker
	viewGame
	viewChat
	viewInput
	viewLoading
	viewAlphabet
	viewStickers
	viewShop
	viewGarden
	viewResults
)

var menuItems = []string{
	"Explore words",
	"Play a game",
	"Chat with Bubbles",
	"Alphabet book",
	"Sticker book",
	"Shop",
	"Garden",
	"Back up progress",
	"Exit",
}

// growResultMsg carries the cards added by a curriculum request
type growResultMsg struct {
	added []catalog.Card
	err   error
}

// chatReplyMsg carries the companion's answer
type chatReplyMsg struct {
	reply string
}

// celebrationMsg arrives when a sticker unlocks
type celebrationMsg struct {
	sticker rewards.Sticker
}

// credentialMsg arrives when the API key appears or disappears
type credentialMsg struct {
	missing bool
}

type model struct {
	ctx  context.Context
	app  *core.App
	view view

	cursor    int
	category  catalog.Category
	cards     []catalog.Card
	plants    []garden.Plant
	added     []catalog.Card
	chatLog   []string
	status    string
	err       error
	keyGone   bool
	celebrate string

	play *session

	input   textinput.Model
	spinner spinner.Model
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	menuStyle = lipgloss.NewStyle().
			Padding(1, 2)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("170")).
			Bold(true)

	normalStyle = lipgloss.NewStyle()

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	bannerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("214")).
			Padding(0, 1)
)

func initialModel(ctx context.Context, app *core.App) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return model{
		ctx:     ctx,
		app:     app,
		view:    viewMenu,
		keyGone: app.CredentialMissing(),
		input:   textinput.New(),
		spinner: s,
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case growResultMsg:
		m.err = msg.err
		m.added = msg.added
		m.view = viewResults
		if msg.err == nil {
			m.cards = m.app.Catalog.CardsFor(m.category.ID)
		}
		return m, nil

	case chatReplyMsg:
		m.chatLog = append(m.chatLog, "Bubbles: "+msg.reply)
		m.app.Say(msg.reply)
		m.view = viewChat
		m.input.Focus()
		return m, textinput.Blink

	case celebrationMsg:
		m.celebrate = fmt.Sprintf("%s You got the %s sticker!", msg.sticker.Icon, msg.sticker.Name)
		return m, nil

	case credentialMsg:
		m.keyGone = msg.missing
		return m, nil

	case settleMsg, nextRoundMsg, clearFeedbackMsg:
		if m.play == nil {
			return m, nil
		}
		return m, m.play.handle(m.ctx, msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.view == viewChat || m.view == viewInput {
			return m.updateTyping(msg)
		}

		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "q", "esc":
			if m.view == viewMenu {
				return m, tea.Quit
			}
			return m.back(), nil

		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}

		case "down", "j":
			if m.cursor < m.listLen()-1 {
				m.cursor++
			}

		case "r":
			if m.view == viewGame && m.play != nil {
				m.play.repeat()
			}

		case "g":
			if m.view == viewCards {
				return m.startGrow()
			}

		case "w":
			if m.view == viewCards {
				m.view = viewInput
				m.input.Placeholder = "Worksheet path (PDF, DOCX or TXT)"
				m.input.Focus()
				return m, textinput.Blink
			}

		case "enter":
			return m.selectItem()
		}
	}

	return m, nil
}

// updateTyping routes keys to the text input
func (m model) updateTyping(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		return m.back(), nil
	case "enter":
		return m.submitInput()
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// back returns to the parent view
func (m model) back() model {
	m.err = nil
	m.status = ""
	m.input.Reset()
	m.input.Blur()
	switch m.view {
	case viewCards:
		m.view = viewCategories
	case viewGame:
		m.play = nil
		m.view = viewGamePicker
	case viewInput, viewResults:
		m.view = viewCards
	default:
		m.view = viewMenu
	}
	m.cursor = 0
	return m
}

func (m model) listLen() int {
	switch m.view {
	case viewMenu:
		return len(menuItems)
	case viewCategories:
		return len(m.app.Catalog.Categories())
	case viewCards:
		return len(m.cards)
	case viewGamePicker:
		return len(games.Names)
	case viewGame:
		if m.play != nil {
			return len(m.play.options())
		}
	case viewAlphabet:
		return len(m.app.Catalog.Alphabet())
	case viewShop:
		return len(m.app.Ledger.Shop())
	}
	return 0
}

func (m model) selectItem() (tea.Model, tea.Cmd) {
	switch m.view {
	case viewMenu:
		return m.handleMenuSelection()

	case viewCategories:
		cats := m.app.Catalog.Categories()
		if m.cursor < len(cats) {
			m.category = cats[m.cursor]
			m.cards = m.app.Catalog.CardsFor(m.category.ID)
			m.view = viewCards
			m.cursor = 0
		}

	case viewCards:
		if m.cursor < len(m.cards) {
			card := m.cards[m.cursor]
			_ = m.app.SpeakCard(card.ID)
			plant, err := m.app.Visit(m.ctx, card.ID)
			m.err = err
			if err == nil {
				m.status = fmt.Sprintf("%s %s (%s) %s", card.Emoji, card.Word, card.Translation, garden.Stage(plant.GrowthLevel))
			}
		}

	case viewGamePicker:
		g, err := m.app.NewGame(games.Names[m.cursor])
		if err != nil {
			m.err = err
			return m, nil
		}
		m.play = newSession(g)
		m.view = viewGame
		m.cursor = 0
		return m, m.play.start(m.ctx)

	case viewGame:
		if m.play != nil {
			return m, m.play.pick(m.ctx, m.cursor)
		}

	case viewAlphabet:
		letters := m.app.Catalog.Alphabet()
		if m.cursor < len(letters) {
			l := letters[m.cursor]
			m.app.Say(fmt.Sprintf("%s is for %s", l.Letter, l.Word))
		}

	case viewShop:
		items := m.app.Ledger.Shop()
		if m.cursor < len(items) {
			p, err := m.app.Ledger.PurchaseItem(m.ctx, items[m.cursor].ID)
			m.err = err
			if err == nil {
				m.status = fmt.Sprintf("%s %s %s", p.Item.Icon, p.Item.Name, p.Action)
			}
		}

	case viewResults:
		m.view = viewCards
		m.cursor = 0
	}
	return m, nil
}

func (m model) handleMenuSelection() (tea.Model, tea.Cmd) {
	m.err = nil
	m.status = ""
	switch m.cursor {
	case 0:
		m.view = viewCategories
	case 1:
		m.view = viewGamePicker
	case 2:
		m.view = viewChat
		m.input.Placeholder = "Say something to Bubbles"
		m.input.Focus()
		m.cursor = 0
		return m, textinput.Blink
	case 3:
		m.view = viewAlphabet
	case 4:
		m.view = viewStickers
	case 5:
		m.view = viewShop
	case 6:
		m.plants = m.app.Garden.Plants()
		m.view = viewGarden
	case 7:
		if err := m.app.BackupProgress(m.ctx, backupFile); err != nil {
			m.err = err
		} else {
			m.status = "Progress saved to " + backupFile
		}
		return m, nil
	case 8:
		return m, tea.Quit
	}
	m.cursor = 0
	return m, nil
}

func (m model) submitInput() (tea.Model, tea.Cmd) {
	value := strings.TrimSpace(m.input.Value())
	m.input.Reset()
	if value == "" {
		return m, nil
	}

	switch m.view {
	case viewChat:
		m.chatLog = append(m.chatLog, "You: "+value)
		m.view = viewLoading
		m.input.Blur()
		app, ctx := m.app, m.ctx
		chatCmd := func() tea.Msg {
			return chatReplyMsg{reply: app.Chat(ctx, value)}
		}
		return m, tea.Batch(chatCmd, m.spinner.Tick)

	case viewInput:
		m.view = viewLoading
		m.input.Blur()
		app, ctx, category := m.app, m.ctx, m.category.ID
		importCmd := func() tea.Msg {
			added, err := app.Catalog.ImportWorksheet(ctx, category, value)
			return growResultMsg{added: added, err: err}
		}
		return m, tea.Batch(importCmd, m.spinner.Tick)
	}
	return m, nil
}

func (m model) startGrow() (tea.Model, tea.Cmd) {
	m.view = viewLoading
	m.err = nil
	app, ctx, category := m.app, m.ctx, m.category.ID
	growCmd := func() tea.Msg {
		added, err := app.Catalog.GrowCategory(ctx, category)
		return growResultMsg{added: added, err: err}
	}
	return m, tea.Batch(growCmd, m.spinner.Tick)
}

func (m model) View() string {
	var s strings.Builder

	if m.keyGone {
		s.WriteString(bannerStyle.Render("Magic is sleeping: add ANTHROPIC_API_KEY to .env"))
		s.WriteString("\n\n")
	}
	stats := m.app.Ledger.Stats()
	header := fmt.Sprintf("Little Explorer  ⭐ %d", stats.Stars)
	if item, ok := m.app.Ledger.Equipped(); ok {
		header += "  " + item.Icon
	}
	s.WriteString(titleStyle.Render(header))
	s.WriteString("\n")
	if m.celebrate != "" {
		s.WriteString(successStyle.Render(m.celebrate))
		s.WriteString("\n")
	}
	s.WriteString("\n")

	switch m.view {
	case viewMenu:
		s.WriteString(m.renderList(menuItems))
		if m.status != "" {
			s.WriteString("\n" + successStyle.Render(m.status) + "\n")
		}
		s.WriteString("\nUse ↑/↓ arrows or j/k to navigate, Enter to select, q to quit")
	case viewCategories:
		s.WriteString(m.renderCategories())
	case viewCards:
		s.WriteString(m.renderCards())
	case viewGamePicker:
		s.WriteString(m.renderList(games.Names))
		s.WriteString("\nEnter to play, q to go back")
	case viewGame:
		s.WriteString(m.renderGame())
	case viewChat:
		s.WriteString(m.renderChat())
	case viewInput:
		s.WriteString(m.input.View())
		s.WriteString("\n\nPress Enter to submit, Esc to cancel")
	case viewLoading:
		s.WriteString(m.spinner.View())
		s.WriteString(" Asking the magic helper...")
	case viewAlphabet:
		s.WriteString(m.renderAlphabet())
	case viewStickers:
		s.WriteString(m.renderStickers())
	case viewShop:
		s.WriteString(m.renderShop(stats))
	case viewGarden:
		s.WriteString(m.renderGarden())
	case viewResults:
		s.WriteString(m.renderResults())
	}

	if m.err != nil {
		s.WriteString("\n\n")
		s.WriteString(errorStyle.Render(friendlyError(m.err)))
	}
	return menuStyle.Render(s.String())
}

func (m model) renderList(items []string) string {
	var s strings.Builder
	for i, item := range items {
		if m.cursor == i {
			s.WriteString(selectedStyle.Render("> " + item))
		} else {
			s.WriteString(normalStyle.Render("  " + item))
		}
		s.WriteString("\n")
	}
	return s.String()
}

func (m model) renderCategories() string {
	cats := m.app.Catalog.Categories()
	items := make([]string, len(cats))
	for i, c := range cats {
		items[i] = fmt.Sprintf("%s %s (%d)", c.Icon, c.Name, len(m.app.Catalog.CardsFor(c.ID)))
	}
	return m.renderList(items) + "\nEnter to open, q to go back"
}

func (m model) renderCards() string {
	var s strings.Builder
	s.WriteString(fmt.Sprintf("%s %s\n\n", m.category.Icon, m.category.Name))
	if len(m.cards) == 0 {
		s.WriteString("No words yet. Press g to find some!\n")
	}
	items := make([]string, len(m.cards))
	for i, c := range m.cards {
		items[i] = fmt.Sprintf("%s %s", c.Emoji, c.Word)
	}
	s.WriteString(m.renderList(items))
	if m.status != "" {
		s.WriteString("\n" + successStyle.Render(m.status) + "\n")
	}
	s.WriteString("\nEnter to hear a word, g for new words, w to import a worksheet, q to go back")
	return s.String()
}

func (m model) renderChat() string {
	var s strings.Builder
	start := 0
	if len(m.chatLog) > 10 {
		start = len(m.chatLog) - 10
	}
	for _, line := range m.chatLog[start:] {
		s.WriteString(line + "\n")
	}
	s.WriteString("\n" + m.input.View())
	s.WriteString("\n\nPress Enter to send, Esc to go back")
	return s.String()
}

func (m model) renderAlphabet() string {
	letters := m.app.Catalog.Alphabet()
	items := make([]string, len(letters))
	for i, l := range letters {
		items[i] = fmt.Sprintf("%s  %s %s", l.Letter, l.Emoji, l.Word)
	}
	return m.renderList(items) + "\nEnter to hear the letter, q to go back"
}

func (m model) renderStickers() string {
	var s strings.Builder
	for _, st := range m.app.Ledger.Stickers() {
		if st.Unlocked {
			s.WriteString(fmt.Sprintf("%s %s\n", st.Icon, st.Name))
		} else {
			s.WriteString(dimStyle.Render(fmt.Sprintf("🔒 %s: %s", st.Name, st.Requirement)) + "\n")
		}
	}
	s.WriteString("\nq to go back")
	return s.String()
}

func (m model) renderShop(stats rewards.Stats) string {
	var s strings.Builder
	items := m.app.Ledger.Shop()
	labels := make([]string, len(items))
	for i, it := range items {
		label := fmt.Sprintf("%s %s  ⭐ %d", it.Icon, it.Name, it.Cost)
		switch {
		case stats.Equipped == it.ID:
			label = fmt.Sprintf("%s %s  (wearing)", it.Icon, it.Name)
		case owns(stats, it.ID):
			label = fmt.Sprintf("%s %s  (owned)", it.Icon, it.Name)
		}
		labels[i] = label
	}
	s.WriteString(m.renderList(labels))
	if m.status != "" {
		s.WriteString("\n" + successStyle.Render(m.status) + "\n")
	}
	s.WriteString("\nEnter to buy or wear, q to go back")
	return s.String()
}

func (m model) renderGarden() string {
	var s strings.Builder
	if len(m.plants) == 0 {
		s.WriteString("Your garden is empty. Study some words to plant seeds!\n")
	}
	for _, p := range m.plants {
		s.WriteString(fmt.Sprintf("%s %s %s\n", garden.Stage(p.GrowthLevel), p.Icon, p.Word))
	}
	s.WriteString("\nq to go back")
	return s.String()
}

func (m model) renderResults() string {
	var s strings.Builder
	if m.err == nil {
		if len(m.added) == 0 {
			s.WriteString("No new words this time.\n")
		} else {
			s.WriteString(successStyle.Render(fmt.Sprintf("Found %d new words!", len(m.added))))
			s.WriteString("\n\n")
			for _, c := range m.added {
				s.WriteString(fmt.Sprintf("%s %s (%s)\n", c.Emoji, c.Word, c.Translation))
			}
		}
	}
	s.WriteString("\nPress Enter to return to the cards")
	return s.String()
}

func owns(stats rewards.Stats, id string) bool {
	for _, o := range stats.Owned {
		if o == id {
			return true
		}
	}
	return false
}

// friendlyError turns gateway failures into a message a parent can act on
func friendlyError(err error) string {
	if !ai.IsAIError(err) {
		return fmt.Sprintf("Error: %v", err)
	}
	switch ai.KindOf(err) {
	case ai.KindMissingCredential:
		return "The magic helper needs an API key. Add ANTHROPIC_API_KEY to .env."
	case ai.KindQuotaExceeded:
		return "The magic helper is tired. Try again in a little while."
	case ai.KindContentRejected:
		return "The magic helper could not do that one. Try something else!"
	}
	return "The magic helper is not answering right now."
}

func setup(ctx context.Context) (*core.App, func(), error) {
	_ = godotenv.Load(envFile)
	cfg := config.Load()

	log := logger.NewNop()
	if cfg.LogFile != "" {
		fileLog, err := logger.NewFile(cfg.LogFile)
		if err != nil {
			return nil, nil, fmt.Errorf("initialize logger: %w", err)
		}
		log = fileLog
	}

	database, err := db.NewDatabase(cfg.DatabasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize database: %w", err)
	}

	seed, err := catalog.DefaultSeed()
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("load seed: %w", err)
	}

	var recognizer speech.Recognizer = speech.Unsupported{}
	if cloud, err := speech.NewCloudRecognizer(ctx, cfg.SpeechCreds, log); err == nil {
		recognizer = cloud
	}

	speaker := speech.NewSpeaker(cfg.TTSCommand, log)
	app, err := core.New(ctx, core.Options{
		Seed:  seed,
		Store: database,
		Gateway: ai.NewService(
			ai.NewClaudeClient(cfg.AnthropicAPIKey, log),
			ai.NewImageClient(cfg.ImageBaseURL, cfg.ImageAPIKey, cfg.ImageModel, log),
		),
		Speaker:            speaker,
		Recognizer:         recognizer,
		APIKey:             config.KeySource(envFile, "ANTHROPIC_API_KEY"),
		CredentialInterval: cfg.CredentialCheck,
		RandSeed:           cfg.Seed,
		Log:                log,
	})
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("initialize app: %w", err)
	}

	cleanup := func() {
		speaker.Stop()
		app.Close()
		if cr, ok := recognizer.(*speech.CloudRecognizer); ok {
			cr.Close()
		}
		database.Close()
		log.Sync()
	}
	return app, cleanup, nil
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, cleanup, err := setup(ctx)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	p := tea.NewProgram(initialModel(ctx, app))
	app.OnCelebration(func(c rewards.Celebration) {
		p.Send(celebrationMsg{sticker: c.Sticker})
	})
	app.Credentials.OnChange(func(missing bool) {
		p.Send(credentialMsg{missing: missing})
	})
	go app.Credentials.Run(ctx)

	if _, err := p.Run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}
