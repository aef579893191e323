package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/factbot/internal/cache"
	"github.com/ppiankov/factbot/internal/model"
	"github.com/ppiankov/factbot/internal/payment"
	"github.com/ppiankov/factbot/internal/pipeline"
	"github.com/ppiankov/factbot/internal/usage"
)

// FakeMessenger records everything the bot sends
type FakeMessenger struct {
	mu      sync.Mutex
	sent    []Message
	edits   []Message
	deleted []MessageRef
	next    int
}

func (m *FakeMessenger) Send(ctx context.Context, channelID string, msg Message) (MessageRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	m.next++
	return MessageRef{ChannelID: channelID, MessageID: fmt.Sprintf("m%d", m.next)}, nil
}

func (m *FakeMessenger) Edit(ctx context.Context, ref MessageRef, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edits = append(m.edits, msg)
	return nil
}

func (m *FakeMessenger) Delete(ctx context.Context, ref MessageRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, ref)
	return nil
}

func (m *FakeMessenger) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.sent...)
}

func (m *FakeMessenger) Edits() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.edits...)
}

func (m *FakeMessenger) Last() Message {
	sent := m.Sent()
	if len(sent) == 0 {
		return Message{}
	}
	return sent[len(sent)-1]
}

func (m *FakeMessenger) LastEdit() Message {
	edits := m.Edits()
	if len(edits) == 0 {
		return Message{}
	}
	return edits[len(edits)-1]
}

// FakeSearcher implements llm.Searcher
type FakeSearcher struct {
	mu     sync.Mutex
	answer string
	err    error
	delay  time.Duration
	calls  []string
}

func (f *FakeSearcher) do(ctx context.Context, kind, input string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, kind+":"+input)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.answer, f.err
}

func (f *FakeSearcher) AnalyzeArticle(ctx context.Context, url string) (string, error) {
	return f.do(ctx, "article", url)
}

func (f *FakeSearcher) AnalyzeText(ctx context.Context, text string) (string, error) {
	return f.do(ctx, "text", text)
}

func (f *FakeSearcher) CheckFact(ctx context.Context, statement string) (string, error) {
	return f.do(ctx, "fact", statement)
}

func (f *FakeSearcher) DeepResearch(ctx context.Context, topic, initial string) (string, error) {
	return f.do(ctx, "deep", topic)
}

func (f *FakeSearcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fixture struct {
	bot       *Bot
	messenger *FakeMessenger
	searcher  *FakeSearcher
	ledger    *usage.Ledger
	conv      Conversation
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := model.DefaultConfig()
	cfg.Bot.ProgressInterval = 5 * time.Millisecond
	cfg.Discord.MessageLimit = 100

	ledger := usage.NewLedger(cfg.Usage)
	searcher := &FakeSearcher{answer: "**VERDICT**: confirmed https://reuters.com/a"}
	service := pipeline.NewService(cfg, searcher, ledger, nil, nil)
	messenger := &FakeMessenger{}
	sessions := NewSessionStore(cache.NewMemoryCache(time.Hour, time.Hour), time.Hour)

	b := New(ConfigFromModel(cfg), service, ledger, payment.NewStubGateway(""), sessions, messenger, nil)

	return &fixture{
		bot:       b,
		messenger: messenger,
		searcher:  searcher,
		ledger:    ledger,
		conv:      Conversation{ChannelID: "c1", User: User{ID: "u1", Name: "alice"}},
	}
}

func (f *fixture) press() Conversation {
	conv := f.conv
	conv.Origin = &MessageRef{ChannelID: "c1", MessageID: "menu"}
	return conv
}

func hasButton(msg Message, action string) bool {
	for _, row := range msg.Keyboard {
		for _, b := range row {
			if b.Action == action {
				return true
			}
		}
	}
	return false
}

func TestBot_StartCommand(t *testing.T) {
	f := newFixture(t)

	if err := f.bot.HandleText(context.Background(), f.conv, "/start"); err != nil {
		t.Fatal(err)
	}

	msg := f.messenger.Last()
	if !strings.Contains(msg.Text, "alice") || !strings.Contains(msg.Text, "Today: 0/3") {
		t.Errorf("Unexpected welcome: %q", msg.Text)
	}
	for _, action := range []string{ActionAnalyzeArticle, ActionCheckFact, ActionUserStats, ActionBuyRequests, ActionPromoCode, ActionHelp} {
		if !hasButton(msg, action) {
			t.Errorf("Expected %s button", action)
		}
	}
	if f.ledger.Len() != 1 {
		t.Error("Expected user to be registered")
	}
}

func TestBot_HelpCommand(t *testing.T) {
	f := newFixture(t)

	_ = f.bot.HandleText(context.Background(), f.conv, "/help")
	if msg := f.messenger.Last(); !strings.Contains(msg.Text, "/promo") || !strings.Contains(msg.Text, "3 requests per day") {
		t.Errorf("Unexpected help: %q", msg.Text)
	}
}

func TestBot_LinkIsAnalyzedAutomatically(t *testing.T) {
	f := newFixture(t)

	if err := f.bot.HandleText(context.Background(), f.conv, "https://example.com/story"); err != nil {
		t.Fatal(err)
	}

	if calls := f.searcher.Calls(); len(calls) != 1 || calls[0] != "article:https://example.com/story" {
		t.Errorf("Unexpected calls: %v", calls)
	}

	sent := f.messenger.Sent()
	if len(f.messenger.deleted) != 1 {
		t.Error("Expected loading message to be deleted")
	}
	if !strings.Contains(sent[1].Text, "VERDICT") {
		t.Errorf("Expected analysis, got %q", sent[1].Text)
	}
	if last := f.messenger.Last(); !hasButton(last, ActionDeepResearch) || !strings.Contains(last.Keyboard[0][0].Label, "FREE") {
		t.Errorf("Expected free deep research button, got %+v", last)
	}

	sess := f.bot.sessions.Get("u1")
	if sess.LastTopic != "https://example.com/story" || sess.LastAnalysis == "" {
		t.Errorf("Expected deep research context, got %+v", sess)
	}
}

func TestBot_PlainTextShowsMenu(t *testing.T) {
	f := newFixture(t)

	_ = f.bot.HandleText(context.Background(), f.conv, "hello")

	if len(f.searcher.Calls()) != 0 {
		t.Error("Plain text without mode should not call the search API")
	}
	if !hasButton(f.messenger.Last(), ActionAnalyzeArticle) {
		t.Error("Expected main menu")
	}
}

func TestBot_FactCheckMode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.bot.HandleAction(ctx, f.press(), ActionCheckFact); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(f.messenger.LastEdit().Text, "Statement check") {
		t.Errorf("Expected the pressed message to be edited, got %q", f.messenger.LastEdit().Text)
	}

	_ = f.bot.HandleText(ctx, f.conv, "Water boils at 100C")

	if calls := f.searcher.Calls(); len(calls) != 1 || calls[0] != "fact:Water boils at 100C" {
		t.Errorf("Unexpected calls: %v", calls)
	}
	if got := f.bot.sessions.Get("u1"); got.Mode != ModeNone || !strings.HasPrefix(got.LastTopic, "Fact check of the statement:") {
		t.Errorf("Unexpected session: %+v", got)
	}
	if !hasButton(f.messenger.Last(), ActionCheckFact) {
		t.Error("Expected follow-up menu")
	}
}

func TestBot_ArticleModeText(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_ = f.bot.HandleAction(ctx, f.press(), ActionAnalyzeArticle)
	_ = f.bot.HandleText(ctx, f.conv, "Some pasted article text")

	if calls := f.searcher.Calls(); len(calls) != 1 || calls[0] != "text:Some pasted article text" {
		t.Errorf("Unexpected calls: %v", calls)
	}
}

func TestBot_DailyLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = f.bot.HandleText(ctx, f.conv, "https://example.com/"+fmt.Sprint(i))
	}
	_ = f.bot.HandleText(ctx, f.conv, "https://example.com/4")

	if len(f.searcher.Calls()) != 3 {
		t.Errorf("Expected 3 calls, got %d", len(f.searcher.Calls()))
	}
	last := f.messenger.Last()
	if !strings.Contains(last.Text, "Daily request limit reached") || !hasButton(last, ActionBuyRequests) {
		t.Errorf("Expected limit message, got %+v", last)
	}
}

func TestBot_UpstreamError(t *testing.T) {
	f := newFixture(t)
	f.searcher.err = errors.New("boom")

	_ = f.bot.HandleText(context.Background(), f.conv, "https://example.com")

	if last := f.messenger.Last(); !strings.Contains(last.Text, "Something went wrong") {
		t.Errorf("Expected error message, got %q", last.Text)
	}
	if f.ledger.Stats("u1").TotalRequests != 0 {
		t.Error("Failed request should not be charged")
	}
}

func TestBot_LongResultIsSplit(t *testing.T) {
	f := newFixture(t)
	f.searcher.answer = strings.Repeat("word ", 100)

	_ = f.bot.HandleText(context.Background(), f.conv, "https://example.com")

	// loading + chunks + menu
	sent := f.messenger.Sent()
	if len(sent) < 4 {
		t.Fatalf("Expected the answer to be split, got %d messages", len(sent))
	}
	for _, msg := range sent {
		if len([]rune(msg.Text)) > 100 && msg.Keyboard == nil {
			t.Errorf("Chunk exceeds limit: %d runes", len([]rune(msg.Text)))
		}
	}
}

func TestBot_Promo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_ = f.bot.HandleText(ctx, f.conv, "/promo")
	if !f.bot.sessions.Get("u1").WaitingPromo {
		t.Fatal("Expected to wait for a promo code")
	}

	_ = f.bot.HandleText(ctx, f.conv, "42")
	if last := f.messenger.Last(); !strings.Contains(last.Text, "Requests added: 5") {
		t.Errorf("Unexpected promo reply: %q", last.Text)
	}
	if f.ledger.Stats("u1").Balance != 5 {
		t.Error("Expected balance 5")
	}

	_ = f.bot.HandleAction(ctx, f.press(), ActionPromoCode)
	_ = f.bot.HandleText(ctx, f.conv, "bogus")
	if last := f.messenger.Last(); !strings.Contains(last.Text, "Promo code not found") {
		t.Errorf("Expected failure, got %q", last.Text)
	}
	if f.bot.sessions.Get("u1").WaitingPromo {
		t.Error("Expected waiting flag to be cleared")
	}
}

func TestBot_Stats(t *testing.T) {
	f := newFixture(t)
	f.ledger.Credit("u1", 7)

	_ = f.bot.HandleAction(context.Background(), f.press(), ActionUserStats)
	if msg := f.messenger.LastEdit(); !strings.Contains(msg.Text, "Balance: 7 requests") {
		t.Errorf("Unexpected stats: %q", msg.Text)
	}
}

func TestBot_BuyFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_ = f.bot.HandleAction(ctx, f.press(), ActionBuyRequests)
	menu := f.messenger.LastEdit()
	for _, id := range []string{"buy_10", "buy_50", "buy_100", "buy_500"} {
		if !hasButton(menu, id) {
			t.Errorf("Expected %s button", id)
		}
	}

	_ = f.bot.HandleAction(ctx, f.press(), "buy_50")
	msg := f.messenger.LastEdit()
	if !strings.Contains(msg.Text, "Amount: 400 RUB") || !strings.Contains(msg.Text, "https://example.com/pay/stub") {
		t.Errorf("Unexpected payment message: %q", msg.Text)
	}

	_ = f.bot.HandleAction(ctx, f.press(), "buy_7")
	if msg := f.messenger.LastEdit(); !strings.Contains(msg.Text, "Invalid request package") {
		t.Errorf("Expected invalid package, got %q", msg.Text)
	}
}

func TestBot_UnknownAction(t *testing.T) {
	f := newFixture(t)

	_ = f.bot.HandleAction(context.Background(), f.press(), "launch_rockets")
	if msg := f.messenger.LastEdit(); !strings.Contains(msg.Text, "Unknown command") {
		t.Errorf("Unexpected reply: %q", msg.Text)
	}
}

func TestBot_DeepResearchWithoutContext(t *testing.T) {
	f := newFixture(t)

	_ = f.bot.HandleAction(context.Background(), f.press(), ActionDeepResearch)
	if msg := f.messenger.LastEdit(); !strings.Contains(msg.Text, "No data for Deep Research") {
		t.Errorf("Unexpected reply: %q", msg.Text)
	}
}

func TestBot_DeepResearchFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_ = f.bot.HandleText(ctx, f.conv, "https://example.com/story")

	_ = f.bot.HandleAction(ctx, f.press(), ActionDeepResearch)
	confirm := f.messenger.LastEdit()
	if !strings.Contains(confirm.Text, "Cost: FREE") || !hasButton(confirm, ActionConfirmDeepResearch) {
		t.Fatalf("Unexpected confirmation: %+v", confirm)
	}

	f.searcher.answer = "**DETAILED ANALYSIS**\nbody"
	f.searcher.delay = 30 * time.Millisecond

	if err := f.bot.HandleAction(ctx, f.press(), ActionConfirmDeepResearch); err != nil {
		t.Fatal(err)
	}

	edits := f.messenger.Edits()
	var sawProgress bool
	for _, e := range edits {
		if strings.Contains(e.Text, "Deep Research in progress") {
			sawProgress = true
		}
	}
	if !sawProgress {
		t.Error("Expected at least one progress update")
	}

	final := f.messenger.LastEdit()
	if !strings.Contains(final.Text, "DEEP RESEARCH COMPLETE") {
		t.Errorf("Expected result in the progress message, got %q", final.Text)
	}
	if !hasButton(f.messenger.Last(), ActionAnalyzeArticle) {
		t.Error("Expected follow-up menu")
	}
	if f.ledger.CanUseFreeDeepResearch("u1") {
		t.Error("Expected free credit to be used")
	}

	// Second attempt without balance
	_ = f.bot.HandleAction(ctx, f.press(), ActionDeepResearch)
	if msg := f.messenger.LastEdit(); !strings.Contains(msg.Text, "Not enough requests") {
		t.Errorf("Expected insufficient balance, got %q", msg.Text)
	}
}

func TestBot_DeepResearchFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_ = f.bot.HandleText(ctx, f.conv, "https://example.com/story")
	f.searcher.err = errors.New("timeout")

	_ = f.bot.HandleAction(ctx, f.press(), ActionConfirmDeepResearch)

	if msg := f.messenger.LastEdit(); !strings.Contains(msg.Text, "Deep Research failed") {
		t.Errorf("Expected failure message, got %q", msg.Text)
	}
	if !f.ledger.CanUseFreeDeepResearch("u1") {
		t.Error("Expected free credit to be kept after failure")
	}
}

func TestBot_NotifyCredit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Unknown channel: nothing is sent
	f.bot.NotifyCredit(ctx, "u2", 10, model.Account{Balance: 10})
	if len(f.messenger.Sent()) != 0 {
		t.Error("Expected no message for unknown user")
	}

	_ = f.bot.HandleText(ctx, f.conv, "/start")
	f.bot.NotifyCredit(ctx, "u1", 10, model.Account{Balance: 10})
	if msg := f.messenger.Last(); !strings.Contains(msg.Text, "10 requests added") {
		t.Errorf("Unexpected notice: %q", msg.Text)
	}
}
