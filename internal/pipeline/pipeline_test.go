package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/factbot/internal/metrics"
	"github.com/ppiankov/factbot/internal/model"
	"github.com/ppiankov/factbot/internal/usage"
)

// MockSearcher implements llm.Searcher
type MockSearcher struct {
	Answer string
	Err    error
	Calls  []string
}

func (m *MockSearcher) respond(kind, input string) (string, error) {
	m.Calls = append(m.Calls, kind+":"+input)
	return m.Answer, m.Err
}

func (m *MockSearcher) AnalyzeArticle(ctx context.Context, url string) (string, error) {
	return m.respond("article", url)
}

func (m *MockSearcher) AnalyzeText(ctx context.Context, text string) (string, error) {
	return m.respond("text", text)
}

func (m *MockSearcher) CheckFact(ctx context.Context, statement string) (string, error) {
	return m.respond("fact", statement)
}

func (m *MockSearcher) DeepResearch(ctx context.Context, topic, initialAnalysis string) (string, error) {
	return m.respond("deep", topic)
}

const sampleAnswer = "**VERDICT**: confirmed\n[Reuters](https://www.reuters.com/world) [Blog](https://randomblog.example.com/post) [Reddit](https://reddit.com/r/x)"

func newTestService(searcher *MockSearcher) (*Service, *usage.Ledger) {
	cfg := model.DefaultConfig()
	ledger := usage.NewLedger(cfg.Usage)
	return NewService(cfg, searcher, ledger, metrics.New(), nil), ledger
}

func TestService_Analyze_Routing(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"https://example.com/news", "article:https://example.com/news"},
		{"  http://example.com", "article:http://example.com"},
		{"The moon is made of cheese", "text:The moon is made of cheese"},
	}

	for _, tt := range tests {
		searcher := &MockSearcher{Answer: "ok"}
		svc, _ := newTestService(searcher)

		res, err := svc.Analyze(context.Background(), "u1", tt.input)
		if err != nil {
			t.Fatalf("Analyze(%q) failed: %v", tt.input, err)
		}
		if len(searcher.Calls) != 1 || searcher.Calls[0] != tt.want {
			t.Errorf("Analyze(%q): expected call %q, got %v", tt.input, tt.want, searcher.Calls)
		}
		wantArticle := strings.HasPrefix(tt.want, "article")
		if (res.Kind == KindArticle) != wantArticle {
			t.Errorf("Analyze(%q): unexpected kind %s", tt.input, res.Kind)
		}
	}
}

func TestService_CheckFact_AppendsSourceReport(t *testing.T) {
	svc, ledger := newTestService(&MockSearcher{Answer: sampleAnswer})

	res, err := svc.CheckFact(context.Background(), "u1", "water is wet")
	if err != nil {
		t.Fatalf("CheckFact failed: %v", err)
	}

	if !strings.HasPrefix(res.Text, sampleAnswer) {
		t.Errorf("Expected answer to lead the text, got %q", res.Text)
	}
	if !strings.Contains(res.Text, "Source reliability") {
		t.Errorf("Expected source report in text, got %q", res.Text)
	}
	if res.Report.TotalFound != 3 || res.Report.Counts.High != 1 || res.Report.Counts.Biased != 1 || res.Report.Counts.Low != 1 {
		t.Errorf("Unexpected report: %+v", res.Report)
	}
	if got := ledger.Stats("u1").DailyRequests; got != 1 {
		t.Errorf("Expected one charged request, got %d", got)
	}
}

func TestService_NoSourcesNoReport(t *testing.T) {
	svc, _ := newTestService(&MockSearcher{Answer: "nothing cited"})

	res, err := svc.AnalyzeText(context.Background(), "u1", "text")
	if err != nil {
		t.Fatal(err)
	}
	if res.Text != "nothing cited" {
		t.Errorf("Expected bare answer, got %q", res.Text)
	}
	if !res.Report.Empty() {
		t.Errorf("Expected empty report, got %+v", res.Report)
	}
}

func TestService_EmptyInput(t *testing.T) {
	searcher := &MockSearcher{Answer: "ok"}
	svc, _ := newTestService(searcher)

	if _, err := svc.CheckFact(context.Background(), "u1", "   "); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("Expected ErrEmptyInput, got %v", err)
	}
	if len(searcher.Calls) != 0 {
		t.Errorf("Expected no upstream calls, got %v", searcher.Calls)
	}
}

func TestService_DailyLimit(t *testing.T) {
	searcher := &MockSearcher{Answer: "ok"}
	svc, _ := newTestService(searcher)

	for i := 0; i < 3; i++ {
		if _, err := svc.CheckFact(context.Background(), "u1", "x"); err != nil {
			t.Fatalf("Request %d failed: %v", i+1, err)
		}
	}

	if _, err := svc.CheckFact(context.Background(), "u1", "x"); !errors.Is(err, usage.ErrDailyLimit) {
		t.Errorf("Expected ErrDailyLimit, got %v", err)
	}
	if len(searcher.Calls) != 3 {
		t.Errorf("Expected 3 upstream calls, got %d", len(searcher.Calls))
	}
}

func TestService_UpstreamErrorNotCharged(t *testing.T) {
	upstream := errors.New("boom")
	svc, ledger := newTestService(&MockSearcher{Err: upstream})

	_, err := svc.AnalyzeArticle(context.Background(), "u1", "https://example.com")
	if !errors.Is(err, upstream) {
		t.Errorf("Expected wrapped upstream error, got %v", err)
	}
	if got := ledger.Stats("u1").TotalRequests; got != 0 {
		t.Errorf("Failed request should not be charged, got %d", got)
	}
}

// gatedSearcher blocks every call until gate is closed
type gatedSearcher struct {
	MockSearcher
	gate chan struct{}
}

func (g *gatedSearcher) CheckFact(ctx context.Context, statement string) (string, error) {
	<-g.gate
	return "ok", nil
}

func TestService_ParallelRequestsShareBalance(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Usage.DailyLimit = 0
	ledger := usage.NewLedger(cfg.Usage)
	ledger.Credit("u1", 1)

	searcher := &gatedSearcher{gate: make(chan struct{})}
	svc := NewService(cfg, searcher, ledger, metrics.New(), nil)

	const n = 10
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := svc.CheckFact(context.Background(), "u1", "x")
			errs <- err
		}()
	}

	// Only the request holding the balance reaches the searcher
	for i := 0; i < n-1; i++ {
		select {
		case err := <-errs:
			if !errors.Is(err, usage.ErrDailyLimit) {
				t.Errorf("Expected ErrDailyLimit, got %v", err)
			}
		case <-time.After(3 * time.Second):
			t.Fatal("more than one request passed the balance check")
		}
	}

	close(searcher.gate)
	if err := <-errs; err != nil {
		t.Errorf("Expected the reserved request to succeed, got %v", err)
	}

	acc := ledger.Stats("u1")
	if acc.Balance != 0 || acc.TotalRequests != 1 {
		t.Errorf("Unexpected account: %+v", acc)
	}
}

func TestService_DeepResearch(t *testing.T) {
	answer := "**DETAILED ANALYSIS**\nSee https://nature.com/x"
	svc, ledger := newTestService(&MockSearcher{Answer: answer})

	res, err := svc.DeepResearch(context.Background(), "u1", "inflation", "earlier")
	if err != nil {
		t.Fatalf("DeepResearch failed: %v", err)
	}

	if !res.Free {
		t.Error("Expected first deep research to be free")
	}
	for _, want := range []string{"DEEP RESEARCH COMPLETE", "sonar-deep-research", "📊 **DETAILED ANALYSIS**", "Source reliability"} {
		if !strings.Contains(res.Text, want) {
			t.Errorf("Expected %q in text, got %q", want, res.Text)
		}
	}
	if ledger.CanUseFreeDeepResearch("u1") {
		t.Error("Expected free credit to be used")
	}

	// Second one needs a balance
	if _, err := svc.DeepResearch(context.Background(), "u1", "inflation", ""); !errors.Is(err, usage.ErrInsufficientBalance) {
		t.Errorf("Expected ErrInsufficientBalance, got %v", err)
	}

	ledger.Credit("u1", 449)
	res, err = svc.DeepResearch(context.Background(), "u1", "inflation", "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Free || res.Account.Balance != 0 {
		t.Errorf("Expected paid research leaving balance 0, got free=%v balance=%d", res.Free, res.Account.Balance)
	}
}

func TestService_DeepResearchRefund(t *testing.T) {
	svc, ledger := newTestService(&MockSearcher{Err: errors.New("timeout")})

	if _, err := svc.DeepResearch(context.Background(), "u1", "topic", ""); err == nil {
		t.Fatal("Expected error")
	}
	if !ledger.CanUseFreeDeepResearch("u1") {
		t.Error("Expected free credit to be restored after failure")
	}

	// Paid path
	ledger.Credit("u1", 500)
	if _, err := ledger.ChargeDeepResearch("u1"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.DeepResearch(context.Background(), "u1", "topic", ""); err == nil {
		t.Fatal("Expected error")
	}
	if got := ledger.Stats("u1").Balance; got != 500 {
		t.Errorf("Expected balance restored to 500, got %d", got)
	}
}

func TestService_SourceReport(t *testing.T) {
	svc, _ := newTestService(&MockSearcher{})

	report := svc.SourceReport(sampleAnswer)
	if report.TotalFound != 3 || report.RankedSources[0].Domain != "reuters.com" {
		t.Errorf("Unexpected report: %+v", report)
	}
}

func TestService_CustomSources(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Sources.Low = []string{"randomblog.example.com"}
	svc := NewService(cfg, &MockSearcher{}, usage.NewLedger(cfg.Usage), nil, nil)

	report := svc.SourceReport("https://randomblog.example.com/post")
	if report.RankedSources[0].Tier != model.TierLow {
		t.Errorf("Expected configured low tier, got %v", report.RankedSources[0].Tier)
	}
}
