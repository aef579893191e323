package bot

import (
	"fmt"

	"github.com/ppiankov/factbot/internal/model"
)

// Button actions
const (
	ActionAnalyzeArticle      = "analyze_article"
	ActionCheckFact           = "check_fact"
	ActionUserStats           = "user_stats"
	ActionBuyRequests         = "buy_requests"
	ActionPromoCode           = "promo_code"
	ActionHelp                = "help"
	ActionMainMenu            = "main_menu"
	ActionDeepResearch        = "deep_research"
	ActionConfirmDeepResearch = "confirm_deep_research"
	ActionBuyPrefix           = "buy_"
)

var (
	mainMenuButton = Button{Label: "🔙 Main menu", Action: ActionMainMenu}
	backButton     = Button{Label: "🔙 Back", Action: ActionMainMenu}
	buyButton      = Button{Label: "💳 Buy requests", Action: ActionBuyRequests}
)

const helpText = `🔍 **How to use the bot**

📰 **Article analysis**
• Send a link to an article or paste its text
• Get a detailed reliability analysis
• Learn which claims are sound and which are disputed

🔍 **Statement check**
• Write a statement to verify
• Get a reliability assessment and sources

🔬 **Deep Research**
• In-depth research with additional sources after any analysis
• One free attempt, then %d requests each

💳 **Buying requests**
• Packages of 10, 50, 100 and 500 requests

🎁 **Promo codes**
• Redeem a promo code for bonus requests

**Commands:**
/start - main menu
/help - this help
/promo - enter a promo code

**Limits:**
• Free: %d requests per day
• Purchased requests are spent after the daily quota`

func mainMenuKeyboard() [][]Button {
	return [][]Button{
		{{Label: "📰 Analyze article", Action: ActionAnalyzeArticle}, {Label: "🔍 Check statement", Action: ActionCheckFact}},
		{{Label: "📊 My requests", Action: ActionUserStats}, buyButton},
		{{Label: "🎁 Promo code", Action: ActionPromoCode}, {Label: "❓ Help", Action: ActionHelp}},
	}
}

func welcomeMessage(name string, acc model.Account) Message {
	return Message{
		Text: fmt.Sprintf(`🔍 **Welcome!**

%s, I can help you fact-check statements and analyze articles.

**Your usage:**
📊 Today: %d/%d
💳 Total: %d
💰 Balance: %d requests

**Choose an action:**`, displayName(name), acc.DailyRequests, acc.DailyLimit, acc.TotalRequests, acc.Balance),
		Keyboard: mainMenuKeyboard(),
	}
}

func statsMessage(acc model.Account) Message {
	return Message{
		Text: fmt.Sprintf(`📊 **Your usage**

**Requests today:**
%d/%d

**Overall:**
💳 Total requests: %d
💰 Balance: %d requests

**Limits:**
📅 Daily limit: %d requests
🔄 Limit resets: tomorrow at 00:00`, acc.DailyRequests, acc.DailyLimit, acc.TotalRequests, acc.Balance, acc.DailyLimit),
		Keyboard: [][]Button{{mainMenuButton}},
	}
}

func articlePrompt() Message {
	return Message{
		Text: `📰 **Article analysis**

Send a link to an article or paste its text.

I will check:
• Reliability of the information
• Sound and disputed claims
• Quality of the sources
• Objectivity of the presentation`,
		Keyboard: [][]Button{{backButton}},
	}
}

func factPrompt() Message {
	return Message{
		Text: `🔍 **Statement check**

Write the statement you want to verify.

I will check:
• Whether the statement is true
• The level of scientific consensus
• Reliability of the sources
• Context and caveats`,
		Keyboard: [][]Button{{backButton}},
	}
}

func promoPrompt() Message {
	return Message{
		Text:     "🎁 **Enter a promo code**\n\nWrite a promo code to receive bonus requests.",
		Keyboard: [][]Button{{backButton}},
	}
}

func limitReached() Message {
	return Message{
		Text:     "❌ **Daily request limit reached**\n\nBuy more requests or try again tomorrow.",
		Keyboard: [][]Button{{buyButton, mainMenuButton}},
	}
}

func errorMessage(text string) Message {
	return Message{Text: "❌ " + text, Keyboard: [][]Button{{mainMenuButton}}}
}

func deepResearchButton(free bool, cost int) Button {
	if free {
		return Button{Label: "🔬 Deep Research (FREE!)", Action: ActionDeepResearch}
	}
	return Button{Label: fmt.Sprintf("🔬 Deep Research (%d requests)", cost), Action: ActionDeepResearch}
}

func afterAnalysisMenu(free bool, cost int) Message {
	text := "**What next?**\n\n🔬 Deep Research - in-depth analysis with additional sources\n"
	if free {
		text += fmt.Sprintf("✅ One free attempt, then %d requests per research", cost)
	} else {
		text += fmt.Sprintf("💰 Cost: %d requests per research", cost)
	}

	return Message{
		Text: text,
		Keyboard: [][]Button{
			{deepResearchButton(free, cost)},
			{{Label: "📰 Analyze another article", Action: ActionAnalyzeArticle}},
			{mainMenuButton},
		},
	}
}

func afterFactMenu(free bool, cost int) Message {
	return Message{
		Text: "**What next?**",
		Keyboard: [][]Button{
			{{Label: "🔍 Check another statement", Action: ActionCheckFact}},
			{deepResearchButton(free, cost)},
			{mainMenuButton},
		},
	}
}

func afterDeepResearchMenu() Message {
	return Message{
		Text: "**What next?**",
		Keyboard: [][]Button{
			{{Label: "📰 Analyze another article", Action: ActionAnalyzeArticle}},
			{mainMenuButton},
		},
	}
}

func deepResearchConfirm(free bool, cost int) Message {
	costText := fmt.Sprintf("%d requests", cost)
	confirm := fmt.Sprintf("✅ Confirm (%d requests)", cost)
	if free {
		costText = "FREE"
		confirm = "✅ Confirm (FREE)"
	}

	return Message{
		Text: fmt.Sprintf(`🔬 **Deep Research**

In-depth research of the topic with extended analysis:

• Detailed analysis of every aspect
• Multiple sources
• Expert assessment
• Detailed conclusions

**Cost: %s**

Continue?`, costText),
		Keyboard: [][]Button{
			{{Label: confirm, Action: ActionConfirmDeepResearch}},
			{{Label: "❌ Cancel", Action: ActionMainMenu}},
		},
	}
}

func insufficientBalance(cost, balance int) Message {
	return Message{
		Text: fmt.Sprintf(`❌ **Not enough requests for Deep Research**

Required: %d requests
You have: %d requests

Buy more requests or use the regular analysis.`, cost, balance),
		Keyboard: [][]Button{{buyButton, mainMenuButton}},
	}
}

func packagesMenu(packages []model.Package, currency string) Message {
	keyboard := make([][]Button, 0, len(packages)+1)
	for _, p := range packages {
		keyboard = append(keyboard, []Button{{
			Label:  fmt.Sprintf("💳 %d requests - %d %s", p.Requests, p.Price, currency),
			Action: p.ID,
		}})
	}
	keyboard = append(keyboard, []Button{mainMenuButton})

	return Message{
		Text:     "💳 **Buy requests**\n\nChoose a request package:",
		Keyboard: keyboard,
	}
}

func displayName(name string) string {
	if name == "" {
		return "User"
	}
	return name
}
