package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ppiankov/factbot/internal/render"
	"github.com/ppiankov/factbot/internal/usage"
)

var progressStatuses = []string{
	"🔍 Searching for independent sources...",
	"📊 Analyzing expert opinions...",
	"📈 Collecting statistics...",
	"🌍 Checking international sources...",
	"⚖️ Looking for alternative viewpoints...",
	"🎯 Drafting conclusions...",
}

const deepResearchStarting = `🔬 Starting Deep Research...

⏱️ Expected time: 3-4 minutes
🔍 Analyzing hundreds of sources...

⏳ Please wait...`

func progressMessage(elapsed time.Duration, step int) Message {
	return Message{Text: fmt.Sprintf("🔬 Deep Research in progress...\n\n⏱️ Elapsed: %d seconds\n%s\n\n⏳ Please wait...",
		int(elapsed.Seconds()), progressStatuses[step%len(progressStatuses)])}
}

// offerDeepResearch asks the user to confirm a deep research on the last topic
func (b *Bot) offerDeepResearch(ctx context.Context, conv Conversation) error {
	sess := b.sessions.Get(conv.User.ID)

	if sess.LastAnalysis == "" {
		if sess.LastTopic == "" {
			return b.reply(ctx, conv, errorMessage("No data for Deep Research. Run an article analysis or a statement check first."))
		}
		b.sessions.Update(conv.User.ID, func(s *Session) {
			s.LastAnalysis = fmt.Sprintf("The input comes from the user's last action.\nTopic: %s. Research this topic in depth and find additional independent sources, statistics and expert opinions.", s.LastTopic)
		})
	}

	cost := b.ledger.DeepResearchCost()
	free := b.ledger.CanUseFreeDeepResearch(conv.User.ID)
	if !free {
		if acc := b.ledger.Stats(conv.User.ID); acc.Balance < cost {
			return b.reply(ctx, conv, insufficientBalance(cost, acc.Balance))
		}
	}

	return b.reply(ctx, conv, deepResearchConfirm(free, cost))
}

// runDeepResearch runs the confirmed deep research while a progress message
// is edited every ProgressInterval
func (b *Bot) runDeepResearch(ctx context.Context, conv Conversation) error {
	sess := b.sessions.Get(conv.User.ID)
	if sess.LastTopic == "" {
		return b.reply(ctx, conv, errorMessage("No data for Deep Research. Run an article analysis or a statement check first."))
	}

	progress, err := b.progressRef(ctx, conv)
	if err != nil {
		return err
	}

	b.logger.Info().Str("user_id", conv.User.ID).Str("topic", truncate(sess.LastTopic, 100)).Msg("deep research started")

	stop := b.startProgress(ctx, progress)
	result, err := b.service.DeepResearch(ctx, conv.User.ID, sess.LastTopic, sess.LastAnalysis)
	stop()

	if err != nil {
		if errors.Is(err, usage.ErrInsufficientBalance) {
			return b.messenger.Edit(ctx, progress, errorMessage("Not enough requests for Deep Research"))
		}
		b.logger.Error().Err(err).Str("user_id", conv.User.ID).Msg("deep research failed")
		return b.messenger.Edit(ctx, progress, errorMessage("**Deep Research failed**\n\nPlease try again later. Your request was not charged."))
	}

	parts := render.SplitMessage(result.Text, b.config.MessageLimit)
	for i, part := range parts {
		if i == 0 {
			err = b.messenger.Edit(ctx, progress, Message{Text: part})
		} else {
			_, err = b.messenger.Send(ctx, conv.ChannelID, Message{Text: part})
		}
		if err != nil {
			return fmt.Errorf("send deep research: %w", err)
		}
	}

	_, err = b.messenger.Send(ctx, conv.ChannelID, afterDeepResearchMenu())
	return err
}

// progressRef turns the pressed message into the progress message, or sends a new one
func (b *Bot) progressRef(ctx context.Context, conv Conversation) (MessageRef, error) {
	start := Message{Text: deepResearchStarting}
	if conv.Origin != nil {
		return *conv.Origin, b.messenger.Edit(ctx, *conv.Origin, start)
	}
	return b.messenger.Send(ctx, conv.ChannelID, start)
}

// startProgress edits ref with a rotating status line until the returned
// stop function is called. stop waits for the last edit to finish.
func (b *Bot) startProgress(ctx context.Context, ref MessageRef) func() {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()

		ticker := time.NewTicker(b.config.ProgressInterval)
		defer ticker.Stop()

		start := time.Now()
		step := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := b.messenger.Edit(ctx, ref, progressMessage(time.Since(start), step)); err != nil {
					b.logger.Debug().Err(err).Msg("failed to update progress message")
				}
				step++
			}
		}
	}()

	return func() {
		cancel()
		wg.Wait()
	}
}
