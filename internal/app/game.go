package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/shiritori/internal/adapter/metrics"
	"github.com/pscheid92/shiritori/internal/domain"
	apperrors "github.com/pscheid92/shiritori/internal/platform/errors"
	"github.com/pscheid92/shiritori/internal/word"
)

// ChannelRegistry is the slice of the channel store the game needs.
type ChannelRegistry interface {
	Register(ctx context.Context, channelID string) error
	Exists(channelID string) bool
	AdmitWord(ctx context.Context, channelID, word string) error
	Words(channelID string) ([]string, error)
	Count() int
}

// VoteBook tracks the votes that are still open.
type VoteBook interface {
	Open(vote domain.PendingVote)
	IsActive(messageID string) bool
	ResolveIfReached(messageID string, count, threshold int) (domain.PendingVote, bool)
	Len() int
}

type GameConfig struct {
	BotUsername         string
	VoteThreshold       int
	SimilarityThreshold float64
}

// Game turns inbound chat events into word checks, votes and admissions.
type Game struct {
	cfg        GameConfig
	channels   ChannelRegistry
	votes      VoteBook
	messenger  domain.Messenger
	dictionary domain.Dictionary
	clock      clockwork.Clock
	metrics    *metrics.GameMetrics
	tasks      sync.WaitGroup
}

// NewGame wires the game. m may be nil.
func NewGame(cfg GameConfig, channels ChannelRegistry, votes VoteBook, messenger domain.Messenger, dictionary domain.Dictionary, clock clockwork.Clock, m *metrics.GameMetrics) *Game {
	if cfg.VoteThreshold < 1 {
		cfg.VoteThreshold = 1
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = word.DefaultDistanceThreshold
	}
	g := &Game{
		cfg:        cfg,
		channels:   channels,
		votes:      votes,
		messenger:  messenger,
		dictionary: dictionary,
		clock:      clock,
		metrics:    m,
	}
	g.updateGauges()
	return g
}

// Wait blocks until every check spawned so far has finished.
func (g *Game) Wait() {
	g.tasks.Wait()
}

func (g *Game) HandleMessage(ctx context.Context, msg domain.Message) {
	if msg.Author.Bot {
		return
	}

	if g.mentionsBot(msg) {
		g.handleMention(ctx, msg.ChannelID)
		return
	}

	if !g.channels.Exists(msg.ChannelID) {
		return
	}

	candidate, ok := word.Normalize(strings.TrimSpace(msg.Content))
	if !ok {
		return
	}

	slog.DebugContext(ctx, "Checking candidate word", "channel_id", msg.ChannelID, "word", candidate)
	g.spawn(ctx, "duplicate", func(ctx context.Context) { g.checkDuplicate(ctx, msg.ChannelID, candidate) })
	g.spawn(ctx, "dictionary", func(ctx context.Context) { g.checkDictionary(ctx, msg.ChannelID, candidate) })
	g.spawn(ctx, "similar", func(ctx context.Context) { g.checkSimilar(ctx, msg.ChannelID, candidate) })
	g.spawn(ctx, "vote", func(ctx context.Context) { g.startVote(ctx, msg.ChannelID, candidate) })
}

func (g *Game) mentionsBot(msg domain.Message) bool {
	for _, u := range msg.Mentions {
		if u.Username == g.cfg.BotUsername {
			return true
		}
	}
	return false
}

func (g *Game) handleMention(ctx context.Context, channelID string) {
	reply := replyRegistered

	switch err := g.channels.Register(ctx, channelID); {
	case errors.Is(err, domain.ErrChannelAlreadyRegistered):
		reply = replyAlreadyRegistered
	case err != nil:
		slog.ErrorContext(ctx, "Failed to register channel", "channel_id", channelID, "error", err, "error_type", apperrors.TypeOf(err))
		reply = replyRegisterFailed
	default:
		slog.InfoContext(ctx, "Channel registered", "channel_id", channelID)
		g.updateGauges()
	}

	if _, err := g.messenger.CreateMessage(ctx, channelID, reply); err != nil {
		slog.WarnContext(ctx, "Failed to send registration reply", "channel_id", channelID, "error", err)
	}
}

// spawn runs fn on its own goroutine with its own failure boundary.
func (g *Game) spawn(ctx context.Context, check string, fn func(ctx context.Context)) {
	g.tasks.Go(func() {
		defer func() {
			if r := recover(); r != nil {
				slog.ErrorContext(ctx, "Check panicked", "check", check, "panic", r)
				g.checkFailed(check)
			}
		}()
		fn(ctx)
	})
}

// runCheck posts status, computes the result and edits the status message
// in place. A failed computation is reported with a fixed text.
func (g *Game) runCheck(ctx context.Context, check, channelID, status string, compute func() (string, error)) {
	posted, err := g.messenger.CreateMessage(ctx, channelID, status)
	if err != nil {
		slog.WarnContext(ctx, "Failed to post check status", "check", check, "channel_id", channelID, "error", err, "error_type", apperrors.TypeOf(err))
		g.checkFailed(check)
		return
	}

	result, err := compute()
	if err != nil {
		slog.WarnContext(ctx, "Check failed", "check", check, "channel_id", channelID, "error", err, "error_type", apperrors.TypeOf(err))
		g.checkFailed(check)
		result = replyCheckFailed
	}

	if err := g.messenger.EditMessage(ctx, channelID, posted.ID, result); err != nil {
		slog.WarnContext(ctx, "Failed to edit check status", "check", check, "channel_id", channelID, "error", err, "error_type", apperrors.TypeOf(err))
		g.checkFailed(check)
	}
}

func (g *Game) checkDuplicate(ctx context.Context, channelID, candidate string) {
	g.runCheck(ctx, "duplicate", channelID, duplicateStatus(candidate), func() (string, error) {
		words, err := g.channels.Words(channelID)
		if err != nil {
			return "", err
		}
		played := word.Exists(words, candidate)
		if played {
			g.wordChecked("duplicate")
		} else {
			g.wordChecked("new")
		}
		return duplicateResult(candidate, played), nil
	})
}

func (g *Game) checkDictionary(ctx context.Context, channelID, candidate string) {
	g.runCheck(ctx, "dictionary", channelID, dictionaryStatus(candidate), func() (string, error) {
		recognized := g.dictionary.IsWord(ctx, candidate)
		if recognized {
			g.wordChecked("recognized")
		} else {
			g.wordChecked("unrecognized")
		}
		return dictionaryResult(candidate, recognized), nil
	})
}

func (g *Game) checkSimilar(ctx context.Context, channelID, candidate string) {
	g.runCheck(ctx, "similar", channelID, similarStatus(candidate), func() (string, error) {
		words, err := g.channels.Words(channelID)
		if err != nil {
			return "", err
		}
		matches := append(word.NearPieces(words, candidate), word.NearByDistance(words, candidate, g.cfg.SimilarityThreshold)...)
		return similarResult(matches), nil
	})
}

// startVote opens an admission vote for a word that is new to the channel
// and known to the dictionary. Anything else posts nothing.
func (g *Game) startVote(ctx context.Context, channelID, candidate string) {
	words, err := g.channels.Words(channelID)
	if err != nil {
		slog.WarnContext(ctx, "Failed to read channel words", "channel_id", channelID, "error", err)
		g.checkFailed("vote")
		return
	}
	if word.Exists(words, candidate) || !g.dictionary.IsWord(ctx, candidate) {
		return
	}

	posted, err := g.messenger.CreateMessage(ctx, channelID, voteMessage(candidate))
	if err != nil {
		slog.WarnContext(ctx, "Failed to post vote", "channel_id", channelID, "word", candidate, "error", err, "error_type", apperrors.TypeOf(err))
		g.checkFailed("vote")
		return
	}

	g.votes.Open(domain.PendingVote{
		MessageID:     posted.ID,
		ChannelID:     channelID,
		CandidateWord: candidate,
		OpenedAt:      g.clock.Now(),
	})
	if g.metrics != nil {
		g.metrics.VotesOpened.Inc()
	}
	g.updateGauges()
	slog.InfoContext(ctx, "Vote opened", "channel_id", channelID, "message_id", posted.ID, "word", candidate)

	for _, emoji := range []string{emojiApprove, emojiReject} {
		if err := g.messenger.AddReaction(ctx, channelID, posted.ID, emoji); err != nil {
			slog.WarnContext(ctx, "Failed to seed vote reaction", "message_id", posted.ID, "emoji", emoji, "error", err)
			g.checkFailed("vote")
			return
		}
	}
}

func (g *Game) HandleReactionAdd(ctx context.Context, ev domain.ReactionEvent) {
	var approved bool
	switch ev.Emoji.Name {
	case emojiApprove:
		approved = true
	case emojiReject:
		approved = false
	default:
		return
	}

	if !g.votes.IsActive(ev.MessageID) {
		return
	}

	// The event payload carries no count; the message is the source of truth.
	msg, err := g.messenger.GetMessage(ctx, ev.ChannelID, ev.MessageID)
	if err != nil {
		slog.WarnContext(ctx, "Failed to fetch vote message", "message_id", ev.MessageID, "error", err, "error_type", apperrors.TypeOf(err))
		return
	}

	count := msg.ReactionCount(ev.Emoji.Name)
	vote, resolved := g.votes.ResolveIfReached(ev.MessageID, count, g.cfg.VoteThreshold)
	if !resolved {
		slog.DebugContext(ctx, "Vote below threshold", "message_id", ev.MessageID, "emoji", ev.Emoji.Name, "count", count)
		return
	}
	g.updateGauges()

	candidate, ok := extractVoteWord(msg.Content)
	if !ok {
		slog.WarnContext(ctx, "Vote message carries no word, using tracked candidate", "message_id", ev.MessageID)
		candidate = vote.CandidateWord
	}

	outcome := domain.VoteRejected
	if approved {
		outcome = domain.VoteApproved
	}
	slog.InfoContext(ctx, "Vote resolved", "channel_id", ev.ChannelID, "message_id", ev.MessageID, "word", candidate, "outcome", outcome)
	if g.metrics != nil {
		g.metrics.VotesResolved.WithLabelValues(string(outcome)).Inc()
		g.metrics.VoteDuration.Observe(g.clock.Since(vote.OpenedAt).Seconds())
	}

	if err := g.messenger.DeleteAllReactions(ctx, ev.ChannelID, ev.MessageID); err != nil {
		slog.WarnContext(ctx, "Failed to clear vote reactions", "message_id", ev.MessageID, "error", err)
	}
	if err := g.messenger.EditMessage(ctx, ev.ChannelID, ev.MessageID, voteClosedMessage(candidate, approved)); err != nil {
		slog.WarnContext(ctx, "Failed to announce vote outcome", "message_id", ev.MessageID, "error", err)
	}

	if !approved {
		return
	}
	if err := g.channels.AdmitWord(ctx, ev.ChannelID, candidate); err != nil {
		slog.ErrorContext(ctx, "Failed to admit word", "channel_id", ev.ChannelID, "word", candidate, "error", err, "error_type", apperrors.TypeOf(err))
		return
	}
	if g.metrics != nil {
		g.metrics.WordsAdmitted.Inc()
	}
	slog.InfoContext(ctx, "Word admitted", "channel_id", ev.ChannelID, "word", candidate)
}

func (g *Game) wordChecked(result string) {
	if g.metrics != nil {
		g.metrics.WordsChecked.WithLabelValues(result).Inc()
	}
}

func (g *Game) checkFailed(check string) {
	if g.metrics != nil {
		g.metrics.CheckFailures.WithLabelValues(check).Inc()
	}
}

func (g *Game) updateGauges() {
	if g.metrics == nil {
		return
	}
	g.metrics.ActiveVotes.Set(float64(g.votes.Len()))
	g.metrics.RegisteredChannels.Set(float64(g.channels.Count()))
}
