// Package reader orchestrates the comment-to-speech flow.
//
// Each inbound feed event is parsed, branched into a system command or a
// normal comment, run through the transform pipeline and settings
// resolution, and finally handed to the synthesis pipeline. Skip rules
// silence comments the commenter marked as quiet and texts too short to
// be worth speaking.
package reader

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/hikaline/kanade/internal/command"
	"github.com/hikaline/kanade/internal/comment"
	"github.com/hikaline/kanade/internal/observe"
	"github.com/hikaline/kanade/internal/settings"
	"github.com/hikaline/kanade/internal/sound"
	"github.com/hikaline/kanade/internal/transform"
	"github.com/hikaline/kanade/internal/transport"
	"github.com/hikaline/kanade/internal/userinfo"
)

// DefaultSkipWords are the mail-field flags that silence a comment.
func DefaultSkipWords() []string {
	return []string{"184", "sage", "ngs"}
}

// DefaultOperatorVoice is the speaker used for operator announcements when
// none is configured.
const DefaultOperatorVoice = 2

// Pipeline is the subset of the synthesis pipeline the reader drives.
type Pipeline interface {
	Enqueue(text string, voiceID int)
	EnqueueAudio(label string, audio []byte)
	PlayAside(ctx context.Context, label string, audio []byte)
}

// Config wires the reader's collaborators and tuning knobs.
type Config struct {
	Pipeline  Pipeline
	Resolver  *settings.Resolver
	Store     settings.Store
	Transform *transform.Transformer
	Formatter *command.Formatter
	Sounds    *sound.Bank

	// Fetcher resolves nicknames for raw numeric IDs. Nil disables the
	// auto-save of fetched names.
	Fetcher *userinfo.Fetcher

	// Metrics defaults to the process-wide instruments.
	Metrics *observe.Metrics

	// OperatorVoice is the speaker for operator announcements.
	// Zero or negative selects [DefaultOperatorVoice].
	OperatorVoice int

	// SkipWords overrides [DefaultSkipWords]. Empty keeps the default.
	SkipWords []string

	// SoundEnabled toggles notification clips for system commands.
	SoundEnabled bool
}

// Reader consumes feed events and drives the synthesis pipeline.
type Reader struct {
	pipe      Pipeline
	resolver  *settings.Resolver
	store     settings.Store
	transform *transform.Transformer
	formatter *command.Formatter
	sounds    *sound.Bank
	fetcher   *userinfo.Fetcher
	metrics   *observe.Metrics

	operatorVoice int
	skipWords     []string
	soundOn       bool
}

// New creates a Reader from cfg.
func New(cfg Config) *Reader {
	r := &Reader{
		pipe:          cfg.Pipeline,
		resolver:      cfg.Resolver,
		store:         cfg.Store,
		transform:     cfg.Transform,
		formatter:     cfg.Formatter,
		sounds:        cfg.Sounds,
		fetcher:       cfg.Fetcher,
		metrics:       cfg.Metrics,
		operatorVoice: cfg.OperatorVoice,
		skipWords:     cfg.SkipWords,
		soundOn:       cfg.SoundEnabled,
	}
	if r.metrics == nil {
		r.metrics = observe.DefaultMetrics()
	}
	if r.operatorVoice <= 0 {
		r.operatorVoice = DefaultOperatorVoice
	}
	if len(r.skipWords) == 0 {
		r.skipWords = DefaultSkipWords()
	}
	return r
}

// Run consumes events until ctx is cancelled or the channel closes.
func (r *Reader) Run(ctx context.Context, events <-chan transport.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			r.Handle(ctx, ev)
		}
	}
}

// Handle processes one feed event. It reports whether anything was queued
// for playback.
func (r *Reader) Handle(ctx context.Context, ev transport.Event) bool {
	if strings.TrimSpace(ev.Comment) == "" {
		return false
	}

	pc := comment.Parse(ev.Comment)
	if pc.IsSystemCommand {
		return r.handleCommand(ctx, pc, ev.UserID)
	}
	return r.handleNormal(ctx, pc, ev)
}

// handleCommand announces a platform system command: formatted speech when
// there is anything to say, plus the command's notification clip.
func (r *Reader) handleCommand(ctx context.Context, pc comment.ParsedComment, userID string) bool {
	cleaned := command.StripCommand(pc.CommandType, pc.Text)
	text := r.formatter.Format(pc.CommandType, cleaned)
	speak := utf8.RuneCountInString(strings.TrimSpace(text)) > 1

	slog.Info("reader: system command",
		"command", pc.CommandType, "user", userID, "text", text)
	r.metrics.RecordComment(ctx, "command")

	if !r.soundOn {
		if !speak {
			return false
		}
		r.pipe.Enqueue(text, r.commandVoice(ctx, userID))
		return true
	}

	if speak {
		// Speech goes through the ordered queue while the clip plays
		// immediately on the side channel.
		r.pipe.Enqueue(text, r.commandVoice(ctx, userID))
		r.pipe.PlayAside(ctx, "sound:"+pc.CommandType, r.sounds.Clip(pc.CommandType))
		return true
	}
	r.pipe.EnqueueAudio("sound:"+pc.CommandType, r.sounds.Clip(pc.CommandType))
	return true
}

// handleNormal transforms, resolves settings for, and queues a viewer
// comment. Settings persistence happens even for comments that end up
// skipped, so inline settings always stick.
func (r *Reader) handleNormal(ctx context.Context, pc comment.ParsedComment, ev transport.Event) bool {
	text := r.transform.Transform(pc.Text)

	if r.fetcher != nil && userinfo.Classify(ev.UserID) == userinfo.TypeRawID {
		go r.autoSaveName(ctx, ev.UserID)
	}

	resolved, _ := r.resolver.Resolve(ctx, ev.UserID, pc)

	if r.skipByMail(ev.Mail) {
		slog.Debug("reader: skipped by mail flags", "mail", ev.Mail)
		r.metrics.RecordSkip(ctx, "mail")
		return false
	}
	if !transform.Speakable(text) {
		slog.Debug("reader: skipped short text", "text", text)
		r.metrics.RecordSkip(ctx, "short")
		return false
	}

	r.metrics.RecordComment(ctx, "normal")
	r.pipe.Enqueue(text, resolved.Voice)
	return true
}

// commandVoice picks the speaker for a system command announcement:
// operators get the configured operator voice, everyone else their
// resolved profile voice.
func (r *Reader) commandVoice(ctx context.Context, userID string) int {
	if userinfo.Classify(userID) == userinfo.TypeOperator {
		return r.operatorVoice
	}
	resolved, _ := r.resolver.Resolve(ctx, userID, comment.ParsedComment{})
	return resolved.Voice
}

// skipByMail reports whether the mail field carries any quiet flag.
func (r *Reader) skipByMail(mail string) bool {
	if mail == "" {
		return false
	}
	lower := strings.ToLower(mail)
	for _, w := range r.skipWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// autoSaveName stores a fetched nickname for a raw ID that has no saved
// name yet. Best-effort: every failure just logs.
func (r *Reader) autoSaveName(ctx context.Context, userID string) {
	current, err := r.store.Get(ctx, userID)
	if err != nil {
		slog.Warn("reader: profile lookup failed", "user", userID, "err", err)
		return
	}
	if current != nil && current.Name != "" {
		return
	}

	nick, err := r.fetcher.Nickname(ctx, userID)
	if err != nil {
		slog.Debug("reader: nickname lookup failed", "user", userID, "err", err)
		return
	}

	profile := settings.Profile{Name: nick}
	if current != nil {
		profile = *current
		profile.Name = nick
	}
	if err := r.store.Put(ctx, userID, profile); err != nil {
		slog.Warn("reader: saving fetched nickname failed", "user", userID, "err", err)
		return
	}
	slog.Info("reader: nickname auto-saved", "user", userID, "name", nick)
}
