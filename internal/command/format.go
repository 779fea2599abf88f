// Package command turns platform system commands ("/gift …", "/nicoad …")
// into speakable announcement text.
//
// Formatting is dispatched through a fixed strategy table keyed by command
// type. Command types without a registered strategy use the pass-through
// strategy, so new platform events are announced verbatim without code
// changes. A strategy must never lose a command: any internal failure is
// logged and the cleaned text is returned unmodified.
package command

import (
	"log/slog"
	"regexp"
	"strings"
)

// Default announcement templates per command type. The configuration may
// override any entry; placeholders use {name}-style keys.
const (
	DefaultGiftTemplate   = "{name}さんが{point}ポイント{gift}をギフトしました"
	DefaultNicoadTemplate = "合計{total}ポイント　{name}さんが{point}ポイント広告しました"
)

// guestName is spoken when a display name cannot be extracted.
const guestName = "ゲスト"

// leftoverPlaceholder detects template keys that survived substitution,
// which means the configured template names a key the strategy does not
// produce.
var leftoverPlaceholder = regexp.MustCompile(`\{[a-z]+\}`)

// strategy produces announcement text from the cleaned command payload.
// Returning an error makes Format fall back to the payload verbatim.
type strategy func(f *Formatter, cleaned string) (string, error)

// Formatter formats system-command payloads using per-command templates.
// Safe for concurrent use; the strategy and template tables are fixed at
// construction time.
type Formatter struct {
	templates  map[string]string
	strategies map[string]strategy
}

// New creates a Formatter. templates maps command type to an announcement
// template and may be nil; built-in defaults cover the known commands.
func New(templates map[string]string) *Formatter {
	t := make(map[string]string, len(templates))
	for k, v := range templates {
		t[k] = v
	}
	return &Formatter{
		templates: t,
		strategies: map[string]strategy{
			"gift":   (*Formatter).formatGift,
			"nicoad": (*Formatter).formatNicoad,
		},
	}
}

// Format renders the announcement for a command. cleaned is the command
// payload with the leading "/type" already stripped. Format never fails;
// on any strategy error the cleaned text is returned as-is so the command
// is still announced.
func (f *Formatter) Format(commandType, cleaned string) string {
	strat, ok := f.strategies[commandType]
	if !ok {
		// Pass-through: unknown commands are spoken verbatim.
		return cleaned
	}

	out, err := strat(f, cleaned)
	if err != nil {
		slog.Warn("command: format failed, announcing verbatim",
			"command", commandType, "err", err)
		return cleaned
	}
	return out
}

// StripCommand removes the leading "/type" token from a raw system-command
// comment and trims the remainder, yielding the payload passed to Format.
func StripCommand(commandType, raw string) string {
	return strings.TrimSpace(strings.TrimPrefix(raw, "/"+commandType))
}

// template returns the configured template for a command type, or def when
// none is configured.
func (f *Formatter) template(commandType, def string) string {
	if t, ok := f.templates[commandType]; ok && t != "" {
		return t
	}
	return def
}

// substitute replaces {key} placeholders in tmpl. ok is false when the
// template still contains unresolved placeholders afterwards, in which case
// the caller should build the announcement manually.
func substitute(tmpl string, pairs map[string]string) (s string, ok bool) {
	args := make([]string, 0, len(pairs)*2)
	for k, v := range pairs {
		args = append(args, "{"+k+"}", v)
	}
	s = strings.NewReplacer(args...).Replace(tmpl)
	return s, !leftoverPlaceholder.MatchString(s)
}
