// Package transform normalises chat text before it is handed to speech
// synthesis: applause runs become onomatopoeia, URLs and long digit runs are
// elided, and two rule tables (a user-editable replacement table and a slang
// normalisation table) rewrite common chat shorthand into speakable phrases.
//
// Stages run in a fixed order and rule tables are applied as ordered lists,
// so the output is deterministic across runs for the same configuration.
package transform

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

const (
	urlPlaceholder    = "URL省略"
	numberPlaceholder = "数字省略"

	// defaultNumberLimit is the digit-run length at which elision kicks in.
	defaultNumberLimit = 6

	// minSpeakableRunes is the minimum visible length worth synthesising.
	minSpeakableRunes = 2
)

var (
	urlPattern      = regexp.MustCompile(`https?://[^\s]+`)
	applausePattern = regexp.MustCompile(`[8８]{3,}`)
)

// Rule is a plain substring replacement. Rules are applied in slice order.
type Rule struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// RegexRule is a regular-expression replacement applied after the simple
// slang rules.
type RegexRule struct {
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
}

// Config carries the rule tables and toggles for a [Transformer]. The rule
// slices come from configuration files and are treated as immutable once the
// transformer is built.
type Config struct {
	// ElideURLs replaces URL-looking substrings with a spoken placeholder.
	ElideURLs bool `yaml:"elide_urls"`

	// ElideLongNumbers replaces digit runs of NumberLimit or more with a
	// spoken placeholder.
	ElideLongNumbers bool `yaml:"elide_long_numbers"`

	// NumberLimit is the digit-run length threshold. Zero means the default.
	NumberLimit int `yaml:"number_limit"`

	// Replacements is the user-editable substring table, applied in order.
	Replacements []Rule `yaml:"replacements"`

	// SlangRules are the built-in lexical normalisation rules, applied after
	// Replacements.
	SlangRules []Rule `yaml:"slang_rules"`

	// SlangRegexRules run after SlangRules. Invalid patterns are logged and
	// skipped rather than failing the whole table.
	SlangRegexRules []RegexRule `yaml:"slang_regex_rules"`
}

type compiledRegexRule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Transformer applies the normalisation stages. Safe for concurrent use:
// all state is fixed at construction time.
type Transformer struct {
	elideURLs     bool
	elideNumbers  bool
	numberPattern *regexp.Regexp
	replacements  []Rule
	slang         []Rule
	slangRegex    []compiledRegexRule
}

// New builds a Transformer from cfg. Regex rules that fail to compile are
// logged and dropped; a user typo in one rule must not disable the rest of
// the table.
func New(cfg Config) *Transformer {
	limit := cfg.NumberLimit
	if limit <= 0 {
		limit = defaultNumberLimit
	}

	t := &Transformer{
		elideURLs:    cfg.ElideURLs,
		elideNumbers: cfg.ElideLongNumbers,
		replacements: cfg.Replacements,
		slang:        cfg.SlangRules,
	}
	if cfg.ElideLongNumbers {
		t.numberPattern = regexp.MustCompile(`\d{` + strconv.Itoa(limit) + `,}`)
	}
	for _, r := range cfg.SlangRegexRules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			slog.Warn("transform: invalid slang regex rule, skipping",
				"pattern", r.Pattern, "err", err)
			continue
		}
		t.slangRegex = append(t.slangRegex, compiledRegexRule{re, r.Replacement})
	}
	return t
}

// Transform runs all stages over text and returns the speakable result.
func (t *Transformer) Transform(text string) string {
	if text == "" {
		return text
	}

	// 1. Applause runs: one パチ per repeated character.
	text = applausePattern.ReplaceAllStringFunc(text, func(run string) string {
		return strings.Repeat("パチ", len([]rune(run)))
	})

	// 2. URL elision.
	if t.elideURLs {
		text = urlPattern.ReplaceAllString(text, urlPlaceholder)
	}

	// 3. Long digit runs.
	if t.numberPattern != nil {
		text = t.numberPattern.ReplaceAllString(text, numberPlaceholder)
	}

	// 4. User replacement table, in declared order.
	for _, r := range t.replacements {
		text = strings.ReplaceAll(text, r.From, r.To)
	}

	// 5. Slang normalisation: simple rules, then regex rules.
	for _, r := range t.slang {
		text = strings.ReplaceAll(text, r.From, r.To)
	}
	for _, r := range t.slangRegex {
		text = r.pattern.ReplaceAllString(text, r.replacement)
	}

	return text
}

// Speakable reports whether text is worth sending to synthesis: at least
// minSpeakableRunes visible characters after trimming.
func Speakable(text string) bool {
	trimmed := strings.TrimSpace(text)
	n := 0
	for _, r := range trimmed {
		if !unicode.IsSpace(r) {
			n++
		}
		if n >= minSpeakableRunes {
			return true
		}
	}
	return false
}

// DefaultSlangRules returns the built-in lexical normalisation table used
// when the configuration does not supply one.
func DefaultSlangRules() []Rule {
	return []Rule{
		{From: "wwww", To: "わらわらわらわら"},
		{From: "ｗｗｗｗ", To: "わらわらわらわら"},
		{From: "www", To: "わらわらわら"},
		{From: "ｗｗｗ", To: "わらわらわら"},
		{From: "草", To: "わら"},
		{From: "おつ", To: "お疲れさまでした"},
		{From: "乙", To: "お疲れさまでした"},
		{From: "うp", To: "アップロード"},
		{From: "うｐ", To: "アップロード"},
		{From: "ktkr", To: "きたこれ"},
		{From: "キタコレ", To: "きたこれ"},
		{From: "wktk", To: "わくわくてかてか"},
		{From: "ワクテカ", To: "わくわくてかてか"},
	}
}

// DefaultSlangRegexRules returns the built-in regex normalisation table.
func DefaultSlangRegexRules() []RegexRule {
	return []RegexRule{
		{Pattern: `w{3,}`, Replacement: "わらわらわら"},
		{Pattern: `ｗ{3,}`, Replacement: "わらわらわら"},
	}
}
