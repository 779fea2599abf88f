// Package comment implements the inline comment grammar that lets a
// commenter customise display name, skin, font, and voice for a single
// comment, e.g. "こんにちは@ロータス{s:01,f:03,v:05}".
//
// Parsing is a total function: any input yields a usable [ParsedComment].
// Malformed syntax degrades to "no settings", never to an error.
package comment

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// fullPattern matches the whole annotated form "body@name{settings}".
	// Body and name are non-greedy so that '@' inside the settings name or
	// extra braces in the body do not confuse extraction.
	fullPattern = regexp.MustCompile(`^(.*?)@(.+?)\{([^}]+)\}$`)

	// kvPattern extracts the recognised settings keys. Unknown keys are
	// simply never matched and therefore ignored.
	kvPattern = regexp.MustCompile(`(s|f|v):(\d+)`)

	// systemPattern detects platform system commands such as "/info 10" or
	// "/gift ...". Only the leading word identifies the command.
	systemPattern = regexp.MustCompile(`^/(\w+)(?:\s+\d+)?`)
)

// ParsedComment is the structured result of parsing one raw comment.
//
// Skin, Font, and Voice are pointers so that an explicit value of zero is
// distinguishable from "not supplied". For a system command, Text holds the
// raw input verbatim and all settings fields are unset.
type ParsedComment struct {
	Text  string
	Name  string
	Skin  *int
	Font  *int
	Voice *int

	IsSystemCommand bool
	CommandType     string
}

// HasInlineSettings reports whether the commenter supplied at least one
// inline field. The settings resolver uses this to decide whether a profile
// write should happen at all.
func (pc ParsedComment) HasInlineSettings() bool {
	return pc.Name != "" || pc.Skin != nil || pc.Font != nil || pc.Voice != nil
}

// Parse analyses a raw comment and extracts inline settings or a system
// command marker. It never fails.
//
// The system-command check takes precedence: a comment starting with
// "/word" is returned verbatim with IsSystemCommand set, even if the rest
// of the text would also match the annotated grammar.
func Parse(raw string) ParsedComment {
	pc := ParsedComment{Text: raw}

	if m := systemPattern.FindStringSubmatch(raw); m != nil {
		pc.IsSystemCommand = true
		pc.CommandType = strings.ToLower(m[1])
		return pc
	}

	m := fullPattern.FindStringSubmatch(raw)
	if m == nil {
		return pc
	}

	pc.Text = strings.TrimSpace(m[1])
	pc.Name = strings.TrimSpace(m[2])

	// Last occurrence of a repeated key wins.
	for _, kv := range kvPattern.FindAllStringSubmatch(m[3], -1) {
		n, err := strconv.Atoi(kv[2])
		if err != nil {
			continue
		}
		switch kv[1] {
		case "s":
			pc.Skin = &n
		case "f":
			pc.Font = &n
		case "v":
			pc.Voice = &n
		}
	}
	return pc
}
