package command

import (
	"regexp"
	"strings"

	"github.com/google/shlex"
)

var (
	digitsOnly  = regexp.MustCompile(`^\d+$`)
	quotedRun   = regexp.MustCompile(`"([^"]+)"`)
	loosePoint  = regexp.MustCompile(`\s(\d{1,6})(?:\s|"|$)`)
	innerSpaces = regexp.MustCompile(`\s+`)
)

// formatGift parses a gift announcement payload such as
//
//	svc 123 "Guest" 15 "" "Cool Gift"
//
// into name, point, and gift-item fields. The payload layout varies across
// client versions, so positional extraction is tried first and looser
// pattern matching fills whatever is still missing.
func (f *Formatter) formatGift(cleaned string) (string, error) {
	parts, err := shlex.Split(cleaned)
	if err != nil {
		// Unbalanced quoting; fall through to the pattern fallbacks.
		parts = nil
	}

	var name, point, gift string
	if len(parts) >= 3 {
		name = strings.TrimSpace(parts[2])
	}
	if len(parts) >= 4 && digitsOnly.MatchString(parts[3]) {
		point = parts[3]
	}
	if len(parts) >= 6 {
		gift = parts[5]
	}

	if name == "" || gift == "" {
		runs := quotedRun.FindAllStringSubmatch(cleaned, -1)
		if name == "" && len(runs) > 0 {
			name = strings.TrimSpace(runs[0][1])
		}
		if gift == "" && len(runs) >= 2 {
			gift = strings.TrimSpace(runs[len(runs)-1][1])
		}
	}
	if point == "" {
		if m := loosePoint.FindStringSubmatch(cleaned); m != nil {
			point = m[1]
		}
	}

	if name == "" {
		name = guestName
	}
	if gift == "" {
		// Last resort: the final whitespace-delimited token of the payload.
		fields := strings.Fields(strings.Trim(cleaned, `"`))
		if len(fields) > 0 {
			gift = strings.Trim(fields[len(fields)-1], `"`)
		}
	}
	// Gift item names are spoken as one word.
	gift = innerSpaces.ReplaceAllString(gift, "")

	out, ok := substitute(f.template("gift", DefaultGiftTemplate), map[string]string{
		"name":  name,
		"point": point,
		"gift":  gift,
	})
	if !ok {
		out = name + "さんが" + point + "ポイント" + gift + "をギフトしました"
	}
	return out, nil
}
