package command

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	embeddedJSON  = regexp.MustCompile(`(\{.*\})`)
	bracketedTag  = regexp.MustCompile(`【[^】]*】`)
	adContributor = regexp.MustCompile(`(.+?)さんが\s*(\d+)\s*pt`)
	loosePt       = regexp.MustCompile(`(\d+)\s*pt`)
	looseTotal    = regexp.MustCompile(`"totalAdPoint"\s*:\s*(\d+)`)
)

// formatNicoad parses an advertisement announcement. The payload usually
// embeds a JSON object carrying the running total and a human-readable
// message; when the JSON or the message is malformed, regex fallbacks over
// the raw payload recover whatever fields they can.
func (f *Formatter) formatNicoad(cleaned string) (string, error) {
	var (
		total    int64
		hasTotal bool
		message  string
	)
	if m := embeddedJSON.FindStringSubmatch(cleaned); m != nil && gjson.Valid(m[1]) {
		obj := gjson.Parse(m[1])
		if v := obj.Get("totalAdPoint"); v.Exists() {
			total = v.Int()
			hasTotal = true
		}
		message = obj.Get("message").String()
	}

	var name, point string
	if message != "" {
		msg := bracketedTag.ReplaceAllString(message, "")
		if m := adContributor.FindStringSubmatch(msg); m != nil {
			name = strings.TrimSpace(m[1])
			point = m[2]
		}
	}
	if name == "" {
		name = guestName
	}
	if point == "" {
		if m := loosePt.FindStringSubmatch(cleaned); m != nil {
			point = m[1]
		} else {
			point = "0"
		}
	}
	if !hasTotal {
		if m := looseTotal.FindStringSubmatch(cleaned); m != nil {
			total, _ = strconv.ParseInt(m[1], 10, 64)
		}
	}

	out, ok := substitute(f.template("nicoad", DefaultNicoadTemplate), map[string]string{
		"total": strconv.FormatInt(total, 10),
		"name":  name,
		"point": point,
	})
	if !ok {
		out = "合計" + strconv.FormatInt(total, 10) + "ポイント　" +
			name + "さんが" + point + "ポイント広告しました"
	}
	return out, nil
}
