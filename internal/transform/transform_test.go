package transform

import "testing"

func TestTransform_StageOrder(t *testing.T) {
	t.Parallel()

	tr := New(Config{
		ElideURLs:        true,
		ElideLongNumbers: true,
		NumberLimit:      6,
		Replacements: []Rule{
			{From: "JK", To: "女子高生"},
		},
		SlangRules:      DefaultSlangRules(),
		SlangRegexRules: DefaultSlangRegexRules(),
	})

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"applause run", "888", "パチパチパチ"},
		{"full-width applause run", "８８８８", "パチパチパチパチ"},
		{"url elided", "見て https://example.com/live", "見て URL省略"},
		{"long number elided", "当選番号1234567です", "当選番号数字省略です"},
		{"short number kept", "番号12345です", "番号12345です"},
		{"replacement table", "JKです", "女子高生です"},
		{"slang simple", "草", "わら"},
		{"slang www", "おもろいwww", "おもろいわらわらわら"},
		{"no rule matches", "こんにちは", "こんにちは"},
		{"empty input", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tr.Transform(tt.in); got != tt.want {
				t.Errorf("Transform(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTransform_TogglesOff(t *testing.T) {
	t.Parallel()

	tr := New(Config{})

	if got := tr.Transform("https://example.com"); got != "https://example.com" {
		t.Errorf("URL elision should be off, got %q", got)
	}
	if got := tr.Transform("12345678901"); got != "12345678901" {
		t.Errorf("number elision should be off, got %q", got)
	}
}

func TestTransform_ReplacementOrderIsStable(t *testing.T) {
	t.Parallel()

	// The first rule rewrites into text the second rule matches; applying
	// them in declared order must give the same answer every run.
	tr := New(Config{
		Replacements: []Rule{
			{From: "ab", To: "bc"},
			{From: "bc", To: "xy"},
		},
	})

	for range 10 {
		if got := tr.Transform("ab"); got != "xy" {
			t.Fatalf("Transform(%q) = %q, want %q", "ab", got, "xy")
		}
	}
}

func TestTransform_InvalidRegexRuleSkipped(t *testing.T) {
	t.Parallel()

	tr := New(Config{
		SlangRegexRules: []RegexRule{
			{Pattern: `([`, Replacement: "broken"},
			{Pattern: `o{2,}`, Replacement: "oo"},
		},
	})

	if got := tr.Transform("loooong"); got != "loong" {
		t.Errorf("Transform = %q, want %q", got, "loong")
	}
}

func TestSpeakable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want bool
	}{
		{"こんにちは", true},
		{"ab", true},
		{"a", false},
		{"", false},
		{"   ", false},
		{" a ", false},
		{"あ い", true},
	}

	for _, tt := range tests {
		if got := Speakable(tt.in); got != tt.want {
			t.Errorf("Speakable(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
