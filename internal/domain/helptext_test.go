package domain

import "testing"

func TestParseHelpTextWithBlock(t *testing.T) {
	raw := "[[PRE HR=Yes]]\n<b>Importante</b>\nlínea 2\n[[/PRE]]\nResponde con calma."
	got := ParseHelpText(raw)
	if got.Pre != "<b>Importante</b>\nlínea 2" {
		t.Fatalf("unexpected pre body %q", got.Pre)
	}
	if !got.HR {
		t.Fatalf("expected divider flag")
	}
	if got.Rest != "Responde con calma." {
		t.Fatalf("unexpected rest %q", got.Rest)
	}
}

func TestParseHelpTextMalformedKeepsEverything(t *testing.T) {
	cases := []string{
		"",
		"plain help",
		"[[PRE hr=1]] no newline",
		"[[PRE]]\nbody without close",
		"[[PREFIX]]\nbody\n[[/PRE]]\nrest",
		"[[PRE]]\nbody\n[[/PRE]]trailing",
		"  [[PRE]]\nbody\n[[/PRE]]\n",
	}
	for _, raw := range cases {
		got := ParseHelpText(raw)
		if got.Pre != "" || got.HR || got.Rest != raw {
			t.Fatalf("expected %q to stay plain, got %+v", raw, got)
		}
	}
}

func TestHelpTextRoundTrip(t *testing.T) {
	cases := []HelpText{
		{Pre: "body", HR: false, Rest: "rest"},
		{Pre: "multi\nline body", HR: true, Rest: ""},
		{Pre: "", HR: true, Rest: "only divider"},
		{Pre: "x", HR: true, Rest: "rest\nwith [[PRE]] inside"},
	}
	for _, h := range cases {
		got := ParseHelpText(ComposeHelpText(h))
		if got != h {
			t.Fatalf("round trip mismatch: want %+v got %+v", h, got)
		}
	}
}

func TestComposeWithoutBlockReturnsRest(t *testing.T) {
	if got := ComposeHelpText(HelpText{Rest: "just text"}); got != "just text" {
		t.Fatalf("expected plain rest, got %q", got)
	}
}

func TestParseHRValues(t *testing.T) {
	for attrs, want := range map[string]bool{
		" hr=1":     true,
		" hr=true":  true,
		" Hr=YES":   true,
		" hr=0":     false,
		" hr=no":    false,
		" other=1":  false,
		" hr=\"1\"": true,
		"":          false,
	} {
		raw := "[[PRE" + attrs + "]]\nb\n[[/PRE]]\n"
		if got := ParseHelpText(raw).HR; got != want {
			t.Fatalf("attrs %q: want hr=%v got %v", attrs, want, got)
		}
	}
}
