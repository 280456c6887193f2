package llmutils

import "testing"

func TestTruncate_KeepsWholeCharacters(t *testing.T) {
	if got := Truncate("你好世界", 2); got != "你好..." {
		t.Errorf("Truncate = %q", got)
	}
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("Truncate = %q", got)
	}
}

func TestStripThink(t *testing.T) {
	in := "<think>\nplanning\n</think>\nHello there"
	if got := StripThink(in); got != "Hello there" {
		t.Errorf("StripThink = %q", got)
	}
}

func TestOneLine(t *testing.T) {
	if got := OneLine("a\n b\t\tc "); got != "a b c" {
		t.Errorf("OneLine = %q", got)
	}
}
