package history

import (
	"strings"
	"testing"

	"github.com/duetvoice/duet/internal/schema"
)

// ─── Helpers ──────────────────────────────────────────────────────────────────

func sys(s string) schema.Message  { return schema.NewSystemMessage(s) }
func user(s string) schema.Message { return schema.NewUserMessage(s) }
func asst(s string) schema.Message { return schema.NewAssistantMessage(s) }

func rep(ch string, n int) string { return strings.Repeat(ch, n) }

func contents(t schema.Transcript) []string {
	var out []string
	for _, m := range t.Messages() {
		out = append(out, m.Content)
	}
	return out
}

func assertContents(t *testing.T, got schema.Transcript, want ...string) {
	t.Helper()
	g := contents(got)
	if len(g) != len(want) {
		t.Fatalf("transcript = %q, want %q", g, want)
	}
	for i := range want {
		if g[i] != want[i] {
			t.Fatalf("transcript = %q, want %q", g, want)
		}
	}
}

// assertSuffixOf checks that everything after the preset is a contiguous run
// of rolling that ends at rolling's last message.
func assertSuffixOf(t *testing.T, got, preset, rolling schema.Transcript) {
	t.Helper()
	tail := got.Messages()[preset.Len():]
	if len(tail) == 0 {
		return
	}
	r := rolling.Messages()
	offset := len(r) - len(tail)
	for i, m := range tail {
		if r[offset+i] != m {
			t.Fatalf("tail %v is not a suffix of rolling %v", tail, r)
		}
	}
}

// ─── Fast path ────────────────────────────────────────────────────────────────

func TestTrim_UnderBudgetReturnsRollingUnchanged(t *testing.T) {
	preset := schema.NewTranscript(sys("P"))
	rolling := schema.NewTranscript(sys("P"), user("hi"), asst("hello"))

	res := Trim(preset, rolling, user("again"), 100)

	if res.Trimmed {
		t.Error("Trimmed = true, want false")
	}
	assertContents(t, res.Transcript, "P", "hi", "hello")
}

func TestTrim_ExactlyAtBudgetIsNotTrimmed(t *testing.T) {
	preset := schema.NewTranscript(sys("P"))
	rolling := schema.NewTranscript(sys("P"), user(rep("a", 4)))

	res := Trim(preset, rolling, user(rep("b", 5)), 10)

	if res.Trimmed {
		t.Error("Trimmed = true at exact budget")
	}
	if res.Transcript.Len() != 2 {
		t.Errorf("len = %d, want 2", res.Transcript.Len())
	}
}

// ─── Trimming ─────────────────────────────────────────────────────────────────

func TestTrim_DropsOrphanedAssistantReply(t *testing.T) {
	preset := schema.NewTranscript(sys("P"))
	rolling := schema.NewTranscript(
		sys("P"),
		user(rep("A", 10)),
		asst(rep("B", 10)),
		user(rep("C", 10)),
	)

	res := Trim(preset, rolling, user(rep("D", 25)), 50)

	if !res.Trimmed {
		t.Fatal("Trimmed = false, want true")
	}
	assertContents(t, res.Transcript, "P", rep("C", 10))
	if res.Dropped != 2 {
		t.Errorf("Dropped = %d, want 2", res.Dropped)
	}
}

func TestTrim_KeepsUserMessageAfterCut(t *testing.T) {
	preset := schema.NewTranscript(sys("P"))
	rolling := schema.NewTranscript(
		sys("P"),
		asst(rep("A", 10)),
		user(rep("B", 10)),
		asst(rep("C", 10)),
	)

	res := Trim(preset, rolling, user(rep("D", 25)), 50)

	assertContents(t, res.Transcript, "P", rep("B", 10), rep("C", 10))
}

// Only the message right after the cut is skipped; a second reply in a row
// is kept. Alternating transcripts never reach this case.
func TestTrim_OnlyFirstMessageAfterCutIsSkipped(t *testing.T) {
	preset := schema.NewTranscript(sys("P"))
	rolling := schema.NewTranscript(
		sys("P"),
		user(rep("u", 30)),
		asst(rep("a", 5)),
		asst(rep("b", 5)),
		user(rep("c", 5)),
	)

	res := Trim(preset, rolling, user(rep("d", 5)), 25)

	assertContents(t, res.Transcript, "P", rep("b", 5), rep("c", 5))
}

func TestTrim_PendingLargerThanBudgetKeepsOnlyPreset(t *testing.T) {
	preset := schema.NewTranscript(sys("PP"))
	rolling := schema.NewTranscript(sys("PP"), user("hi"), asst("yo"))

	res := Trim(preset, rolling, user(rep("x", 200)), 20)

	assertContents(t, res.Transcript, "PP")
}

func TestTrim_PresetOverBudgetIsFlaggedAndKept(t *testing.T) {
	preset := schema.NewTranscript(sys(rep("p", 40)))
	rolling := schema.NewTranscript(sys(rep("p", 40)), user("q"), asst("r"))

	res := Trim(preset, rolling, user("s"), 30)

	if !res.PresetOverBudget {
		t.Error("PresetOverBudget = false, want true")
	}
	assertContents(t, res.Transcript, rep("p", 40))
}

func TestTrim_EmptyRollingFallsBackToPreset(t *testing.T) {
	preset := schema.NewTranscript(sys("P"))

	res := Trim(preset, schema.Transcript{}, user(rep("x", 20)), 10)

	if !res.Trimmed {
		t.Error("Trimmed = false, want true")
	}
	assertContents(t, res.Transcript, "P")
}

func TestTrim_MultiByteContentIsMeasuredInCharacters(t *testing.T) {
	preset := schema.NewTranscript(sys("设定"))
	rolling := schema.NewTranscript(sys("设定"), user("你好你好"), asst("再见再见"))

	// 12 characters in total, 36 bytes.
	res := Trim(preset, rolling, user("早安"), 12)

	if res.Trimmed {
		t.Errorf("Trimmed = true; sizes should count characters not bytes")
	}
}

// ─── Invariants ───────────────────────────────────────────────────────────────

func TestTrim_InvariantsHoldAcrossBudgets(t *testing.T) {
	preset := schema.NewTranscript(sys(rep("s", 8)), asst(rep("g", 4)))
	rolling := preset.Clone()
	for i := 0; i < 12; i++ {
		rolling.Add(user(rep("u", 3+i)))
		rolling.Add(asst(rep("a", 7+i%4)))
	}
	pending := user(rep("n", 6))
	before := contents(rolling)

	for budget := 0; budget <= 250; budget += 7 {
		res := Trim(preset, rolling, pending, budget)
		got := res.Transcript

		for i, m := range preset.Messages() {
			if got.At(i) != m {
				t.Fatalf("budget %d: preset not kept at %d", budget, i)
			}
		}
		fits := preset.TotalSize()+pending.Size() <= budget
		if res.Trimmed && fits && got.TotalSize()+pending.Size() > budget {
			t.Fatalf("budget %d: size %d + pending %d over budget", budget, got.TotalSize(), pending.Size())
		}
		if res.Trimmed {
			assertSuffixOf(t, got, preset, rolling)
		}
		if res.Trimmed && got.Len() > preset.Len() && got.At(preset.Len()).Role == schema.RoleAssistant {
			t.Fatalf("budget %d: kept tail starts with a reply", budget)
		}
	}

	after := contents(rolling)
	if len(before) != len(after) {
		t.Fatal("rolling was modified")
	}
}

func TestTrim_IsDeterministic(t *testing.T) {
	preset := schema.NewTranscript(sys("P"))
	rolling := schema.NewTranscript(sys("P"), user(rep("A", 10)), asst(rep("B", 10)), user(rep("C", 10)))

	a := Trim(preset, rolling, user(rep("D", 25)), 50)
	b := Trim(preset, rolling, user(rep("D", 25)), 50)

	if strings.Join(contents(a.Transcript), "|") != strings.Join(contents(b.Transcript), "|") {
		t.Error("Trim returned different results for identical inputs")
	}
}

func TestTrim_ResultDoesNotAliasInputs(t *testing.T) {
	preset := schema.NewTranscript(sys("P"))
	rolling := schema.NewTranscript(sys("P"), user("hi"))

	res := Trim(preset, rolling, user("x"), 100)
	res.Transcript.Append(schema.RoleAssistant, "extra")

	if rolling.Len() != 2 || preset.Len() != 1 {
		t.Errorf("inputs changed: rolling=%d preset=%d", rolling.Len(), preset.Len())
	}
}

// ─── backfill ─────────────────────────────────────────────────────────────────

func TestBackfill_FromStartWithoutSkip(t *testing.T) {
	var cand schema.Transcript
	rolling := schema.NewTranscript(asst(rep("a", 3)), user(rep("b", 3)), asst(rep("c", 9)))

	backfill(&cand, rolling, 0, false, 2, 10)

	assertContents(t, cand, rep("a", 3), rep("b", 3))
}
