package session

import (
	"strings"
	"testing"
)

func TestSplitFragments_EmptyInput(t *testing.T) {
	t.Parallel()
	if got := SplitFragments("", 100); got != nil {
		t.Fatalf("empty input produced %d fragments", len(got))
	}
	if got := SplitFragments("   \n ", 100); got != nil {
		t.Fatalf("whitespace input produced %d fragments", len(got))
	}
}

func TestSplitFragments_PacksSentencesGreedily(t *testing.T) {
	t.Parallel()

	text := "First one. Second one! Third one?"
	frags := SplitFragments(text, 25)

	if len(frags) != 2 {
		t.Fatalf("got %d fragments: %#v", len(frags), frags)
	}
	if frags[0].Text != "First one. Second one!" {
		t.Fatalf("fragment[0] = %q", frags[0].Text)
	}
	if frags[1].Text != "Third one?" {
		t.Fatalf("fragment[1] = %q", frags[1].Text)
	}
	for i, f := range frags {
		if f.Index != i || f.Total != len(frags) {
			t.Fatalf("fragment[%d] index/total = %d/%d", i, f.Index, f.Total)
		}
	}
}

func TestSplitFragments_BoundsAndReassembly(t *testing.T) {
	t.Parallel()

	text := "The interview begins now. Please tell me about your background, your most recent role, and what drew you to apply. Take your time! Are you ready?"
	maxLen := 40
	frags := SplitFragments(text, maxLen)
	if len(frags) == 0 {
		t.Fatal("no fragments")
	}

	var parts []string
	for _, f := range frags {
		parts = append(parts, f.Text)
		if runeLen(f.Text) > maxLen && strings.Contains(f.Text, ",") {
			t.Errorf("fragment %q exceeds max length with comma available", f.Text)
		}
	}

	// Joining fragments with single spaces recovers the normalized text.
	joined := strings.Join(parts, " ")
	normalized := strings.Join(strings.Fields(text), " ")
	if joined != normalized {
		t.Fatalf("reassembly mismatch:\n got %q\nwant %q", joined, normalized)
	}
}

func TestSplitFragments_CommaFallbackForOversizedSentence(t *testing.T) {
	t.Parallel()

	text := "We value curiosity, ownership, collaboration, and clear communication above all else."
	frags := SplitFragments(text, 30)

	if len(frags) < 2 {
		t.Fatalf("oversized sentence not split: %#v", frags)
	}
	for _, f := range frags[:len(frags)-1] {
		if !strings.HasSuffix(f.Text, ",") {
			t.Errorf("comma piece %q should keep its comma", f.Text)
		}
	}
}

func TestSplitFragments_AcceptsOversizedCommaPiece(t *testing.T) {
	t.Parallel()

	// No sentence or comma boundary fits inside maxLen.
	text := "supercalifragilisticexpialidocious onomatopoeia extraordinarily"
	frags := SplitFragments(text, 10)

	if len(frags) != 1 {
		t.Fatalf("got %d fragments, want 1 oversized", len(frags))
	}
	if frags[0].Text != text {
		t.Fatalf("fragment = %q", frags[0].Text)
	}
}

func TestSplitFragments_Deterministic(t *testing.T) {
	t.Parallel()

	text := "One. Two. Three, four, five. Six!"
	first := SplitFragments(text, 15)
	for i := 0; i < 10; i++ {
		again := SplitFragments(text, 15)
		if len(again) != len(first) {
			t.Fatalf("run %d: length %d != %d", i, len(again), len(first))
		}
		for j := range again {
			if again[j] != first[j] {
				t.Fatalf("run %d: fragment %d differs", i, j)
			}
		}
	}
}

func TestSplitFragments_UnicodeRuneCounting(t *testing.T) {
	t.Parallel()

	// 12 runes per sentence; both fit in a 30-rune fragment only together.
	text := "Привет мир и. Снова привет."
	frags := SplitFragments(text, 30)
	if len(frags) != 1 {
		t.Fatalf("got %d fragments, want 1: %#v", len(frags), frags)
	}
}
