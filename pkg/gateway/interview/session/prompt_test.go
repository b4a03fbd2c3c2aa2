package session

import (
	"strings"
	"testing"

	"github.com/voxhire/voxhire/pkg/gateway/uploads"
)

func TestBuildSystemPrompt_NoContextReturnsBase(t *testing.T) {
	t.Parallel()

	if got := buildSystemPrompt("base prompt", nil, ""); got != "base prompt" {
		t.Fatalf("got %q, want base unchanged", got)
	}
	if got := buildSystemPrompt("base prompt", &uploads.CandidateProfile{}, "  "); got != "base prompt" {
		t.Fatalf("got %q, want base unchanged for empty profile", got)
	}
}

func TestBuildSystemPrompt_FoldsProfileAndCV(t *testing.T) {
	t.Parallel()

	profile := &uploads.CandidateProfile{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"}
	got := buildSystemPrompt("base", profile, "Ten years of engine design.")

	want := "base\n\n" +
		"CANDIDATE INFORMATION:\n" +
		"Name: Ada Lovelace\n" +
		"Email: ada@example.com\n\n" +
		"CV CONTENT:\n" +
		"Ten years of engine design.\n\n" +
		"Use this information to conduct a personalized interview, " +
		"asking relevant questions based on their CV and experience."
	if got != want {
		t.Fatalf("prompt mismatch:\n got %q\nwant %q", got, want)
	}
}

func TestBuildSystemPrompt_CVOnly(t *testing.T) {
	t.Parallel()

	got := buildSystemPrompt("base", nil, "CV body")
	if !strings.Contains(got, "CV CONTENT:\nCV body") {
		t.Fatalf("missing cv section: %q", got)
	}
	if strings.Contains(got, "Name:") {
		t.Fatalf("unexpected profile section: %q", got)
	}
}
