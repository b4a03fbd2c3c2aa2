package session

import (
	"strings"

	"github.com/voxhire/voxhire/pkg/gateway/uploads"
)

// DefaultSystemPrompt is used when no prompt file is configured or readable.
const DefaultSystemPrompt = "You are a friendly HR specialist conducting a spoken job interview. " +
	"Keep your answers short and conversational, ask one question at a time, " +
	"and react to what the candidate actually said."

// DefaultGreetingInstruction is the synthetic user message that opens the
// interview before the candidate has spoken.
const DefaultGreetingInstruction = "Start the interview. Introduce yourself as HR specialist " +
	"from Google and begin with a warm greeting and brief introduction of the position."

// buildSystemPrompt folds the candidate profile and CV text into the base
// prompt so the model can personalize its questions. Without either, the
// base prompt is returned unchanged.
func buildSystemPrompt(base string, profile *uploads.CandidateProfile, cvText string) string {
	hasProfile := profile != nil && (profile.FullName() != "" || profile.Email != "")
	cvText = strings.TrimSpace(cvText)
	if !hasProfile && cvText == "" {
		return base
	}

	var sb strings.Builder
	sb.WriteString(base)
	sb.WriteString("\n\nCANDIDATE INFORMATION:")
	if hasProfile {
		sb.WriteString("\nName: ")
		sb.WriteString(profile.FullName())
		sb.WriteString("\nEmail: ")
		sb.WriteString(profile.Email)
	}
	if cvText != "" {
		sb.WriteString("\n\nCV CONTENT:\n")
		sb.WriteString(cvText)
	}
	sb.WriteString("\n\nUse this information to conduct a personalized interview, " +
		"asking relevant questions based on their CV and experience.")
	return sb.String()
}
