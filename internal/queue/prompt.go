package queue

import (
	"fmt"
	"strings"
)

var languageNames = map[string]string{
	"en": "English",
	"es": "Spanish",
	"pt": "Portuguese",
	"fr": "French",
	"de": "German",
	"it": "Italian",
	"nl": "Dutch",
	"ru": "Russian",
	"ar": "Arabic",
	"zh": "Chinese",
	"ja": "Japanese",
	"ko": "Korean",
}

// buildPrompt assembles the generation prompt for a queue entry from the
// conversation record and the entry's captured context
func buildPrompt(conv *Conversation, entry Entry) string {
	var b strings.Builder

	switch entry.Type {
	case TypeOpener:
		b.WriteString("Write a short, natural opening message to someone I just matched with on a dating app.")
	case TypeFollowup:
		b.WriteString("Write a short, natural reply continuing a conversation on a dating app.")
	case TypeMeetup:
		b.WriteString("Write a short, casual message suggesting we meet up, for a dating app conversation that has been going well.")
	default:
		b.WriteString("Write a short, natural message for a dating app conversation.")
	}

	if conv.Name != "" {
		fmt.Fprintf(&b, " Their name is %s.", conv.Name)
	}
	if entry.Context != "" {
		fmt.Fprintf(&b, "\n\nContext:\n%s", entry.Context)
	}
	if entry.Type != TypeOpener && conv.LastMessage != "" {
		fmt.Fprintf(&b, "\n\nTheir last message was: %q", conv.LastMessage)
	}

	tone := conv.Tone
	if tone == "" {
		tone = "friendly"
	}
	fmt.Fprintf(&b, "\n\nTone: %s.", tone)

	if name, ok := languageNames[conv.Language]; ok && conv.Language != "en" {
		fmt.Fprintf(&b, " Write the message in %s.", name)
	}

	b.WriteString(" Reply with only the message text, no quotes or commentary, under 200 characters.")
	return b.String()
}
