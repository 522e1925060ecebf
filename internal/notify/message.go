package notify

import (
	"fmt"

	"github.com/MrSnakeDoc/apiregistry/internal/utils"
)

const descriptionLimit = 120

// Message is a Slack incoming-webhook payload.
type Message struct {
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

type Attachment struct {
	Color     string `json:"color,omitempty"`
	Title     string `json:"title"`
	TitleLink string `json:"title_link,omitempty"`
	Text      string `json:"text,omitempty"`
	Footer    string `json:"footer,omitempty"`
}

// Compose renders the announcement. Translator targets get their own headline.
func Compose(ev Event, tags string) Message {
	title := ev.Title
	if title == "" {
		title = "<Notitle>"
	}

	headline := "A new API has been registered"
	color := "#2eb886"
	if tags == TagTranslator {
		headline = "A new Translator API has been registered"
		color = "#6f42c1"
	}

	return Message{
		Text: fmt.Sprintf("%s: *%s*", headline, title),
		Attachments: []Attachment{{
			Color:     color,
			Title:     title,
			TitleLink: ev.UIURL,
			Text:      utils.Truncate(ev.Description, descriptionLimit),
			Footer:    fmt.Sprintf("Registered by %s | id %s", ev.Owner, ev.ID),
		}},
	}
}
