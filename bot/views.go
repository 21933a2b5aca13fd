package bot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

const (
	ColorBlue   = 0x0099ff
	ColorOrange = 0xff5733
)

type ButtonStyle int

const (
	StylePrimary ButtonStyle = iota
	StyleSecondary
	StyleSuccess
	StyleDanger
)

type Button struct {
	ID    string
	Label string
	Style ButtonStyle
	Emoji string
}

type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Panel is a persistent message with buttons.
type Panel struct {
	Title       string
	Description string
	Color       int
	Footer      string
	Fields      []Field
	Rows        [][]Button
	Timestamp   bool
}

// TrialPanel is the public message users press to get a code.
func TrialPanel() Panel {
	return Panel{
		Title:       "Get Your Trial Code Now!",
		Description: "Click the button below to get your one-time, unique trial code!",
		Color:       ColorBlue,
		Footer:      "This code is only valid for one use! Misuse will result in a ban.",
		Rows: [][]Button{{
			{ID: ActionRequestTrial, Label: "Request Trial", Style: StylePrimary, Emoji: "🎮"},
		}},
	}
}

// ManagementPanel shows pool counts and the admin actions.
func ManagementPanel(unused, used int) Panel {
	return Panel{
		Title:       "Trial Key Management",
		Description: "Manage your trial keys below",
		Color:       ColorOrange,
		Timestamp:   true,
		Fields: []Field{
			{Name: "Available Keys", Value: strconv.Itoa(unused), Inline: true},
			{Name: "Used Keys", Value: strconv.Itoa(used), Inline: true},
		},
		Rows: [][]Button{
			{
				{ID: ActionViewKeys, Label: "View Keys", Style: StylePrimary},
				{ID: ActionAddKey, Label: "Add Single Key", Style: StyleSuccess},
				{ID: ActionBulkAdd, Label: "Bulk Add Keys", Style: StyleSuccess},
				{ID: ActionUploadKeys, Label: "Upload Key File", Style: StyleSuccess},
			},
			{
				{ID: ActionDeleteKey, Label: "Delete Key", Style: StyleDanger},
				{ID: ActionViewUsed, Label: "View Used Keys", Style: StyleSecondary},
				{ID: ActionSecondChance, Label: "Give Second Chance", Style: StyleSecondary},
				{ID: ActionWipeKeys, Label: "Wipe All Keys", Style: StyleDanger},
			},
		},
	}
}

// paginate splits entries into PageSize chunks joined by sep.
func paginate(title string, color int, entries []string, sep string) []Page {
	chunks := lo.Chunk(entries, PageSize)
	return lo.Map(chunks, func(chunk []string, i int) Page {
		return Page{
			Title: fmt.Sprintf("%s (Page %d/%d)", title, i+1, len(chunks)),
			Body:  strings.Join(chunk, sep),
			Color: color,
		}
	})
}

func singleInputForm(id, title, label, placeholder string) *Form {
	return &Form{
		ID:    id,
		Title: title,
		Inputs: []Input{{
			ID:          inputFor(id),
			Label:       label,
			Placeholder: placeholder,
		}},
	}
}

func inputFor(form string) string {
	switch form {
	case FormBulkAdd:
		return FieldKeys
	case FormWipeConfirm:
		return FieldConfirm
	case FormSecondChance:
		return FieldUser
	}
	return FieldKey
}
