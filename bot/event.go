// Package bot turns trial panel interactions into store operations and
// platform-neutral replies. The chat adapter owns transport and rendering.
package bot

// Button and form identifiers shared with the rendered panels.
const (
	ActionRequestTrial = "request-trial"
	ActionViewKeys     = "view-keys"
	ActionAddKey       = "add-key"
	ActionBulkAdd      = "bulk-add"
	ActionUploadKeys   = "upload-keys"
	ActionDeleteKey    = "delete-key"
	ActionViewUsed     = "view-used"
	ActionWipeKeys     = "wipe-keys"
	ActionSecondChance = "second-chance"

	FormAddKey       = "add-key-modal"
	FormBulkAdd      = "bulk-add-modal"
	FormDeleteKey    = "delete-key-modal"
	FormWipeConfirm  = "wipe-keys-confirm"
	FormSecondChance = "second-chance-modal"

	FieldKey     = "key-input"
	FieldKeys    = "keys-input"
	FieldConfirm = "confirm-input"
	FieldUser    = "user-input"
)

const (
	// PageSize is the number of entries per rendered page.
	PageSize = 10
	// WipeConfirmation must be typed exactly to wipe the pool.
	WipeConfirmation = "CONFIRM"
)

type EventKind int

const (
	ButtonPress EventKind = iota
	FormSubmit
)

// Event is one interaction delivered by the chat adapter.
type Event struct {
	Kind      EventKind
	ID        string // button or form custom id
	UserID    string
	ChannelID string
	Fields    map[string]string // form values by field id
}

// Response is what the adapter should show the user. Exactly one of Text,
// Pages or Form is set.
type Response struct {
	Text  string
	Pages []Page
	Form  *Form
	// AwaitUpload asks the adapter to collect a key file from the user.
	AwaitUpload bool
	// RefreshPanel asks the adapter to re-render the management panel.
	RefreshPanel bool
}

type Page struct {
	Title string
	Body  string
	Color int
}

type Form struct {
	ID     string
	Title  string
	Inputs []Input
}

type Input struct {
	ID          string
	Label       string
	Placeholder string
	Paragraph   bool
}

func text(s string) Response { return Response{Text: s} }
