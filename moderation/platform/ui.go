package platform

type ButtonStyle int

const (
	ButtonPrimary ButtonStyle = iota
	ButtonSecondary
	ButtonSuccess
	ButtonDanger
)

type Button struct {
	ID    string
	Label string
	Style ButtonStyle
}

type SelectOption struct {
	Label       string
	Value       string
	Description string
}

type Select struct {
	ID          string
	Placeholder string
	Options     []SelectOption
}

// Message with interactive components. A message with neither Select nor Buttons has its components cleared when used as an edit.
type ComponentMessage struct {
	Text string
	// rendered first, in its own row
	Select *Select
	// one slice per row
	Buttons [][]Button
}

// Single-field form shown in response to a component interaction.
type Modal struct {
	ID          string
	Title       string
	Label       string
	Placeholder string
	MaxLength   int
}

// A component click or form submission.
type Interaction struct {
	GuildID   string
	ChannelID string
	// message carrying the clicked component (empty for form submissions)
	MessageID string
	User      *Member
	CustomID  string
	// selected values, for select menus
	Values []string
	// text entered, for form submissions
	Value string
}

// How an interaction is answered. At most one of Modal or Text is used; Modal wins.
type Response struct {
	Text string
	// only visible to the user who interacted
	Ephemeral bool
	// replace the originating message (and clear its components) instead of replying
	Update bool
	Modal  *Modal
}

func Ephemeral(text string) Response {
	return Response{Text: text, Ephemeral: true}
}
