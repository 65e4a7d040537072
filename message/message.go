// Package message is the platform-neutral shape of everything DeBot posts:
// a fallback text plus an ordered list of layout blocks. Transport adapters
// translate it into their own format.
package message

// BlockKind identifies the layout of a Block.
type BlockKind string

const (
	KindSection BlockKind = "section"
	KindHeader  BlockKind = "header"
	KindImage   BlockKind = "image"
	KindContext BlockKind = "context"
)

// Block is one layout element.
type Block struct {
	Kind BlockKind

	// Text is markdown for sections and context, plain text for headers.
	Text string

	// Fields renders as a two-column grid of markdown cells (sections only).
	Fields []string

	// Button is an optional link accessory on a section.
	Button *Button

	// Image blocks.
	ImageURL string
	Title    string
	AltText  string
}

// Button is a link button attached to a section.
type Button struct {
	Text     string
	URL      string
	ActionID string
}

// Message is an outbound post.
type Message struct {
	// Text is shown in notifications and by clients that cannot render blocks.
	Text   string
	Blocks []Block
}

// Visibility controls who sees a command response.
type Visibility string

const (
	Ephemeral Visibility = "ephemeral"
	InChannel Visibility = "in_channel"
)

// Text builds a message with a single markdown section.
func Text(text string) Message {
	return Message{Text: text, Blocks: []Block{Section(text)}}
}

// Plain builds a text-only message without blocks.
func Plain(text string) Message {
	return Message{Text: text}
}

// Section returns a markdown section block.
func Section(text string) Block {
	return Block{Kind: KindSection, Text: text}
}

// Header returns a plain-text header block.
func Header(text string) Block {
	return Block{Kind: KindHeader, Text: text}
}

// Image returns an image block.
func Image(url, title, alt string) Block {
	return Block{Kind: KindImage, ImageURL: url, Title: title, AltText: alt}
}

// Context returns a context (footer) block.
func Context(text string) Block {
	return Block{Kind: KindContext, Text: text}
}

// Fields returns a section laid out as a field grid.
func Fields(fields ...string) Block {
	return Block{Kind: KindSection, Fields: fields}
}
