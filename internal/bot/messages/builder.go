package messages

import "PayoutRecon/internal/core/ports"

// Builder helps construct complex SendMessageParams.
type Builder struct {
	params ports.SendMessageParams
}

// NewBuilder creates a new message builder.
func NewBuilder(chatID int64) *Builder {
	return &Builder{
		params: ports.SendMessageParams{
			ChatID:    chatID,
			ParseMode: ParseMode,
		},
	}
}

// WithText sets the message text.
func (b *Builder) WithText(text string) *Builder {
	b.params.Text = text
	return b
}

// WithParseMode overrides the default parse mode.
func (b *Builder) WithParseMode(mode string) *Builder {
	b.params.ParseMode = mode
	return b
}

// WithInlineButtons adds a set of inline buttons. Empty rows are dropped.
func (b *Builder) WithInlineButtons(buttons [][]ports.Button) *Builder {
	var rows [][]ports.Button
	for _, row := range buttons {
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 {
		b.params.ReplyMarkup = nil
		return b
	}
	b.params.ReplyMarkup = &ports.ReplyMarkup{Buttons: rows}
	return b
}

// Build returns the final SendMessageParams struct.
func (b *Builder) Build() ports.SendMessageParams {
	return b.params
}

// BuildEdit returns the same content as an edit of messageID.
// An empty keyboard is sent explicitly so stale buttons disappear.
func (b *Builder) BuildEdit(messageID int) ports.EditMessageParams {
	markup := b.params.ReplyMarkup
	if markup == nil {
		markup = &ports.ReplyMarkup{}
	}
	return ports.EditMessageParams{
		ChatID:      b.params.ChatID,
		MessageID:   messageID,
		Text:        b.params.Text,
		ParseMode:   b.params.ParseMode,
		ReplyMarkup: markup,
	}
}
