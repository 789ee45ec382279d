package responder

import (
	"context"

	"chatdash/core"
)

// CannedReply is the text of every simulated reply.
const CannedReply = "This is a simulated Gemini response!"

// Canned always answers with the same text.
type Canned struct {
	Text string
}

func (c Canned) Reply(ctx context.Context, history []core.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if c.Text != "" {
		return c.Text, nil
	}
	return CannedReply, nil
}
