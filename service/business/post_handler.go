package business

import (
	"context"
	"strings"

	"github.com/pitabwire/util"

	"github.com/sokoapp/service-presence/internal"
	"github.com/sokoapp/service-presence/service/protocol"
)

// PostHandler owns the "post." namespace. The recognized actions are
// registered placeholders: they satisfy the dispatch contract but their
// behavior is pending design, so they log and drop.
type PostHandler struct{}

// NewPostHandler creates the post/social action handler.
func NewPostHandler() *PostHandler {
	return &PostHandler{}
}

// Supports claims every type under the post namespace.
func (ph *PostHandler) Supports(envelopeType string) bool {
	return strings.HasPrefix(envelopeType, internal.NamespacePost)
}

// Handle accepts the recognized post actions without acting on them.
// Unrecognized sub-types get the standard unknown-action diagnostic.
func (ph *PostHandler) Handle(ctx context.Context, conn *Connection, env *protocol.Envelope) error {
	switch env.Type {
	case internal.TypePostApply, internal.TypePostComment:
		util.Log(ctx).WithFields(map[string]any{
			"type":    env.Type,
			"user_id": conn.UserID(),
		}).Debug("post action received, behavior not implemented")
		return nil
	default:
		return ErrUnknownAction
	}
}
