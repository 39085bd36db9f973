package controller

import (
	"context"
	"fmt"
)

// RecruiterController adds room origination on top of the shared core.
type RecruiterController struct {
	*Controller
}

// NewRecruiter creates the recruiter-facing controller.
func NewRecruiter(deps Deps) *RecruiterController {
	return &RecruiterController{Controller: newController(deps)}
}

// OriginateRoom creates or fetches the canonical room for a job and
// counterparty pair, registers it locally and joins it immediately so live
// events flow before the recruiter selects it. Calling it twice for the
// same pair converges on the same room. Returns the room identifier.
func (c *RecruiterController) OriginateRoom(ctx context.Context, jobID, counterpartyID string) (string, error) {
	room, err := c.api.OriginateRoom(ctx, jobID, counterpartyID)
	if err != nil {
		return "", fmt.Errorf("originate room: %w", err)
	}

	if err := c.reg.UpsertRoom(room); err != nil {
		return "", fmt.Errorf("register originated room: %w", err)
	}
	if err := c.transport.JoinRoom(room.ID); err != nil {
		c.logger.Warn().Err(err).Str("room", room.ID).Msg("join after origination failed")
	}

	c.sink.RoomsChanged()
	return room.ID, nil
}
