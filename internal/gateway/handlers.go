package gateway

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/evidenceledger/ledgergateway/internal/ledger"
	"github.com/evidenceledger/ledgergateway/internal/middleware"
	"github.com/evidenceledger/ledgergateway/internal/models"
)

// invalidField answers a request that lacks a required field. Nothing has
// been sent to the ledger or the wallet yet.
func invalidField(c *fiber.Ctx, field string) error {
	slog.Debug("Invalid request", "path", c.Path(), "field", field)
	return c.JSON(models.ErrorResponse{
		Success: false,
		Message: fmt.Sprintf("'%s' field is missing or Invalid in the request", field),
	})
}

// ledgerFailure passes a ledger error through to the client
func ledgerFailure(c *fiber.Ctx, op string, err error) error {
	slog.Error("Ledger operation failed", "op", op, "error", err)
	return c.JSON(models.ErrorResponse{
		Success: false,
		Message: err.Error(),
	})
}

// caller is the identity verified by the bearer gate
func caller(c *fiber.Ctx) ledger.Caller {
	username, orgName := middleware.Identity(c)
	return ledger.Caller{Username: username, OrgName: orgName}
}

// Enroll registers the user with the CA of the organization if needed and
// issues a bearer token for it
func (s *Server) Enroll(c *fiber.Ctx) error {
	var req models.EnrollRequest
	if err := c.BodyParser(&req); err != nil {
		slog.Debug("Cannot parse enrollment body", "error", err)
	}

	slog.Debug("End point : /users", "username", req.Username, "orgName", req.OrgName)

	if req.Username == "" {
		return invalidField(c, "username")
	}
	if req.OrgName == "" {
		return invalidField(c, "orgName")
	}

	signed, _, err := s.deps.Authority.Issue(req.Username, req.OrgName, s.cfg.TokenTTL)
	if err != nil {
		slog.Error("Failed to issue token", "error", err)
		return c.JSON(models.ErrorResponse{Success: false, Message: "Failed to issue token"})
	}

	enrollment, err := s.deps.Ledger.Enroll(c.UserContext(), req.Username, req.OrgName)
	if err != nil {
		return ledgerFailure(c, "enroll", err)
	}

	slog.Debug("Successfully enrolled the username and orgName",
		"username", req.Username, "orgName", req.OrgName, "existing", enrollment.Existing)

	return c.JSON(models.EnrollResponse{
		Success: true,
		Secret:  enrollment.Secret,
		Message: req.Username + " enrolled Successfully",
		Token:   signed,
	})
}

// CreateChannel creates a channel from a channel configuration transaction
func (s *Server) CreateChannel(c *fiber.Ctx) error {
	var req models.CreateChannelRequest
	if err := c.BodyParser(&req); err != nil {
		slog.Debug("Cannot parse body", "error", err)
	}

	if req.ChannelName == "" {
		return invalidField(c, "channelName")
	}
	if req.ChannelConfigPath == "" {
		return invalidField(c, "channelConfigPath")
	}

	txID, err := s.deps.Ledger.CreateChannel(c.UserContext(), caller(c), req.ChannelName, req.ChannelConfigPath)
	if err != nil {
		return ledgerFailure(c, "createChannel", err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Channel '" + req.ChannelName + "' created Successfully",
		"txId":    txID,
	})
}

// JoinChannel joins peers to a channel
func (s *Server) JoinChannel(c *fiber.Ctx) error {
	channelName := c.Params("channelName")

	var req models.JoinChannelRequest
	if err := c.BodyParser(&req); err != nil {
		slog.Debug("Cannot parse body", "error", err)
	}

	if channelName == "" {
		return invalidField(c, "channelName")
	}
	if len(req.Peers) == 0 {
		return invalidField(c, "peers")
	}

	if err := s.deps.Ledger.JoinChannel(c.UserContext(), caller(c), channelName, req.Peers); err != nil {
		return ledgerFailure(c, "joinChannel", err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": fmt.Sprintf("Successfully joined peers %v to the channel '%s'", req.Peers, channelName),
	})
}

// UpdateAnchorPeers applies an anchor peer update to a channel
func (s *Server) UpdateAnchorPeers(c *fiber.Ctx) error {
	channelName := c.Params("channelName")

	var req models.AnchorPeersRequest
	if err := c.BodyParser(&req); err != nil {
		slog.Debug("Cannot parse body", "error", err)
	}

	if req.ConfigUpdatePath == "" {
		return invalidField(c, "configUpdatePath")
	}

	txID, err := s.deps.Ledger.UpdateAnchorPeers(c.UserContext(), caller(c), channelName, req.ConfigUpdatePath)
	if err != nil {
		return ledgerFailure(c, "updateAnchorPeers", err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Successfully updated anchor peers for the channel '" + channelName + "'",
		"txId":    txID,
	})
}
