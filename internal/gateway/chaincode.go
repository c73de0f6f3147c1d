package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/evidenceledger/ledgergateway/internal/metadata"
	"github.com/evidenceledger/ledgergateway/internal/middleware"
	"github.com/evidenceledger/ledgergateway/internal/models"
)

// Query types selected with ?type=
const (
	typeUploadData = "uploadData"
	typeDecrypt    = "decrypt"
)

// fcnQueryAsset is the chaincode function whose results go through selective disclosure
const fcnQueryAsset = "queryAsset"

// parseInvoke reads and validates an invoke request
func parseInvoke(c *fiber.Ctx) (*models.InvokeRequest, string, bool) {
	var req models.InvokeRequest
	if err := c.BodyParser(&req); err != nil {
		slog.Debug("Cannot parse body", "error", err)
	}

	switch {
	case c.Params("chaincodeName") == "":
		return nil, "chaincodeName", false
	case c.Params("channelName") == "":
		return nil, "channelName", false
	case req.Fcn == "":
		return nil, "fcn", false
	case req.Args == nil:
		return nil, "args", false
	}
	return &req, "", true
}

// Invoke submits a chaincode transaction. With ?type=uploadData the last
// argument is a resource locator whose metadata is appended to the arguments
// first; the transaction is not sent when that fails.
func (s *Server) Invoke(c *fiber.Ctx) error {
	req, field, ok := parseInvoke(c)
	if !ok {
		return invalidField(c, field)
	}

	channelName := c.Params("channelName")
	chaincodeName := c.Params("chaincodeName")
	args := req.Args

	slog.Debug("Invoke", "channel", channelName, "chaincode", chaincodeName, "fcn", req.Fcn, "args", len(args))

	if c.Query("type") == typeUploadData {
		key := c.Query("key")
		if key == "" {
			return invalidField(c, "key")
		}

		augmented, err := s.deps.Extractor.AugmentArgs(c.UserContext(), args, key, middleware.RawToken(c))
		if err != nil {
			slog.Error("Upload rejected", "chaincode", chaincodeName, "error", err)
			msg := "Failed to prepare the upload"
			if errors.Is(err, metadata.ErrExtraction) {
				msg = "Unable to extract metadata from the resource"
			}
			return c.Status(fiber.StatusUnprocessableEntity).JSON(models.ErrorResponse{
				Success: false,
				Message: msg,
			})
		}
		args = augmented
	}

	return s.invoke(c, channelName, chaincodeName, req.Fcn, args, req.Peers)
}

// InvokePrivateData submits a transaction touching a private data collection,
// named by the second argument
func (s *Server) InvokePrivateData(c *fiber.Ctx) error {
	req, field, ok := parseInvoke(c)
	if !ok {
		return invalidField(c, field)
	}

	if len(req.Args) > 1 {
		slog.Debug("Private data invoke", "collection", req.Args[1])
	}

	return s.invoke(c, c.Params("channelName"), c.Params("chaincodeName"), req.Fcn, req.Args, req.Peers)
}

func (s *Server) invoke(c *fiber.Ctx, channelName, chaincodeName, fcn string, args, peers []string) error {
	res, err := s.deps.Ledger.Invoke(c.UserContext(), caller(c), channelName, chaincodeName, fcn, args, peers)
	if err != nil {
		return ledgerFailure(c, "invoke", err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Successfully invoked the chaincode '" + chaincodeName + "' to the channel '" + channelName + "'",
		"txId":    res.TxID,
		"result":  string(res.Payload),
	})
}

// parseArgs decodes the args query parameter, a JSON array in which single
// quotes stand for double quotes
func parseArgs(raw string) ([]string, bool) {
	if raw == "" {
		return nil, false
	}
	var args []string
	if err := json.Unmarshal([]byte(strings.ReplaceAll(raw, "'", `"`)), &args); err != nil {
		return nil, false
	}
	return args, true
}

// Query evaluates a chaincode function. With ?type=decrypt&fcn=queryAsset the
// result goes through selective disclosure with the caller key.
func (s *Server) Query(c *fiber.Ctx) error {
	channelName := c.Params("channelName")
	chaincodeName := c.Params("chaincodeName")
	fcn := c.Query("fcn")
	peer := c.Query("peer")

	if chaincodeName == "" {
		return invalidField(c, "chaincodeName")
	}
	if channelName == "" {
		return invalidField(c, "channelName")
	}
	if fcn == "" {
		return invalidField(c, "fcn")
	}
	args, ok := parseArgs(c.Query("args"))
	if !ok {
		return invalidField(c, "args")
	}

	reveal := c.Query("type") == typeDecrypt && fcn == fcnQueryAsset
	key := c.Query("key")
	if reveal && key == "" {
		return invalidField(c, "key")
	}

	payload, err := s.deps.Ledger.Query(c.UserContext(), caller(c), channelName, chaincodeName, fcn, args, peer)
	if err != nil {
		return ledgerFailure(c, "query", err)
	}

	if !reveal {
		return c.Send(payload)
	}

	res := s.deps.Filter.Reveal(payload, key)
	return s.deps.Presenter.Present(c, res, key)
}
