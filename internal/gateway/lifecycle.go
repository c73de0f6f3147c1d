package gateway

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/evidenceledger/ledgergateway/internal/ledger"
	"github.com/evidenceledger/ledgergateway/internal/models"
)

// InstallChaincode packages a chaincode and installs it on the target peers
func (s *Server) InstallChaincode(c *fiber.Ctx) error {
	var req models.InstallChaincodeRequest
	if err := c.BodyParser(&req); err != nil {
		slog.Debug("Cannot parse body", "error", err)
	}

	slog.Debug("Install chaincode", "peers", req.Peers, "chaincode", req.ChaincodeName,
		"path", req.ChaincodePath, "version", req.ChaincodeVersion, "type", req.ChaincodeType)

	switch {
	case len(req.Peers) == 0:
		return invalidField(c, "peers")
	case req.ChaincodeName == "":
		return invalidField(c, "chaincodeName")
	case req.ChaincodePath == "":
		return invalidField(c, "chaincodePath")
	case req.ChaincodeVersion == "":
		return invalidField(c, "chaincodeVersion")
	case req.ChaincodeType == "":
		return invalidField(c, "chaincodeType")
	}

	spec := ledger.ChaincodeSpec{
		Name:    req.ChaincodeName,
		Path:    req.ChaincodePath,
		Version: req.ChaincodeVersion,
		Type:    req.ChaincodeType,
	}
	results, err := s.deps.Ledger.InstallChaincode(c.UserContext(), caller(c), spec, req.Peers)
	if err != nil {
		return ledgerFailure(c, "installChaincode", err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": fmt.Sprintf("Successfully installed chaincode %s:%s", req.ChaincodeName, req.ChaincodeVersion),
		"results": results,
	})
}

// InstantiateChaincode instantiates an installed chaincode on a channel
func (s *Server) InstantiateChaincode(c *fiber.Ctx) error {
	channelName := c.Params("channelName")

	var req models.DeployChaincodeRequest
	if err := c.BodyParser(&req); err != nil {
		slog.Debug("Cannot parse body", "error", err)
	}

	slog.Debug("Instantiate chaincode", "channel", channelName, "chaincode", req.ChaincodeName,
		"version", req.ChaincodeVersion, "type", req.ChaincodeType, "fcn", req.Fcn)

	switch {
	case req.ChaincodeName == "":
		return invalidField(c, "chaincodeName")
	case req.ChaincodeVersion == "":
		return invalidField(c, "chaincodeVersion")
	case channelName == "":
		return invalidField(c, "channelName")
	case req.ChaincodeType == "":
		return invalidField(c, "chaincodeType")
	case req.Args == nil:
		return invalidField(c, "args")
	}

	txID, err := s.deps.Ledger.InstantiateChaincode(c.UserContext(), caller(c), channelName,
		deploySpec(req, req.ChaincodeName), req.Fcn, req.Args, req.Peers)
	if err != nil {
		return ledgerFailure(c, "instantiateChaincode", err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": fmt.Sprintf("Successfully instantiated chaincode %s:%s on channel '%s'", req.ChaincodeName, req.ChaincodeVersion, channelName),
		"txId":    txID,
	})
}

// UpgradeChaincode moves a channel to a newly installed chaincode version.
// The chaincode is named by the path; a name in the body is ignored.
func (s *Server) UpgradeChaincode(c *fiber.Ctx) error {
	channelName := c.Params("channelName")
	chaincodeName := c.Params("chaincodeName")

	var req models.DeployChaincodeRequest
	if err := c.BodyParser(&req); err != nil {
		slog.Debug("Cannot parse body", "error", err)
	}

	slog.Debug("Upgrade chaincode", "channel", channelName, "chaincode", chaincodeName,
		"version", req.ChaincodeVersion, "type", req.ChaincodeType, "fcn", req.Fcn)

	switch {
	case channelName == "":
		return invalidField(c, "channelName")
	case chaincodeName == "":
		return invalidField(c, "chaincodeName")
	case req.ChaincodeType == "":
		return invalidField(c, "chaincodeType")
	case req.ChaincodeVersion == "":
		return invalidField(c, "chaincodeVersion")
	}

	txID, err := s.deps.Ledger.UpgradeChaincode(c.UserContext(), caller(c), channelName,
		deploySpec(req, chaincodeName), req.Fcn, req.Args, req.Peers)
	if err != nil {
		return ledgerFailure(c, "upgradeChaincode", err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": fmt.Sprintf("Successfully upgraded chaincode %s to %s on channel '%s'", chaincodeName, req.ChaincodeVersion, channelName),
		"txId":    txID,
	})
}

func deploySpec(req models.DeployChaincodeRequest, name string) ledger.ChaincodeSpec {
	return ledger.ChaincodeSpec{
		Name:    name,
		Path:    req.ChaincodePath,
		Version: req.ChaincodeVersion,
		Type:    req.ChaincodeType,
	}
}
