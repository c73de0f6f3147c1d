package gateway

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/evidenceledger/ledgergateway/internal/errl"
	"github.com/evidenceledger/ledgergateway/internal/ledger"
	"github.com/evidenceledger/ledgergateway/internal/models"
	"github.com/evidenceledger/ledgergateway/internal/provision"
	"github.com/evidenceledger/ledgergateway/internal/wallet"
)

// Defaults of the wallet invoke when the body names no function
const (
	defaultWalletFcn = "invokeTest"
	defaultWalletArg = "invokeTest"
)

// ProvisionWallet imports the identity of the user into the wallet at the
// requested path
func (s *Server) ProvisionWallet(c *fiber.Ctx) error {
	username := c.Params("username")

	var req models.WalletRequest
	if err := c.BodyParser(&req); err != nil {
		slog.Debug("Cannot parse body", "error", err)
	}

	if username == "" {
		return invalidField(c, "username")
	}
	if req.Path == "" {
		return invalidField(c, "path")
	}
	if req.OrgName == "" {
		return invalidField(c, "orgName")
	}

	res, err := s.deps.Provisioner.Provision(c.UserContext(), req.Path, username, req.OrgName)
	if err != nil {
		// detail was logged by the provisioner
		return c.Status(fiber.StatusNotFound).JSON(models.WalletResponse{
			Message: "Unable to find the path specified",
			Path:    req.Path,
		})
	}

	msg := "Successfully imported " + res.Label + " into the wallet"
	if res.Status == provision.StatusAlreadyPresent {
		msg = "An identity for the user " + username + " already exists in the wallet"
	}

	return c.JSON(models.WalletResponse{
		Message: msg,
		Path:    res.Path,
	})
}

// WalletInvoke submits a transaction signed by the identity in the wallet at
// the requested path, over a session opened for this request only
func (s *Server) WalletInvoke(c *fiber.Ctx) error {
	channelName := c.Params("channelName")
	username := c.Params("username")

	var req models.WalletInvokeRequest
	if err := c.BodyParser(&req); err != nil {
		slog.Debug("Cannot parse body", "error", err)
	}

	if req.Path == "" {
		return invalidField(c, "path")
	}
	if req.OrgName == "" {
		return invalidField(c, "orgName")
	}
	if req.ChaincodeName == "" {
		return invalidField(c, "chaincodeName")
	}

	fcn, args := req.Fcn, req.Args
	if fcn == "" {
		fcn = defaultWalletFcn
		if len(args) == 0 {
			args = []string{defaultWalletArg}
		}
	}

	result, err := s.submitWithWallet(c, req.Path, username, req.OrgName, channelName, req.ChaincodeName, fcn, args)
	if err != nil {
		slog.Error("Wallet invoke failed", "wallet", req.Path, "username", username, "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(models.WalletInvokeFailure{
			Message:       "Failed to submit transaction",
			Path:          req.Path,
			UserName:      username,
			ChaincodeName: req.ChaincodeName,
			Channel:       channelName,
		})
	}

	return c.Send(result)
}

func (s *Server) submitWithWallet(c *fiber.Ctx, walletPath, username, orgName, channelName, chaincodeName, fcn string, args []string) ([]byte, error) {
	if !s.deps.Wallets.Exists(walletPath) {
		return nil, errl.Errorf("no wallet at %s", walletPath)
	}

	store, err := s.deps.Wallets.Open(walletPath)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	id, err := store.Identity(wallet.Label(username, orgName, s.cfg.Domain))
	if err != nil {
		return nil, err
	}

	profile, err := ledger.LoadProfile(s.cfg.ProfilePath)
	if err != nil {
		return nil, err
	}

	session, err := s.deps.Connector.Connect(c.UserContext(), profile, ledger.SessionOptions{
		Identity:    id,
		Discovery:   false,
		AsLocalhost: true,
	})
	if err != nil {
		return nil, err
	}
	defer session.Close()

	return session.Submit(c.UserContext(), channelName, chaincodeName, fcn, args...)
}
