package gateway

import (
	"encoding/hex"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

func (s *Server) BlockByNumber(c *fiber.Ctx) error {
	number, err := strconv.ParseUint(c.Params("blockId"), 10, 64)
	if err != nil {
		return invalidField(c, "blockId")
	}

	block, err := s.deps.Ledger.BlockByNumber(c.UserContext(), caller(c), c.Params("channelName"), number, c.Query("peer"))
	if err != nil {
		return ledgerFailure(c, "queryBlock", err)
	}
	return c.JSON(block)
}

// BlockByHash looks a block up by the hex encoded hash of its header
func (s *Server) BlockByHash(c *fiber.Ctx) error {
	hash, err := hex.DecodeString(c.Query("hash"))
	if err != nil || len(hash) == 0 {
		return invalidField(c, "hash")
	}

	block, err := s.deps.Ledger.BlockByHash(c.UserContext(), caller(c), c.Params("channelName"), hash, c.Query("peer"))
	if err != nil {
		return ledgerFailure(c, "queryBlockByHash", err)
	}
	return c.JSON(block)
}

func (s *Server) Transaction(c *fiber.Ctx) error {
	txID := c.Params("trxnId")
	if txID == "" {
		return invalidField(c, "trxnId")
	}

	tx, err := s.deps.Ledger.Transaction(c.UserContext(), caller(c), c.Params("channelName"), txID, c.Query("peer"))
	if err != nil {
		return ledgerFailure(c, "queryTransaction", err)
	}
	return c.JSON(tx)
}

func (s *Server) ChainInfo(c *fiber.Ctx) error {
	info, err := s.deps.Ledger.ChainInfo(c.UserContext(), caller(c), c.Params("channelName"), c.Query("peer"))
	if err != nil {
		return ledgerFailure(c, "queryInfo", err)
	}
	return c.JSON(info)
}

func (s *Server) InstantiatedChaincodes(c *fiber.Ctx) error {
	resp, err := s.deps.Ledger.InstantiatedChaincodes(c.UserContext(), caller(c), c.Params("channelName"), c.Query("peer"))
	if err != nil {
		return ledgerFailure(c, "queryInstantiatedChaincodes", err)
	}
	return c.JSON(resp)
}

func (s *Server) InstalledChaincodes(c *fiber.Ctx) error {
	peer := c.Query("peer")
	if peer == "" {
		return invalidField(c, "peer")
	}

	resp, err := s.deps.Ledger.InstalledChaincodes(c.UserContext(), caller(c), peer)
	if err != nil {
		return ledgerFailure(c, "queryInstalledChaincodes", err)
	}
	return c.JSON(resp)
}

func (s *Server) Channels(c *fiber.Ctx) error {
	peer := c.Query("peer")
	if peer == "" {
		return invalidField(c, "peer")
	}

	resp, err := s.deps.Ledger.Channels(c.UserContext(), caller(c), peer)
	if err != nil {
		return ledgerFailure(c, "queryChannels", err)
	}
	return c.JSON(resp)
}
