package ledger

import (
	"context"
	"log/slog"
	"strings"

	"github.com/hyperledger/fabric-protos-go/common"
	pb "github.com/hyperledger/fabric-protos-go/peer"
	"github.com/hyperledger/fabric-sdk-go/pkg/client/channel"
	ledgerclient "github.com/hyperledger/fabric-sdk-go/pkg/client/ledger"
	mspclient "github.com/hyperledger/fabric-sdk-go/pkg/client/msp"
	"github.com/hyperledger/fabric-sdk-go/pkg/client/resmgmt"
	"github.com/hyperledger/fabric-sdk-go/pkg/common/providers/fab"
	"github.com/hyperledger/fabric-sdk-go/pkg/core/config"
	"github.com/hyperledger/fabric-sdk-go/pkg/fabsdk"
	"github.com/pkg/errors"

	"github.com/evidenceledger/ledgergateway/internal/metrics"
)

// Caller is the enrolled user a pass-through call runs as
type Caller struct {
	Username string
	OrgName  string
}

// Enrollment is the outcome of enrolling a user with the organization CA
type Enrollment struct {
	Secret   string
	Existing bool
}

// InvokeResult is the outcome of an ordered transaction
type InvokeResult struct {
	TxID    string
	Payload []byte
}

// Client runs the operations that act as an enrolled SDK user rather than a
// wallet identity: enrollment, channel administration, invoke and query, and
// ledger inspection.
type Client struct {
	sdk     *fabsdk.FabricSDK
	metrics *metrics.Metrics
	// goPath is the root Go chaincode paths are resolved under
	goPath string
}

// NewClient initializes the SDK from the connection profile at profilePath
func NewClient(profilePath, goPath string, m *metrics.Metrics) (*Client, error) {
	sdk, err := fabsdk.New(config.FromFile(profilePath))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create SDK from %s", profilePath)
	}
	return &Client{sdk: sdk, metrics: m, goPath: goPath}, nil
}

func (c *Client) Close() {
	c.sdk.Close()
}

func (c *Client) clientContext(caller Caller) fabsdk.ContextOption {
	return fabsdk.WithOrg(caller.OrgName)
}

// Enroll registers and enrolls username with the CA of orgName. A user the
// CA already knows is reported as Existing and not enrolled again.
func (c *Client) Enroll(ctx context.Context, username, orgName string) (*Enrollment, error) {
	mspClient, err := mspclient.New(c.sdk.Context(), mspclient.WithOrg(orgName))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create msp client for %s", orgName)
	}

	if _, err := mspClient.GetSigningIdentity(username); err == nil {
		slog.Debug("user already enrolled", "username", username, "org", orgName)
		return &Enrollment{Existing: true}, nil
	} else if err != mspclient.ErrUserNotFound {
		return nil, errors.Wrapf(err, "failed to look up %s", username)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	secret, err := mspClient.Register(&mspclient.RegistrationRequest{
		Name:        username,
		Type:        "client",
		Affiliation: strings.ToLower(orgName) + ".department1",
	})
	c.metrics.LedgerCall("register", err)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to register %s", username)
	}

	err = mspClient.Enroll(username, mspclient.WithSecret(secret))
	c.metrics.LedgerCall("enroll", err)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to enroll %s", username)
	}

	slog.Info("user enrolled", "username", username, "org", orgName)
	return &Enrollment{Secret: secret}, nil
}

func (c *Client) resourceClient(caller Caller) (*resmgmt.Client, error) {
	rc, err := resmgmt.New(c.sdk.Context(fabsdk.WithUser(caller.Username), c.clientContext(caller)))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create resource management client")
	}
	return rc, nil
}

func (c *Client) channelClient(caller Caller, channelName string) (*channel.Client, error) {
	cc, err := channel.New(c.sdk.ChannelContext(channelName, fabsdk.WithUser(caller.Username), c.clientContext(caller)))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create channel client for %s", channelName)
	}
	return cc, nil
}

func (c *Client) ledgerClient(caller Caller, channelName string) (*ledgerclient.Client, error) {
	lc, err := ledgerclient.New(c.sdk.ChannelContext(channelName, fabsdk.WithUser(caller.Username), c.clientContext(caller)))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create ledger client for %s", channelName)
	}
	return lc, nil
}

// CreateChannel submits the channel creation transaction found at configPath
func (c *Client) CreateChannel(ctx context.Context, caller Caller, channelName, configPath string) (string, error) {
	return c.saveChannel(ctx, caller, "createChannel", channelName, configPath)
}

// UpdateAnchorPeers submits the anchor peer update found at configUpdatePath
func (c *Client) UpdateAnchorPeers(ctx context.Context, caller Caller, channelName, configUpdatePath string) (string, error) {
	return c.saveChannel(ctx, caller, "updateAnchorPeers", channelName, configUpdatePath)
}

// channelSaver is the part of the resource client that submits channel configuration
type channelSaver interface {
	SaveChannel(req resmgmt.SaveChannelRequest, options ...resmgmt.RequestOption) (resmgmt.SaveChannelResponse, error)
}

func (c *Client) saveChannel(ctx context.Context, caller Caller, op, channelName, path string) (string, error) {
	rc, err := c.resourceClient(caller)
	if err != nil {
		return "", err
	}
	return c.submitChannelConfig(ctx, rc, op, channelName, path)
}

func (c *Client) submitChannelConfig(ctx context.Context, rc channelSaver, op, channelName, path string) (string, error) {
	resp, err := rc.SaveChannel(
		resmgmt.SaveChannelRequest{ChannelID: channelName, ChannelConfigPath: path},
		resmgmt.WithParentContext(ctx),
	)
	c.metrics.LedgerCall(op, err)
	if err != nil {
		return "", errors.Wrapf(err, "%s %s failed", op, channelName)
	}
	return string(resp.TransactionID), nil
}

// JoinChannel joins the peers to the channel
func (c *Client) JoinChannel(ctx context.Context, caller Caller, channelName string, peers []string) error {
	rc, err := c.resourceClient(caller)
	if err != nil {
		return err
	}
	err = rc.JoinChannel(channelName,
		resmgmt.WithTargetEndpoints(peers...),
		resmgmt.WithParentContext(ctx),
	)
	c.metrics.LedgerCall("joinChannel", err)
	if err != nil {
		return errors.Wrapf(err, "joining %s failed", channelName)
	}
	return nil
}

func toByteArgs(args []string) [][]byte {
	out := make([][]byte, len(args))
	for i, a := range args {
		out[i] = []byte(a)
	}
	return out
}

// Invoke endorses and orders a chaincode transaction
func (c *Client) Invoke(ctx context.Context, caller Caller, channelName, chaincode, fcn string, args, peers []string) (*InvokeResult, error) {
	cc, err := c.channelClient(caller, channelName)
	if err != nil {
		return nil, err
	}

	opts := []channel.RequestOption{channel.WithParentContext(ctx)}
	if len(peers) > 0 {
		opts = append(opts, channel.WithTargetEndpoints(peers...))
	}

	resp, err := cc.Execute(channel.Request{
		ChaincodeID: chaincode,
		Fcn:         fcn,
		Args:        toByteArgs(args),
	}, opts...)
	c.metrics.LedgerCall("invoke", err)
	if err != nil {
		return nil, errors.Wrapf(err, "invoking %s on %s failed", fcn, chaincode)
	}
	return &InvokeResult{TxID: string(resp.TransactionID), Payload: resp.Payload}, nil
}

// Query evaluates a chaincode function on one peer
func (c *Client) Query(ctx context.Context, caller Caller, channelName, chaincode, fcn string, args []string, peer string) ([]byte, error) {
	cc, err := c.channelClient(caller, channelName)
	if err != nil {
		return nil, err
	}

	opts := []channel.RequestOption{channel.WithParentContext(ctx)}
	if peer != "" {
		opts = append(opts, channel.WithTargetEndpoints(peer))
	}

	resp, err := cc.Query(channel.Request{
		ChaincodeID: chaincode,
		Fcn:         fcn,
		Args:        toByteArgs(args),
	}, opts...)
	c.metrics.LedgerCall("query", err)
	if err != nil {
		return nil, errors.Wrapf(err, "querying %s on %s failed", fcn, chaincode)
	}
	return resp.Payload, nil
}

func ledgerOpts(ctx context.Context, peer string) []ledgerclient.RequestOption {
	opts := []ledgerclient.RequestOption{ledgerclient.WithParentContext(ctx)}
	if peer != "" {
		opts = append(opts, ledgerclient.WithTargetEndpoints(peer))
	}
	return opts
}

// BlockByNumber returns the block with the given number
func (c *Client) BlockByNumber(ctx context.Context, caller Caller, channelName string, number uint64, peer string) (*common.Block, error) {
	lc, err := c.ledgerClient(caller, channelName)
	if err != nil {
		return nil, err
	}
	block, err := lc.QueryBlock(number, ledgerOpts(ctx, peer)...)
	c.metrics.LedgerCall("queryBlock", err)
	if err != nil {
		return nil, errors.Wrapf(err, "querying block %d failed", number)
	}
	return block, nil
}

// BlockByHash returns the block with the given header hash
func (c *Client) BlockByHash(ctx context.Context, caller Caller, channelName string, hash []byte, peer string) (*common.Block, error) {
	lc, err := c.ledgerClient(caller, channelName)
	if err != nil {
		return nil, err
	}
	block, err := lc.QueryBlockByHash(hash, ledgerOpts(ctx, peer)...)
	c.metrics.LedgerCall("queryBlockByHash", err)
	if err != nil {
		return nil, errors.Wrap(err, "querying block by hash failed")
	}
	return block, nil
}

// Transaction returns a processed transaction by id
func (c *Client) Transaction(ctx context.Context, caller Caller, channelName, txID, peer string) (*pb.ProcessedTransaction, error) {
	lc, err := c.ledgerClient(caller, channelName)
	if err != nil {
		return nil, err
	}
	tx, err := lc.QueryTransaction(fab.TransactionID(txID), ledgerOpts(ctx, peer)...)
	c.metrics.LedgerCall("queryTransaction", err)
	if err != nil {
		return nil, errors.Wrapf(err, "querying transaction %s failed", txID)
	}
	return tx, nil
}

// ChainInfo returns the height and current hashes of the channel
func (c *Client) ChainInfo(ctx context.Context, caller Caller, channelName, peer string) (*fab.BlockchainInfoResponse, error) {
	lc, err := c.ledgerClient(caller, channelName)
	if err != nil {
		return nil, err
	}
	info, err := lc.QueryInfo(ledgerOpts(ctx, peer)...)
	c.metrics.LedgerCall("queryInfo", err)
	if err != nil {
		return nil, errors.Wrapf(err, "querying info of %s failed", channelName)
	}
	return info, nil
}

func resourceOpts(ctx context.Context, peer string) []resmgmt.RequestOption {
	opts := []resmgmt.RequestOption{resmgmt.WithParentContext(ctx)}
	if peer != "" {
		opts = append(opts, resmgmt.WithTargetEndpoints(peer))
	}
	return opts
}

// InstalledChaincodes lists the chaincodes installed on peer
func (c *Client) InstalledChaincodes(ctx context.Context, caller Caller, peer string) (*pb.ChaincodeQueryResponse, error) {
	rc, err := c.resourceClient(caller)
	if err != nil {
		return nil, err
	}
	resp, err := rc.QueryInstalledChaincodes(resourceOpts(ctx, peer)...)
	c.metrics.LedgerCall("queryInstalledChaincodes", err)
	if err != nil {
		return nil, errors.Wrap(err, "querying installed chaincodes failed")
	}
	return resp, nil
}

// InstantiatedChaincodes lists the chaincodes instantiated on a channel
func (c *Client) InstantiatedChaincodes(ctx context.Context, caller Caller, channelName, peer string) (*pb.ChaincodeQueryResponse, error) {
	rc, err := c.resourceClient(caller)
	if err != nil {
		return nil, err
	}
	resp, err := rc.QueryInstantiatedChaincodes(channelName, resourceOpts(ctx, peer)...)
	c.metrics.LedgerCall("queryInstantiatedChaincodes", err)
	if err != nil {
		return nil, errors.Wrapf(err, "querying instantiated chaincodes of %s failed", channelName)
	}
	return resp, nil
}

// Channels lists the channels peer has joined
func (c *Client) Channels(ctx context.Context, caller Caller, peer string) (*pb.ChannelQueryResponse, error) {
	rc, err := c.resourceClient(caller)
	if err != nil {
		return nil, err
	}
	resp, err := rc.QueryChannels(resourceOpts(ctx, peer)...)
	c.metrics.LedgerCall("queryChannels", err)
	if err != nil {
		return nil, errors.Wrap(err, "querying channels failed")
	}
	return resp, nil
}
