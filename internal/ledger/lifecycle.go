package ledger

import (
	"context"
	"log/slog"
	"strings"

	pb "github.com/hyperledger/fabric-protos-go/peer"
	"github.com/hyperledger/fabric-sdk-go/pkg/client/resmgmt"
	"github.com/hyperledger/fabric-sdk-go/pkg/fab/ccpackager/gopackager"
	"github.com/hyperledger/fabric-sdk-go/pkg/fab/ccpackager/javapackager"
	"github.com/hyperledger/fabric-sdk-go/pkg/fab/ccpackager/nodepackager"
	"github.com/hyperledger/fabric-sdk-go/pkg/fab/resource"
	"github.com/hyperledger/fabric-sdk-go/pkg/fabsdk"
	"github.com/hyperledger/fabric-sdk-go/third_party/github.com/hyperledger/fabric/common/policydsl"
	"github.com/pkg/errors"
)

// ErrChaincodeType is returned for a chaincode language the packagers do not know
var ErrChaincodeType = errors.New("unsupported chaincode type")

// ChaincodeSpec names a chaincode package for the legacy lifecycle
type ChaincodeSpec struct {
	Name    string
	Path    string
	Version string
	Type    string
}

// InstallResult is the outcome of installing a chaincode on one peer
type InstallResult struct {
	Target string `json:"target"`
	Status int32  `json:"status"`
	Info   string `json:"info,omitempty"`
}

// chaincodeLang maps the request type to the chaincode language
func chaincodeLang(ccType string) (pb.ChaincodeSpec_Type, error) {
	switch strings.ToLower(ccType) {
	case "golang", "go":
		return pb.ChaincodeSpec_GOLANG, nil
	case "node":
		return pb.ChaincodeSpec_NODE, nil
	case "java":
		return pb.ChaincodeSpec_JAVA, nil
	}
	return pb.ChaincodeSpec_UNDEFINED, errors.Wrap(ErrChaincodeType, ccType)
}

// packageChaincode builds the deployment package of spec. Go chaincode paths
// are resolved under goPath/src; node and java paths are directories.
func packageChaincode(spec ChaincodeSpec, goPath string) (*resource.CCPackage, error) {
	lang, err := chaincodeLang(spec.Type)
	if err != nil {
		return nil, err
	}

	var pkg *resource.CCPackage
	switch lang {
	case pb.ChaincodeSpec_GOLANG:
		pkg, err = gopackager.NewCCPackage(spec.Path, goPath)
	case pb.ChaincodeSpec_NODE:
		pkg, err = nodepackager.NewCCPackage(spec.Path)
	default:
		pkg, err = javapackager.NewCCPackage(spec.Path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to package chaincode %s", spec.Name)
	}
	return pkg, nil
}

// InstallChaincode packages the chaincode and installs it on peers. A peer
// that already has the same name and version reports success.
func (c *Client) InstallChaincode(ctx context.Context, caller Caller, spec ChaincodeSpec, peers []string) ([]InstallResult, error) {
	pkg, err := packageChaincode(spec, c.goPath)
	if err != nil {
		return nil, err
	}

	rc, err := c.resourceClient(caller)
	if err != nil {
		return nil, err
	}

	resps, err := rc.InstallCC(resmgmt.InstallCCRequest{
		Name:    spec.Name,
		Path:    spec.Path,
		Version: spec.Version,
		Package: pkg,
	}, resmgmt.WithTargetEndpoints(peers...), resmgmt.WithParentContext(ctx))
	c.metrics.LedgerCall("installChaincode", err)
	if err != nil {
		return nil, errors.Wrapf(err, "installing %s:%s failed", spec.Name, spec.Version)
	}

	results := make([]InstallResult, len(resps))
	for i, r := range resps {
		results[i] = InstallResult{Target: r.Target, Status: r.Status, Info: r.Info}
	}
	slog.Info("chaincode installed", "chaincode", spec.Name, "version", spec.Version, "peers", len(results))
	return results, nil
}

// InstantiateChaincode instantiates an installed chaincode on a channel and
// calls fcn with args as its init function
func (c *Client) InstantiateChaincode(ctx context.Context, caller Caller, channelName string, spec ChaincodeSpec, fcn string, args, peers []string) (string, error) {
	req, rc, err := c.deployRequest(caller, spec, fcn, args)
	if err != nil {
		return "", err
	}
	resp, err := rc.InstantiateCC(channelName, req, deployOpts(ctx, peers)...)
	c.metrics.LedgerCall("instantiateChaincode", err)
	if err != nil {
		return "", errors.Wrapf(err, "instantiating %s on %s failed", spec.Name, channelName)
	}
	return string(resp.TransactionID), nil
}

// UpgradeChaincode moves a channel to a newly installed chaincode version
func (c *Client) UpgradeChaincode(ctx context.Context, caller Caller, channelName string, spec ChaincodeSpec, fcn string, args, peers []string) (string, error) {
	req, rc, err := c.deployRequest(caller, spec, fcn, args)
	if err != nil {
		return "", err
	}
	resp, err := rc.UpgradeCC(channelName, resmgmt.UpgradeCCRequest(req), deployOpts(ctx, peers)...)
	c.metrics.LedgerCall("upgradeChaincode", err)
	if err != nil {
		return "", errors.Wrapf(err, "upgrading %s on %s failed", spec.Name, channelName)
	}
	return string(resp.TransactionID), nil
}

// deployRequest builds an instantiate request endorsed by any member of the
// caller's organization. The init function goes first in the arguments.
func (c *Client) deployRequest(caller Caller, spec ChaincodeSpec, fcn string, args []string) (resmgmt.InstantiateCCRequest, *resmgmt.Client, error) {
	lang, err := chaincodeLang(spec.Type)
	if err != nil {
		return resmgmt.InstantiateCCRequest{}, nil, err
	}

	cctx, err := c.sdk.Context(fabsdk.WithUser(caller.Username), c.clientContext(caller))()
	if err != nil {
		return resmgmt.InstantiateCCRequest{}, nil, errors.Wrapf(err, "failed to load identity of %s", caller.Username)
	}

	rc, err := c.resourceClient(caller)
	if err != nil {
		return resmgmt.InstantiateCCRequest{}, nil, err
	}

	path := spec.Path
	if path == "" {
		path = spec.Name
	}

	return resmgmt.InstantiateCCRequest{
		Name:    spec.Name,
		Path:    path,
		Version: spec.Version,
		Lang:    lang,
		Args:    toByteArgs(initArgs(fcn, args)),
		Policy:  policydsl.SignedByMspMember(cctx.Identifier().MSPID),
	}, rc, nil
}

// initArgs prepends the init function to its arguments
func initArgs(fcn string, args []string) []string {
	if fcn == "" {
		return args
	}
	return append([]string{fcn}, args...)
}

func deployOpts(ctx context.Context, peers []string) []resmgmt.RequestOption {
	opts := []resmgmt.RequestOption{resmgmt.WithParentContext(ctx)}
	if len(peers) > 0 {
		opts = append(opts, resmgmt.WithTargetEndpoints(peers...))
	}
	return opts
}
