package ledger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	pb "github.com/hyperledger/fabric-protos-go/peer"
	"github.com/hyperledger/fabric-sdk-go/pkg/client/resmgmt"
	"github.com/hyperledger/fabric-sdk-go/pkg/common/providers/fab"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChaincodeLang(t *testing.T) {
	tests := []struct {
		ccType string
		want   pb.ChaincodeSpec_Type
		err    bool
	}{
		{"golang", pb.ChaincodeSpec_GOLANG, false},
		{"GOLANG", pb.ChaincodeSpec_GOLANG, false},
		{"node", pb.ChaincodeSpec_NODE, false},
		{"java", pb.ChaincodeSpec_JAVA, false},
		{"car", pb.ChaincodeSpec_UNDEFINED, true},
		{"", pb.ChaincodeSpec_UNDEFINED, true},
	}

	for _, tt := range tests {
		t.Run(tt.ccType, func(t *testing.T) {
			lang, err := chaincodeLang(tt.ccType)
			if tt.err {
				assert.True(t, errors.Is(err, ErrChaincodeType))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, lang)
		})
	}
}

func TestPackageChaincode(t *testing.T) {
	goPath := t.TempDir()
	src := filepath.Join(goPath, "src", "github.com", "asset")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0o644))

	nodeDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(nodeDir, "package.json"), []byte(`{"name":"asset"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(nodeDir, "index.js"), []byte("module.exports = {}\n"), 0o644))

	tests := []struct {
		name     string
		spec     ChaincodeSpec
		wantType pb.ChaincodeSpec_Type
		err      bool
	}{
		{"go under goPath", ChaincodeSpec{Name: "asset", Path: "github.com/asset", Type: "golang"}, pb.ChaincodeSpec_GOLANG, false},
		{"node directory", ChaincodeSpec{Name: "asset", Path: nodeDir, Type: "node"}, pb.ChaincodeSpec_NODE, false},
		{"go path outside goPath", ChaincodeSpec{Name: "asset", Path: "github.com/missing", Type: "golang"}, 0, true},
		{"empty path", ChaincodeSpec{Name: "asset", Type: "golang"}, 0, true},
		{"unknown type", ChaincodeSpec{Name: "asset", Path: nodeDir, Type: "car"}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkg, err := packageChaincode(tt.spec, goPath)
			if tt.err {
				assert.Error(t, err)
				assert.Nil(t, pkg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, pkg.Type)
			assert.NotEmpty(t, pkg.Code)
		})
	}
}

func TestInitArgs(t *testing.T) {
	assert.Equal(t, []string{"init", "a", "100"}, initArgs("init", []string{"a", "100"}))
	assert.Equal(t, []string{"a"}, initArgs("", []string{"a"}))
	assert.Equal(t, []string{"init"}, initArgs("init", nil))
}

type fakeSaver struct {
	req  resmgmt.SaveChannelRequest
	resp resmgmt.SaveChannelResponse
	err  error
}

func (f *fakeSaver) SaveChannel(req resmgmt.SaveChannelRequest, _ ...resmgmt.RequestOption) (resmgmt.SaveChannelResponse, error) {
	f.req = req
	return f.resp, f.err
}

func TestSubmitChannelConfig(t *testing.T) {
	tests := []struct {
		name    string
		saver   *fakeSaver
		wantTx  string
		wantErr string
	}{
		{"returns the transaction id", &fakeSaver{resp: resmgmt.SaveChannelResponse{TransactionID: fab.TransactionID("tx-42")}}, "tx-42", ""},
		{"wraps the failure", &fakeSaver{err: errors.New("BAD_REQUEST")}, "", "createChannel mychannel failed: BAD_REQUEST"},
	}

	c := &Client{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txID, err := c.submitChannelConfig(context.Background(), tt.saver, "createChannel", "mychannel", "./channel.tx")
			assert.Equal(t, resmgmt.SaveChannelRequest{ChannelID: "mychannel", ChannelConfigPath: "./channel.tx"}, tt.saver.req)
			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTx, txID)
		})
	}
}
