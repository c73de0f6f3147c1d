package gateway

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evidenceledger/ledgergateway/internal/ledger"
	"github.com/evidenceledger/ledgergateway/internal/middleware"
)

func TestInstallChaincode(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodPost, "/chaincodes", env.token(t), map[string]any{
		"peers":            []string{"peer0.org1.example.com", "peer1.org1.example.com"},
		"chaincodeName":    "fabcar",
		"chaincodePath":    "github.com/fabcar/go",
		"chaincodeVersion": "1",
		"chaincodeType":    "golang",
	})
	assert.Equal(t, http.StatusOK, status)

	m := decode(t, body)
	assert.Equal(t, true, m["success"])
	assert.Equal(t, "Successfully installed chaincode fabcar:1", m["message"])
	assert.Len(t, m["results"], 2)

	require.Len(t, env.ledger.installs, 1)
	assert.Equal(t, ledger.ChaincodeSpec{Name: "fabcar", Path: "github.com/fabcar/go", Version: "1", Type: "golang"}, env.ledger.installs[0])
}

func TestInstallChaincodeValidation(t *testing.T) {
	full := func() map[string]any {
		return map[string]any{
			"peers":            []string{"peer0.org1.example.com"},
			"chaincodeName":    "fabcar",
			"chaincodePath":    "github.com/fabcar/go",
			"chaincodeVersion": "1",
			"chaincodeType":    "golang",
		}
	}

	tests := []struct {
		field string
		edit  func(map[string]any)
	}{
		{"peers", func(b map[string]any) { delete(b, "peers") }},
		{"peers", func(b map[string]any) { b["peers"] = []string{} }},
		{"chaincodeName", func(b map[string]any) { delete(b, "chaincodeName") }},
		{"chaincodePath", func(b map[string]any) { delete(b, "chaincodePath") }},
		{"chaincodeVersion", func(b map[string]any) { delete(b, "chaincodeVersion") }},
		{"chaincodeType", func(b map[string]any) { delete(b, "chaincodeType") }},
		// the first missing field is reported
		{"chaincodeName", func(b map[string]any) { delete(b, "chaincodeName"); delete(b, "chaincodeType") }},
	}

	env := newTestEnv(t)
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			body := full()
			tt.edit(body)
			_, out := env.do(t, http.MethodPost, "/chaincodes", env.token(t), body)
			m := decode(t, out)
			assert.Equal(t, false, m["success"])
			assert.Equal(t, "'"+tt.field+"' field is missing or Invalid in the request", m["message"])
		})
	}
	assert.Empty(t, env.ledger.installs)
}

func TestInstallChaincodeRequiresToken(t *testing.T) {
	env := newTestEnv(t)

	_, body := env.do(t, http.MethodPost, "/chaincodes", "", map[string]any{"chaincodeName": "fabcar"})
	m := decode(t, body)
	assert.Equal(t, false, m["success"])
	assert.Equal(t, middleware.AuthFailureMessage, m["message"])
	assert.Empty(t, env.ledger.installs)
}

func TestInstantiateChaincode(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodPost, "/channels/mychannel/chaincodes", env.token(t), map[string]any{
		"peers":            []string{"peer0.org1.example.com"},
		"chaincodeName":    "fabcar",
		"chaincodeVersion": "1",
		"chaincodeType":    "golang",
		"fcn":              "initLedger",
		"args":             []string{},
	})
	assert.Equal(t, http.StatusOK, status)

	m := decode(t, body)
	assert.Equal(t, true, m["success"])
	assert.Equal(t, "tx-instantiate", m["txId"])

	require.Len(t, env.ledger.deploys, 1)
	call := env.ledger.deploys[0]
	assert.Equal(t, "instantiate", call.op)
	assert.Equal(t, "mychannel", call.channel)
	assert.Equal(t, "fabcar", call.spec.Name)
	assert.Equal(t, "1", call.spec.Version)
	assert.Equal(t, "initLedger", call.fcn)
	assert.Equal(t, []string{}, call.args)
	assert.Equal(t, []string{"peer0.org1.example.com"}, call.peers)
}

func TestInstantiateChaincodeValidation(t *testing.T) {
	tests := []struct {
		field string
		body  map[string]any
	}{
		{"chaincodeName", map[string]any{"chaincodeVersion": "1", "chaincodeType": "golang", "args": []string{}}},
		{"chaincodeVersion", map[string]any{"chaincodeName": "fabcar", "chaincodeType": "golang", "args": []string{}}},
		{"chaincodeType", map[string]any{"chaincodeName": "fabcar", "chaincodeVersion": "1", "args": []string{}}},
		{"args", map[string]any{"chaincodeName": "fabcar", "chaincodeVersion": "1", "chaincodeType": "golang"}},
	}

	env := newTestEnv(t)
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			_, out := env.do(t, http.MethodPost, "/channels/mychannel/chaincodes", env.token(t), tt.body)
			assert.Equal(t, "'"+tt.field+"' field is missing or Invalid in the request", decode(t, out)["message"])
		})
	}
	assert.Empty(t, env.ledger.deploys)
}

func TestUpgradeChaincode(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodPost, "/channels/mychannel/chaincode/fabcar/upgrade", env.token(t), map[string]any{
		"chaincodeName":    "ignored",
		"chaincodeVersion": "2",
		"chaincodeType":    "golang",
		"fcn":              "migrate",
		"args":             []string{"v2"},
	})
	assert.Equal(t, http.StatusOK, status)

	m := decode(t, body)
	assert.Equal(t, true, m["success"])
	assert.Equal(t, "tx-upgrade", m["txId"])

	require.Len(t, env.ledger.deploys, 1)
	call := env.ledger.deploys[0]
	assert.Equal(t, "upgrade", call.op)
	assert.Equal(t, "fabcar", call.spec.Name)
	assert.Equal(t, "2", call.spec.Version)
	assert.Equal(t, "migrate", call.fcn)
	assert.Equal(t, []string{"v2"}, call.args)
	assert.Empty(t, call.peers)
}

func TestUpgradeChaincodeValidation(t *testing.T) {
	tests := []struct {
		field string
		body  map[string]any
	}{
		{"chaincodeType", map[string]any{"chaincodeVersion": "2"}},
		{"chaincodeVersion", map[string]any{"chaincodeType": "golang"}},
		{"chaincodeType", map[string]any{}},
	}

	env := newTestEnv(t)
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			_, out := env.do(t, http.MethodPost, "/channels/mychannel/chaincode/fabcar/upgrade", env.token(t), tt.body)
			m := decode(t, out)
			assert.Equal(t, false, m["success"])
			assert.Equal(t, "'"+tt.field+"' field is missing or Invalid in the request", m["message"])
		})
	}
	assert.Empty(t, env.ledger.deploys)
}

func TestChaincodeLifecycleLedgerFailure(t *testing.T) {
	env := newTestEnv(t)
	env.ledger.deployErr = errors.New("chaincode fabcar:1 not installed")

	tests := []struct {
		target string
		body   map[string]any
	}{
		{"/chaincodes", map[string]any{"peers": []string{"p"}, "chaincodeName": "fabcar", "chaincodePath": "cc", "chaincodeVersion": "1", "chaincodeType": "golang"}},
		{"/channels/mychannel/chaincodes", map[string]any{"chaincodeName": "fabcar", "chaincodeVersion": "1", "chaincodeType": "golang", "args": []string{}}},
		{"/channels/mychannel/chaincode/fabcar/upgrade", map[string]any{"chaincodeVersion": "1", "chaincodeType": "golang"}},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			_, out := env.do(t, http.MethodPost, tt.target, env.token(t), tt.body)
			m := decode(t, out)
			assert.Equal(t, false, m["success"])
			assert.Equal(t, "chaincode fabcar:1 not installed", m["message"])
		})
	}
}
