package models

// EnrollRequest is the body of POST /users
type EnrollRequest struct {
	Username string `json:"username" form:"username"`
	OrgName  string `json:"orgName" form:"orgName"`
}

// EnrollResponse is returned by a successful enrollment
type EnrollResponse struct {
	Success bool   `json:"success"`
	Secret  string `json:"secret,omitempty"`
	Message string `json:"message"`
	Token   string `json:"token"`
}

// CreateChannelRequest is the body of POST /channels
type CreateChannelRequest struct {
	ChannelName       string `json:"channelName" form:"channelName"`
	ChannelConfigPath string `json:"channelConfigPath" form:"channelConfigPath"`
}

// JoinChannelRequest is the body of POST /channels/:channelName/peers
type JoinChannelRequest struct {
	Peers []string `json:"peers" form:"peers"`
}

// AnchorPeersRequest is the body of POST /channels/:channelName/anchorpeers
type AnchorPeersRequest struct {
	ConfigUpdatePath string `json:"configUpdatePath" form:"configUpdatePath"`
}

// InstallChaincodeRequest is the body of POST /chaincodes
type InstallChaincodeRequest struct {
	Peers            []string `json:"peers"`
	ChaincodeName    string   `json:"chaincodeName"`
	ChaincodePath    string   `json:"chaincodePath"`
	ChaincodeVersion string   `json:"chaincodeVersion"`
	ChaincodeType    string   `json:"chaincodeType"`
}

// DeployChaincodeRequest is the body of the instantiate and upgrade endpoints.
// ChaincodePath defaults to the chaincode name.
type DeployChaincodeRequest struct {
	Peers            []string `json:"peers"`
	ChaincodeName    string   `json:"chaincodeName"`
	ChaincodePath    string   `json:"chaincodePath,omitempty"`
	ChaincodeVersion string   `json:"chaincodeVersion"`
	ChaincodeType    string   `json:"chaincodeType"`
	Fcn              string   `json:"fcn"`
	Args             []string `json:"args"`
}

// InvokeRequest is the body of the chaincode invoke endpoints
type InvokeRequest struct {
	Peers []string `json:"peers"`
	Fcn   string   `json:"fcn"`
	Args  []string `json:"args"`
}

// WalletRequest is the body of POST /channels/:channelName/wallet/:username
type WalletRequest struct {
	Path    string `json:"path" form:"path"`
	OrgName string `json:"orgName" form:"orgName"`
}

// WalletInvokeRequest is the body of POST /channels/:channelName/wallet/:username/invoke
type WalletInvokeRequest struct {
	Path          string   `json:"path"`
	OrgName       string   `json:"orgName"`
	ChaincodeName string   `json:"chaincodeName"`
	Fcn           string   `json:"fcn,omitempty"`
	Args          []string `json:"args,omitempty"`
}

// WalletResponse is the body returned by the wallet provisioning endpoint
type WalletResponse struct {
	Message string `json:"Message"`
	Path    string `json:"Path"`
}

// WalletInvokeFailure is the body returned when a wallet invoke fails
type WalletInvokeFailure struct {
	Message       string `json:"Message"`
	Path          string `json:"Path"`
	UserName      string `json:"UserName"`
	ChaincodeName string `json:"ChaincodeName,omitempty"`
	Channel       string `json:"Channel,omitempty"`
}

// ErrorResponse is the body of a validation or ledger failure
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
