package models

import (
	"time"
)

// Identity is an X.509 identity row as stored by the SQL wallet backend
type Identity struct {
	ID          int       `json:"id"`
	WalletPath  string    `json:"wallet_path"`
	Label       string    `json:"label"`
	MSPID       string    `json:"msp_id"`
	Certificate string    `json:"certificate"`
	PrivateKey  string    `json:"-"` // Never expose in JSON
	CreatedAt   time.Time `json:"created_at"`
}
