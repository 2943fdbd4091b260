// models/wallet.go
package models

import "time"

type WalletType string

const (
	WalletPera    WalletType = "pera"
	WalletMyAlgo  WalletType = "myalgo"
	WalletConnect WalletType = "walletconnect"
)

// ConnectedWallet links an Algorand address to a user.
// Mirrored from the wallet service by the sync worker; address is the lookup key.
type ConnectedWallet struct {
	ID            string     `gorm:"primaryKey;type:uuid;not null" json:"id"`
	UserID        string     `gorm:"type:varchar(64);not null;index" json:"user_id"`
	WalletAddress string     `gorm:"type:varchar(128);not null;uniqueIndex" json:"wallet_address"`
	WalletType    WalletType `gorm:"type:varchar(32);not null" json:"wallet_type"`
	IsPrimary     bool       `gorm:"not null" json:"is_primary"`
	CreatedAt     time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"not null" json:"updated_at"`
}
