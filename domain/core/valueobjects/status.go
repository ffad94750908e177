package valueobjects

import (
	"fmt"
)

// VaultStatus represents the lifecycle state of a vault
type VaultStatus string

const (
	StatusActive   VaultStatus = "active"
	StatusPending  VaultStatus = "pending"
	StatusInactive VaultStatus = "inactive"
)

// ParseVaultStatus validates a wire status string
func ParseVaultStatus(s string) (VaultStatus, error) {
	switch VaultStatus(s) {
	case StatusActive, StatusPending, StatusInactive:
		return VaultStatus(s), nil
	default:
		return "", fmt.Errorf("unknown vault status %q", s)
	}
}

// String returns the wire representation of the status
func (s VaultStatus) String() string {
	return string(s)
}

// IsValid checks whether the status is one of the known states
func (s VaultStatus) IsValid() bool {
	_, err := ParseVaultStatus(string(s))
	return err == nil
}
