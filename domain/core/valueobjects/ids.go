package valueobjects

import (
	"errors"
)

// VaultID is a value object identifying a vault across the platform.
// Value objects are immutable and have no identity beyond their value.
// Vault identifiers are issued by the server, so no format beyond
// non-emptiness is assumed.
type VaultID struct {
	value string
}

// ParseVaultID creates a VaultID from a wire string
func ParseVaultID(id string) (VaultID, error) {
	if id == "" {
		return VaultID{}, errors.New("vault ID cannot be empty")
	}
	return VaultID{value: id}, nil
}

// String returns the string representation of the VaultID
func (id VaultID) String() string {
	return id.value
}

// Equals checks if two VaultIDs are equal
func (id VaultID) Equals(other VaultID) bool {
	return id.value == other.value
}

// IsZero checks if the VaultID is the zero value
func (id VaultID) IsZero() bool {
	return id.value == ""
}

// MarshalJSON implements json.Marshaler
func (id VaultID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.value + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (id *VaultID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return errors.New("VaultID must be a string")
	}
	id.value = string(data[1 : len(data)-1])
	return nil
}

// ActorID identifies a platform user in presence and typing messages.
type ActorID struct {
	value string
}

// ParseActorID creates an ActorID from a wire string
func ParseActorID(id string) (ActorID, error) {
	if id == "" {
		return ActorID{}, errors.New("actor ID cannot be empty")
	}
	return ActorID{value: id}, nil
}

// String returns the string representation of the ActorID
func (id ActorID) String() string {
	return id.value
}

// Equals checks if two ActorIDs are equal
func (id ActorID) Equals(other ActorID) bool {
	return id.value == other.value
}

// IsZero checks if the ActorID is the zero value
func (id ActorID) IsZero() bool {
	return id.value == ""
}

// MarshalJSON implements json.Marshaler
func (id ActorID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.value + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (id *ActorID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return errors.New("ActorID must be a string")
	}
	id.value = string(data[1 : len(data)-1])
	return nil
}
