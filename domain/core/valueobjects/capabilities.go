package valueobjects

// Capabilities carries the per-vault permission flags the server grants the
// current member. The flags gate which actions a vault is eligible for;
// they are data, not policy, and the server remains authoritative.
type Capabilities struct {
	CanExport  bool `json:"canExport"`
	CanArchive bool `json:"canArchive"`
	CanShare   bool `json:"canShare"`
}

// Operation names checked against capability flags.
const (
	OperationExport  = "export"
	OperationArchive = "archive"
	OperationShare   = "share"
)

// Allows reports whether the named operation is permitted on this vault.
// Operations without a gating flag are allowed.
func (c Capabilities) Allows(operation string) bool {
	switch operation {
	case OperationExport:
		return c.CanExport
	case OperationArchive:
		return c.CanArchive
	case OperationShare:
		return c.CanShare
	default:
		return true
	}
}
