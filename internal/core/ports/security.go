package ports

// FieldCipher encrypts sensitive payout fields, such as destination account
// numbers, before they are stored.
type FieldCipher interface {
	// Seal encrypts plaintext bound to owner (the row ID), so a sealed
	// value copied onto another row fails to open.
	Seal(plaintext, owner string) (string, error)

	// Open reverses Seal for the same owner.
	Open(sealed, owner string) (string, error)
}
