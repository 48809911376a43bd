package crypto

import "golang.org/x/crypto/bcrypt"

// HashPassword derives a bcrypt hash of the shared admin password, suitable
// for the ADMIN_PASSWORD_HASH environment variable.
func HashPassword(plain string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
}

// ComparePassword reports via error whether plain matches the stored hash.
func ComparePassword(hash []byte, plain string) error {
	return bcrypt.CompareHashAndPassword(hash, []byte(plain))
}
