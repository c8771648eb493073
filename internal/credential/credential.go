package credential

import "golang.org/x/crypto/bcrypt"

// Cost is the bcrypt work factor used for new hashes.
var Cost = bcrypt.DefaultCost

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

// Hash returns a bcrypt hash of password.
func Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), Cost)
	return string(b), err
}

// Check reports whether password matches the stored hash.
func Check(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
