package auth

import "crypto/subtle"

// VerifyBasic compares submitted credentials against the admin identity.
// Both fields are compared byte for byte, without normalization, and both
// comparisons always run.
func VerifyBasic(email, password string, identity AdminIdentity) bool {
	emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(identity.Email))
	passwordOK := subtle.ConstantTimeCompare([]byte(password), []byte(identity.Password))
	return emailOK&passwordOK == 1
}
