package auth

import "crypto/subtle"

// Credentials is the single configured admin login.
type Credentials struct {
	Email    string
	Password string
}

// Check compares both fields in constant time. An unset password never matches.
func (c Credentials) Check(email, password string) bool {
	if c.Email == "" || c.Password == "" {
		return false
	}
	emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(c.Email)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(c.Password)) == 1
	return emailOK && passOK
}
