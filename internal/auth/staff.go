package auth

import (
	"crypto/subtle"

	"go-pharmacy-pos/internal/apperr"

	"golang.org/x/crypto/bcrypt"
)

// Account is a configured staff login. PasswordHash is a bcrypt hash.
type Account struct {
	Username     string
	PasswordHash string
	Role         string
}

// Staff checks logins against a fixed set of configured accounts.
type Staff struct {
	accounts []Account
}

// NewStaff keeps the accounts that have both a username and a hash.
func NewStaff(accounts ...Account) *Staff {
	s := &Staff{}
	for _, a := range accounts {
		if a.Username != "" && a.PasswordHash != "" {
			s.accounts = append(s.accounts, a)
		}
	}
	return s
}

func (s *Staff) Len() int { return len(s.accounts) }

// Authenticate returns the matching account or an unauthorized error. The
// message never says which half of the credentials was wrong.
func (s *Staff) Authenticate(username, password string) (*Account, error) {
	for _, a := range s.accounts {
		if subtle.ConstantTimeCompare([]byte(a.Username), []byte(username)) != 1 {
			continue
		}
		if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
			break
		}
		account := a
		return &account, nil
	}
	return nil, apperr.Unauthorized("invalid credentials")
}
