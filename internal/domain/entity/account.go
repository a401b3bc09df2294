package entity

import (
	"strings"
	"time"
)

// Account is an externally-owned account address used as the session principal.
// It is kept in 0x-prefixed checksummed hex form.
type Account string

// String returns the address as text
func (a Account) String() string {
	return string(a)
}

// IsZero reports whether no account is set
func (a Account) IsZero() bool {
	return a == ""
}

// ShortName returns the abbreviated form shown in the dashboard header, e.g. 0x1234...abcd
func (a Account) ShortName() string {
	s := string(a)
	if len(s) <= 10 {
		return s
	}
	return s[:6] + "..." + s[len(s)-4:]
}

// Equal compares two accounts ignoring checksum casing
func (a Account) Equal(other Account) bool {
	return strings.EqualFold(string(a), string(other))
}

// WalletBalance represents the native currency balance of an account
type WalletBalance struct {
	Account Account   `json:"account"`
	Amount  string    `json:"amount"`
	AsOf    time.Time `json:"as_of"`
}
