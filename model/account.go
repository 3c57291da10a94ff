package model

// Account is a local login used by the MFA and CAC pages
type Account struct {
	Username     string   `json:"username"`
	PasswordHash string   `json:"-"`
	MFASecret    string   `json:"-"`
	MFAVerified  bool     `json:"mfa_verified"`
	BackupCodes  []string `json:"-"`
}

// NewAccount creates an account that has not enrolled MFA yet
func NewAccount(username, passwordHash string) *Account {
	return &Account{
		Username:     username,
		PasswordHash: passwordHash,
		BackupCodes:  []string{},
	}
}

// HasMFA returns true once a TOTP secret has been stored and confirmed with a valid code
func (a *Account) HasMFA() bool {
	return a.MFASecret != "" && a.MFAVerified
}

// PendingMFA returns true between secret generation and the first valid code
func (a *Account) PendingMFA() bool {
	return a.MFASecret != "" && !a.MFAVerified
}

// ResetMFA drops the TOTP secret and backup codes
func (a *Account) ResetMFA() {
	a.MFASecret = ""
	a.MFAVerified = false
	a.BackupCodes = []string{}
}

// Clone returns a copy safe to modify
func (a *Account) Clone() *Account {
	c := *a
	c.BackupCodes = append([]string(nil), a.BackupCodes...)
	return &c
}

// ConsumeBackupCode removes code from the remaining backup codes.
// It returns false when the code is unknown or already used.
func (a *Account) ConsumeBackupCode(code string) bool {
	for i, c := range a.BackupCodes {
		if c == code {
			a.BackupCodes = append(a.BackupCodes[:i], a.BackupCodes[i+1:]...)
			return true
		}
	}
	return false
}
