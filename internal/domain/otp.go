package domain

import "time"

// OTPPurpose tags what an OTP request authorizes.
type OTPPurpose string

const (
	OTPLogin         OTPPurpose = "LOGIN"
	OTPWithdrawal    OTPPurpose = "WITHDRAWAL"
	OTPTransfer      OTPPurpose = "TRANSFER"
	OTPDeleteAccount OTPPurpose = "DELETE_ACCOUNT"
)

// Valid reports whether p is a known purpose.
func (p OTPPurpose) Valid() bool {
	switch p {
	case OTPLogin, OTPWithdrawal, OTPTransfer, OTPDeleteAccount:
		return true
	}
	return false
}

// OTPRequest is the single current request for an (account, purpose) pair.
// Issuing a new code overwrites the row.
type OTPRequest struct {
	AccountNumber string     `json:"account_number"`
	Purpose       OTPPurpose `json:"purpose"`
	Code          string     `json:"-"`
	CreatedAt     time.Time  `json:"created_at"`
	ExpiresAt     time.Time  `json:"expires_at"`
	Used          bool       `json:"used"`
	UsedAt        *time.Time `json:"used_at,omitempty"`
}

// OTPIssueRequest is the DTO for requesting a step-up code.
type OTPIssueRequest struct {
	Purpose OTPPurpose `json:"purpose"`
}

// OTPVerifyRequest is the DTO for submitting a step-up code.
type OTPVerifyRequest struct {
	Purpose OTPPurpose `json:"purpose"`
	Code    string     `json:"code"`
}
