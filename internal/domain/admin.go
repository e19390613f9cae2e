package domain

import (
	"time"

	"github.com/google/uuid"
)

type RequestStatus string

const (
	RequestPending    RequestStatus = "PENDING"
	RequestApproved   RequestStatus = "APPROVED"
	RequestRejected   RequestStatus = "REJECTED"
	RequestProcessing RequestStatus = "PROCESSING"
	RequestCompleted  RequestStatus = "COMPLETED"
	RequestInProgress RequestStatus = "IN_PROGRESS"
	RequestResolved   RequestStatus = "RESOLVED"
)

// DeleteRequest is a customer's request to close the account, awaiting admin review.
type DeleteRequest struct {
	ID            uuid.UUID     `json:"request_id"`
	AccountNumber string        `json:"account_number"`
	Reason        string        `json:"reason"`
	Status        RequestStatus `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	ResolvedAt    *time.Time    `json:"resolved_at,omitempty"`
}

type ChequeRequestType string

const (
	ChequeNewBook     ChequeRequestType = "NEW_BOOK"
	ChequeStopPayment ChequeRequestType = "STOP_PAYMENT"
)

type ChequeRequest struct {
	ID            uuid.UUID         `json:"request_id"`
	AccountNumber string            `json:"account_number"`
	Type          ChequeRequestType `json:"type"`
	ChequeNumber  string            `json:"cheque_number,omitempty"`
	Reason        string            `json:"reason,omitempty"`
	Status        RequestStatus     `json:"status"`
	CreatedAt     time.Time         `json:"created_at"`
}

type StopChequeRequest struct {
	ChequeNumber string `json:"cheque_number"`
	Reason       string `json:"reason"`
}

type AdminMessageType string

const (
	MessageIndividual AdminMessageType = "INDIVIDUAL"
	MessageBroadcast  AdminMessageType = "BROADCAST"
)

// BroadcastRecipient is the recipient stored on broadcast messages.
const BroadcastRecipient = "ALL"

type AdminMessage struct {
	ID        uuid.UUID        `json:"message_id"`
	Recipient string           `json:"recipient"`
	Type      AdminMessageType `json:"type"`
	Subject   string           `json:"subject"`
	Content   string           `json:"content"`
	CreatedAt time.Time        `json:"created_at"`
}

type AdminMessageRequest struct {
	AccountNumber string `json:"account_number"`
	Subject       string `json:"subject"`
	Content       string `json:"content"`
}

type LoginHistory struct {
	ID            uuid.UUID `json:"id"`
	AccountNumber string    `json:"account_number"`
	IPAddress     string    `json:"ip_address"`
	UserAgent     string    `json:"user_agent"`
	Success       bool      `json:"success"`
	CreatedAt     time.Time `json:"created_at"`
}

// LoginMeta describes the client of a login attempt.
type LoginMeta struct {
	IPAddress string
	UserAgent string
}

type HelpRequest struct {
	ID             uuid.UUID     `json:"request_id"`
	AccountNumber  string        `json:"account_number"`
	Category       string        `json:"category"`
	Message        string        `json:"message"`
	TransactionRef string        `json:"transaction_ref,omitempty"`
	Status         RequestStatus `json:"status"`
	AdminNote      string        `json:"admin_note,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

type HelpRequestInput struct {
	Category       string `json:"category"`
	Message        string `json:"message"`
	TransactionRef string `json:"transaction_ref"`
}

type HelpStatusUpdate struct {
	Status    RequestStatus `json:"status"`
	AdminNote string        `json:"admin_note"`
}
