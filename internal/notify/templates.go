package notify

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/transfa/banking-service/internal/domain"
)

func greeting(a *domain.Account) string {
	return "Dear " + a.HolderName + ","
}

func money(v decimal.Decimal) string {
	return v.StringFixed(2)
}

func Welcome(a *domain.Account) Message {
	return Message{
		To:      a.Email,
		Subject: "Welcome to your new account",
		Body: fmt.Sprintf("%s\n\nYour account %s has been opened successfully.\nYou can now deposit funds, transfer money and apply for loans.\n",
			greeting(a), a.AccountNumber),
	}
}

func OTP(a *domain.Account, code string, purpose domain.OTPPurpose, validity time.Duration) Message {
	body := fmt.Sprintf(`<html><body>
<p>%s</p>
<p>Your one-time password for <strong>%s</strong> is:</p>
<h2 style="letter-spacing:4px">%s</h2>
<p>It expires in %d minutes. Never share this code with anyone.</p>
</body></html>`,
		html.EscapeString(greeting(a)), html.EscapeString(strings.ReplaceAll(string(purpose), "_", " ")), code, int(validity.Minutes()))
	return Message{To: a.Email, Subject: "Your One-Time Password", Body: body, HTML: true}
}

func Debit(a *domain.Account, t *domain.Transaction) Message {
	return Message{
		To:      a.Email,
		Subject: "Account debited",
		Body: fmt.Sprintf("%s\n\n%s of %s was debited from account %s.\nTransaction ID: %s\nAvailable balance: %s\n",
			greeting(a), t.Description, money(t.Amount), a.AccountNumber, t.ID, money(t.BalanceAfter)),
	}
}

func Credit(a *domain.Account, t *domain.Transaction) Message {
	return Message{
		To:      a.Email,
		Subject: "Account credited",
		Body: fmt.Sprintf("%s\n\n%s of %s was credited to account %s.\nTransaction ID: %s\nAvailable balance: %s\n",
			greeting(a), t.Description, money(t.Amount), a.AccountNumber, t.ID, money(t.BalanceAfter)),
	}
}

func LowBalance(a *domain.Account, balance, threshold decimal.Decimal) Message {
	return Message{
		To:      a.Email,
		Subject: "Low balance alert",
		Body: fmt.Sprintf("%s\n\nThe balance of account %s is %s, below the alert threshold of %s.\n",
			greeting(a), a.AccountNumber, money(balance), money(threshold)),
	}
}

func LoanApplied(a *domain.Account, l *domain.Loan) Message {
	return Message{
		To:      a.Email,
		Subject: "Loan application received",
		Body: fmt.Sprintf("%s\n\nWe received your loan application %s for %s over %d months at %s%% p.a.\nEstimated EMI: %s\n",
			greeting(a), l.ID, money(l.Principal), l.DurationMonths, l.InterestRate.String(), money(l.EMI)),
	}
}

func LoanApproved(a *domain.Account, l *domain.Loan) Message {
	return Message{
		To:      a.Email,
		Subject: "Loan approved",
		Body: fmt.Sprintf("%s\n\nYour loan %s has been approved and %s credited to account %s.\nEMI: %s per month for %d months (total repayable %s).\n",
			greeting(a), l.ID, money(l.Principal), a.AccountNumber, money(l.EMI), l.DurationMonths, money(l.TotalRepayable)),
	}
}

func LoanRejected(a *domain.Account, l *domain.Loan) Message {
	return Message{
		To:      a.Email,
		Subject: "Loan application rejected",
		Body:    fmt.Sprintf("%s\n\nWe are unable to approve your loan application %s for %s.\n", greeting(a), l.ID, money(l.Principal)),
	}
}

func EMIPaid(a *domain.Account, l *domain.Loan) Message {
	subject := "EMI payment received"
	status := fmt.Sprintf("%d of %d installments paid.", l.MonthsPaid, l.DurationMonths)
	if l.Status == domain.LoanClosed {
		subject = "Loan closed"
		status = "All installments are paid and the loan is now closed."
	}
	return Message{
		To:      a.Email,
		Subject: subject,
		Body:    fmt.Sprintf("%s\n\nEMI of %s for loan %s was debited.\n%s\n", greeting(a), money(l.EMI), l.ID, status),
	}
}

func CardStatus(a *domain.Account, c *domain.DebitCard) Message {
	return Message{
		To:      a.Email,
		Subject: "Debit card update",
		Body:    fmt.Sprintf("%s\n\nYour debit card %s is now %s.\n", greeting(a), c.MaskedNumber(), c.Status),
	}
}

// AccountStatus covers freeze, unfreeze, activation and deactivation notices.
func AccountStatus(a *domain.Account, change string) Message {
	return Message{
		To:      a.Email,
		Subject: "Account status changed",
		Body:    fmt.Sprintf("%s\n\nYour account %s has been %s by the bank.\n", greeting(a), a.AccountNumber, change),
	}
}

func PINChanged(a *domain.Account) Message {
	return Message{
		To:      a.Email,
		Subject: "PIN Changed",
		Body:    fmt.Sprintf("%s\n\nThe PIN for account %s was changed. If this was not you, contact the bank immediately.\n", greeting(a), a.AccountNumber),
	}
}

func DeleteRequestUpdate(a *domain.Account, d *domain.DeleteRequest) Message {
	var line string
	switch d.Status {
	case domain.RequestApproved:
		line = "Your account closure request was approved and the account has been closed."
	case domain.RequestRejected:
		line = "Your account closure request was rejected. Your account remains open."
	default:
		line = "Your account closure request was received and is awaiting review."
	}
	return Message{To: a.Email, Subject: "Account closure request", Body: fmt.Sprintf("%s\n\n%s\n", greeting(a), line)}
}

func Cheque(a *domain.Account, c *domain.ChequeRequest) Message {
	line := "Your new cheque book request is being processed."
	if c.Type == domain.ChequeStopPayment {
		line = fmt.Sprintf("Payment on cheque %s has been stopped.", c.ChequeNumber)
	}
	return Message{To: a.Email, Subject: "Cheque service request", Body: fmt.Sprintf("%s\n\n%s\n", greeting(a), line)}
}

func AdminNotice(a *domain.Account, subject, content string) Message {
	body := fmt.Sprintf("<html><body><p>%s</p><p>%s</p><p>Regards,<br/>Bank Administration</p></body></html>",
		html.EscapeString(greeting(a)), strings.ReplaceAll(html.EscapeString(content), "\n", "<br/>"))
	if strings.TrimSpace(subject) == "" {
		subject = "Message from your bank"
	}
	return Message{To: a.Email, Subject: subject, Body: body, HTML: true}
}
