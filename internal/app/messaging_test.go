package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/transfa/banking-service/internal/domain"
)

func TestService_BroadcastReportsDelivery(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.openAccount(t, "Asha Rao", "asha@example.com")
	env.openAccount(t, "Ben Okoro", "ben@example.com")
	target := env.openAccount(t, "Chen Wu", "fail@example.com")
	env.channel.failTo = "fail@example.com"

	job, err := env.svc.Broadcast(ctx, "Maintenance", "Branches close early on Friday.")
	if err != nil {
		t.Fatalf("Broadcast returned error: %v", err)
	}
	if job.Message.Recipient != domain.BroadcastRecipient || job.Message.Type != domain.MessageBroadcast {
		t.Fatalf("unexpected broadcast record %+v", job.Message)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	report, err := job.Wait(waitCtx)
	if err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	if report.Recipients != 3 || report.Delivered != 2 || report.Failed != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	select {
	case <-job.Done():
	default:
		t.Fatalf("expected Done to be closed after Wait")
	}

	if _, err := env.svc.SendAdminMessage(ctx, domain.AdminMessageRequest{AccountNumber: target.AccountNumber, Subject: "KYC", Content: "Please update your documents."}); err != nil {
		t.Fatalf("SendAdminMessage returned error: %v", err)
	}
	messages, err := env.svc.ListMessages(ctx, target.AccountNumber)
	if err != nil {
		t.Fatalf("ListMessages returned error: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected individual message plus broadcast, got %d", len(messages))
	}

	if _, err := env.svc.Broadcast(ctx, "x", "  "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty content, got %v", err)
	}
}

func TestService_DrainBroadcastsWaitsForDelivery(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.openAccount(t, "Asha Rao", "asha@example.com")
	env.openAccount(t, "Ben Okoro", "ben@example.com")
	env.channel.block = make(chan struct{})

	job, err := env.svc.Broadcast(ctx, "Holiday", "Branches are closed on Monday.")
	if err != nil {
		t.Fatalf("Broadcast returned error: %v", err)
	}

	drained := make(chan error, 1)
	go func() {
		drainCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		drained <- env.svc.DrainBroadcasts(drainCtx)
	}()

	select {
	case err := <-drained:
		t.Fatalf("drain returned before delivery finished: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	close(env.channel.block)

	if err := <-drained; err != nil {
		t.Fatalf("DrainBroadcasts returned error: %v", err)
	}
	report, err := job.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	if report.Delivered != 2 {
		t.Fatalf("expected both deliveries before drain returned, got %+v", report)
	}
	if _, err := env.svc.Broadcast(ctx, "Late", "Too late."); !errors.Is(err, ErrShuttingDown) {
		t.Fatalf("expected ErrShuttingDown after drain, got %v", err)
	}
}

func TestService_DrainBroadcastsCancelsOnDeadline(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.openAccount(t, "Asha Rao", "asha@example.com")
	env.openAccount(t, "Ben Okoro", "ben@example.com")
	env.channel.block = make(chan struct{})

	job, err := env.svc.Broadcast(ctx, "Holiday", "Branches are closed on Monday.")
	if err != nil {
		t.Fatalf("Broadcast returned error: %v", err)
	}

	drainCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := env.svc.DrainBroadcasts(drainCtx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}

	waitCtx, waitCancel := context.WithTimeout(ctx, 2*time.Second)
	defer waitCancel()
	report, err := job.Wait(waitCtx)
	if err != nil {
		t.Fatalf("expected cancelled broadcast to finish, got %v", err)
	}
	if report.Delivered != 0 || report.Failed != 2 {
		t.Fatalf("expected every cut-off delivery to count as failed, got %+v", report)
	}
}

func TestService_ChequesAndHelp(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.openAccount(t, "Asha Rao", "asha@example.com")

	book, err := env.svc.RequestChequeBook(ctx, account.AccountNumber)
	if err != nil {
		t.Fatalf("RequestChequeBook returned error: %v", err)
	}
	if book.Type != domain.ChequeNewBook || book.Status != domain.RequestProcessing {
		t.Fatalf("unexpected cheque book request %+v", book)
	}
	env.clock.Advance(time.Minute)
	stop, err := env.svc.StopCheque(ctx, account.AccountNumber, domain.StopChequeRequest{ChequeNumber: "000123", Reason: "lost"})
	if err != nil {
		t.Fatalf("StopCheque returned error: %v", err)
	}
	if stop.Status != domain.RequestCompleted {
		t.Fatalf("expected COMPLETED stop request, got %s", stop.Status)
	}
	if _, err := env.svc.StopCheque(ctx, account.AccountNumber, domain.StopChequeRequest{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	requests, _ := env.svc.ListChequeRequests(ctx, account.AccountNumber)
	if len(requests) != 2 || requests[0].ID != stop.ID {
		t.Fatalf("expected newest first, got %+v", requests)
	}

	help, err := env.svc.CreateHelpRequest(ctx, account.AccountNumber, domain.HelpRequestInput{Category: "Dispute", Message: "Unknown debit"})
	if err != nil {
		t.Fatalf("CreateHelpRequest returned error: %v", err)
	}
	if help.Status != domain.RequestPending {
		t.Fatalf("expected PENDING, got %s", help.Status)
	}
	updated, err := env.svc.UpdateHelpRequestStatus(ctx, help.ID, domain.HelpStatusUpdate{Status: domain.RequestResolved, AdminNote: "Refunded"})
	if err != nil {
		t.Fatalf("UpdateHelpRequestStatus returned error: %v", err)
	}
	if updated.Status != domain.RequestResolved || updated.AdminNote != "Refunded" {
		t.Fatalf("unexpected help request %+v", updated)
	}
	if _, err := env.svc.UpdateHelpRequestStatus(ctx, help.ID, domain.HelpStatusUpdate{Status: domain.RequestApproved}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for an unsupported status, got %v", err)
	}
	all, _ := env.svc.ListAllHelpRequests(ctx)
	if len(all) != 1 {
		t.Fatalf("expected 1 help request, got %d", len(all))
	}
}

func TestService_StatementsAndAnalytics(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.openAccount(t, "Asha Rao", "asha@example.com")
	number := account.AccountNumber

	env.deposit(t, number, 4000)
	env.clock.Advance(24 * time.Hour)
	if _, err := env.svc.Ledger.Withdraw(ctx, domain.WithdrawRequest{AccountNumber: number, Amount: dec("500"), PIN: "1234"}); err != nil {
		t.Fatalf("Withdraw returned error: %v", err)
	}
	if _, err := env.svc.Ledger.PayBill(ctx, domain.BillPaymentRequest{AccountNumber: number, BillType: "Internet", Provider: "FiberNet", Amount: dec("250")}); err != nil {
		t.Fatalf("PayBill returned error: %v", err)
	}

	mini, err := env.svc.MiniStatement(ctx, number, 2)
	if err != nil || len(mini) != 2 {
		t.Fatalf("expected 2 mini statement rows, got %d (err=%v)", len(mini), err)
	}

	summary, err := env.svc.AccountSummary(ctx, number)
	if err != nil {
		t.Fatalf("AccountSummary returned error: %v", err)
	}
	if !summary.TotalCredits.Equal(dec("4000")) || !summary.TotalDebits.Equal(dec("750")) || !summary.Balance.Equal(dec("3250")) {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.CountByType[domain.TransactionBillPayment] != 1 {
		t.Fatalf("expected one bill payment, got %+v", summary.CountByType)
	}

	series, err := env.svc.SpendingAnalytics(ctx, number, 2)
	if err != nil {
		t.Fatalf("SpendingAnalytics returned error: %v", err)
	}
	if len(series) != 2 || !series[0].Income.Equal(dec("4000")) || !series[1].Expense.Equal(dec("750")) {
		t.Fatalf("unexpected series %+v", series)
	}

	from := env.clock.Now().Add(-time.Hour)
	rows, err := env.svc.Statement(ctx, number, from, env.clock.Now().Add(time.Hour))
	if err != nil || len(rows) != 2 {
		t.Fatalf("expected 2 rows in range, got %d (err=%v)", len(rows), err)
	}
	if _, err := env.svc.Statement(ctx, number, from, from); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for an empty range, got %v", err)
	}

	found, err := env.svc.SearchTransactions(ctx, "Asha", 10)
	if err != nil || len(found) != 3 {
		t.Fatalf("expected holder-name search to find 3 rows, got %d (err=%v)", len(found), err)
	}
}

func TestScheduler_RejectsInvalidSchedule(t *testing.T) {
	env := newTestEnv(t)
	jobs := NewJobs(env.svc, discardLogger())
	scheduler := NewScheduler(jobs, Schedules{EMIAutoDebit: "not a cron expression", CardExpiry: "@daily"}, discardLogger())

	if err := scheduler.Start(); err == nil {
		t.Fatalf("expected invalid schedule to be reported")
	}
	<-scheduler.Stop().Done()

	// Jobs run directly without panicking on an empty store.
	jobs.AutoDebitEMI()
	jobs.ExpireCards()
}
