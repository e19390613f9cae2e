package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/transfa/banking-service/internal/domain"
	"github.com/transfa/banking-service/internal/notify"
	"golang.org/x/sync/errgroup"
)

// BroadcastReport is the delivery outcome of one broadcast.
type BroadcastReport struct {
	Recipients int `json:"recipients"`
	Delivered  int `json:"delivered"`
	Failed     int `json:"failed"`
}

// BroadcastJob tracks a broadcast delivering in the background.
type BroadcastJob struct {
	Message *domain.AdminMessage

	done   chan struct{}
	report BroadcastReport
}

// Done is closed once every recipient has been attempted.
func (j *BroadcastJob) Done() <-chan struct{} {
	return j.done
}

// Recipients is the number of accounts the broadcast was addressed to.
func (j *BroadcastJob) Recipients() int {
	return j.report.Recipients
}

// Wait blocks until delivery finishes or ctx ends.
func (j *BroadcastJob) Wait(ctx context.Context) (BroadcastReport, error) {
	select {
	case <-j.done:
		return j.report, nil
	case <-ctx.Done():
		return BroadcastReport{Recipients: j.report.Recipients}, ctx.Err()
	}
}

// broadcastTracker holds the broadcasts still delivering so shutdown can wait for them.
type broadcastTracker struct {
	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
	active map[uuid.UUID]*BroadcastJob

	ctx    context.Context
	cancel context.CancelFunc
}

func newBroadcastTracker() *broadcastTracker {
	ctx, cancel := context.WithCancel(context.Background())
	return &broadcastTracker{active: make(map[uuid.UUID]*BroadcastJob), ctx: ctx, cancel: cancel}
}

func (t *broadcastTracker) start(job *BroadcastJob) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return false
	}
	t.active[job.Message.ID] = job
	t.wg.Add(1)
	return true
}

func (t *broadcastTracker) finish(job *BroadcastJob) {
	t.mu.Lock()
	delete(t.active, job.Message.ID)
	t.mu.Unlock()
	t.wg.Done()
}

// DrainBroadcasts stops new broadcasts and waits for running ones. If ctx ends
// first, the unfinished jobs are logged and their remaining deliveries cancelled.
func (s *Service) DrainBroadcasts(ctx context.Context) error {
	t := s.broadcasts
	t.mu.Lock()
	t.closed = true
	running := len(t.active)
	t.mu.Unlock()
	if running > 0 {
		s.logger.Info("waiting for broadcasts", "running", running)
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
	}

	t.mu.Lock()
	for id, job := range t.active {
		s.logger.Warn("broadcast cut off by shutdown", "message_id", id, "recipients", job.report.Recipients)
	}
	t.mu.Unlock()
	t.cancel()
	return ctx.Err()
}

func (s *Service) SendAdminMessage(ctx context.Context, req domain.AdminMessageRequest) (*domain.AdminMessage, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, fmt.Errorf("%w: message content is required", ErrInvalidInput)
	}
	account, err := s.repo.FindAccount(ctx, req.AccountNumber)
	if err != nil {
		return nil, err
	}

	msg := &domain.AdminMessage{
		ID:        uuid.New(),
		Recipient: account.AccountNumber,
		Type:      domain.MessageIndividual,
		Subject:   strings.TrimSpace(req.Subject),
		Content:   content,
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.CreateAdminMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}
	s.notifier.Notify(notify.AdminNotice(account, msg.Subject, msg.Content))
	return msg, nil
}

// Broadcast stores one message addressed to every account and delivers it off
// the caller's path through a bounded worker pool.
func (s *Service) Broadcast(ctx context.Context, subject, content string) (*BroadcastJob, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: message content is required", ErrInvalidInput)
	}

	s.broadcasts.mu.Lock()
	closed := s.broadcasts.closed
	s.broadcasts.mu.Unlock()
	if closed {
		return nil, ErrShuttingDown
	}

	accounts, err := s.repo.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	msg := &domain.AdminMessage{
		ID:        uuid.New(),
		Recipient: domain.BroadcastRecipient,
		Type:      domain.MessageBroadcast,
		Subject:   strings.TrimSpace(subject),
		Content:   content,
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.CreateAdminMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to store broadcast: %w", err)
	}

	job := &BroadcastJob{
		Message: msg,
		done:    make(chan struct{}),
		report:  BroadcastReport{Recipients: len(accounts)},
	}
	if !s.broadcasts.start(job) {
		return nil, ErrShuttingDown
	}
	limit := s.settings.BroadcastConcurrency
	if limit < 1 {
		limit = 1
	}

	go func() {
		defer s.broadcasts.finish(job)
		defer close(job.done)
		var delivered, failed atomic.Int64
		g, gctx := errgroup.WithContext(s.broadcasts.ctx)
		g.SetLimit(limit)
		for i := range accounts {
			account := &accounts[i]
			g.Go(func() error {
				if gctx.Err() != nil {
					failed.Add(1)
					return nil
				}
				if err := s.channel.Send(gctx, notify.AdminNotice(account, msg.Subject, msg.Content)); err != nil {
					failed.Add(1)
					s.logger.Warn("broadcast delivery failed", "message_id", msg.ID, "account_number", account.AccountNumber, "error", err)
					return nil
				}
				delivered.Add(1)
				return nil
			})
		}
		_ = g.Wait()
		job.report.Delivered = int(delivered.Load())
		job.report.Failed = int(failed.Load())
		s.logger.Info("broadcast finished", "message_id", msg.ID, "recipients", job.report.Recipients, "delivered", job.report.Delivered, "failed", job.report.Failed)
	}()

	return job, nil
}

// ListMessages returns the account's individual messages and all broadcasts, newest first.
func (s *Service) ListMessages(ctx context.Context, accountNumber string) ([]domain.AdminMessage, error) {
	return s.repo.ListAdminMessages(ctx, accountNumber)
}
