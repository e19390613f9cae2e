package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/transfa/banking-service/internal/domain"
)

type otpKey struct {
	account string
	purpose domain.OTPPurpose
}

type memoryState struct {
	accounts       map[string]domain.Account
	transactions   []domain.Transaction
	otps           map[otpKey]domain.OTPRequest
	loans          map[uuid.UUID]domain.Loan
	cards          map[uuid.UUID]domain.DebitCard
	deleteRequests map[uuid.UUID]domain.DeleteRequest
	cheques        []domain.ChequeRequest
	messages       []domain.AdminMessage
	logins         []domain.LoginHistory
	help           map[uuid.UUID]domain.HelpRequest
}

func newMemoryState() memoryState {
	return memoryState{
		accounts:       make(map[string]domain.Account),
		otps:           make(map[otpKey]domain.OTPRequest),
		loans:          make(map[uuid.UUID]domain.Loan),
		cards:          make(map[uuid.UUID]domain.DebitCard),
		deleteRequests: make(map[uuid.UUID]domain.DeleteRequest),
		help:           make(map[uuid.UUID]domain.HelpRequest),
	}
}

func (s memoryState) clone() memoryState {
	c := newMemoryState()
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.otps {
		c.otps[k] = v
	}
	for k, v := range s.loans {
		c.loans[k] = v
	}
	for k, v := range s.cards {
		c.cards[k] = v
	}
	for k, v := range s.deleteRequests {
		c.deleteRequests[k] = v
	}
	for k, v := range s.help {
		c.help[k] = v
	}
	c.transactions = append([]domain.Transaction(nil), s.transactions...)
	c.cheques = append([]domain.ChequeRequest(nil), s.cheques...)
	c.messages = append([]domain.AdminMessage(nil), s.messages...)
	c.logins = append([]domain.LoginHistory(nil), s.logins...)
	return c
}

// MemoryRepository keeps every table in process memory. A transaction holds
// txMu for its whole run and every call made outside it waits on txMu, so the
// snapshot restored after a failed fn only ever undoes that transaction's writes.
type MemoryRepository struct {
	db *memoryDB
	// inTx marks the view handed to a WithinTx callback; it already holds txMu.
	inTx bool
}

type memoryDB struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	s    memoryState
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{db: &memoryDB{s: newMemoryState()}}
}

// gate serialises a call against running transactions. It returns the release func.
func (r *MemoryRepository) gate() func() {
	if r.inTx {
		return func() {}
	}
	r.db.txMu.Lock()
	return r.db.txMu.Unlock
}

func (r *MemoryRepository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Repository) error) error {
	if r.inTx {
		return fn(ctx, r)
	}
	r.db.txMu.Lock()
	defer r.db.txMu.Unlock()

	r.db.mu.RLock()
	snapshot := r.db.s.clone()
	r.db.mu.RUnlock()

	if err := fn(ctx, &MemoryRepository{db: r.db, inTx: true}); err != nil {
		r.db.mu.Lock()
		r.db.s = snapshot
		r.db.mu.Unlock()
		return err
	}
	return nil
}

func (r *MemoryRepository) CreateAccount(ctx context.Context, a *domain.Account) error {
	defer r.gate()()
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, exists := r.db.s.accounts[a.AccountNumber]; exists {
		return ErrDuplicateAccount
	}
	r.db.s.accounts[a.AccountNumber] = *a
	return nil
}

func (r *MemoryRepository) FindAccount(ctx context.Context, accountNumber string) (*domain.Account, error) {
	defer r.gate()()
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	a, ok := r.db.s.accounts[accountNumber]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) LockAccount(ctx context.Context, accountNumber string) (*domain.Account, error) {
	return r.FindAccount(ctx, accountNumber)
}

func (r *MemoryRepository) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	defer r.gate()()
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := make([]domain.Account, 0, len(r.db.s.accounts))
	for _, a := range r.db.s.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) UpdateAccount(ctx context.Context, a *domain.Account) error {
	defer r.gate()()
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	existing, ok := r.db.s.accounts[a.AccountNumber]
	if !ok {
		return ErrAccountNotFound
	}
	updated := *a
	updated.Balance = existing.Balance
	updated.CreatedAt = existing.CreatedAt
	r.db.s.accounts[a.AccountNumber] = updated
	return nil
}

func (r *MemoryRepository) UpdateAccountBalance(ctx context.Context, accountNumber string, balance decimal.Decimal) error {
	defer r.gate()()
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	a, ok := r.db.s.accounts[accountNumber]
	if !ok {
		return ErrAccountNotFound
	}
	a.Balance = balance
	r.db.s.accounts[accountNumber] = a
	return nil
}

func (r *MemoryRepository) DeleteAccount(ctx context.Context, accountNumber string) error {
	defer r.gate()()
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.s.accounts[accountNumber]; !ok {
		return ErrAccountNotFound
	}
	delete(r.db.s.accounts, accountNumber)
	return nil
}

func (r *MemoryRepository) GetBankStats(ctx context.Context) (*domain.BankStats, error) {
	defer r.gate()()
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	stats := &domain.BankStats{
		TotalAccounts:     len(r.db.s.accounts),
		TotalTransactions: len(r.db.s.transactions),
		TotalBalance:      decimal.Zero,
	}
	for _, a := range r.db.s.accounts {
		stats.TotalBalance = stats.TotalBalance.Add(a.Balance)
		if a.Active && a.Balance.IsPositive() {
			stats.ActiveWithBalance++
		}
		if a.Frozen {
			stats.FrozenAccounts++
		}
	}
	for _, l := range r.db.s.loans {
		if l.Status == domain.LoanPending {
			stats.PendingLoans++
		}
	}
	for _, c := range r.db.s.cards {
		if c.Status == domain.CardPending {
			stats.PendingCards++
		}
	}
	return stats, nil
}

func (r *MemoryRepository) CreateTransaction(ctx context.Context, t *domain.Transaction) error {
	defer r.gate()()
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.s.transactions = append(r.db.s.transactions, *t)
	return nil
}

func (r *MemoryRepository) FindTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	defer r.gate()()
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, t := range r.db.s.transactions {
		if t.ID == id {
			found := t
			return &found, nil
		}
	}
	return nil, ErrTransactionNotFound
}

// newestFirst sorts by timestamp descending; ties keep reverse insertion order.
func newestFirst(txns []domain.Transaction) []domain.Transaction {
	out := make([]domain.Transaction, len(txns))
	for i := range txns {
		out[len(txns)-1-i] = txns[i]
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func limitTransactions(txns []domain.Transaction, limit int) []domain.Transaction {
	if limit > 0 && len(txns) > limit {
		return txns[:limit]
	}
	return txns
}

func (r *MemoryRepository) ListTransactionsByAccount(ctx context.Context, accountNumber string, limit int) ([]domain.Transaction, error) {
	defer r.gate()()
	if limit <= 0 {
		limit = 50
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var matched []domain.Transaction
	for _, t := range r.db.s.transactions {
		if t.AccountNumber == accountNumber {
			matched = append(matched, t)
		}
	}
	return limitTransactions(newestFirst(matched), limit), nil
}

func (r *MemoryRepository) ListTransactionsBetween(ctx context.Context, accountNumber string, from, to time.Time) ([]domain.Transaction, error) {
	defer r.gate()()
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var matched []domain.Transaction
	for _, t := range r.db.s.transactions {
		if t.AccountNumber == accountNumber && !t.CreatedAt.Before(from) && t.CreatedAt.Before(to) {
			matched = append(matched, t)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.Before(matched[j].CreatedAt) })
	return matched, nil
}

func (r *MemoryRepository) SumTransactionAmounts(ctx context.Context, accountNumber string, types []domain.TransactionType, from, to time.Time) (decimal.Decimal, error) {
	defer r.gate()()
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	wanted := make(map[domain.TransactionType]bool, len(types))
	for _, t := range types {
		wanted[t] = true
	}
	total := decimal.Zero
	for _, t := range r.db.s.transactions {
		if t.AccountNumber != accountNumber || !wanted[t.Type] {
			continue
		}
		if t.CreatedAt.Before(from) || !t.CreatedAt.Before(to) {
			continue
		}
		total = total.Add(t.Amount)
	}
	return total, nil
}

func (r *MemoryRepository) ListTransactions(ctx context.Context, limit int) ([]domain.Transaction, error) {
	defer r.gate()()
	if limit <= 0 {
		limit = 100
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return limitTransactions(newestFirst(r.db.s.transactions), limit), nil
}

func (r *MemoryRepository) SearchTransactions(ctx context.Context, query string, limit int) ([]domain.Transaction, error) {
	defer r.gate()()
	if limit <= 0 {
		limit = 100
	}
	needle := strings.ToLower(strings.TrimSpace(query))
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var matched []domain.Transaction
	for _, t := range r.db.s.transactions {
		holder := strings.ToLower(r.db.s.accounts[t.AccountNumber].HolderName)
		if strings.Contains(t.ID.String(), needle) ||
			strings.Contains(t.AccountNumber, needle) ||
			(holder != "" && strings.Contains(holder, needle)) {
			matched = append(matched, t)
		}
	}
	return limitTransactions(newestFirst(matched), limit), nil
}

func (r *MemoryRepository) UpsertOTPRequest(ctx context.Context, req *domain.OTPRequest) error {
	defer r.gate()()
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	stored := *req
	stored.Used = false
	stored.UsedAt = nil
	r.db.s.otps[otpKey{req.AccountNumber, req.Purpose}] = stored
	return nil
}

func (r *MemoryRepository) FindOTPRequest(ctx context.Context, accountNumber string, purpose domain.OTPPurpose) (*domain.OTPRequest, error) {
	defer r.gate()()
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	req, ok := r.db.s.otps[otpKey{accountNumber, purpose}]
	if !ok {
		return nil, ErrOTPRequestNotFound
	}
	return &req, nil
}

func (r *MemoryRepository) MarkOTPRequestUsed(ctx context.Context, accountNumber string, purpose domain.OTPPurpose, code string, usedAt time.Time) (bool, error) {
	defer r.gate()()
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	key := otpKey{accountNumber, purpose}
	req, ok := r.db.s.otps[key]
	if !ok || req.Used || req.Code != code {
		return false, nil
	}
	req.Used = true
	req.UsedAt = &usedAt
	r.db.s.otps[key] = req
	return true, nil
}

func (r *MemoryRepository) CreateLoan(ctx context.Context, l *domain.Loan) error {
	defer r.gate()()
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.s.loans[l.ID] = *l
	return nil
}

func (r *MemoryRepository) FindLoan(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	defer r.gate()()
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	l, ok := r.db.s.loans[id]
	if !ok {
		return nil, ErrLoanNotFound
	}
	return &l, nil
}

func (r *MemoryRepository) LockLoan(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	return r.FindLoan(ctx, id)
}

func (r *MemoryRepository) UpdateLoan(ctx context.Context, l *domain.Loan) error {
	defer r.gate()()
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.s.loans[l.ID]; !ok {
		return ErrLoanNotFound
	}
	r.db.s.loans[l.ID] = *l
	return nil
}

func sortLoans(loans []domain.Loan, newest bool) []domain.Loan {
	sort.Slice(loans, func(i, j int) bool {
		if newest {
			return loans[i].CreatedAt.After(loans[j].CreatedAt)
		}
		return loans[i].CreatedAt.Before(loans[j].CreatedAt)
	})
	return loans
}

func (r *MemoryRepository) ListLoansByAccount(ctx context.Context, accountNumber string) ([]domain.Loan, error) {
	defer r.gate()()
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []domain.Loan
	for _, l := range r.db.s.loans {
		if l.AccountNumber == accountNumber {
			out = append(out, l)
		}
	}
	return sortLoans(out, true), nil
}

func (r *MemoryRepository) ListLoansByStatus(ctx context.Context, status domain.LoanStatus) ([]domain.Loan, error) {
	defer r.gate()()
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []domain.Loan
	for _, l := range r.db.s.loans {
		if l.Status == status {
			out = append(out, l)
		}
	}
	return sortLoans(out, false), nil
}

func (r *MemoryRepository) CreateCard(ctx context.Context, c *domain.DebitCard) error {
	defer r.gate()()
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.s.cards[c.ID] = *c
	return nil
}

func (r *MemoryRepository) FindCard(ctx context.Context, id uuid.UUID) (*domain.DebitCard, error) {
	defer r.gate()()
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	c, ok := r.db.s.cards[id]
	if !ok {
		return nil, ErrCardNotFound
	}
	return &c, nil
}

func (r *MemoryRepository) LockCard(ctx context.Context, id uuid.UUID) (*domain.DebitCard, error) {
	return r.FindCard(ctx, id)
}

func (r *MemoryRepository) LockCardByNumber(ctx context.Context, cardNumber string) (*domain.DebitCard, error) {
	defer r.gate()()
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, c := range r.db.s.cards {
		if c.CardNumber == cardNumber {
			found := c
			return &found, nil
		}
	}
	return nil, ErrCardNotFound
}

func (r *MemoryRepository) UpdateCard(ctx context.Context, c *domain.DebitCard) error {
	defer r.gate()()
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.s.cards[c.ID]; !ok {
		return ErrCardNotFound
	}
	r.db.s.cards[c.ID] = *c
	return nil
}

func (r *MemoryRepository) listCards(match func(domain.DebitCard) bool) []domain.DebitCard {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []domain.DebitCard
	for _, c := range r.db.s.cards {
		if match(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *MemoryRepository) ListCardsByAccount(ctx context.Context, accountNumber string) ([]domain.DebitCard, error) {
	defer r.gate()()
	return r.listCards(func(c domain.DebitCard) bool { return c.AccountNumber == accountNumber }), nil
}

func (r *MemoryRepository) ListCardsByStatus(ctx context.Context, status domain.CardStatus) ([]domain.DebitCard, error) {
	defer r.gate()()
	return r.listCards(func(c domain.DebitCard) bool { return c.Status == status }), nil
}

func (r *MemoryRepository) CreateDeleteRequest(ctx context.Context, d *domain.DeleteRequest) error {
	defer r.gate()()
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.s.deleteRequests[d.ID] = *d
	return nil
}

func (r *MemoryRepository) FindDeleteRequest(ctx context.Context, id uuid.UUID) (*domain.DeleteRequest, error) {
	defer r.gate()()
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	d, ok := r.db.s.deleteRequests[id]
	if !ok {
		return nil, ErrDeleteRequestNotFound
	}
	return &d, nil
}

func (r *MemoryRepository) FindPendingDeleteRequest(ctx context.Context, accountNumber string) (*domain.DeleteRequest, error) {
	defer r.gate()()
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, d := range r.db.s.deleteRequests {
		if d.AccountNumber == accountNumber && d.Status == domain.RequestPending {
			found := d
			return &found, nil
		}
	}
	return nil, ErrDeleteRequestNotFound
}

func (r *MemoryRepository) ListDeleteRequests(ctx context.Context, status domain.RequestStatus) ([]domain.DeleteRequest, error) {
	defer r.gate()()
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []domain.DeleteRequest
	for _, d := range r.db.s.deleteRequests {
		if status == "" || d.Status == status {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) UpdateDeleteRequest(ctx context.Context, d *domain.DeleteRequest) error {
	defer r.gate()()
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.s.deleteRequests[d.ID]; !ok {
		return ErrDeleteRequestNotFound
	}
	r.db.s.deleteRequests[d.ID] = *d
	return nil
}

func (r *MemoryRepository) CreateChequeRequest(ctx context.Context, c *domain.ChequeRequest) error {
	defer r.gate()()
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.s.cheques = append(r.db.s.cheques, *c)
	return nil
}

func (r *MemoryRepository) ListChequeRequests(ctx context.Context, accountNumber string) ([]domain.ChequeRequest, error) {
	defer r.gate()()
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []domain.ChequeRequest
	for i := len(r.db.s.cheques) - 1; i >= 0; i-- {
		if r.db.s.cheques[i].AccountNumber == accountNumber {
			out = append(out, r.db.s.cheques[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) CreateAdminMessage(ctx context.Context, m *domain.AdminMessage) error {
	defer r.gate()()
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.s.messages = append(r.db.s.messages, *m)
	return nil
}

func (r *MemoryRepository) ListAdminMessages(ctx context.Context, accountNumber string) ([]domain.AdminMessage, error) {
	defer r.gate()()
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []domain.AdminMessage
	for i := len(r.db.s.messages) - 1; i >= 0; i-- {
		m := r.db.s.messages[i]
		if m.Recipient == accountNumber || m.Type == domain.MessageBroadcast {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) CreateLoginHistory(ctx context.Context, e *domain.LoginHistory) error {
	defer r.gate()()
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.s.logins = append(r.db.s.logins, *e)
	return nil
}

func (r *MemoryRepository) ListLoginHistory(ctx context.Context, accountNumber string, limit int) ([]domain.LoginHistory, error) {
	defer r.gate()()
	if limit <= 0 {
		limit = 20
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []domain.LoginHistory
	for i := len(r.db.s.logins) - 1; i >= 0 && len(out) < limit; i-- {
		if r.db.s.logins[i].AccountNumber == accountNumber {
			out = append(out, r.db.s.logins[i])
		}
	}
	return out, nil
}

func (r *MemoryRepository) CreateHelpRequest(ctx context.Context, h *domain.HelpRequest) error {
	defer r.gate()()
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.s.help[h.ID] = *h
	return nil
}

func (r *MemoryRepository) FindHelpRequest(ctx context.Context, id uuid.UUID) (*domain.HelpRequest, error) {
	defer r.gate()()
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	h, ok := r.db.s.help[id]
	if !ok {
		return nil, ErrHelpRequestNotFound
	}
	return &h, nil
}

func (r *MemoryRepository) ListHelpRequests(ctx context.Context, accountNumber string) ([]domain.HelpRequest, error) {
	defer r.gate()()
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	var out []domain.HelpRequest
	for _, h := range r.db.s.help {
		if accountNumber == "" || h.AccountNumber == accountNumber {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) UpdateHelpRequest(ctx context.Context, h *domain.HelpRequest) error {
	defer r.gate()()
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.s.help[h.ID]; !ok {
		return ErrHelpRequestNotFound
	}
	r.db.s.help[h.ID] = *h
	return nil
}

var (
	_ Repository = (*MemoryRepository)(nil)
	_ Repository = (*PostgresRepository)(nil)
)
