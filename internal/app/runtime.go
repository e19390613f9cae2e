package app

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// Clock supplies the current time. Tests inject a fixed or steppable clock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in a fixed location, which defines the
// calendar day used for daily limits.
type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

// dayBounds returns [start of t's day, start of the next day) in t's location.
func dayBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}

// RandomSource draws uniform integers in [0, n). *rand.Rand from math/rand/v2 satisfies it.
type RandomSource interface {
	IntN(n int) int
}

type lockedSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (s *lockedSource) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.IntN(n)
}

// NewRandomSource returns a goroutine-safe ChaCha8 generator seeded from crypto/rand.
func NewRandomSource() RandomSource {
	var seed [32]byte
	if _, err := crand.Read(seed[:]); err != nil {
		binary.LittleEndian.PutUint64(seed[:], uint64(time.Now().UnixNano()))
	}
	return &lockedSource{r: rand.New(rand.NewChaCha8(seed))}
}

// randomDigits builds an n-digit numeric string. With leadingNonZero the first digit is 1-9.
func randomDigits(r RandomSource, n int, leadingNonZero bool) string {
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		if i == 0 && leadingNonZero {
			b.WriteByte(byte('1' + r.IntN(9)))
			continue
		}
		b.WriteByte(byte('0' + r.IntN(10)))
	}
	return b.String()
}

// PINHasher hides how PINs are stored so the credential check stays a single comparison.
type PINHasher interface {
	Hash(pin string) (string, error)
	Matches(hash, pin string) bool
}

type BcryptPINHasher struct {
	Cost int
}

func (h BcryptPINHasher) Hash(pin string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(pin), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func (h BcryptPINHasher) Matches(hash, pin string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)) == nil
}

// validPIN accepts 4 to 6 digits.
func validPIN(pin string) bool {
	if len(pin) < 4 || len(pin) > 6 {
		return false
	}
	for _, c := range pin {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// Settings are the tunables of the ledger, OTP and messaging layers.
type Settings struct {
	StepUpThreshold       decimal.Decimal
	LowBalanceThreshold   decimal.Decimal
	OTPValidity           time.Duration
	OTPGrace              time.Duration
	OTPDeliveryAttempts   int
	OTPDeliveryRetryDelay time.Duration
	OTPIssueRateLimit     int
	BroadcastConcurrency  int
}

func DefaultSettings() Settings {
	return Settings{
		StepUpThreshold:       decimal.NewFromInt(5000),
		LowBalanceThreshold:   decimal.NewFromInt(1000),
		OTPValidity:           10 * time.Minute,
		OTPGrace:              5 * time.Minute,
		OTPDeliveryAttempts:   3,
		OTPDeliveryRetryDelay: time.Second,
		OTPIssueRateLimit:     5,
		BroadcastConcurrency:  8,
	}
}
