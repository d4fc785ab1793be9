package gateway

import (
	"context"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Roller returns a number in [0, 100].
type Roller interface {
	Roll() int
}

type RandomRoller struct{}

func (RandomRoller) Roll() int {
	return rand.IntN(101)
}

var refusalReasons = map[int]string{
	1: "insufficient_funds",
	2: "card_expired",
	3: "card_blocked",
	4: "suspected_fraud",
	5: "limit_exceeded",
}

const (
	defaultMemoTTL = 24 * time.Hour
	defaultMemoMax = 10_000
)

// Simulated stands in for a real payment provider: it waits Delay, then
// approves ApprovalRate of the requests. Verdicts are remembered per
// idempotency key for memoTTL, so a retried request gets the same answer.
// At most memoMax verdicts are kept; the oldest go first.
type Simulated struct {
	delay        time.Duration
	approvalRate float64
	roller       Roller

	memoTTL time.Duration
	memoMax int
	now     func() time.Time

	mu    sync.Mutex
	seen  map[string]verdict
	order []string // keys in insertion order
}

type verdict struct {
	auth    Authorization
	expires time.Time
}

func NewSimulated(delay time.Duration, approvalRate float64, roller Roller) *Simulated {
	if roller == nil {
		roller = RandomRoller{}
	}
	return &Simulated{
		delay:        delay,
		approvalRate: approvalRate,
		roller:       roller,
		memoTTL:      defaultMemoTTL,
		memoMax:      defaultMemoMax,
		now:          time.Now,
		seen:         make(map[string]verdict),
	}
}

func (s *Simulated) Authorize(ctx context.Context, req AuthorizeRequest) (Authorization, error) {
	s.mu.Lock()
	if v, ok := s.seen[req.IdempotencyKey]; ok && s.now().Before(v.expires) {
		s.mu.Unlock()
		return v.auth, nil
	}
	s.mu.Unlock()

	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return Authorization{}, ctx.Err()
		}
	}

	auth := decide(s.roller.Roll(), s.approvalRate)

	s.mu.Lock()
	s.remember(req.IdempotencyKey, auth)
	s.mu.Unlock()
	return auth, nil
}

// remember stores a verdict and prunes expired or excess ones. Callers hold mu.
func (s *Simulated) remember(key string, auth Authorization) {
	now := s.now()
	if _, ok := s.seen[key]; !ok {
		s.order = append(s.order, key)
	}
	s.seen[key] = verdict{auth: auth, expires: now.Add(s.memoTTL)}

	n := 0
	for n < len(s.order) {
		oldest := s.order[n]
		v, ok := s.seen[oldest]
		if ok && now.Before(v.expires) && len(s.seen) <= s.memoMax {
			break
		}
		delete(s.seen, oldest)
		n++
	}
	s.order = s.order[n:]
}

func decide(roll int, approvalRate float64) Authorization {
	threshold := int(math.Round(approvalRate * 100))
	if roll < threshold || approvalRate >= 1 {
		return Authorization{Approved: true, ExternalID: newExternalID()}
	}
	reason, ok := refusalReasons[roll-threshold]
	if !ok {
		reason = "unknown reason"
	}
	return Authorization{Approved: false, Reason: reason}
}

func newExternalID() string {
	return "MP-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
}
