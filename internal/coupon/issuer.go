package coupon

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/poddon/concierge/internal/chat"
	"github.com/poddon/concierge/internal/observability/metrics"
	"github.com/poddon/concierge/pkg/logging"
)

var tracer = otel.Tracer("concierge.internal.coupon")

const defaultMaxAttempts = 10000

// Issuer draws random codes until the ledger accepts one.
type Issuer struct {
	ledger      Ledger
	random      io.Reader
	maxAttempts int
	now         func() time.Time
	logger      *logging.Logger
	metrics     *metrics.BotMetrics
}

// Option customizes an Issuer.
type Option func(*Issuer)

// WithMaxAttempts bounds the random draws before the clock fallback.
func WithMaxAttempts(n int) Option {
	return func(i *Issuer) {
		if n > 0 {
			i.maxAttempts = n
		}
	}
}

// WithRandom replaces crypto/rand as the entropy source.
func WithRandom(r io.Reader) Option {
	return func(i *Issuer) {
		if r != nil {
			i.random = r
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		if now != nil {
			i.now = now
		}
	}
}

func WithMetrics(m *metrics.BotMetrics) Option {
	return func(i *Issuer) { i.metrics = m }
}

// NewIssuer returns an Issuer writing to ledger.
func NewIssuer(ledger Ledger, logger *logging.Logger, opts ...Option) *Issuer {
	if ledger == nil {
		panic("coupon: ledger cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	i := &Issuer{
		ledger:      ledger,
		random:      rand.Reader,
		maxAttempts: defaultMaxAttempts,
		now:         time.Now,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Issue records a fresh code for user and returns the ledger row. The row
// is persisted before Issue returns, so a code handed to a user is always
// in the ledger. A user who already holds a code gets that row back.
func (i *Issuer) Issue(ctx context.Context, user chat.User) (Record, error) {
	ctx, span := tracer.Start(ctx, "coupon.issue")
	defer span.End()

	existing, ok, err := i.ledger.ByUser(ctx, user.ID)
	if err != nil {
		span.RecordError(err)
		return Record{}, fmt.Errorf("coupon: look up user: %w", err)
	}
	if ok {
		span.SetAttributes(attribute.Bool("coupon.reused", true))
		i.logger.Warn("coupon: user already holds a code, reusing it", "user_id", user.ID)
		return existing, nil
	}

	rec := Record{UserID: user.ID, Username: user.Username, DisplayName: user.DisplayName}
	for attempt := 0; attempt < i.maxAttempts; attempt++ {
		code, err := GenerateCode(i.random)
		if err != nil {
			span.RecordError(err)
			return Record{}, err
		}
		rec.Code = code
		rec.IssuedAt = i.now()
		err = i.ledger.Reserve(ctx, rec)
		if errors.Is(err, ErrCodeTaken) {
			continue
		}
		if err != nil {
			span.RecordError(err)
			return Record{}, fmt.Errorf("coupon: reserve code: %w", err)
		}
		span.SetAttributes(attribute.Int("coupon.attempts", attempt+1))
		i.metrics.ObserveCoupon(false)
		i.logger.Info("coupon: issued", "user_id", user.ID, "attempts", attempt+1)
		return rec, nil
	}

	rec.IssuedAt = i.now()
	rec.Code = rec.IssuedAt.Format("150405")
	i.logger.Warn("coupon: random draws exhausted, using clock code", "user_id", user.ID, "attempts", i.maxAttempts)
	if err := i.ledger.Reserve(ctx, rec); err != nil {
		span.RecordError(err)
		if errors.Is(err, ErrCodeTaken) {
			return Record{}, ErrExhausted
		}
		return Record{}, fmt.Errorf("coupon: reserve fallback code: %w", err)
	}
	i.metrics.ObserveCoupon(true)
	return rec, nil
}

// GenerateCode reads a uniformly distributed zero-padded six-digit code.
func GenerateCode(r io.Reader) (string, error) {
	var buf [4]byte
	for {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return "", fmt.Errorf("coupon: read random: %w", err)
		}
		n := uint32(buf[0])<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3])
		// reject the tail that would bias the modulo
		if n >= (1<<32)/1000000*1000000 {
			continue
		}
		return fmt.Sprintf("%0*d", CodeLength, n%1000000), nil
	}
}
