package bootstrap

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/poddon/concierge/internal/booking"
	appconfig "github.com/poddon/concierge/internal/config"
	"github.com/poddon/concierge/internal/coupon"
	"github.com/poddon/concierge/internal/quiz"
)

const (
	backendFile     = "file"
	backendPostgres = "postgres"
	backendRedis    = "redis"
	backendDynamo   = "dynamodb"
)

// Backends are the shared clients the durable tables are built on. Any of
// them may be nil when no table is configured to use it.
type Backends struct {
	Postgres *pgxpool.Pool
	Redis    *redis.Client
	Dynamo   *dynamodb.Client
}

// BuildReservationRepository selects the bookings table backend.
func BuildReservationRepository(cfg *appconfig.Config, b Backends, loc *time.Location) (booking.Repository, error) {
	switch cfg.StorageBackend {
	case "", backendFile:
		return booking.NewFileRepository(filepath.Join(cfg.DataDir, "bookings.csv"), loc), nil
	case backendPostgres:
		if b.Postgres == nil {
			return nil, fmt.Errorf("bootstrap: bookings: postgres pool not configured")
		}
		return booking.NewPostgresRepository(b.Postgres), nil
	}
	return nil, fmt.Errorf("bootstrap: unknown STORAGE_BACKEND %q", cfg.StorageBackend)
}

// BuildQuizStore selects the quiz_users table backend.
func BuildQuizStore(cfg *appconfig.Config, b Backends) (quiz.Store, error) {
	switch cfg.QuizStateBackend {
	case "", backendFile:
		return quiz.NewFileStore(filepath.Join(cfg.DataDir, "quiz_users.csv")), nil
	case backendRedis:
		if b.Redis == nil {
			return nil, fmt.Errorf("bootstrap: quiz state: redis not available")
		}
		return quiz.NewRedisStore(b.Redis), nil
	case backendPostgres:
		if b.Postgres == nil {
			return nil, fmt.Errorf("bootstrap: quiz state: postgres pool not configured")
		}
		return quiz.NewPostgresStore(b.Postgres), nil
	}
	return nil, fmt.Errorf("bootstrap: unknown QUIZ_STATE_BACKEND %q", cfg.QuizStateBackend)
}

// BuildCouponLedger selects the coupons table backend.
func BuildCouponLedger(cfg *appconfig.Config, b Backends) (coupon.Ledger, error) {
	switch cfg.CouponLedgerBackend {
	case "", backendFile:
		return coupon.NewFileLedger(filepath.Join(cfg.DataDir, "coupons.csv")), nil
	case backendPostgres:
		if b.Postgres == nil {
			return nil, fmt.Errorf("bootstrap: coupons: postgres pool not configured")
		}
		return coupon.NewPostgresLedger(b.Postgres), nil
	case backendDynamo:
		if b.Dynamo == nil {
			return nil, fmt.Errorf("bootstrap: coupons: dynamodb client not configured")
		}
		return coupon.NewDynamoLedger(b.Dynamo, cfg.CouponTable), nil
	}
	return nil, fmt.Errorf("bootstrap: unknown COUPON_LEDGER_BACKEND %q", cfg.CouponLedgerBackend)
}
