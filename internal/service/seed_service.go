package service

import (
	"context"
	"errors"
	"time"

	"go-inventory-tree/pkg/logger"

	"github.com/bsm/redislock"
	"go.uber.org/zap"
)

// SeedOptions selects what Seed inserts.
type SeedOptions struct {
	EntityTypes   bool
	Admin         bool
	AdminUsername string
	AdminEmail    string
	AdminPassword string
}

type SeedReport struct {
	EntityTypesInserted int64 `json:"entity_types_inserted"`
	AdminCreated        bool  `json:"admin_created"`
}

// Seeder runs the startup seed once per deployment. With redis configured
// the run is guarded by a distributed lock; the inserts are idempotent, so
// a missing or contended lock only costs duplicate work.
type Seeder struct {
	types   EntityTypeService
	users   UserService
	locker  *redislock.Client
	lockKey string
	lockTTL time.Duration
}

func NewSeeder(types EntityTypeService, users UserService, locker *redislock.Client, lockKey string, lockTTL time.Duration) *Seeder {
	return &Seeder{types: types, users: users, locker: locker, lockKey: lockKey, lockTTL: lockTTL}
}

func (s *Seeder) Seed(ctx context.Context, opts SeedOptions) (*SeedReport, error) {
	if s.locker != nil {
		lock, err := s.locker.Obtain(ctx, s.lockKey, s.lockTTL, &redislock.Options{
			RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(200*time.Millisecond), 25),
		})
		switch {
		case errors.Is(err, redislock.ErrNotObtained):
			logger.Warn("seed lock held elsewhere; seeding without it", zap.String("key", s.lockKey))
		case err != nil:
			logger.Warn("error obtaining seed lock; seeding without it", zap.Error(err))
		default:
			defer func() {
				if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
					logger.Warn("release seed lock", zap.Error(err))
				}
			}()
		}
	}

	report := &SeedReport{}
	if opts.EntityTypes {
		inserted, err := s.types.EnsureDefaults(ctx)
		if err != nil {
			return nil, err
		}
		report.EntityTypesInserted = inserted
	}
	if opts.Admin {
		created, err := s.users.EnsureAdmin(ctx, opts.AdminUsername, opts.AdminEmail, opts.AdminPassword)
		if err != nil {
			return nil, err
		}
		report.AdminCreated = created
		if created {
			logger.Info("created bootstrap administrator", zap.String("username", opts.AdminUsername))
		}
	}
	return report, nil
}
