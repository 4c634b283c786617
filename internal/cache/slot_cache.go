package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/tutoring_portal/internal/model"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SlotCache кэш сверенных слотов дня (без разметки по смотрящему).
// Версию читают до запроса к хранилищу и передают в Get и Set: список,
// посчитанный до Invalidate, ложится под мёртвый ключ.
type SlotCache interface {
	Version(ctx context.Context, tutorID int64) (int64, error)
	Get(ctx context.Context, tutorID, version int64, date string) ([]model.Slot, bool, error)
	Set(ctx context.Context, tutorID, version int64, date string, slots []model.Slot) error
	// Invalidate сбрасывает все даты репетитора
	Invalidate(ctx context.Context, tutorID int64) error
}

// Redis обёртка над клиентом go-redis
type Redis struct {
	rdb    *goredis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedis создаёт подключение и выполняет Ping
func NewRedis(addr, password string, db int, ttl time.Duration, logger *zap.Logger) (*Redis, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	logger.Info("Connected to Redis", zap.String("addr", addr))

	return newRedis(rdb, ttl, logger), nil
}

func newRedis(rdb *goredis.Client, ttl time.Duration, logger *zap.Logger) *Redis {
	return &Redis{rdb: rdb, ttl: ttl, logger: logger}
}

// Ключи версионируются: инвалидация репетитора это INCR версии,
// старые записи доживают до TTL.
func versionKey(tutorID int64) string {
	return fmt.Sprintf("slots:ver:%d", tutorID)
}

func slotsKey(tutorID, version int64, date string) string {
	return fmt.Sprintf("slots:%d:v%d:%s", tutorID, version, date)
}

func (c *Redis) Version(ctx context.Context, tutorID int64) (int64, error) {
	v, err := c.rdb.Get(ctx, versionKey(tutorID)).Int64()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get slot cache version: %w", err)
	}
	return v, nil
}

func (c *Redis) Get(ctx context.Context, tutorID, version int64, date string) ([]model.Slot, bool, error) {
	raw, err := c.rdb.Get(ctx, slotsKey(tutorID, version, date)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cached slots: %w", err)
	}

	var slots []model.Slot
	if err := json.Unmarshal(raw, &slots); err != nil {
		return nil, false, fmt.Errorf("decode cached slots: %w", err)
	}

	return slots, true, nil
}

func (c *Redis) Set(ctx context.Context, tutorID, version int64, date string, slots []model.Slot) error {
	raw, err := json.Marshal(slots)
	if err != nil {
		return fmt.Errorf("encode slots: %w", err)
	}

	return c.rdb.Set(ctx, slotsKey(tutorID, version, date), raw, c.ttl).Err()
}

func (c *Redis) Invalidate(ctx context.Context, tutorID int64) error {
	if err := c.rdb.Incr(ctx, versionKey(tutorID)).Err(); err != nil {
		return fmt.Errorf("bump slot cache version: %w", err)
	}
	return nil
}

// Ping для readiness
func (c *Redis) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close закрывает соединение
func (c *Redis) Close() error {
	return c.rdb.Close()
}

// Nop кэш-заглушка, когда Redis не настроен
type Nop struct{}

func (Nop) Version(context.Context, int64) (int64, error) {
	return 0, nil
}

func (Nop) Get(context.Context, int64, int64, string) ([]model.Slot, bool, error) {
	return nil, false, nil
}

func (Nop) Set(context.Context, int64, int64, string, []model.Slot) error {
	return nil
}

func (Nop) Invalidate(context.Context, int64) error {
	return nil
}

var (
	_ SlotCache = (*Redis)(nil)
	_ SlotCache = Nop{}
)
