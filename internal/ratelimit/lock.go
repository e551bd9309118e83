package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	redis "github.com/redis/go-redis/v9"
)

var (
	ErrLockNotConfigured = errors.New("job lock: redis not configured")
	ErrInvalidLock       = errors.New("job lock: key and ttl are required")
)

// releaseIfOwner deletes the key only while it still holds our token, so a
// run that overstayed its ttl cannot drop the lock of the instance after it.
var releaseIfOwner = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker hands out single-holder leases on scheduler jobs. Tokens name the
// holding instance so a skipped run can say who ran instead.
type Locker struct {
	client   *redis.Client
	instance string
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{client: client, instance: instanceName()}
}

// TryLock takes key for ttl. It returns the lease token, or ok=false when
// another instance holds the job.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", false, ErrLockNotConfigured
	}
	if key == "" || ttl <= 0 {
		return "", false, ErrInvalidLock
	}

	token := leaseToken(l.instance)
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Holder reports which instance holds key, or "" when it is free.
func (l *Locker) Holder(ctx context.Context, key string) (string, error) {
	if l == nil || l.client == nil {
		return "", ErrLockNotConfigured
	}
	token, err := l.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return leaseHolder(token), nil
}

func (l *Locker) Release(ctx context.Context, key, token string) error {
	if l == nil || l.client == nil || key == "" || token == "" {
		return nil
	}
	return releaseIfOwner.Run(ctx, l.client, []string{key}, token).Err()
}

func instanceName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return fmt.Sprintf("%s:%d", host, os.Getpid())
}

func leaseToken(instance string) string {
	return instance + "/" + ulid.Make().String()
}

func leaseHolder(token string) string {
	if i := strings.LastIndex(token, "/"); i > 0 {
		return token[:i]
	}
	return token
}
