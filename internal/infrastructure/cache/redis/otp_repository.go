package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"gym-management/internal/domain/otp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const maxWatchRetries = 4

type otpRecord struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Code      string    `json:"code"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"created_at"`
}

// OTPRepository keeps OTP records in Redis. Each record lives under its own
// key with a TTL of otp.RetentionWindow; a per-email sorted set and a global
// sorted set, both scored by creation time in microseconds, index them.
type OTPRepository struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
}

func NewOTPRepository(client *goredis.Client, prefix string) *OTPRepository {
	if prefix == "" {
		prefix = "gym"
	}
	return &OTPRepository{client: client, prefix: prefix, ttl: otp.RetentionWindow}
}

func (r *OTPRepository) recordKey(id string) string {
	return r.prefix + ":otp:" + id
}

func (r *OTPRepository) emailKey(email string) string {
	return r.prefix + ":otp:email:" + email
}

func (r *OTPRepository) createdKey() string {
	return r.prefix + ":otp:created"
}

// createdMember packs id and email so the sweep can clean the email index
// after the record key itself has expired.
func createdMember(id, email string) string {
	return id + ":" + email
}

func score(t time.Time) float64 {
	return float64(t.UnixMicro())
}

func (r *OTPRepository) Create(ctx context.Context, o *otp.OTP) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(toRecord(o))
	if err != nil {
		return fmt.Errorf("failed to encode otp: %w", err)
	}

	id := o.ID.String()
	_, err = r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, r.recordKey(id), payload, r.ttl)
		pipe.ZAdd(ctx, r.emailKey(o.Email), goredis.Z{Score: score(o.CreatedAt), Member: id})
		pipe.Expire(ctx, r.emailKey(o.Email), r.ttl)
		pipe.ZAdd(ctx, r.createdKey(), goredis.Z{Score: score(o.CreatedAt), Member: createdMember(id, o.Email)})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create otp: %w", err)
	}

	return nil
}

func (r *OTPRepository) FindLatest(ctx context.Context, email, code string, verified bool, notBefore time.Time) (*otp.OTP, error) {
	ids, err := r.client.ZRevRangeByScore(ctx, r.emailKey(email), &goredis.ZRangeBy{
		Max: "+inf",
		Min: "(" + strconv.FormatInt(notBefore.UnixMicro(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to find otp: %w", err)
	}
	if len(ids) == 0 {
		return nil, otp.ErrOTPNotFound
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.recordKey(id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load otps: %w", err)
	}

	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		o, err := decode([]byte(raw))
		if err != nil {
			return nil, err
		}
		if o.Code == code && o.Verified == verified && o.CreatedAt.After(notBefore) {
			return o, nil
		}
	}

	return nil, otp.ErrOTPNotFound
}

func (r *OTPRepository) MarkVerified(ctx context.Context, id uuid.UUID) error {
	key := r.recordKey(id.String())

	for i := 0; i < maxWatchRetries; i++ {
		err := r.client.Watch(ctx, func(tx *goredis.Tx) error {
			raw, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			o, err := decode(raw)
			if err != nil {
				return err
			}
			o.Verified = true

			payload, err := json.Marshal(toRecord(o))
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
				pipe.SetArgs(ctx, key, payload, goredis.SetArgs{KeepTTL: true})
				return nil
			})
			return err
		}, key)

		switch {
		case errors.Is(err, goredis.TxFailedErr):
			continue
		case errors.Is(err, goredis.Nil):
			return otp.ErrOTPNotFound
		case err != nil:
			return fmt.Errorf("failed to mark otp verified: %w", err)
		}
		return nil
	}

	return fmt.Errorf("failed to mark otp verified: %w", goredis.TxFailedErr)
}

func (r *OTPRepository) DeleteByEmail(ctx context.Context, email string) (int64, error) {
	ids, err := r.client.ZRange(ctx, r.emailKey(email), 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to delete otps: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	keys := make([]string, len(ids))
	members := make([]interface{}, len(ids))
	for i, id := range ids {
		keys[i] = r.recordKey(id)
		members[i] = createdMember(id, email)
	}

	var deleted *goredis.IntCmd
	_, err = r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		deleted = pipe.Del(ctx, keys...)
		pipe.Del(ctx, r.emailKey(email))
		pipe.ZRem(ctx, r.createdKey(), members...)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete otps: %w", err)
	}

	return deleted.Val(), nil
}

// DeleteCreatedBefore removes every record created before cutoff, including
// index entries whose record key already expired. The count is of index
// entries removed.
func (r *OTPRepository) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	members, err := r.client.ZRangeByScore(ctx, r.createdKey(), &goredis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff.UnixMicro(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to sweep otps: %w", err)
	}
	if len(members) == 0 {
		return 0, nil
	}

	_, err = r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, member := range members {
			id, email, ok := strings.Cut(member, ":")
			if !ok {
				continue
			}
			pipe.Del(ctx, r.recordKey(id))
			pipe.ZRem(ctx, r.emailKey(email), id)
		}
		pipe.ZRemRangeByScore(ctx, r.createdKey(), "-inf", "("+strconv.FormatInt(cutoff.UnixMicro(), 10))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to sweep otps: %w", err)
	}

	return int64(len(members)), nil
}

func toRecord(o *otp.OTP) otpRecord {
	return otpRecord{
		ID:        o.ID.String(),
		Email:     o.Email,
		Code:      o.Code,
		Verified:  o.Verified,
		CreatedAt: o.CreatedAt.UTC(),
	}
}

func decode(raw []byte) (*otp.OTP, error) {
	var rec otpRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode otp: %w", err)
	}

	id, err := uuid.Parse(rec.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to decode otp id: %w", err)
	}

	return &otp.OTP{
		ID:        id,
		Email:     rec.Email,
		Code:      rec.Code,
		Verified:  rec.Verified,
		CreatedAt: rec.CreatedAt,
	}, nil
}
