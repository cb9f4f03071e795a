// Package testutil provides in-memory stores and recording collaborators
// for exercising the auth service without external infrastructure.
package testutil

import (
	"context"
	"gym-management/internal/domain/event"
	domainOTP "gym-management/internal/domain/otp"
	domainUser "gym-management/internal/domain/user"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// UserRepository is a mutex guarded user store. Rotation is a
// compare-and-swap like the SQL implementation.
type UserRepository struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domainUser.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[uuid.UUID]*domainUser.User)}
}

func cloneUser(u *domainUser.User) *domainUser.User {
	c := *u
	if u.RefreshToken != nil {
		token := *u.RefreshToken
		c.RefreshToken = &token
	}
	return &c
}

func (r *UserRepository) Create(_ context.Context, u *domainUser.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if existing.Email == u.Email || existing.Username == u.Username {
			return domainUser.ErrUserAlreadyExists
		}
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	r.users[u.ID] = cloneUser(u)
	return nil
}

func (r *UserRepository) find(match func(*domainUser.User) bool) (*domainUser.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if match(u) {
			return cloneUser(u), nil
		}
	}
	return nil, domainUser.ErrUserNotFound
}

func (r *UserRepository) GetByID(_ context.Context, id uuid.UUID) (*domainUser.User, error) {
	return r.find(func(u *domainUser.User) bool { return u.ID == id })
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*domainUser.User, error) {
	return r.find(func(u *domainUser.User) bool { return u.Email == email })
}

func (r *UserRepository) GetByUsername(_ context.Context, username string) (*domainUser.User, error) {
	return r.find(func(u *domainUser.User) bool { return u.Username == username })
}

func (r *UserRepository) GetAll(_ context.Context) ([]*domainUser.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	users := make([]*domainUser.User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, cloneUser(u))
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Email < users[j].Email })
	return users, nil
}

func (r *UserRepository) mutate(id uuid.UUID, fn func(*domainUser.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return domainUser.ErrUserNotFound
	}
	fn(u)
	return nil
}

func (r *UserRepository) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	return r.mutate(id, func(u *domainUser.User) {
		u.PasswordHashed = hash
		u.PasswordResetTokenHash = nil
		u.PasswordResetExpiresAt = nil
	})
}

func (r *UserRepository) UpdateStatus(_ context.Context, id uuid.UUID, status domainUser.Status) error {
	return r.mutate(id, func(u *domainUser.User) { u.Status = status })
}

func (r *UserRepository) UpdateRole(_ context.Context, id uuid.UUID, role domainUser.Role) error {
	return r.mutate(id, func(u *domainUser.User) { u.Role = role })
}

func (r *UserRepository) UpdateRefreshToken(_ context.Context, id uuid.UUID, token *string) error {
	return r.mutate(id, func(u *domainUser.User) {
		if token == nil {
			u.RefreshToken = nil
			return
		}
		t := *token
		u.RefreshToken = &t
	})
}

func (r *UserRepository) RotateRefreshToken(_ context.Context, id uuid.UUID, oldToken, newToken string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok || u.RefreshToken == nil || *u.RefreshToken != oldToken {
		return domainUser.ErrRefreshTokenMismatch
	}
	u.RefreshToken = &newToken
	return nil
}

func (r *UserRepository) SetPasswordReset(_ context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error {
	return r.mutate(id, func(u *domainUser.User) {
		u.PasswordResetTokenHash = &tokenHash
		u.PasswordResetExpiresAt = &expiresAt
	})
}

type OTPRepository struct {
	mu      sync.Mutex
	records []*domainOTP.OTP
}

func NewOTPRepository() *OTPRepository {
	return &OTPRepository{}
}

func (r *OTPRepository) Create(_ context.Context, o *domainOTP.OTP) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	c := *o
	r.records = append(r.records, &c)
	return nil
}

func (r *OTPRepository) FindLatest(_ context.Context, email, code string, verified bool, notBefore time.Time) (*domainOTP.OTP, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var latest *domainOTP.OTP
	for _, o := range r.records {
		if o.Email != email || o.Code != code || o.Verified != verified || !o.CreatedAt.After(notBefore) {
			continue
		}
		if latest == nil || o.CreatedAt.After(latest.CreatedAt) {
			latest = o
		}
	}
	if latest == nil {
		return nil, domainOTP.ErrOTPNotFound
	}
	c := *latest
	return &c, nil
}

func (r *OTPRepository) MarkVerified(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, o := range r.records {
		if o.ID == id {
			o.Verified = true
			return nil
		}
	}
	return domainOTP.ErrOTPNotFound
}

func (r *OTPRepository) DeleteByEmail(_ context.Context, email string) (int64, error) {
	return r.deleteWhere(func(o *domainOTP.OTP) bool { return o.Email == email }), nil
}

func (r *OTPRepository) DeleteCreatedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	return r.deleteWhere(func(o *domainOTP.OTP) bool { return o.CreatedAt.Before(cutoff) }), nil
}

func (r *OTPRepository) deleteWhere(match func(*domainOTP.OTP) bool) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.records[:0]
	var deleted int64
	for _, o := range r.records {
		if match(o) {
			deleted++
			continue
		}
		kept = append(kept, o)
	}
	r.records = kept
	return deleted
}

func (r *OTPRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

type RecordingSender struct {
	mu    sync.Mutex
	codes map[string][]string
	Err   error
}

func (s *RecordingSender) SendOTP(_ context.Context, email, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return s.Err
	}
	if s.codes == nil {
		s.codes = make(map[string][]string)
	}
	s.codes[email] = append(s.codes[email], code)
	return nil
}

func (s *RecordingSender) Last(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	codes := s.codes[email]
	if len(codes) == 0 {
		return ""
	}
	return codes[len(codes)-1]
}

type RecordingPublisher struct {
	mu     sync.Mutex
	events []event.AuthEvent
	Err    error
}

func (p *RecordingPublisher) Publish(_ context.Context, evt event.AuthEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, evt)
	return p.Err
}

func (p *RecordingPublisher) Types() []event.Type {
	p.mu.Lock()
	defer p.mu.Unlock()

	types := make([]event.Type, len(p.events))
	for i, e := range p.events {
		types[i] = e.Type
	}
	return types
}
