// Package verify holds new members back until they solve an image CAPTCHA,
// then grants them the verified role.
package verify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Jacobbrewer1/plexcord/pkg/logging"
	"github.com/dchest/captcha"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultLength = 6
	DefaultTTL    = 5 * time.Minute

	// maxPending bounds the challenges held at once. The oldest is dropped
	// first.
	maxPending = 1024
)

var (
	// ErrNoChallenge is returned when the user has no unexpired challenge.
	ErrNoChallenge = errors.New("no pending challenge")

	// ErrWrongAnswer is returned when the answer does not match the image.
	ErrWrongAnswer = errors.New("wrong answer")
)

// Roles grants guild roles.
type Roles interface {
	AddMemberRole(ctx context.Context, guildID, userID, roleID string) error
}

// Option configures a Verifier.
type Option func(v *Verifier)

// WithLength sets the number of digits in a challenge.
func WithLength(n int) Option {
	return func(v *Verifier) {
		if n > 0 {
			v.length = n
		}
	}
}

// WithTTL sets how long a challenge can be answered.
func WithTTL(ttl time.Duration) Option {
	return func(v *Verifier) {
		if ttl > 0 {
			v.ttl = ttl
		}
	}
}

// WithDigitSource replaces the random digit generator.
func WithDigitSource(fn func(length int) []byte) Option {
	return func(v *Verifier) {
		v.digits = fn
	}
}

// Verifier issues and checks CAPTCHA challenges, one per user.
type Verifier struct {
	l      *slog.Logger
	roles  Roles
	roleID string

	length  int
	ttl     time.Duration
	digits  func(length int) []byte
	pending *expirable.LRU[string, []byte]
}

// New creates a Verifier that grants roleID once a challenge is solved.
func New(l *slog.Logger, roles Roles, roleID string, opts ...Option) *Verifier {
	v := &Verifier{
		l:      l,
		roles:  roles,
		roleID: roleID,
		length: DefaultLength,
		ttl:    DefaultTTL,
		digits: captcha.RandomDigits,
	}
	for _, opt := range opts {
		opt(v)
	}
	v.pending = expirable.NewLRU[string, []byte](maxPending, nil, v.ttl)
	return v
}

// Length is the number of digits the user has to type.
func (v *Verifier) Length() int {
	return v.length
}

// Challenge issues a new challenge for the user, replacing any earlier one,
// and returns it rendered as a PNG.
func (v *Verifier) Challenge(userID string) ([]byte, error) {
	digits := v.digits(v.length)

	buf := new(bytes.Buffer)
	if _, err := captcha.NewImage(userID, digits, captcha.StdWidth, captcha.StdHeight).WriteTo(buf); err != nil {
		return nil, fmt.Errorf("error rendering captcha: %w", err)
	}

	v.pending.Add(userID, digits)
	v.l.Debug("Issued captcha", slog.String(logging.KeyUserID, userID))
	return buf.Bytes(), nil
}

// Verify checks the user's answer and grants the verified role in the guild.
// A challenge can only be answered once, right or wrong.
func (v *Verifier) Verify(ctx context.Context, guildID, userID, answer string) error {
	digits, ok := v.pending.Get(userID)
	if !ok {
		return ErrNoChallenge
	}
	v.pending.Remove(userID)

	if !matches(digits, answer) {
		return ErrWrongAnswer
	}

	if err := v.roles.AddMemberRole(ctx, guildID, userID, v.roleID); err != nil {
		return fmt.Errorf("error granting verified role: %w", err)
	}

	v.l.Info("Member verified", slog.String(logging.KeyUserID, userID))
	return nil
}

// matches compares the typed answer to the digits, ignoring spaces.
func matches(digits []byte, answer string) bool {
	answer = strings.Join(strings.Fields(answer), "")
	if len(answer) != len(digits) {
		return false
	}
	for n, d := range digits {
		if answer[n] != '0'+d {
			return false
		}
	}
	return true
}
