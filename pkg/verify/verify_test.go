package verify

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeRoles struct {
	granted []string
	err     error
}

func (f *fakeRoles) AddMemberRole(_ context.Context, guildID, userID, roleID string) error {
	if f.err != nil {
		return f.err
	}
	f.granted = append(f.granted, guildID+"/"+userID+"/"+roleID)
	return nil
}

func fixedDigits(digits ...byte) Option {
	return WithDigitSource(func(int) []byte {
		return append([]byte(nil), digits...)
	})
}

func newVerifier(roles Roles, opts ...Option) *Verifier {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)), roles, "verified", opts...)
}

func TestVerifier_ChallengeIsPNG(t *testing.T) {
	v := newVerifier(new(fakeRoles))

	img, err := v.Challenge("user")
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(img, []byte("\x89PNG\r\n\x1a\n")))

	digits, ok := v.pending.Get("user")
	require.True(t, ok)
	require.Len(t, digits, DefaultLength)
	for _, d := range digits {
		require.Less(t, d, byte(10))
	}
}

func TestVerifier_Verify(t *testing.T) {
	tests := []struct {
		name    string
		answer  string
		wantErr error
	}{
		{name: "correct", answer: "401927"},
		{name: "spaces ignored", answer: " 401 927 "},
		{name: "wrong digit", answer: "401928", wantErr: ErrWrongAnswer},
		{name: "too short", answer: "40192", wantErr: ErrWrongAnswer},
		{name: "letters", answer: "4o1927", wantErr: ErrWrongAnswer},
		{name: "empty", answer: "", wantErr: ErrWrongAnswer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			roles := new(fakeRoles)
			v := newVerifier(roles, fixedDigits(4, 0, 1, 9, 2, 7))

			_, err := v.Challenge("user")
			require.NoError(t, err)

			err = v.Verify(context.Background(), "guild", "user", tt.answer)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				require.Empty(t, roles.granted)
			} else {
				require.NoError(t, err)
				require.Equal(t, []string{"guild/user/verified"}, roles.granted)
			}

			// The challenge is spent either way.
			require.ErrorIs(t, v.Verify(context.Background(), "guild", "user", "401927"), ErrNoChallenge)
		})
	}
}

func TestVerifier_NoChallenge(t *testing.T) {
	v := newVerifier(new(fakeRoles))
	require.ErrorIs(t, v.Verify(context.Background(), "guild", "user", "123456"), ErrNoChallenge)
}

func TestVerifier_ChallengeReplacesEarlier(t *testing.T) {
	next := byte(1)
	v := newVerifier(new(fakeRoles), WithLength(2), WithDigitSource(func(n int) []byte {
		out := bytes.Repeat([]byte{next}, n)
		next++
		return out
	}))

	_, err := v.Challenge("user")
	require.NoError(t, err)
	_, err = v.Challenge("user")
	require.NoError(t, err)

	require.NoError(t, v.Verify(context.Background(), "guild", "user", "22"))
}

func TestVerifier_ChallengeExpires(t *testing.T) {
	v := newVerifier(new(fakeRoles), WithTTL(20*time.Millisecond), fixedDigits(1, 2, 3))

	_, err := v.Challenge("user")
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)
	require.ErrorIs(t, v.Verify(context.Background(), "guild", "user", "123"), ErrNoChallenge)
}

func TestVerifier_RoleGrantFails(t *testing.T) {
	roles := &fakeRoles{err: errors.New("missing permissions")}
	v := newVerifier(roles, fixedDigits(5, 5))

	_, err := v.Challenge("user")
	require.NoError(t, err)

	err = v.Verify(context.Background(), "guild", "user", "55")
	require.ErrorContains(t, err, "missing permissions")
	require.NotErrorIs(t, err, ErrWrongAnswer)
}
