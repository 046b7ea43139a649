package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"annotation-auth/internal/domain"
)

var linkTokenPattern = regexp.MustCompile(`token=([A-Za-z0-9_-]+)`)

func secretFromEmail(t *testing.T, sender *mockEmailSender) string {
	t.Helper()
	m := linkTokenPattern.FindStringSubmatch(sender.last().Text)
	require.Len(t, m, 2, "expected magic link in email body")
	return m[1]
}

func TestMagicLink_RegisterAndRedeem(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture()

	res, err := f.magic.Request(ctx, MagicLinkRequest{Email: " New@X.com", IsRegister: true, Name: "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "ne***@x.com", res.MaskedEmail)

	msg := f.sender.last()
	assert.Equal(t, "new@x.com", msg.To)
	assert.Contains(t, msg.Text, "https://app.example.com/auth/verify?token=")
	secret := secretFromEmail(t, f.sender)

	stored := f.magicRepo.only()
	assert.Equal(t, HashSecret(secret), stored.TokenHash)
	assert.NotContains(t, stored.TokenHash, secret)
	assert.Equal(t, "Ada", stored.Name)
	assert.True(t, stored.IsRegister)
	assert.Equal(t, f.clock.Now().Add(15*time.Minute), stored.ExpiresAt)

	out, err := f.magic.Redeem(ctx, secret, SessionMeta{UserAgent: "test"})
	require.NoError(t, err)
	assert.True(t, out.IsNewUser)
	assert.Equal(t, "Ada", out.User.DisplayName)
	assert.Equal(t, "new@x.com", out.User.Email)
	assert.False(t, out.User.HasPassword())
	assert.NotEmpty(t, out.SessionSecret)
	assert.Equal(t, "Ada", f.tenants.calls[out.User.ID])

	identity, err := f.codec.Verify(out.Tokens.AccessToken, TokenAccess)
	require.NoError(t, err)
	assert.Equal(t, out.User.ID, identity.UserID)

	sessionIdentity, err := f.sessions.Validate(ctx, out.SessionSecret)
	require.NoError(t, err)
	assert.Equal(t, out.User.ID, sessionIdentity.UserID)
}

func TestMagicLink_SecondRedeemFails(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture()
	_, err := f.users.CreatePasswordless(ctx, "user@example.com", "User")
	require.NoError(t, err)

	_, err = f.magic.Request(ctx, MagicLinkRequest{Email: "user@example.com"})
	require.NoError(t, err)
	secret := secretFromEmail(t, f.sender)

	out, err := f.magic.Redeem(ctx, secret, SessionMeta{})
	require.NoError(t, err)
	assert.False(t, out.IsNewUser, "login against an existing account must not report a new user")

	_, err = f.magic.Redeem(ctx, secret, SessionMeta{})
	assert.True(t, errors.Is(err, domain.ErrUnauthorized), "got %v", err)
}

func TestMagicLink_ExpiredIsBurned(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture()
	_, err := f.users.CreatePasswordless(ctx, "user@example.com", "User")
	require.NoError(t, err)
	_, err = f.magic.Request(ctx, MagicLinkRequest{Email: "user@example.com"})
	require.NoError(t, err)
	secret := secretFromEmail(t, f.sender)

	f.clock.Advance(15*time.Minute + time.Second)
	_, err = f.magic.Redeem(ctx, secret, SessionMeta{})
	require.True(t, errors.Is(err, domain.ErrUnauthorized), "got %v", err)

	stored := f.magicRepo.only()
	require.NotNil(t, stored.UsedAt, "expired link must be burned on the first attempt")
	assert.Equal(t, 0, f.sessionRepo.count())

	_, err = f.magic.Redeem(ctx, secret, SessionMeta{})
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestMagicLink_ConcurrentRedeemHasOneWinner(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture()
	_, err := f.users.CreatePasswordless(ctx, "user@example.com", "User")
	require.NoError(t, err)
	_, err = f.magic.Request(ctx, MagicLinkRequest{Email: "user@example.com"})
	require.NoError(t, err)
	secret := secretFromEmail(t, f.sender)

	const attempts = 8
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			_, err := f.magic.Redeem(ctx, secret, SessionMeta{})
			results <- err
		}()
	}
	var ok, unauthorized int
	for i := 0; i < attempts; i++ {
		err := <-results
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrUnauthorized):
			unauthorized++
		default:
			t.Fatalf("losing a race must be unauthorized, got %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, attempts-1, unauthorized)
}

func TestMagicLink_RequestValidation(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture()
	_, err := f.users.CreatePasswordless(ctx, "taken@example.com", "Taken")
	require.NoError(t, err)

	_, err = f.magic.Request(ctx, MagicLinkRequest{Email: "taken@example.com", IsRegister: true, Name: "X"})
	assert.True(t, errors.Is(err, domain.ErrConflict), "got %v", err)

	_, err = f.magic.Request(ctx, MagicLinkRequest{Email: "fresh@example.com", IsRegister: true})
	assert.True(t, errors.Is(err, domain.ErrBadRequest), "got %v", err)

	_, err = f.magic.Request(ctx, MagicLinkRequest{Email: "nobody@example.com"})
	assert.True(t, errors.Is(err, domain.ErrNotFound), "got %v", err)

	_, err = f.magic.Request(ctx, MagicLinkRequest{Email: "not-an-email"})
	assert.True(t, errors.Is(err, domain.ErrBadRequest), "got %v", err)

	assert.Empty(t, f.sender.sent)
}

func TestMagicLink_RateLimited(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture()
	_, err := f.users.CreatePasswordless(ctx, "user@example.com", "User")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := f.magic.Request(ctx, MagicLinkRequest{Email: "user@example.com"})
		require.NoError(t, err)
		f.clock.Advance(time.Minute)
	}
	_, err = f.magic.Request(ctx, MagicLinkRequest{Email: "USER@example.com"})
	authErr, ok := domain.AsAuthError(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, domain.KindRateLimited, authErr.Kind)
	assert.Equal(t, 55*time.Minute, authErr.RetryAfter)
	assert.Len(t, f.sender.sent, 5)
}

func TestMagicLink_EmailFailureIsInternal(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture()
	f.sender.err = errors.New("smtp down")
	_, err := f.magic.Request(ctx, MagicLinkRequest{Email: "new@example.com", IsRegister: true, Name: "New"})
	require.Error(t, err)
	_, isAuth := domain.AsAuthError(err)
	assert.False(t, isAuth)
	assert.False(t, strings.Contains(err.Error(), secretFromEmail(t, f.sender)), "secret must not leak into errors")
}

func TestMagicLink_RedeemUnknownOrEmpty(t *testing.T) {
	f := newAuthFixture()
	_, err := f.magic.Redeem(context.Background(), "", SessionMeta{})
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
	_, err = f.magic.Redeem(context.Background(), "does-not-exist", SessionMeta{})
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestMagicLink_RegisterTokenForAccountCreatedMeanwhile(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture()
	_, err := f.magic.Request(ctx, MagicLinkRequest{Email: "race@example.com", IsRegister: true, Name: "Racer"})
	require.NoError(t, err)
	secret := secretFromEmail(t, f.sender)

	existing, err := f.users.Register(ctx, RegisterInput{Email: "race@example.com", Password: "password1", DisplayName: "First"})
	require.NoError(t, err)

	out, err := f.magic.Redeem(ctx, secret, SessionMeta{})
	require.NoError(t, err)
	assert.False(t, out.IsNewUser)
	assert.Equal(t, existing.ID, out.User.ID)
}
