package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"club19/internal/core/apperror"
	appctx "club19/internal/core/context"
	"club19/internal/core/id"
)

type memUsers struct {
	byEmail map[string]*User
}

func newMemUsers() *memUsers {
	return &memUsers{byEmail: make(map[string]*User)}
}

func (m *memUsers) Create(ctx context.Context, user *User) error {
	cp := *user
	m.byEmail[user.Email] = &cp
	return nil
}

func (m *memUsers) GetByEmail(ctx context.Context, email string) (*User, error) {
	u, ok := m.byEmail[email]
	if !ok {
		return nil, apperror.NewNotFound("user", email)
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) Update(ctx context.Context, user *User) error {
	cp := *user
	m.byEmail[user.Email] = &cp
	return nil
}

func newIdentity(t *testing.T) (*Service, *memUsers) {
	t.Helper()
	users := newMemUsers()
	jwtSvc := NewJWTService(DefaultJWTConfig("test-secret"))
	return NewService(users, jwtSvc, DefaultServiceConfig()), users
}

func TestLogin_IssuesValidToken(t *testing.T) {
	svc, _ := newIdentity(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "ops@club19.test", "correct horse", appctx.RoleOps)
	require.NoError(t, err)

	resp, err := svc.Login(ctx, LoginRequest{Email: "ops@club19.test", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, appctx.RoleOps, resp.Role)
	assert.True(t, resp.ExpiresAt.After(time.Now()))

	jwtSvc := NewJWTService(DefaultJWTConfig("test-secret"))
	actor, err := jwtSvc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), actor.UserID)
	assert.Equal(t, appctx.RoleOps, actor.Role)
	assert.True(t, actor.IsPrivileged())
}

func TestLogin_ShopperClaimRoundTrip(t *testing.T) {
	svc, users := newIdentity(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "shopper@club19.test", "long enough", appctx.RoleShopper)
	require.NoError(t, err)

	shopperID := id.New()
	stored := users.byEmail["shopper@club19.test"]
	stored.ShopperID = &shopperID

	resp, err := svc.Login(ctx, LoginRequest{Email: "shopper@club19.test", Password: "long enough"})
	require.NoError(t, err)

	jwtSvc := NewJWTService(DefaultJWTConfig("test-secret"))
	actor, err := jwtSvc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, shopperID, actor.ShopperID)
	assert.False(t, actor.IsPrivileged())
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, _ := newIdentity(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "ops@club19.test", "correct horse", appctx.RoleOps)
	require.NoError(t, err)

	_, err = svc.Login(ctx, LoginRequest{Email: "ops@club19.test", Password: "wrong"})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeUnauthorized, appErr.Code)

	// Unknown email yields the same code.
	_, err = svc.Login(ctx, LoginRequest{Email: "nobody@club19.test", Password: "whatever"})
	appErr, ok = apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeUnauthorized, appErr.Code)
}

func TestLogin_LocksAfterRepeatedFailures(t *testing.T) {
	svc, users := newIdentity(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "ops@club19.test", "correct horse", appctx.RoleOps)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err = svc.Login(ctx, LoginRequest{Email: "ops@club19.test", Password: "wrong"})
		require.Error(t, err)
	}

	require.True(t, users.byEmail["ops@club19.test"].IsLocked())

	// Correct password is rejected while locked.
	_, err = svc.Login(ctx, LoginRequest{Email: "ops@club19.test", Password: "correct horse"})
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeForbidden, appErr.Code)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	svc, _ := newIdentity(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "ops@club19.test", "correct horse", appctx.RoleOps)
	require.NoError(t, err)

	resp, err := svc.Login(ctx, LoginRequest{Email: "ops@club19.test", Password: "correct horse"})
	require.NoError(t, err)

	other := NewJWTService(DefaultJWTConfig("other-secret"))
	_, err = other.ValidateToken(resp.AccessToken)
	require.Error(t, err)
}
