package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/campusride/api-go/config"
	"github.com/campusride/api-go/models"
	"github.com/campusride/api-go/testutil"
	"github.com/campusride/api-go/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type fakeGoogle struct {
	info *config.GoogleUserInfo
	err  error
}

func (g *fakeGoogle) VerifyIDToken(context.Context, string) (*config.GoogleUserInfo, error) {
	return g.info, g.err
}

type authFixture struct {
	db     *gorm.DB
	svc    *AuthService
	store  *MemoryVerificationStore
	mailer *recordingMailer
	tokens *utils.TokenManager
}

var testAuthSettings = AuthSettings{
	EmailDomain:    "@cornell.edu",
	UniversityName: "Cornell University",
	FrontendURL:    "https://campusride.test/",
	BcryptCost:     bcrypt.MinCost,
}

func newAuthFixture(t *testing.T, google GoogleVerifier) *authFixture {
	db := testutil.NewDB(t)
	store := NewMemoryVerificationStore()
	mailer := &recordingMailer{}
	tokens := utils.NewTokenManager("test-secret", time.Hour, 24*time.Hour)
	return &authFixture{
		db:     db,
		svc:    NewAuthService(db, tokens, store, mailer, google, testAuthSettings, nil),
		store:  store,
		mailer: mailer,
		tokens: tokens,
	}
}

func (f *authFixture) register(t *testing.T, email string) (*models.User, string) {
	t.Helper()
	res, err := f.svc.Register(context.Background(), RegisterInput{Email: email, Password: "Passw0rd"})
	require.NoError(t, err)
	require.NotNil(t, res.User.VerificationToken)
	return res.User, *res.User.VerificationToken
}

func TestRegisterValidatesBeforeStorage(t *testing.T) {
	// A nil database proves that rejected registrations never reach storage.
	tokens := utils.NewTokenManager("test-secret", time.Hour, 24*time.Hour)
	svc := NewAuthService(nil, tokens, nil, nil, nil, testAuthSettings, nil)

	cases := []struct {
		name     string
		email    string
		password string
	}{
		{"wrong domain", "someone@gmail.com", "abcd1234"},
		{"lookalike domain", "someone@cornell.edu.evil.com", "abcd1234"},
		{"short password", "abc12@cornell.edu", "abc123"},
		{"long password", "abc12@cornell.edu", "abcd12345"},
		{"symbol in password", "abc12@cornell.edu", "abcd123!"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), RegisterInput{Email: tc.email, Password: tc.password})
			e := appErr(t, err)
			assert.Equal(t, utils.CodeValidation, e.Code)
			assert.Equal(t, http.StatusBadRequest, e.Status)
		})
	}
}

func TestDemoAccountNeedsNoDatabase(t *testing.T) {
	tokens := utils.NewTokenManager("test-secret", time.Hour, 24*time.Hour)
	svc := NewAuthService(nil, tokens, nil, nil, nil, testAuthSettings, nil)
	ctx := context.Background()

	for _, call := range []func() (*AuthResult, error){
		func() (*AuthResult, error) {
			return svc.Register(ctx, RegisterInput{Email: "Demo@Cornell.edu", Password: DemoPassword})
		},
		func() (*AuthResult, error) {
			return svc.Login(ctx, LoginInput{Email: DemoEmail, Password: DemoPassword})
		},
	} {
		res, err := call()
		require.NoError(t, err)
		assert.Equal(t, DemoUserID, res.User.ID)
		assert.Equal(t, int64(DemoPoints), res.User.Points)
		require.NotNil(t, res.TokenPair)

		claims, err := svc.Authenticate(ctx, res.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, DemoUserID, claims.UserID)
		assert.Equal(t, "user", claims.Role)
	}
}

func TestRegisterVerifyLogin(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()

	res, err := f.svc.Register(ctx, RegisterInput{Email: " AB123@cornell.edu ", Password: "Passw0rd"})
	require.NoError(t, err)
	assert.True(t, res.RequiresVerification)
	assert.Nil(t, res.TokenPair)
	user := res.User
	assert.Equal(t, "ab123@cornell.edu", user.Email)
	assert.Equal(t, "ab123", user.StudentID)
	assert.Equal(t, "User", user.FirstName)
	assert.Equal(t, "ab123", user.LastName)
	assert.Equal(t, "Cornell University", user.University)
	assert.False(t, user.IsVerified)
	assert.Zero(t, user.Points)

	token := *user.VerificationToken
	_, ok, _ := f.store.Get(ctx, token)
	assert.True(t, ok)
	require.Len(t, f.mailer.sent, 1)
	assert.Contains(t, f.mailer.sent[0].PlainText, "https://campusride.test/verify-email/"+token)

	_, err = f.svc.Register(ctx, RegisterInput{Email: "ab123@cornell.edu", Password: "Other123"})
	assert.Equal(t, utils.CodeAlreadyExists, appErr(t, err).Code)

	_, err = f.svc.Login(ctx, LoginInput{Email: "ab123@cornell.edu", Password: "Passw0rd"})
	e := appErr(t, err)
	assert.Equal(t, utils.CodeEmailNotVerified, e.Code)
	assert.Equal(t, http.StatusForbidden, e.Status)

	verified, err := f.svc.VerifyEmail(ctx, token)
	require.NoError(t, err)
	assert.True(t, verified.User.IsVerified)
	require.NotNil(t, verified.TokenPair)
	_, ok, _ = f.store.Get(ctx, token)
	assert.False(t, ok, "token is consumed")

	var stored models.User
	require.NoError(t, f.db.First(&stored, "id = ?", user.ID).Error)
	assert.Equal(t, models.VerificationVerified, stored.VerificationStatus)
	assert.Nil(t, stored.VerificationToken)

	login, err := f.svc.Login(ctx, LoginInput{Email: "AB123@cornell.edu", Password: "Passw0rd"})
	require.NoError(t, err)
	assert.NotNil(t, login.User.LastLoginAt)
	claims, err := f.svc.Authenticate(ctx, login.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "ab123@cornell.edu", claims.Email)
}

func TestVerifyEmailEdgeCases(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.VerifyEmail(ctx, "no-such-token")
	e := appErr(t, err)
	assert.Equal(t, utils.CodeTokenInvalid, e.Code)
	assert.Equal(t, http.StatusBadRequest, e.Status)

	// The users table is the fallback when the store has lost the token.
	_, fallback := f.register(t, "fb1@cornell.edu")
	require.NoError(t, f.store.Close())
	res, err := f.svc.VerifyEmail(ctx, fallback)
	require.NoError(t, err)
	assert.True(t, res.User.IsVerified)

	_, stale := f.register(t, "old1@cornell.edu")
	f.svc.Now = func() time.Time { return time.Now().UTC().Add(25 * time.Hour) }
	_, err = f.svc.VerifyEmail(ctx, stale)
	assert.Equal(t, utils.CodeTokenExpired, appErr(t, err).Code)
	f.svc.Now = defaultNow

	done, token := f.register(t, "done1@cornell.edu")
	require.NoError(t, f.db.Model(&models.User{}).Where("id = ?", done.ID).Update("is_verified", true).Error)
	res, err = f.svc.VerifyEmail(ctx, token)
	require.NoError(t, err)
	assert.True(t, res.AlreadyVerified)
	assert.Nil(t, res.TokenPair)
}

func TestLoginFailures(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()
	hash, err := bcrypt.GenerateFromPassword([]byte("Passw0rd"), bcrypt.MinCost)
	require.NoError(t, err)
	active := testutil.CreateUser(t, f.db, "Ana")
	inactive := testutil.CreateUser(t, f.db, "Ivo", testutil.Inactive())
	for _, id := range []string{active.ID, inactive.ID} {
		require.NoError(t, f.db.Model(&models.User{}).Where("id = ?", id).Update("password_hash", string(hash)).Error)
	}

	_, err = f.svc.Login(ctx, LoginInput{Email: active.Email, Password: "Wrong000"})
	assert.Equal(t, utils.CodeInvalidCredentials, appErr(t, err).Code)

	_, err = f.svc.Login(ctx, LoginInput{Email: "nobody@cornell.edu", Password: "Passw0rd"})
	assert.Equal(t, utils.CodeInvalidCredentials, appErr(t, err).Code)

	_, err = f.svc.Login(ctx, LoginInput{Email: inactive.Email, Password: "Passw0rd"})
	assert.Equal(t, utils.CodeAccessDenied, appErr(t, err).Code)

	res, err := f.svc.Login(ctx, LoginInput{Email: active.Email, Password: "Passw0rd"})
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&models.User{}).Where("id = ?", active.ID).Update("is_active", false).Error)
	_, err = f.svc.Authenticate(ctx, res.AccessToken)
	assert.Equal(t, http.StatusForbidden, appErr(t, err).Status)
}

func TestRefreshRotatesTokens(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()
	_, token := f.register(t, "rot1@cornell.edu")
	first, err := f.svc.VerifyEmail(ctx, token)
	require.NoError(t, err)

	_, err = f.svc.Refresh(ctx, first.AccessToken)
	assert.Equal(t, utils.CodeTokenInvalid, appErr(t, err).Code, "access tokens cannot refresh")

	second, err := f.svc.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	_, err = f.svc.Refresh(ctx, first.RefreshToken)
	assert.Equal(t, utils.CodeTokenInvalid, appErr(t, err).Code, "rotated token is revoked")

	require.NoError(t, f.svc.Logout(ctx, second.User.ID))
	_, err = f.svc.Refresh(ctx, second.RefreshToken)
	assert.Equal(t, utils.CodeTokenInvalid, appErr(t, err).Code)

	var n int64
	f.db.Model(&models.RefreshToken{}).Where("user_id = ?", second.User.ID).Count(&n)
	assert.Zero(t, n)
}

func TestRefreshRejectsExpiredRow(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()
	_, token := f.register(t, "exp1@cornell.edu")
	res, err := f.svc.VerifyEmail(ctx, token)
	require.NoError(t, err)

	f.svc.Now = func() time.Time { return time.Now().UTC().Add(48 * time.Hour) }
	_, err = f.svc.Refresh(ctx, res.RefreshToken)
	assert.Equal(t, utils.CodeTokenExpired, appErr(t, err).Code)

	var n int64
	f.db.Model(&models.RefreshToken{}).Where("token = ?", res.RefreshToken).Count(&n)
	assert.Zero(t, n, "expired row is dropped")
}

func TestResendVerification(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()

	f.svc.ResendVerification(ctx, "ghost@cornell.edu")
	assert.Empty(t, f.mailer.sent)

	user, old := f.register(t, "rs1@cornell.edu")
	f.svc.ResendVerification(ctx, "RS1@cornell.edu")
	require.Len(t, f.mailer.sent, 2)

	var stored models.User
	require.NoError(t, f.db.First(&stored, "id = ?", user.ID).Error)
	require.NotNil(t, stored.VerificationToken)
	assert.NotEqual(t, old, *stored.VerificationToken)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(f.mailer.sent[1].PlainText), *stored.VerificationToken))

	verified := testutil.CreateUser(t, f.db, "Vera")
	f.svc.ResendVerification(ctx, verified.Email)
	assert.Len(t, f.mailer.sent, 2)
}

func TestGoogleLogin(t *testing.T) {
	ctx := context.Background()

	f := newAuthFixture(t, nil)
	_, err := f.svc.GoogleLogin(ctx, "id-token")
	assert.Equal(t, http.StatusServiceUnavailable, appErr(t, err).Status)

	google := &fakeGoogle{info: &config.GoogleUserInfo{
		Sub: "g-1", Email: "gg42@cornell.edu", EmailVerified: "true", GivenName: "Grace",
	}}
	f = newAuthFixture(t, google)
	res, err := f.svc.GoogleLogin(ctx, "id-token")
	require.NoError(t, err)
	assert.True(t, res.User.IsVerified)
	assert.Equal(t, "Grace", res.User.FirstName)
	assert.Equal(t, "gg42", res.User.LastName)
	require.NotNil(t, res.TokenPair)

	again, err := f.svc.GoogleLogin(ctx, "id-token")
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, again.User.ID)

	google.info = &config.GoogleUserInfo{Sub: "g-2", Email: "x@gmail.com", EmailVerified: "true"}
	_, err = f.svc.GoogleLogin(ctx, "id-token")
	assert.Equal(t, utils.CodeValidation, appErr(t, err).Code)

	google.info = &config.GoogleUserInfo{Sub: "g-3", Email: "nv1@cornell.edu", EmailVerified: "false"}
	_, err = f.svc.GoogleLogin(ctx, "id-token")
	assert.Equal(t, utils.CodeEmailNotVerified, appErr(t, err).Code)

	google.err = errors.New("bad token")
	_, err = f.svc.GoogleLogin(ctx, "id-token")
	assert.Equal(t, utils.CodeTokenInvalid, appErr(t, err).Code)
}

func TestGoogleLoginLinksExistingAccount(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, &fakeGoogle{info: &config.GoogleUserInfo{
		Sub: "g-9", Email: "link1@cornell.edu", EmailVerified: "true", Picture: "https://img.test/p.png",
	}})
	user, _ := f.register(t, "link1@cornell.edu")

	res, err := f.svc.GoogleLogin(ctx, "id-token")
	require.NoError(t, err)
	assert.Equal(t, user.ID, res.User.ID)
	assert.True(t, res.User.IsVerified)

	var stored models.User
	require.NoError(t, f.db.First(&stored, "id = ?", user.ID).Error)
	require.NotNil(t, stored.GoogleID)
	assert.Equal(t, "g-9", *stored.GoogleID)
	assert.Equal(t, "https://img.test/p.png", stored.AvatarURL)
}

func TestCheckEmail(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()
	f.register(t, "taken1@cornell.edu")

	check, err := f.svc.CheckEmail(ctx, "Taken1@cornell.edu")
	require.NoError(t, err)
	assert.Equal(t, EmailCheck{Email: "taken1@cornell.edu", ValidDomain: true, Exists: true}, *check)

	check, err = f.svc.CheckEmail(ctx, "free1@cornell.edu")
	require.NoError(t, err)
	assert.False(t, check.Exists)

	check, err = f.svc.CheckEmail(ctx, "x@gmail.com")
	require.NoError(t, err)
	assert.False(t, check.ValidDomain)
}
