package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/campusride/api-go/config"
	"github.com/campusride/api-go/models"
	"github.com/campusride/api-go/utils"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	DemoEmail    = "demo@cornell.edu"
	DemoPassword = "demo1234"
	DemoUserID   = "demo-user-001"
	DemoPoints   = 100

	DefaultBcryptCost = 12
)

var passwordPattern = regexp.MustCompile(`^[a-zA-Z0-9]{8}$`)

// DemoUser is the fixed account served without a database round trip.
func DemoUser() *models.User {
	return &models.User{
		Base:               models.Base{ID: DemoUserID},
		Email:              DemoEmail,
		FirstName:          "Demo",
		LastName:           "User",
		StudentID:          "demo",
		University:         "Cornell University",
		Role:               models.RoleUser,
		Points:             DemoPoints,
		IsActive:           true,
		IsVerified:         true,
		VerificationStatus: models.VerificationVerified,
	}
}

// GoogleVerifier checks a Google ID token. *config.GoogleConfig satisfies it.
type GoogleVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*config.GoogleUserInfo, error)
}

type AuthSettings struct {
	EmailDomain    string
	UniversityName string
	FrontendURL    string
	BcryptCost     int
}

type RegisterInput struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required"`
	FirstName string `json:"firstName" binding:"omitempty,max=50"`
	LastName  string `json:"lastName" binding:"omitempty,max=50"`
}

type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int64  `json:"expiresIn"`
}

type AuthResult struct {
	User *models.User `json:"user"`
	*TokenPair
	RequiresVerification bool `json:"requiresVerification,omitempty"`
	AlreadyVerified      bool `json:"alreadyVerified,omitempty"`
}

type AuthService struct {
	db       *gorm.DB
	tokens   *utils.TokenManager
	store    VerificationStore
	mailer   Mailer
	google   GoogleVerifier
	settings AuthSettings
	log      *slog.Logger
	Now      func() time.Time
}

func NewAuthService(db *gorm.DB, tokens *utils.TokenManager, store VerificationStore, mailer Mailer, google GoogleVerifier, settings AuthSettings, log *slog.Logger) *AuthService {
	if settings.BcryptCost == 0 {
		settings.BcryptCost = DefaultBcryptCost
	}
	if settings.EmailDomain == "" {
		settings.EmailDomain = "@cornell.edu"
	}
	return &AuthService{
		db:       db,
		tokens:   tokens,
		store:    store,
		mailer:   mailer,
		google:   google,
		settings: settings,
		log:      loggerOrDefault(log),
		Now:      defaultNow,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isDemo(email, password string) bool {
	return email == DemoEmail && password == DemoPassword
}

// validateRegistration runs every check that needs no storage.
func (s *AuthService) validateRegistration(email, password string) error {
	if !strings.HasSuffix(email, s.settings.EmailDomain) {
		return utils.NewValidationError("Email must end with " + s.settings.EmailDomain)
	}
	if !passwordPattern.MatchString(password) {
		return utils.NewValidationError("Password must be exactly 8 letters or digits")
	}
	return nil
}

func (s *AuthService) demoResult() (*AuthResult, error) {
	access, expiresAt, err := s.tokens.GenerateAccessToken(DemoUserID, string(models.RoleUser))
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		User: DemoUser(),
		TokenPair: &TokenPair{
			AccessToken: access,
			TokenType:   "Bearer",
			ExpiresIn:   int64(time.Until(expiresAt).Seconds()),
		},
	}, nil
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	email := normalizeEmail(in.Email)
	if isDemo(email, in.Password) {
		return s.demoResult()
	}
	if err := s.validateRegistration(email, in.Password); err != nil {
		return nil, err
	}

	var existing int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if existing > 0 {
		return nil, utils.NewAlreadyExists("An account with this email already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.settings.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	netid, _, _ := strings.Cut(email, "@")
	firstName, lastName := strings.TrimSpace(in.FirstName), strings.TrimSpace(in.LastName)
	if firstName == "" {
		firstName = "User"
	}
	if lastName == "" {
		lastName = netid
	}

	token := uuid.NewString()
	expires := s.Now().Add(VerificationTokenTTL)
	user := &models.User{
		Email:                 email,
		PasswordHash:          string(hash),
		FirstName:             firstName,
		LastName:              lastName,
		StudentID:             netid,
		University:            s.settings.UniversityName,
		Role:                  models.RoleUser,
		IsActive:              true,
		VerificationStatus:    models.VerificationUnverified,
		VerificationToken:     &token,
		VerificationExpiresAt: &expires,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.deliverVerification(ctx, user, token)
	return &AuthResult{User: user, RequiresVerification: true}, nil
}

// deliverVerification caches the token and mails the link. Both steps are best-effort; the DB
// column remains the fallback for verification.
func (s *AuthService) deliverVerification(ctx context.Context, user *models.User, token string) {
	if s.store != nil {
		if err := s.store.Put(ctx, token, user.Email, VerificationTokenTTL); err != nil {
			s.log.Warn("verification store put failed", "user_id", user.ID, "error", err)
		}
	}
	if s.mailer == nil {
		return
	}
	link := strings.TrimRight(s.settings.FrontendURL, "/") + "/verify-email/" + token
	if err := s.mailer.Send(ctx, verificationMail(user.Email, user.FirstName, link)); err != nil {
		s.log.Warn("verification email failed", "user_id", user.ID, "error", err)
	}
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	email := normalizeEmail(in.Email)
	if isDemo(email, in.Password) {
		return s.demoResult()
	}

	invalid := utils.NewUnauthorized(utils.CodeInvalidCredentials, "Invalid email or password")
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		if isNotFound(err) {
			return nil, invalid
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)) != nil {
		return nil, invalid
	}
	if !user.IsActive {
		return nil, utils.NewForbidden("Account is deactivated")
	}
	if !user.IsVerified {
		return nil, utils.NewAppError(http.StatusForbidden, utils.CodeEmailNotVerified, "Please verify your email before logging in")
	}

	now := s.Now()
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).Update("last_login_at", now).Error; err != nil {
		s.log.Warn("update last login failed", "user_id", user.ID, "error", err)
	} else {
		user.LastLoginAt = &now
	}

	pair, err := s.issue(s.db.WithContext(ctx), &user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: &user, TokenPair: pair}, nil
}

// issue signs a new token pair and persists the refresh token on tx.
func (s *AuthService) issue(tx *gorm.DB, user *models.User) (*TokenPair, error) {
	access, accessExp, err := s.tokens.GenerateAccessToken(user.ID, string(user.Role))
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := s.tokens.GenerateRefreshToken(user.ID)
	if err != nil {
		return nil, err
	}
	row := &models.RefreshToken{UserID: user.ID, Token: refresh, ExpiresAt: refreshExp.UTC()}
	if err := tx.Create(row).Error; err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(time.Until(accessExp).Seconds()),
	}, nil
}

// Logout revokes every refresh token of the user.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	if userID == DemoUserID {
		return nil
	}
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.RefreshToken{}).Error; err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}
	return nil
}

func tokenError(err error) *utils.AppError {
	if errors.Is(err, utils.ErrTokenExpired) {
		return utils.NewUnauthorized(utils.CodeTokenExpired, "Token has expired")
	}
	return utils.NewUnauthorized(utils.CodeTokenInvalid, "Invalid token")
}

// Refresh rotates a refresh token: the presented token is deleted and a new pair is issued.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	claims, err := s.tokens.Parse(refreshToken, utils.TokenTypeRefresh)
	if err != nil {
		return nil, tokenError(err)
	}

	var result *AuthResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var stored models.RefreshToken
		if err := tx.First(&stored, "token = ?", refreshToken).Error; err != nil {
			if isNotFound(err) {
				return utils.NewUnauthorized(utils.CodeTokenInvalid, "Refresh token has been revoked")
			}
			return fmt.Errorf("load refresh token: %w", err)
		}
		if stored.UserID != claims.UserID {
			return utils.NewUnauthorized(utils.CodeTokenInvalid, "Invalid token")
		}
		if !s.Now().Before(stored.ExpiresAt) {
			return utils.NewUnauthorized(utils.CodeTokenExpired, "Refresh token has expired")
		}

		var user models.User
		if err := tx.First(&user, "id = ?", claims.UserID).Error; err != nil {
			if isNotFound(err) {
				return utils.NewUnauthorized(utils.CodeTokenInvalid, "User no longer exists")
			}
			return fmt.Errorf("load user: %w", err)
		}
		if !user.IsActive {
			return utils.NewForbidden("Account is deactivated")
		}

		if err := tx.Delete(&stored).Error; err != nil {
			return fmt.Errorf("revoke refresh token: %w", err)
		}
		pair, err := s.issue(tx, &user)
		if err != nil {
			return err
		}
		result = &AuthResult{User: &user, TokenPair: pair}
		return nil
	})
	if err != nil {
		// An expired row is useless; drop it outside the rolled back transaction.
		var appErr *utils.AppError
		if errors.As(err, &appErr) && appErr.Code == utils.CodeTokenExpired {
			s.db.WithContext(ctx).Where("token = ?", refreshToken).Delete(&models.RefreshToken{})
		}
		return nil, err
	}
	return result, nil
}

// VerifyEmail resolves the token through the verification store first and then the users table.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (*AuthResult, error) {
	db := s.db.WithContext(ctx)
	invalid := utils.NewAppError(http.StatusBadRequest, utils.CodeTokenInvalid, "Invalid verification token")

	var user models.User
	found := false
	if s.store != nil {
		entry, ok, err := s.store.Get(ctx, token)
		if err != nil {
			s.log.Warn("verification store get failed", "error", err)
		}
		if ok {
			err := db.First(&user, "email = ?", entry.Email).Error
			if err != nil && !isNotFound(err) {
				return nil, fmt.Errorf("load user: %w", err)
			}
			found = err == nil
		}
	}
	if !found {
		if err := db.First(&user, "verification_token = ?", token).Error; err != nil {
			if isNotFound(err) {
				return nil, invalid
			}
			return nil, fmt.Errorf("load user: %w", err)
		}
	}

	if user.IsVerified {
		return &AuthResult{User: &user, AlreadyVerified: true}, nil
	}
	if user.VerificationExpiresAt != nil && !s.Now().Before(*user.VerificationExpiresAt) {
		return nil, utils.NewAppError(http.StatusBadRequest, utils.CodeTokenExpired, "Verification token has expired")
	}

	var result *AuthResult
	err := db.Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
			"is_verified":             true,
			"verification_status":     models.VerificationVerified,
			"verification_token":      nil,
			"verification_expires_at": nil,
		}).Error
		if err != nil {
			return fmt.Errorf("verify user: %w", err)
		}
		user.IsVerified = true
		user.VerificationStatus = models.VerificationVerified
		user.VerificationToken = nil
		user.VerificationExpiresAt = nil

		pair, err := s.issue(tx, &user)
		if err != nil {
			return err
		}
		result = &AuthResult{User: &user, TokenPair: pair}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.store != nil {
		if err := s.store.Delete(ctx, token); err != nil {
			s.log.Warn("verification store delete failed", "error", err)
		}
	}
	return result, nil
}

// ResendVerification issues a fresh token for an unverified account. It never reveals whether
// the email is registered.
func (s *AuthService) ResendVerification(ctx context.Context, email string) {
	email = normalizeEmail(email)
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		if !isNotFound(err) {
			s.log.Warn("resend verification lookup failed", "error", err)
		}
		return
	}
	if user.IsVerified || !user.IsActive {
		return
	}

	token := uuid.NewString()
	expires := s.Now().Add(VerificationTokenTTL)
	err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
		"verification_token":      token,
		"verification_expires_at": expires,
	}).Error
	if err != nil {
		s.log.Warn("resend verification update failed", "user_id", user.ID, "error", err)
		return
	}
	s.deliverVerification(ctx, &user, token)
}

// GoogleLogin signs in with a Google ID token restricted to the campus email domain.
func (s *AuthService) GoogleLogin(ctx context.Context, idToken string) (*AuthResult, error) {
	if s.google == nil {
		return nil, utils.NewAppError(http.StatusServiceUnavailable, utils.CodeServiceUnavailable, "Google sign-in is not configured")
	}
	info, err := s.google.VerifyIDToken(ctx, idToken)
	if err != nil {
		s.log.Warn("google token rejected", "error", err)
		return nil, utils.NewUnauthorized(utils.CodeTokenInvalid, "Invalid Google token")
	}
	email := normalizeEmail(info.Email)
	if !strings.HasSuffix(email, s.settings.EmailDomain) {
		return nil, utils.NewValidationError("Email must end with " + s.settings.EmailDomain)
	}
	if !info.Verified() {
		return nil, utils.NewAppError(http.StatusForbidden, utils.CodeEmailNotVerified, "Google account email is not verified")
	}

	var result *AuthResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		err := tx.Where("google_id = ?", info.Sub).Or("email = ?", email).First(&user).Error
		switch {
		case isNotFound(err):
			googleID := info.Sub
			netid, _, _ := strings.Cut(email, "@")
			user = models.User{
				Email:              email,
				FirstName:          firstNonEmpty(info.GivenName, "User"),
				LastName:           firstNonEmpty(info.FamilyName, netid),
				StudentID:          netid,
				University:         s.settings.UniversityName,
				AvatarURL:          info.Picture,
				GoogleID:           &googleID,
				Role:               models.RoleUser,
				IsActive:           true,
				IsVerified:         true,
				VerificationStatus: models.VerificationVerified,
			}
			if err := tx.Create(&user).Error; err != nil {
				return fmt.Errorf("create google user: %w", err)
			}
		case err != nil:
			return fmt.Errorf("load user: %w", err)
		default:
			if !user.IsActive {
				return utils.NewForbidden("Account is deactivated")
			}
			updates := map[string]interface{}{}
			if user.GoogleID == nil {
				googleID := info.Sub
				updates["google_id"] = googleID
				user.GoogleID = &googleID
			}
			if !user.IsVerified {
				updates["is_verified"] = true
				updates["verification_status"] = models.VerificationVerified
				user.IsVerified = true
				user.VerificationStatus = models.VerificationVerified
			}
			if user.AvatarURL == "" && info.Picture != "" {
				updates["avatar_url"] = info.Picture
				user.AvatarURL = info.Picture
			}
			if len(updates) > 0 {
				if err := tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
					return fmt.Errorf("link google account: %w", err)
				}
			}
		}

		pair, err := s.issue(tx, &user)
		if err != nil {
			return err
		}
		result = &AuthResult{User: &user, TokenPair: pair}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Authenticate validates an access token and loads the caller. The demo user resolves
// without the database.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*utils.UserClaims, error) {
	claims, err := s.tokens.Parse(token, utils.TokenTypeAccess)
	if err != nil {
		return nil, tokenError(err)
	}
	if claims.UserID == DemoUserID {
		return &utils.UserClaims{UserID: DemoUserID, Role: string(models.RoleUser), Email: DemoEmail, Demo: true}, nil
	}

	var user models.User
	if err := s.db.WithContext(ctx).Select("id", "email", "role", "is_active").First(&user, "id = ?", claims.UserID).Error; err != nil {
		if isNotFound(err) {
			return nil, utils.NewUnauthorized(utils.CodeTokenInvalid, "User no longer exists")
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !user.IsActive {
		return nil, utils.NewForbidden("Account is deactivated")
	}
	return &utils.UserClaims{UserID: user.ID, Role: string(user.Role), Email: user.Email}, nil
}

type EmailCheck struct {
	Email       string `json:"email"`
	ValidDomain bool   `json:"valid_domain"`
	Exists      bool   `json:"exists"`
}

// CheckEmail lets the sign-up form validate an address before submitting it. The users table
// is only consulted for campus addresses.
func (s *AuthService) CheckEmail(ctx context.Context, email string) (*EmailCheck, error) {
	email = normalizeEmail(email)
	out := &EmailCheck{Email: email, ValidDomain: strings.HasSuffix(email, s.settings.EmailDomain)}
	if !out.ValidDomain {
		return out, nil
	}
	if email == DemoEmail {
		out.Exists = true
		return out, nil
	}
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&n).Error; err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	out.Exists = n > 0
	return out, nil
}
