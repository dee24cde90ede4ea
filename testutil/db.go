// Package testutil builds migrated in-memory databases and fixtures for package tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/campusride/api-go/config"
	"github.com/campusride/api-go/models"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a private shared-cache SQLite database with the full schema. A single
// connection serializes transactions, so callbacks must use the tx handle they receive.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()) + "_" + uuid.NewString()[:8]
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := config.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type UserOption func(*models.User)

func WithPoints(points int64) UserOption {
	return func(u *models.User) { u.Points = points }
}

func WithRole(role models.Role) UserOption {
	return func(u *models.User) { u.Role = role }
}

func Unverified() UserOption {
	return func(u *models.User) {
		u.IsVerified = false
		u.VerificationStatus = models.VerificationUnverified
	}
}

func Inactive() UserOption {
	return func(u *models.User) { u.IsActive = false }
}

// CreateUser inserts an active, verified user with the given first name.
func CreateUser(t *testing.T, db *gorm.DB, firstName string, opts ...UserOption) *models.User {
	t.Helper()

	netid := strings.ToLower(firstName) + uuid.NewString()[:6]
	user := &models.User{
		Email:              netid + "@cornell.edu",
		PasswordHash:       "x",
		FirstName:          firstName,
		LastName:           "Tester",
		StudentID:          netid,
		University:         "Cornell University",
		Role:               models.RoleUser,
		IsActive:           true,
		IsVerified:         true,
		VerificationStatus: models.VerificationVerified,
	}
	for _, opt := range opts {
		opt(user)
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

// Balance reads the stored points column.
func Balance(t *testing.T, db *gorm.DB, userID string) int64 {
	t.Helper()
	var user models.User
	if err := db.Select("points").First(&user, "id = ?", userID).Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	return user.Points
}

// LedgerCount counts point transactions for the user.
func LedgerCount(t *testing.T, db *gorm.DB, userID string) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&models.PointTransaction{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		t.Fatalf("count ledger: %v", err)
	}
	return n
}

// Clock is a settable time source for services with a Now field.
type Clock struct {
	T time.Time
}

func NewClock(t time.Time) *Clock { return &Clock{T: t.UTC()} }

func (c *Clock) Now() time.Time { return c.T }

func (c *Clock) Advance(d time.Duration) { c.T = c.T.Add(d) }
