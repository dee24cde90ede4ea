package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/campusride/api-go/models"
	"github.com/campusride/api-go/types"
	"github.com/campusride/api-go/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	SourceManual               = "manual"
	SourceTransfer             = "transfer"
	SourceActivityRegistration = "activity_registration"
	SourceActivityRefund       = "activity_refund"
	SourceActivityCheckin      = "activity_checkin"
	SourceRideshareCreation    = "rideshare_creation"
)

type AwardInput struct {
	UserID     string                 `json:"user_id" binding:"required"`
	Points     int64                  `json:"points" binding:"min=0"`
	Rule       string                 `json:"rule"`
	Source     string                 `json:"source" binding:"max=50"`
	Reason     string                 `json:"reason" binding:"max=255"`
	Metadata   map[string]interface{} `json:"metadata"`
	Multiplier float64                `json:"multiplier" binding:"min=0"`
}

type DeductInput struct {
	UserID   string                 `json:"user_id" binding:"required"`
	Points   int64                  `json:"points" binding:"required,min=1"`
	Source   string                 `json:"source" binding:"max=50"`
	Reason   string                 `json:"reason" binding:"max=255"`
	Metadata map[string]interface{} `json:"metadata"`
}

type LedgerResult struct {
	Transaction *models.PointTransaction `json:"transaction"`
	Points      int64                    `json:"points"`
	Balance     int64                    `json:"balance"`
}

type TransferResult struct {
	Amount           int64                    `json:"amount"`
	SenderBalance    int64                    `json:"sender_balance"`
	RecipientBalance int64                    `json:"recipient_balance"`
	Outgoing         *models.PointTransaction `json:"outgoing"`
	Incoming         *models.PointTransaction `json:"incoming"`
}

type ledgerEntry struct {
	UserID        string
	Points        int64
	Type          models.TransactionType
	Source        string
	Reason        string
	RuleType      string
	Multiplier    float64
	RelatedUserID *string
	Metadata      map[string]interface{}
}

// PointsService keeps the ledger and the denormalized balance in step: every balance change
// and its ledger row are written in the same transaction.
type PointsService struct {
	db       *gorm.DB
	notifier Notifier
	pusher   Pusher
	events   EventPublisher
	log      *slog.Logger
	Now      func() time.Time
}

func NewPointsService(db *gorm.DB, notifier Notifier, pusher Pusher, events EventPublisher, log *slog.Logger) *PointsService {
	if pusher == nil {
		pusher = nopPusher{}
	}
	if events == nil {
		events = nopPublisher{}
	}
	return &PointsService{
		db:       db,
		notifier: notifier,
		pusher:   pusher,
		events:   events,
		log:      loggerOrDefault(log),
		Now:      defaultNow,
	}
}

func balanceOf(tx *gorm.DB, userID string) (int64, error) {
	var balance int64
	if err := tx.Model(&models.User{}).Select("points").Where("id = ?", userID).Scan(&balance).Error; err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return balance, nil
}

func (s *PointsService) credit(tx *gorm.DB, e ledgerEntry) (*LedgerResult, error) {
	res := tx.Model(&models.User{}).Where("id = ?", e.UserID).
		Update("points", gorm.Expr("points + ?", e.Points))
	if res.Error != nil {
		return nil, fmt.Errorf("credit balance: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, utils.NewNotFound("User")
	}
	return s.record(tx, e, e.Points)
}

// debit is a single conditional decrement; zero affected rows means the balance was too low.
func (s *PointsService) debit(tx *gorm.DB, e ledgerEntry) (*LedgerResult, error) {
	res := tx.Model(&models.User{}).Where("id = ? AND points >= ?", e.UserID, e.Points).
		Update("points", gorm.Expr("points - ?", e.Points))
	if res.Error != nil {
		return nil, fmt.Errorf("debit balance: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		var user models.User
		if err := tx.Select("id", "points").First(&user, "id = ?", e.UserID).Error; err != nil {
			return nil, notFoundOr(err, "User")
		}
		return nil, utils.NewInsufficientPoints(user.Points, e.Points)
	}
	return s.record(tx, e, -e.Points)
}

func (s *PointsService) record(tx *gorm.DB, e ledgerEntry, signed int64) (*LedgerResult, error) {
	balance, err := balanceOf(tx, e.UserID)
	if err != nil {
		return nil, err
	}
	multiplier := e.Multiplier
	if multiplier <= 0 {
		multiplier = 1
	}
	row := &models.PointTransaction{
		UserID:          e.UserID,
		Points:          signed,
		BalanceAfter:    balance,
		TransactionType: e.Type,
		Source:          e.Source,
		Reason:          e.Reason,
		RuleType:        e.RuleType,
		Multiplier:      multiplier,
		RelatedUserID:   e.RelatedUserID,
		Metadata:        toJSON(e.Metadata),
	}
	if err := tx.Create(row).Error; err != nil {
		return nil, fmt.Errorf("insert point transaction: %w", err)
	}
	return &LedgerResult{Transaction: row, Points: e.Points, Balance: balance}, nil
}

func resolveAward(in AwardInput) (ledgerEntry, error) {
	e := ledgerEntry{
		UserID:     in.UserID,
		Points:     in.Points,
		Type:       models.TransactionEarned,
		Source:     in.Source,
		Reason:     in.Reason,
		Multiplier: 1,
		Metadata:   in.Metadata,
	}
	if in.Rule != "" {
		rule, ok := types.GetPointRule(in.Rule)
		if !ok {
			return e, utils.NewValidationError("Unknown point rule: " + in.Rule)
		}
		e.RuleType = rule.Name
		e.Points = types.ApplyMultiplier(rule, rule.Points, in.Multiplier)
		if rule.AllowMultiplier && in.Multiplier > 1 {
			e.Multiplier = in.Multiplier
		}
		if e.Source == "" {
			e.Source = rule.Name
		}
		if e.Reason == "" {
			e.Reason = rule.Description
		}
	}
	if e.Source == "" {
		e.Source = SourceManual
	}
	if e.Points <= 0 {
		return e, utils.NewValidationError("Points must be a positive number")
	}
	if in.UserID == "" {
		return e, utils.NewValidationError("User is required")
	}
	return e, nil
}

// AwardTx credits points on an open transaction without emitting side effects.
func (s *PointsService) AwardTx(tx *gorm.DB, in AwardInput) (*LedgerResult, error) {
	e, err := resolveAward(in)
	if err != nil {
		return nil, err
	}
	return s.credit(tx, e)
}

func (s *PointsService) Award(ctx context.Context, in AwardInput) (*LedgerResult, error) {
	var result *LedgerResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = s.AwardTx(tx, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.AfterAward(ctx, in.UserID, result)
	return result, nil
}

// AfterAward pushes the balance change and the points_earned notification. Failures are logged.
func (s *PointsService) AfterAward(ctx context.Context, userID string, result *LedgerResult) {
	if result == nil {
		return
	}
	tx := result.Transaction
	s.pusher.SendToUser(userID, "points_update", map[string]interface{}{
		"points":  result.Points,
		"balance": result.Balance,
		"source":  tx.Source,
		"reason":  tx.Reason,
	})
	notifyBestEffort(ctx, s.log, s.notifier, userID, NotificationInput{
		Type: NotificationPointsEarned,
		Data: map[string]interface{}{
			"points":  result.Points,
			"reason":  tx.Reason,
			"balance": result.Balance,
			"source":  tx.Source,
		},
	})
	publishBestEffort(ctx, s.log, s.events, SubjectPointsAwarded, tx)
}

func deductEntry(in DeductInput) (ledgerEntry, error) {
	if in.UserID == "" {
		return ledgerEntry{}, utils.NewValidationError("User is required")
	}
	if in.Points <= 0 {
		return ledgerEntry{}, utils.NewValidationError("Points must be a positive number")
	}
	source := in.Source
	if source == "" {
		source = SourceManual
	}
	return ledgerEntry{
		UserID:   in.UserID,
		Points:   in.Points,
		Type:     models.TransactionSpent,
		Source:   source,
		Reason:   in.Reason,
		Metadata: in.Metadata,
	}, nil
}

// DeductTx debits points on an open transaction. An insufficient balance leaves nothing written.
func (s *PointsService) DeductTx(tx *gorm.DB, in DeductInput) (*LedgerResult, error) {
	e, err := deductEntry(in)
	if err != nil {
		return nil, err
	}
	return s.debit(tx, e)
}

func (s *PointsService) Deduct(ctx context.Context, in DeductInput) (*LedgerResult, error) {
	var result *LedgerResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = s.DeductTx(tx, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.pusher.SendToUser(in.UserID, "points_deducted", map[string]interface{}{
		"points":  result.Points,
		"balance": result.Balance,
		"reason":  in.Reason,
	})
	publishBestEffort(ctx, s.log, s.events, SubjectPointsDeducted, result.Transaction)
	return result, nil
}

func (s *PointsService) Transfer(ctx context.Context, fromID, toID string, amount int64, reason string) (*TransferResult, error) {
	if fromID == toID {
		return nil, utils.NewValidationError("Cannot transfer points to yourself")
	}
	if amount <= 0 {
		return nil, utils.NewValidationError("Transfer amount must be positive")
	}
	if reason == "" {
		reason = "Points transfer"
	}

	var sender, recipient models.User
	result := &TransferResult{Amount: amount}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id", "first_name", "last_name", "is_active").First(&recipient, "id = ?", toID).Error; err != nil {
			return notFoundOr(err, "Recipient")
		}
		if !recipient.IsActive {
			return utils.NewNotFound("Recipient")
		}
		if err := tx.Select("id", "first_name", "last_name").First(&sender, "id = ?", fromID).Error; err != nil {
			return notFoundOr(err, "User")
		}

		out, err := s.debit(tx, ledgerEntry{
			UserID: fromID, Points: amount, Type: models.TransactionTransferOut,
			Source: SourceTransfer, Reason: reason, RelatedUserID: &toID,
		})
		if err != nil {
			return err
		}
		in, err := s.credit(tx, ledgerEntry{
			UserID: toID, Points: amount, Type: models.TransactionTransferIn,
			Source: SourceTransfer, Reason: reason, RelatedUserID: &fromID,
		})
		if err != nil {
			return err
		}
		result.Outgoing, result.SenderBalance = out.Transaction, out.Balance
		result.Incoming, result.RecipientBalance = in.Transaction, in.Balance
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.pusher.SendToUser(fromID, "points_update", map[string]interface{}{"points": -amount, "balance": result.SenderBalance})
	s.pusher.SendToUser(toID, "points_update", map[string]interface{}{"points": amount, "balance": result.RecipientBalance})
	notifyBestEffort(ctx, s.log, s.notifier, fromID, NotificationInput{
		Type: NotificationPointsTransferredOut,
		Data: map[string]interface{}{"points": amount, "recipient": recipient.FullName(), "balance": result.SenderBalance},
	})
	notifyBestEffort(ctx, s.log, s.notifier, toID, NotificationInput{
		Type: NotificationPointsReceived,
		Data: map[string]interface{}{"points": amount, "sender": sender.FullName(), "balance": result.RecipientBalance},
	})
	publishBestEffort(ctx, s.log, s.events, SubjectPointsTransferred, result)
	return result, nil
}

type DailyLoginResult struct {
	AlreadyRewarded bool  `json:"already_rewarded"`
	ConsecutiveDays int   `json:"consecutive_days"`
	PointsAwarded   int64 `json:"points_awarded"`
	Balance         int64 `json:"balance"`
}

// DailyLogin rewards the first call of each UTC calendar day. Consecutive days grow the bonus.
func (s *PointsService) DailyLogin(ctx context.Context, userID string) (*DailyLoginResult, error) {
	today := utils.StartOfDay(s.Now())
	out := &DailyLoginResult{}
	var award *LedgerResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, "id = ?", userID).Error; err != nil {
			return notFoundOr(err, "User")
		}
		if user.LastLoginDate != nil && utils.StartOfDay(*user.LastLoginDate).Equal(today) {
			out.AlreadyRewarded = true
			out.ConsecutiveDays = user.ConsecutiveLoginDays
			out.Balance = user.Points
			return nil
		}

		streak := 1
		if user.LastLoginDate != nil && utils.StartOfDay(*user.LastLoginDate).Equal(today.AddDate(0, 0, -1)) {
			streak = user.ConsecutiveLoginDays + 1
		}
		if err := tx.Model(&user).Updates(map[string]interface{}{
			"last_login_date":        today,
			"consecutive_login_days": streak,
		}).Error; err != nil {
			return fmt.Errorf("update login streak: %w", err)
		}

		bonus := types.CalculateConsecutiveBonus(streak, types.DAILY_LOGIN_BASE_POINTS)
		var err error
		award, err = s.credit(tx, ledgerEntry{
			UserID:   userID,
			Points:   bonus,
			Type:     models.TransactionEarned,
			Source:   types.RuleDailyLogin,
			RuleType: types.RuleDailyLogin,
			Reason:   fmt.Sprintf("Daily login bonus (day %d)", streak),
			Metadata: map[string]interface{}{"consecutive_days": streak},
		})
		if err != nil {
			return err
		}
		out.ConsecutiveDays = streak
		out.PointsAwarded = bonus
		out.Balance = award.Balance
		return nil
	})
	if err != nil {
		return nil, err
	}
	if award != nil {
		s.AfterAward(ctx, userID, award)
	}
	return out, nil
}

type HistoryQuery struct {
	Limit  int    `form:"limit,default=20" binding:"min=0,max=100"`
	Offset int    `form:"offset,default=0" binding:"min=0"`
	Type   string `form:"type" binding:"omitempty,oneof=earned spent transfer_in transfer_out"`
	Source string `form:"source"`
	Start  string `form:"start_date"`
	End    string `form:"end_date"`
}

type HistoryResult struct {
	Transactions []models.PointTransaction `json:"transactions"`
	Total        int64                     `json:"total"`
	Limit        int                       `json:"limit"`
	Offset       int                       `json:"offset"`
}

func (s *PointsService) History(ctx context.Context, userID string, q HistoryQuery) (*HistoryResult, error) {
	limit, offset := utils.Paginate(q.Limit, q.Offset, 20, 100)
	start, err := parseDate(q.Start, "start_date")
	if err != nil {
		return nil, err
	}
	end, err := parseDate(q.End, "end_date")
	if err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).Model(&models.PointTransaction{}).Where("user_id = ?", userID)
	if q.Type != "" {
		query = query.Where("transaction_type = ?", q.Type)
	}
	if q.Source != "" {
		query = query.Where("source = ?", q.Source)
	}
	if start != nil {
		query = query.Where("created_at >= ?", *start)
	}
	if end != nil {
		query = query.Where("created_at < ?", end.AddDate(0, 0, 1))
	}

	out := &HistoryResult{Transactions: []models.PointTransaction{}, Limit: limit, Offset: offset}
	if err := query.Session(&gorm.Session{}).Count(&out.Total).Error; err != nil {
		return nil, fmt.Errorf("count transactions: %w", err)
	}
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&out.Transactions).Error; err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return out, nil
}

type PointStatistics struct {
	Period           string           `json:"period"`
	TotalEarned      int64            `json:"total_earned"`
	TotalSpent       int64            `json:"total_spent"`
	NetGain          int64            `json:"net_gain"`
	TransactionCount int              `json:"transaction_count"`
	SourceBreakdown  map[string]int64 `json:"source_breakdown"`
	DailyBreakdown   map[string]int64 `json:"daily_breakdown"`
}

var statisticsPeriods = map[string]int{"week": 7, "month": 30, "year": 365}

func (s *PointsService) Statistics(ctx context.Context, userID, period string) (*PointStatistics, error) {
	if period == "" {
		period = "month"
	}
	days, ok := statisticsPeriods[period]
	if !ok {
		return nil, utils.NewValidationError("period must be one of week, month, year")
	}
	since := s.Now().AddDate(0, 0, -days)

	var rows []models.PointTransaction
	err := s.db.WithContext(ctx).Select("points", "source", "created_at").
		Where("user_id = ? AND created_at >= ?", userID, since).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}

	stats := &PointStatistics{
		Period:           period,
		TransactionCount: len(rows),
		SourceBreakdown:  map[string]int64{},
		DailyBreakdown:   map[string]int64{},
	}
	for _, row := range rows {
		if row.Points > 0 {
			stats.TotalEarned += row.Points
		} else {
			stats.TotalSpent += -row.Points
		}
		stats.SourceBreakdown[row.Source] += row.Points
		stats.DailyBreakdown[row.CreatedAt.UTC().Format("2006-01-02")] += row.Points
	}
	stats.NetGain = stats.TotalEarned - stats.TotalSpent
	return stats, nil
}

type BalanceSummary struct {
	UserID               string `json:"user_id"`
	Points               int64  `json:"points"`
	Rank                 int64  `json:"rank"`
	ConsecutiveLoginDays int    `json:"consecutive_login_days"`
}

func (s *PointsService) Balance(ctx context.Context, userID string) (*BalanceSummary, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Select("id", "points", "consecutive_login_days").First(&user, "id = ?", userID).Error; err != nil {
		return nil, notFoundOr(err, "User")
	}
	var ahead int64
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("is_active = ? AND points > ?", true, user.Points).
		Count(&ahead).Error
	if err != nil {
		return nil, fmt.Errorf("rank user: %w", err)
	}
	return &BalanceSummary{
		UserID:               user.ID,
		Points:               user.Points,
		Rank:                 ahead + 1,
		ConsecutiveLoginDays: user.ConsecutiveLoginDays,
	}, nil
}

type ReconcileReport struct {
	UserID        string `json:"user_id"`
	StoredBalance int64  `json:"stored_balance"`
	LedgerBalance int64  `json:"ledger_balance"`
	Drift         int64  `json:"drift"`
	Consistent    bool   `json:"consistent"`
}

// Reconcile compares the stored balance with the ledger sum. It reports drift and never repairs it.
func (s *PointsService) Reconcile(ctx context.Context, userID string) (*ReconcileReport, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Select("id", "points").First(&user, "id = ?", userID).Error; err != nil {
		return nil, notFoundOr(err, "User")
	}
	var ledger int64
	err := s.db.WithContext(ctx).Model(&models.PointTransaction{}).
		Select("COALESCE(SUM(points), 0)").
		Where("user_id = ?", userID).
		Scan(&ledger).Error
	if err != nil {
		return nil, fmt.Errorf("sum ledger: %w", err)
	}
	return &ReconcileReport{
		UserID:        user.ID,
		StoredBalance: user.Points,
		LedgerBalance: ledger,
		Drift:         user.Points - ledger,
		Consistent:    user.Points == ledger,
	}, nil
}
