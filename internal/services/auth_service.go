package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/utils"
)

// maxOTPAttempts is how many wrong guesses a code survives.
const maxOTPAttempts = 5

var (
	phonePattern = regexp.MustCompile(`^\+?[0-9]{8,15}$`)
	codePattern  = regexp.MustCompile(`^[0-9]{6}$`)
)

// OTPLimiter throttles code issuance per phone number.
type OTPLimiter interface {
	Allow(ctx context.Context, phoneNumber string) (bool, error)
}

// AuthConfig holds token and code lifetimes.
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
	OTPTTL    time.Duration
	// HashCost is the bcrypt cost for stored codes; zero means the default.
	HashCost int
}

// AuthService issues and verifies one-time codes and bearer tokens.
type AuthService struct {
	db      *gorm.DB
	sms     SMSSender
	limiter OTPLimiter
	cfg     AuthConfig
	logger  *zap.Logger

	now     func() time.Time
	newCode func() (string, error)
}

func NewAuthService(db *gorm.DB, sms SMSSender, limiter OTPLimiter, cfg AuthConfig, logger *zap.Logger) *AuthService {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 7 * 24 * time.Hour
	}
	if cfg.OTPTTL <= 0 {
		cfg.OTPTTL = 5 * time.Minute
	}
	return &AuthService{
		db:      db,
		sms:     sms,
		limiter: limiter,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		newCode: generateCode,
	}
}

// CustomerView is the customer shape returned to clients after login.
type CustomerView struct {
	ID          uuid.UUID `json:"id"`
	PhoneNumber string    `json:"phoneNumber"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	IsAdmin     bool      `json:"isAdmin"`
}

func NewCustomerView(c *models.Customer) CustomerView {
	return CustomerView{
		ID:          c.ID,
		PhoneNumber: c.PhoneNumber,
		Name:        c.Name,
		Email:       c.Email,
		IsAdmin:     c.IsAdmin,
	}
}

// LoginResult is returned by a successful code verification.
type LoginResult struct {
	Token    string       `json:"token"`
	Customer CustomerView `json:"customer"`
}

// SendOTP replaces any live code for the number with a fresh one and texts
// it to the customer.
func (s *AuthService) SendOTP(ctx context.Context, phoneNumber string) error {
	phoneNumber = strings.TrimSpace(phoneNumber)
	if !phonePattern.MatchString(phoneNumber) {
		return Validation("Invalid phone number")
	}

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, phoneNumber)
		if err != nil {
			s.logger.Warn("otp limiter unavailable", zap.Error(err))
		} else if !allowed {
			return &Error{Kind: KindRateLimited, Message: "Please wait before requesting another OTP"}
		}
	}

	code, err := s.newCode()
	if err != nil {
		return Upstream("Failed to send OTP", err)
	}
	hash, err := utils.HashSecret(code, s.cfg.HashCost)
	if err != nil {
		return Upstream("Failed to send OTP", err)
	}

	record := models.OneTimeCode{
		PhoneNumber: phoneNumber,
		CodeHash:    hash,
		ExpiresAt:   s.now().Add(s.cfg.OTPTTL),
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("phone_number = ?", phoneNumber).Delete(&models.OneTimeCode{}).Error; err != nil {
			return err
		}
		return tx.Create(&record).Error
	})
	if err != nil {
		return Upstream("Failed to send OTP", err)
	}

	minutes := int(s.cfg.OTPTTL.Round(time.Minute) / time.Minute)
	body := fmt.Sprintf("Your OTP for login is: %s. Valid for %d minutes.", code, minutes)
	if err := s.sms.SendSMS(ctx, phoneNumber, body); err != nil {
		return Upstream("Failed to send OTP", err)
	}

	utils.OTPSentTotal.Inc()
	return nil
}

// VerifyOTP checks the code, logs the customer in and consumes the code.
// Expired codes are deleted when detected.
func (s *AuthService) VerifyOTP(ctx context.Context, phoneNumber, code string) (*LoginResult, error) {
	ctx, span := utils.StartSpan(ctx, "AuthService.VerifyOTP")
	defer span.End()

	phoneNumber = strings.TrimSpace(phoneNumber)
	code = strings.TrimSpace(code)
	if phoneNumber == "" || !codePattern.MatchString(code) {
		utils.OTPVerificationsTotal.WithLabelValues("invalid").Inc()
		return nil, Validation("Invalid OTP")
	}

	db := s.db.WithContext(ctx)

	var record models.OneTimeCode
	if err := db.Where("phone_number = ?", phoneNumber).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.OTPVerificationsTotal.WithLabelValues("invalid").Inc()
			return nil, Validation("Invalid OTP")
		}
		return nil, Upstream("Failed to verify OTP", err)
	}

	if !utils.CheckSecret(record.CodeHash, code) {
		utils.OTPVerificationsTotal.WithLabelValues("invalid").Inc()
		if err := s.recordFailedAttempt(db, &record); err != nil {
			s.logger.Warn("failed to record otp attempt", zap.Error(err))
		}
		return nil, Validation("Invalid OTP")
	}

	if record.Expired(s.now()) {
		if err := db.Delete(&record).Error; err != nil {
			s.logger.Warn("failed to delete expired otp", zap.Error(err))
		}
		utils.OTPVerificationsTotal.WithLabelValues("expired").Inc()
		return nil, Validation("OTP expired")
	}

	var customer models.Customer
	err := db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("phone_number = ?", phoneNumber).First(&customer).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			customer = models.Customer{PhoneNumber: phoneNumber, IsVerified: true}
			if err := tx.Create(&customer).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if err := tx.Model(&customer).Update("is_verified", true).Error; err != nil {
				return err
			}
			customer.IsVerified = true
		}
		return tx.Delete(&record).Error
	})
	if err != nil {
		return nil, Upstream("Failed to verify OTP", err)
	}

	token, err := utils.GenerateToken(s.cfg.JWTSecret, customer.ID, customer.PhoneNumber, s.cfg.TokenTTL, s.now())
	if err != nil {
		return nil, Upstream("Failed to verify OTP", err)
	}

	utils.OTPVerificationsTotal.WithLabelValues("success").Inc()
	return &LoginResult{Token: token, Customer: NewCustomerView(&customer)}, nil
}

// recordFailedAttempt counts a wrong guess and burns the code once it has
// seen maxOTPAttempts of them.
func (s *AuthService) recordFailedAttempt(db *gorm.DB, record *models.OneTimeCode) error {
	if record.Attempts+1 >= maxOTPAttempts {
		return db.Delete(record).Error
	}
	return db.Model(record).UpdateColumn("attempts", gorm.Expr("attempts + 1")).Error
}

// Authenticate turns a bearer token into a Principal. The customer must
// still exist.
func (s *AuthService) Authenticate(ctx context.Context, token string) (Principal, error) {
	id, _, err := utils.ParseToken(s.cfg.JWTSecret, token)
	if err != nil {
		return Principal{}, Unauthorized("Token is not valid")
	}

	var customer models.Customer
	if err := s.db.WithContext(ctx).First(&customer, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Principal{}, Unauthorized("Token is not valid")
		}
		return Principal{}, Upstream("Failed to authenticate", err)
	}

	return Principal{
		CustomerID:  customer.ID,
		PhoneNumber: customer.PhoneNumber,
		Email:       customer.Email,
		IsAdmin:     customer.IsAdmin,
	}, nil
}

// Me loads the caller with addresses and orders, newest order first.
func (s *AuthService) Me(ctx context.Context, p Principal) (*models.Customer, error) {
	var customer models.Customer
	err := s.db.WithContext(ctx).
		Preload("Addresses").
		Preload("Orders", func(db *gorm.DB) *gorm.DB { return db.Order("created_at desc") }).
		First(&customer, "id = ?", p.CustomerID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("Customer not found")
		}
		return nil, Upstream("Failed to get user data", err)
	}
	return &customer, nil
}

// ProfileUpdate carries optional profile fields.
type ProfileUpdate struct {
	Name  *string
	Email *string
}

// UpdateProfile changes name and email of the caller.
func (s *AuthService) UpdateProfile(ctx context.Context, p Principal, in ProfileUpdate) (*models.Customer, error) {
	updates := map[string]interface{}{}
	if in.Name != nil {
		updates["name"] = strings.TrimSpace(*in.Name)
	}
	if in.Email != nil {
		email := strings.TrimSpace(*in.Email)
		if email != "" {
			if _, err := mail.ParseAddress(email); err != nil {
				return nil, Validation("Invalid email address")
			}
		}
		updates["email"] = email
	}

	db := s.db.WithContext(ctx)
	if len(updates) > 0 {
		if err := db.Model(&models.Customer{}).Where("id = ?", p.CustomerID).Updates(updates).Error; err != nil {
			return nil, Upstream("Failed to update profile", err)
		}
	}

	var customer models.Customer
	if err := db.First(&customer, "id = ?", p.CustomerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("Customer not found")
		}
		return nil, Upstream("Failed to update profile", err)
	}
	return &customer, nil
}

// PurgeExpired deletes codes past their expiry.
func (s *AuthService) PurgeExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at < ?", s.now()).Delete(&models.OneTimeCode{})
	return res.RowsAffected, res.Error
}

// RunSweeper purges expired codes every interval until ctx is done.
func (s *AuthService) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.PurgeExpired(ctx)
			if err != nil {
				s.logger.Warn("otp sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				s.logger.Debug("expired otps purged", zap.Int64("count", n))
			}
		}
	}
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
