package service

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"time"

	"companion_gateway/internal/cache"
	"companion_gateway/internal/domain"
	"companion_gateway/internal/logger"
	"companion_gateway/internal/repository"
	"companion_gateway/internal/sms"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

var mobilePattern = regexp.MustCompile(`^1[3-9]\d{9}$`)

// smsSendRetryable admits only transport-level vendor failures to the send
// retry; a rejected template or number fails the same way every attempt.
func smsSendRetryable(err error) bool {
	return errors.Is(err, sms.ErrUnavailable)
}

// pendingCode is what we remember between send and verify; the vendor holds
// the code itself.
type pendingCode struct {
	MsgID  string `json:"msg_id"`
	Issued int64  `json:"issued"`
}

// IdentityService runs the SMS verification-code login flow: a per-phone
// daily send bucket, the vendor round-trips, and account creation on a
// verified code.
type IdentityService struct {
	users  *repository.UserRepository
	cache  *cache.Client
	vendor *sms.Client
	auth   *AuthService

	codeValidity time.Duration
	dailyTotal   int
}

func NewIdentityService(db *pgxpool.Pool, c *cache.Client, vendor *sms.Client, auth *AuthService, codeValiditySecs, dailyTotal int) *IdentityService {
	return &IdentityService{
		users:        repository.NewUserRepository(db),
		cache:        c,
		vendor:       vendor,
		auth:         auth,
		codeValidity: time.Duration(codeValiditySecs) * time.Second,
		dailyTotal:   dailyTotal,
	}
}

// SendCode delivers a verification code to mobile, charging the phone's
// daily bucket. Returns the tokens left in the bucket.
func (s *IdentityService) SendCode(ctx context.Context, mobile string) (int, error) {
	if !mobilePattern.MatchString(mobile) {
		return 0, &RequestError{Code: CodeInvalidMobile, Msg: "invalid mobile number"}
	}

	keys := s.cache.Keys()
	remaining, err := s.cache.GetDailyToken(ctx, keys.SMSDailyTokens(mobile), s.dailyTotal)
	if err != nil {
		return 0, err
	}
	if remaining <= 0 {
		return 0, &RequestError{Code: CodeSMSBucketEmpty, Msg: "daily verification code quota used up"}
	}

	var msgID string
	err = retryTransient(ctx, "sms_send_code", smsSendRetryable, func(ctx context.Context) error {
		var sendErr error
		msgID, sendErr = s.vendor.SendCode(ctx, mobile)
		return sendErr
	})
	if err != nil {
		logger.Alarm("sms_send", "vendor send failed", "mobile", mobile, "error", err)
		return 0, err
	}

	pending, _ := json.Marshal(pendingCode{MsgID: msgID, Issued: time.Now().Unix()})
	if err := s.cache.SetString(ctx, keys.SMSCode(mobile), string(pending), s.codeValidity); err != nil {
		return 0, err
	}

	remaining, err = s.cache.TakeDailyToken(ctx, keys.SMSDailyTokens(mobile), s.dailyTotal)
	if err != nil {
		return 0, err
	}
	return remaining, nil
}

// verifyCode checks code against the pending send for mobile. The pending
// record is consumed on success, so a code verifies at most once.
func (s *IdentityService) verifyCode(ctx context.Context, mobile, code string) error {
	key := s.cache.Keys().SMSCode(mobile)
	raw, ok, err := s.cache.GetString(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return &RequestError{Code: CodeSMSCodeExpired, Msg: "verification code expired"}
	}
	var pending pendingCode
	if err := json.Unmarshal([]byte(raw), &pending); err != nil {
		return err
	}
	if time.Now().Unix() > pending.Issued+int64(s.codeValidity.Seconds()) {
		_ = s.cache.Delete(ctx, key)
		return &RequestError{Code: CodeSMSCodeExpired, Msg: "verification code expired"}
	}

	valid, err := s.vendor.VerifyCode(ctx, pending.MsgID, code)
	if err != nil {
		return err
	}
	if !valid {
		return &RequestError{Code: CodeSMSCodeMismatch, Msg: "verification code mismatch"}
	}
	_ = s.cache.Delete(ctx, key)
	return nil
}

// LoginResult is a verified login: the profile plus a fresh access token.
type LoginResult struct {
	User    *domain.User `json:"user"`
	Token   string       `json:"token"`
	Created bool         `json:"created"`
}

// Login verifies the code and signs the user in, creating the account on
// first login. An account whose old row was soft-deleted is recreated in the
// shadow table so the two incarnations never collide.
func (s *IdentityService) Login(ctx context.Context, mobile, code string, deviceType int, deviceID, pushRegistrationID string) (*LoginResult, error) {
	if !mobilePattern.MatchString(mobile) {
		return nil, &RequestError{Code: CodeInvalidMobile, Msg: "invalid mobile number"}
	}
	if err := s.verifyCode(ctx, mobile, code); err != nil {
		return nil, err
	}

	existing, err := s.users.GetByAccount(ctx, mobile)
	created := false
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrUserNotFound):
		created = true
	default:
		return nil, err
	}

	u := &domain.User{
		Account:            mobile,
		DeviceType:         domain.DeviceType(deviceType),
		DeviceID:           deviceID,
		PushRegistrationID: pushRegistrationID,
	}
	if created {
		u.UID = uuid.NewString()
	} else {
		u.UID = existing.UID
		u.CreateTS = existing.CreateTS
	}

	recreate, err := s.users.WasDeleted(ctx, mobile)
	if err != nil {
		return nil, err
	}
	if err := s.users.UpsertAccount(ctx, u, recreate); err != nil {
		return nil, err
	}
	if err := s.users.SetOnline(ctx, mobile, true); err != nil {
		return nil, err
	}

	if created {
		if err := s.cache.Incr(ctx, s.cache.Keys().TotalUserCnt()); err != nil {
			logger.Error("failed to bump total user counter", "error", err)
		}
	}

	token, err := s.auth.IssueToken(ctx, mobile, deviceID)
	if err != nil {
		return nil, err
	}

	full, err := s.users.GetByAccount(ctx, mobile)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: full, Token: token, Created: created}, nil
}

// Profile loads a user's display profile by uid.
func (s *IdentityService) Profile(ctx context.Context, uid string) (*domain.User, error) {
	return s.users.GetByUID(ctx, uid)
}

// SetProfile updates the signed-in user's display profile.
func (s *IdentityService) SetProfile(ctx context.Context, uid, nickname string, gender int, avatar, birthday string) (int64, error) {
	return s.users.SetProfile(ctx, uid, nickname, gender, avatar, birthday)
}

// Logout flips the account offline and drops its device binding and online
// flag.
func (s *IdentityService) Logout(ctx context.Context, account, uid string) error {
	if err := s.users.SetOnline(ctx, account, false); err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, s.cache.Keys().UserOnline(uid)); err != nil {
		logger.Error("failed to clear online flag", "uid", uid, "error", err)
	}
	return s.cache.Delete(ctx, s.cache.Keys().UserDeviceID(account))
}

// TotalUserCount serves the platform-wide registered-user counter, falling
// back to a store count (and re-priming the key) on a cache miss.
func (s *IdentityService) TotalUserCount(ctx context.Context) (int64, error) {
	key := s.cache.Keys().TotalUserCnt()
	raw, ok, err := s.cache.GetString(ctx, key)
	if err == nil && ok {
		if n, parseErr := strconv.ParseInt(raw, 10, 64); parseErr == nil {
			return n, nil
		}
	}
	n, err := s.users.CountUsers(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.cache.SetString(ctx, key, strconv.FormatInt(n, 10), 0); err != nil {
		logger.Error("failed to prime total user counter", "error", err)
	}
	return n, nil
}
