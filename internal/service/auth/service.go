// Package auth implements phone-code sign-in and the session tokens it issues.
package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/oggyb/fashionjiok/internal/app"
	"github.com/oggyb/fashionjiok/internal/config"
	"github.com/oggyb/fashionjiok/internal/db"
	svcErr "github.com/oggyb/fashionjiok/internal/errors"
	"github.com/oggyb/fashionjiok/internal/repository"
)

const issuer = "fashionjiok"

// CodeStore keeps pending verification codes and per-phone send counters.
type CodeStore interface {
	SetCode(ctx context.Context, phone, hash string, ttl time.Duration) error
	GetCode(ctx context.Context, phone string) (string, bool, error)
	DeleteCode(ctx context.Context, phone string) error
	Allow(ctx context.Context, resource, id string, limit int, window time.Duration) (bool, error)
}

type Users interface {
	FindOrCreateByPhone(ctx context.Context, phone string) (*db.User, bool, error)
}

type Service struct {
	codes CodeStore
	users Users
	cfg   config.AuthConfig
	debug bool
	log   *slog.Logger
	now   func() time.Time
}

func NewAuthService(appCtx *app.AppContext) *Service {
	return New(
		appCtx.RedisCache,
		repository.NewUserRepository(appCtx.DB),
		appCtx.Config.Auth,
		!appCtx.Config.IsProduction(),
		appCtx.Logger.With("component", "auth"),
	)
}

// New builds the service. debug controls whether SendCode echoes the code back.
func New(codes CodeStore, users Users, cfg config.AuthConfig, debug bool, log *slog.Logger) *Service {
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = 5 * time.Minute
	}
	if cfg.JWTTTL <= 0 {
		cfg.JWTTTL = 24 * time.Hour
	}
	if cfg.CodeRateLimit <= 0 {
		cfg.CodeRateLimit = 3
	}
	if cfg.CodeRateWindow <= 0 {
		cfg.CodeRateWindow = 10 * time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{codes: codes, users: users, cfg: cfg, debug: debug, log: log, now: time.Now}
}

// NormalizePhone strips separators and checks the remaining digits.
func NormalizePhone(phone string) (string, error) {
	var b strings.Builder
	for i, r := range strings.TrimSpace(phone) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == '-' || r == ' ' || r == '(' || r == ')':
		default:
			return "", svcErr.Validation("phone contains invalid characters")
		}
	}
	out := b.String()
	digits := strings.TrimPrefix(out, "+")
	if digits == "" {
		return "", svcErr.Validation("phone is required")
	}
	if len(digits) < 8 || len(digits) > 15 {
		return "", svcErr.Validation("phone must have 8 to 15 digits")
	}
	return out, nil
}

// SendResult is returned by SendCode. DebugCode is empty in production.
type SendResult struct {
	ExpiresIn time.Duration
	DebugCode string
}

// SendCode issues a verification code for phone. Delivery is logged only.
func (s *Service) SendCode(ctx context.Context, phone string) (SendResult, error) {
	phone, err := NormalizePhone(phone)
	if err != nil {
		return SendResult{}, err
	}

	ok, err := s.codes.Allow(ctx, "send-code", phone, s.cfg.CodeRateLimit, s.cfg.CodeRateWindow)
	if err != nil {
		return SendResult{}, svcErr.Unavailable("verification store unavailable", err)
	}
	if !ok {
		return SendResult{}, svcErr.RateLimited("too many verification requests, try again later")
	}

	code := s.cfg.FixedCode
	if code == "" {
		if code, err = randomCode(); err != nil {
			return SendResult{}, err
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return SendResult{}, fmt.Errorf("hash code: %w", err)
	}
	if err := s.codes.SetCode(ctx, phone, string(hash), s.cfg.CodeTTL); err != nil {
		return SendResult{}, svcErr.Unavailable("verification store unavailable", err)
	}

	s.log.InfoContext(ctx, "verification code issued", "phone_suffix", suffix(phone))

	res := SendResult{ExpiresIn: s.cfg.CodeTTL}
	if s.debug {
		res.DebugCode = code
	}
	return res, nil
}

// VerifyResult carries the signed-in user and its session token.
type VerifyResult struct {
	IsNewUser bool
	User      *db.User
	Token     string
	ExpiresAt time.Time
}

// VerifyCode checks code for phone, finds or creates the account and signs a
// session token. A code is single use.
func (s *Service) VerifyCode(ctx context.Context, phone, code string) (VerifyResult, error) {
	phone, err := NormalizePhone(phone)
	if err != nil {
		return VerifyResult{}, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return VerifyResult{}, svcErr.Validation("code is required")
	}

	hash, ok, err := s.codes.GetCode(ctx, phone)
	if err != nil {
		return VerifyResult{}, svcErr.Unavailable("verification store unavailable", err)
	}
	if !ok || bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) != nil {
		return VerifyResult{}, svcErr.Validation("verification code does not match")
	}

	user, created, err := s.users.FindOrCreateByPhone(ctx, phone)
	if err != nil {
		return VerifyResult{}, err
	}
	if err := s.codes.DeleteCode(ctx, phone); err != nil {
		s.log.WarnContext(ctx, "verification code not deleted", "err", err)
	}

	token, exp, err := s.IssueToken(user.ID)
	if err != nil {
		return VerifyResult{}, err
	}
	s.log.InfoContext(ctx, "phone sign-in", "user_id", user.ID, "new_user", created)
	return VerifyResult{IsNewUser: created, User: user, Token: token, ExpiresAt: exp}, nil
}

// IssueToken signs an HS256 session token whose subject is userID.
func (s *Service) IssueToken(userID uint64) (string, time.Time, error) {
	if s.cfg.JWTSecret == "" {
		return "", time.Time{}, fmt.Errorf("jwt secret not configured")
	}
	now := s.now()
	exp := now.Add(s.cfg.JWTTTL)
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(userID, 10),
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
		ID:        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// ParseToken validates a session token and returns its user id.
func (s *Service) ParseToken(raw string) (uint64, error) {
	raw = strings.TrimSpace(strings.TrimPrefix(raw, "Bearer "))
	if raw == "" {
		return 0, svcErr.Unauthorized("missing token")
	}

	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return 0, svcErr.Unauthorized("invalid or expired token")
	}

	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, svcErr.Unauthorized("invalid token subject")
	}
	return id, nil
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func suffix(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return phone[len(phone)-4:]
}
