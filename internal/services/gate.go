package services

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/tributewall/tribute-backend/internal/logger"
	"github.com/tributewall/tribute-backend/internal/pkg/faults"
	"github.com/tributewall/tribute-backend/internal/utils"
)

// GateService is the wall's single shared-secret door: visitors who
// know the passphrase get a session token, there are no per-user
// accounts. The passphrase is stored only as a bcrypt hash.
type GateService interface {
	Enter(secret string) (string, error)
	ParseToken(token string) error
}

type gateService struct {
	log        *logger.Logger
	secretHash []byte
	jwtSecret  []byte
	tokenTTL   time.Duration
}

func NewGateService(log *logger.Logger) (GateService, error) {
	svcLog := log.With("service", "GateService")

	secretHash := strings.TrimSpace(os.Getenv("GATE_SECRET_HASH"))
	if secretHash == "" {
		return nil, fmt.Errorf("missing env var GATE_SECRET_HASH")
	}
	jwtSecret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if jwtSecret == "" {
		return nil, fmt.Errorf("missing env var JWT_SECRET")
	}
	ttlHours := utils.GetEnvAsInt("GATE_TOKEN_TTL_HOURS", 720, svcLog)

	return &gateService{
		log:        svcLog,
		secretHash: []byte(secretHash),
		jwtSecret:  []byte(jwtSecret),
		tokenTTL:   time.Duration(ttlHours) * time.Hour,
	}, nil
}

// NewGateServiceWithConfig is the test constructor.
func NewGateServiceWithConfig(log *logger.Logger, secretHash, jwtSecret []byte, ttl time.Duration) GateService {
	return &gateService{
		log:        log.With("service", "GateService"),
		secretHash: secretHash,
		jwtSecret:  jwtSecret,
		tokenTTL:   ttl,
	}
}

func (s *gateService) Enter(secret string) (string, error) {
	if err := bcrypt.CompareHashAndPassword(s.secretHash, []byte(secret)); err != nil {
		return "", faults.ErrUnauthorized
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   "wall-visitor",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

func (s *gateService) ParseToken(tokenString string) error {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return s.jwtSecret, nil
		})
	if err != nil || !token.Valid {
		return faults.ErrUnauthorized
	}
	return nil
}
