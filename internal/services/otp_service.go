package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"math/big"
	"time"

	"ChatRelay/server/internal/models"

	"github.com/jonboulle/clockwork"
)

const otpTTL = 10 * time.Minute

// OtpStore persists one pending code per identity. Issuing a new code
// replaces the previous one; verification consumes the row.
type OtpStore interface {
	Upsert(ctx context.Context, identity, code string, expiresAt time.Time) error
	Get(ctx context.Context, identity string) (code string, expiresAt time.Time, err error)
	Delete(ctx context.Context, identity string) error
}

type Mailer interface {
	SendOtp(to, code string) error
}

type OtpService interface {
	RequestOtp(ctx context.Context, identity string) error
	VerifyOtp(ctx context.Context, identity, code string) error
}

type otpService struct {
	store  OtpStore
	mailer Mailer
	clock  clockwork.Clock
}

func NewOtpService(store OtpStore, mailer Mailer, clock clockwork.Clock) *otpService {
	return &otpService{
		store:  store,
		mailer: mailer,
		clock:  clock,
	}
}

func (os *otpService) RequestOtp(ctx context.Context, identity string) error {
	if identity == "" {
		return models.ErrValidation
	}

	code, err := generateOtpCode()
	if err != nil {
		log.Printf("Failed to generate OTP code: %v", err)
		return err
	}

	expiresAt := os.clock.Now().Add(otpTTL)
	if err := os.store.Upsert(ctx, identity, code, expiresAt); err != nil {
		log.Printf("Error storing OTP for %s: %v", identity, err)
		return err
	}

	if err := os.mailer.SendOtp(identity, code); err != nil {
		log.Printf("Error emailing OTP to %s: %v", identity, err)
		return err
	}

	log.Printf("OTP issued for %s, expires at %v", identity, expiresAt)
	return nil
}

// VerifyOtp accepts only the most recently issued code, and only while the
// wall clock is before its expiry. Any other combination fails the same way
// so a caller cannot distinguish a wrong code from a stale one.
func (os *otpService) VerifyOtp(ctx context.Context, identity, code string) error {
	stored, expiresAt, err := os.store.Get(ctx, identity)
	if err != nil {
		log.Printf("No pending OTP for %s: %v", identity, err)
		return models.ErrInvalidOrExpiredOtp
	}

	if code != stored || !os.clock.Now().Before(expiresAt) {
		return models.ErrInvalidOrExpiredOtp
	}

	if err := os.store.Delete(ctx, identity); err != nil {
		log.Printf("Error deleting verified OTP for %s: %v", identity, err)
		return err
	}

	log.Printf("OTP verified for %s", identity)
	return nil
}

func generateOtpCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
