package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"ChatRelay/server/internal/models"

	"github.com/jonboulle/clockwork"
)

type memoryOtpStore struct {
	codes   map[string]string
	expires map[string]time.Time
}

func newMemoryOtpStore() *memoryOtpStore {
	return &memoryOtpStore{
		codes:   make(map[string]string),
		expires: make(map[string]time.Time),
	}
}

func (s *memoryOtpStore) Upsert(_ context.Context, identity, code string, expiresAt time.Time) error {
	s.codes[identity] = code
	s.expires[identity] = expiresAt
	return nil
}

func (s *memoryOtpStore) Get(_ context.Context, identity string) (string, time.Time, error) {
	code, ok := s.codes[identity]
	if !ok {
		return "", time.Time{}, errors.New("no rows in result set")
	}
	return code, s.expires[identity], nil
}

func (s *memoryOtpStore) Delete(_ context.Context, identity string) error {
	delete(s.codes, identity)
	delete(s.expires, identity)
	return nil
}

type recordingMailer struct {
	to   string
	code string
}

func (m *recordingMailer) SendOtp(to, code string) error {
	m.to = to
	m.code = code
	return nil
}

func newOtpFixture() (*otpService, *memoryOtpStore, *recordingMailer, *clockwork.FakeClock) {
	store := newMemoryOtpStore()
	mailer := &recordingMailer{}
	clock := clockwork.NewFakeClock()
	svc := NewOtpService(store, mailer, clock)
	return svc, store, mailer, clock
}

func TestOtpVerifyHappyPath(t *testing.T) {
	svc, _, mailer, _ := newOtpFixture()
	ctx := context.Background()

	if err := svc.RequestOtp(ctx, "alice@example.com"); err != nil {
		t.Fatalf("RequestOtp failed: %v", err)
	}
	if mailer.to != "alice@example.com" {
		t.Fatalf("OTP mailed to %q", mailer.to)
	}
	if len(mailer.code) != 6 {
		t.Fatalf("Expected a 6-digit code, got %q", mailer.code)
	}

	if err := svc.VerifyOtp(ctx, "alice@example.com", mailer.code); err != nil {
		t.Errorf("Valid code rejected: %v", err)
	}
}

func TestOtpVerifyWrongCode(t *testing.T) {
	svc, _, mailer, _ := newOtpFixture()
	ctx := context.Background()

	if err := svc.RequestOtp(ctx, "alice@example.com"); err != nil {
		t.Fatalf("RequestOtp failed: %v", err)
	}

	wrong := "000000"
	if wrong == mailer.code {
		wrong = "000001"
	}
	if err := svc.VerifyOtp(ctx, "alice@example.com", wrong); !errors.Is(err, models.ErrInvalidOrExpiredOtp) {
		t.Errorf("Expected ErrInvalidOrExpiredOtp, got %v", err)
	}
}

func TestOtpVerifyExpired(t *testing.T) {
	svc, _, mailer, clock := newOtpFixture()
	ctx := context.Background()

	if err := svc.RequestOtp(ctx, "alice@example.com"); err != nil {
		t.Fatalf("RequestOtp failed: %v", err)
	}

	clock.Advance(10*time.Minute - time.Second)
	code := mailer.code

	// still inside the window
	if err := svc.VerifyOtp(ctx, "alice@example.com", code); err != nil {
		t.Fatalf("Code rejected one second before expiry: %v", err)
	}

	if err := svc.RequestOtp(ctx, "alice@example.com"); err != nil {
		t.Fatalf("RequestOtp failed: %v", err)
	}
	clock.Advance(10 * time.Minute)

	if err := svc.VerifyOtp(ctx, "alice@example.com", mailer.code); !errors.Is(err, models.ErrInvalidOrExpiredOtp) {
		t.Errorf("Expected ErrInvalidOrExpiredOtp at exact expiry, got %v", err)
	}
}

func TestOtpReissueInvalidatesOldCode(t *testing.T) {
	svc, _, mailer, _ := newOtpFixture()
	ctx := context.Background()

	if err := svc.RequestOtp(ctx, "alice@example.com"); err != nil {
		t.Fatalf("RequestOtp failed: %v", err)
	}
	first := mailer.code

	// keep requesting until the random code differs
	second := first
	for i := 0; i < 50 && second == first; i++ {
		if err := svc.RequestOtp(ctx, "alice@example.com"); err != nil {
			t.Fatalf("RequestOtp failed: %v", err)
		}
		second = mailer.code
	}
	if second == first {
		t.Skip("random codes collided repeatedly")
	}

	if err := svc.VerifyOtp(ctx, "alice@example.com", first); !errors.Is(err, models.ErrInvalidOrExpiredOtp) {
		t.Errorf("Old code still accepted after reissue, got %v", err)
	}
	if err := svc.VerifyOtp(ctx, "alice@example.com", second); err != nil {
		t.Errorf("Latest code rejected: %v", err)
	}
}

func TestOtpVerifyConsumesCode(t *testing.T) {
	svc, store, mailer, _ := newOtpFixture()
	ctx := context.Background()

	if err := svc.RequestOtp(ctx, "alice@example.com"); err != nil {
		t.Fatalf("RequestOtp failed: %v", err)
	}
	if err := svc.VerifyOtp(ctx, "alice@example.com", mailer.code); err != nil {
		t.Fatalf("Valid code rejected: %v", err)
	}

	if _, ok := store.codes["alice@example.com"]; ok {
		t.Error("Code survived verification")
	}
	if err := svc.VerifyOtp(ctx, "alice@example.com", mailer.code); !errors.Is(err, models.ErrInvalidOrExpiredOtp) {
		t.Errorf("Consumed code accepted twice, got %v", err)
	}
}

func TestOtpUnknownIdentity(t *testing.T) {
	svc, _, _, _ := newOtpFixture()

	err := svc.VerifyOtp(context.Background(), "nobody@example.com", "123456")
	if !errors.Is(err, models.ErrInvalidOrExpiredOtp) {
		t.Errorf("Expected ErrInvalidOrExpiredOtp, got %v", err)
	}
}
