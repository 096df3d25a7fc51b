package auth

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/mr-tron/base58"

	"github.com/ayush/notsodumb/backend/internal/models"
	"github.com/ayush/notsodumb/backend/internal/store"
)

// ChallengeTTL is how long an issued challenge stays valid.
const ChallengeTTL = 5 * time.Minute

var (
	ErrMissingFields    = errors.New("walletAddress, challenge and signature are required")
	ErrInvalidAddress   = errors.New("invalid wallet address")
	ErrInvalidChallenge = errors.New("invalid or expired challenge")
	ErrInvalidSignature = errors.New("invalid signature")
)

// ChallengeStore persists one active challenge per wallet address.
type ChallengeStore interface {
	UpsertChallenge(ctx context.Context, c models.Challenge) error
	GetChallenge(ctx context.Context, address string) (*models.Challenge, error)
	ConsumeChallenge(ctx context.Context, address, challenge string, now time.Time) error
	DeleteExpiredChallenges(ctx context.Context, now time.Time) error
}

// WalletUserStore looks up the user behind a wallet, creating it on first sight.
type WalletUserStore interface {
	FindOrCreateWalletUser(ctx context.Context, address string) (*models.User, error)
}

// WalletService issues and verifies wallet challenges.
type WalletService struct {
	challenges ChallengeStore
	users      WalletUserStore
	now        func() time.Time
}

func NewWalletService(challenges ChallengeStore, users WalletUserStore) *WalletService {
	return &WalletService{challenges: challenges, users: users, now: time.Now}
}

// PublicKey decodes a base58 Solana address into an ed25519 public key.
func PublicKey(address string) (ed25519.PublicKey, error) {
	raw, err := base58.Decode(address)
	if err != nil || len(raw) != ed25519.PublicKeySize {
		return nil, ErrInvalidAddress
	}
	return ed25519.PublicKey(raw), nil
}

// VerifySignature reports whether sig is a valid signature of msg under pub.
func VerifySignature(msg, sig []byte, pub ed25519.PublicKey) bool {
	if len(pub) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pub, msg, sig)
}

// Issue creates a fresh challenge for address, replacing any previous one.
// Expired challenges of every wallet are purged first.
func (s *WalletService) Issue(ctx context.Context, address string) (*models.Challenge, error) {
	if address == "" {
		return nil, ErrMissingFields
	}
	if _, err := PublicKey(address); err != nil {
		return nil, err
	}

	nonce := make([]byte, 32)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}

	now := s.now()
	if err := s.challenges.DeleteExpiredChallenges(ctx, now); err != nil {
		return nil, fmt.Errorf("purge challenges: %w", err)
	}

	c := models.Challenge{
		WalletAddress: address,
		Challenge: fmt.Sprintf(
			"Sign this message to authenticate with notSoDumb.\n\nWallet: %s\nNonce: %s\nIssued At: %s",
			address, hex.EncodeToString(nonce), now.UTC().Format(time.RFC3339),
		),
		ExpiresAt: now.Add(ChallengeTTL),
	}
	if err := s.challenges.UpsertChallenge(ctx, c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Verify checks signature against the stored challenge for address. On
// success the challenge is consumed and the wallet's user is returned.
func (s *WalletService) Verify(ctx context.Context, address, challenge string, signature []byte) (*models.User, error) {
	if address == "" || challenge == "" || len(signature) == 0 {
		return nil, ErrMissingFields
	}

	stored, err := s.challenges.GetChallenge(ctx, address)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidChallenge
	}
	if err != nil {
		return nil, fmt.Errorf("load challenge: %w", err)
	}
	if stored.Challenge != challenge || !s.now().Before(stored.ExpiresAt) {
		return nil, ErrInvalidChallenge
	}

	pub, err := PublicKey(address)
	if err != nil || !VerifySignature([]byte(stored.Challenge), signature, pub) {
		return nil, ErrInvalidSignature
	}

	// The read above is only a pre-check; the delete decides which request wins.
	err = s.challenges.ConsumeChallenge(ctx, address, stored.Challenge, s.now())
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidChallenge
	}
	if err != nil {
		return nil, err
	}
	return s.users.FindOrCreateWalletUser(ctx, address)
}

// SignatureBytes converts a JSON number array into bytes. Values outside
// 0..255 make the signature invalid.
func SignatureBytes(values []int) ([]byte, error) {
	out := make([]byte, len(values))
	for i, v := range values {
		if v < 0 || v > 255 {
			return nil, ErrInvalidSignature
		}
		out[i] = byte(v)
	}
	return out, nil
}
