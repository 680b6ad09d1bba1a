package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Capability tokens are server-signed bearer credentials: an AdminCap
// controls room lifecycle, a GameCap
// is scoped to one registered game and authorizes settlement for its rooms.
// Tokens are bearer strings; whoever presents a valid one holds the cap.

const (
	capKindAdmin = "admin"
	capKindGame  = "game"
)

type Capability struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	GameID string `json:"gameId,omitempty"`
	Token  string `json:"token"`
}

type capClaims struct {
	GameID string `json:"gameId,omitempty"`
	jwt.RegisteredClaims
}

type CapabilityAuthority struct {
	secret []byte

	mu      sync.Mutex
	revoked map[string]bool
}

func NewCapabilityAuthority(secret []byte) *CapabilityAuthority {
	return &CapabilityAuthority{
		secret:  secret,
		revoked: make(map[string]bool),
	}
}

func (a *CapabilityAuthority) IssueAdminCap() (Capability, error) {
	return a.issue(capKindAdmin, "")
}

func (a *CapabilityAuthority) IssueGameCap(gameID string) (Capability, error) {
	if gameID == "" {
		return Capability{}, fmt.Errorf("issue game cap: empty game id")
	}
	return a.issue(capKindGame, gameID)
}

func (a *CapabilityAuthority) issue(kind, gameID string) (Capability, error) {
	id := uuid.NewString()
	claims := capClaims{
		GameID: gameID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       id,
			Subject:  kind,
			IssuedAt: jwt.NewNumericDate(time.Now().UTC()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return Capability{}, fmt.Errorf("sign capability: %w", err)
	}
	return Capability{ID: id, Kind: kind, GameID: gameID, Token: token}, nil
}

// Revoke invalidates a single capability by its id. Revocation is an
// in-memory flag; caps are re-issued on boot.
func (a *CapabilityAuthority) Revoke(capID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.revoked[capID] = true
}

func (a *CapabilityAuthority) verify(token string) (*capClaims, error) {
	claims := &capClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, errUnauthorized
	}
	a.mu.Lock()
	revoked := a.revoked[claims.ID]
	a.mu.Unlock()
	if revoked {
		return nil, errUnauthorized
	}
	return claims, nil
}

// VerifyAdmin checks an AdminCap presentation.
func (a *CapabilityAuthority) VerifyAdmin(token string) error {
	claims, err := a.verify(token)
	if err != nil {
		return err
	}
	if claims.Subject != capKindAdmin {
		return errUnauthorized
	}
	return nil
}

// VerifyGame checks a GameCap presentation against the game it is scoped to.
func (a *CapabilityAuthority) VerifyGame(token, gameID string) error {
	claims, err := a.verify(token)
	if err != nil {
		return err
	}
	if claims.Subject != capKindGame || claims.GameID != gameID {
		return errUnauthorized
	}
	return nil
}
