package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAdminCapRoundTrip(t *testing.T) {
	auth := NewCapabilityAuthority([]byte("secret"))

	adminCap, err := auth.IssueAdminCap()
	require.NoError(t, err)
	require.Equal(t, capKindAdmin, adminCap.Kind)
	require.NotEmpty(t, adminCap.Token)

	require.NoError(t, auth.VerifyAdmin(adminCap.Token))
	require.ErrorIs(t, auth.VerifyGame(adminCap.Token, "g1"), errUnauthorized)
}

func TestGameCapScopedToItsGame(t *testing.T) {
	auth := NewCapabilityAuthority([]byte("secret"))

	gameCap, err := auth.IssueGameCap("g1")
	require.NoError(t, err)
	require.Equal(t, "g1", gameCap.GameID)

	require.NoError(t, auth.VerifyGame(gameCap.Token, "g1"))
	require.ErrorIs(t, auth.VerifyGame(gameCap.Token, "g2"), errUnauthorized)
	require.ErrorIs(t, auth.VerifyAdmin(gameCap.Token), errUnauthorized)

	_, err = auth.IssueGameCap("")
	require.Error(t, err)
}

func TestRevokedCapStopsWorking(t *testing.T) {
	auth := NewCapabilityAuthority([]byte("secret"))

	adminCap, err := auth.IssueAdminCap()
	require.NoError(t, err)
	other, err := auth.IssueAdminCap()
	require.NoError(t, err)

	auth.Revoke(adminCap.ID)
	require.ErrorIs(t, auth.VerifyAdmin(adminCap.Token), errUnauthorized)

	// revocation is per capability, not per kind
	require.NoError(t, auth.VerifyAdmin(other.Token))
}

func TestForgedTokensRejected(t *testing.T) {
	auth := NewCapabilityAuthority([]byte("secret"))
	forger := NewCapabilityAuthority([]byte("other-secret"))

	forged, err := forger.IssueAdminCap()
	require.NoError(t, err)

	require.ErrorIs(t, auth.VerifyAdmin(forged.Token), errUnauthorized)
	require.ErrorIs(t, auth.VerifyAdmin("not-a-token"), errUnauthorized)
	require.ErrorIs(t, auth.VerifyAdmin(""), errUnauthorized)
}
