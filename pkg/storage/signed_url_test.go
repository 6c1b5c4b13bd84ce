package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerGenerateAndParse(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate("doc-1", "patients/p1/visit_plan.pdf")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.False(t, expiresAt.IsZero())

	docID, path, parsedExpiry, err := signer.Parse(token, false)
	require.NoError(t, err)
	require.Equal(t, "doc-1", docID)
	require.Equal(t, "patients/p1/visit_plan.pdf", path)
	require.WithinDuration(t, expiresAt, parsedExpiry, time.Second)
}

func TestSignedURLSignerExpired(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Millisecond*10)
	token, _, err := signer.Generate("doc-1", "patients/p1/visit_plan.pdf")
	require.NoError(t, err)
	time.Sleep(time.Millisecond * 20)

	_, _, _, err = signer.Parse(token, false)
	require.Error(t, err)

	docID, path, _, err := signer.Parse(token, true)
	require.NoError(t, err)
	require.Equal(t, "doc-1", docID)
	require.Equal(t, "patients/p1/visit_plan.pdf", path)
}

func TestSignedURLSignerRejectsTamperedToken(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, _, err := signer.Generate("doc-1", "patients/p1/visit_plan.pdf")
	require.NoError(t, err)

	_, _, _, err = NewSignedURLSigner("other-secret", time.Hour).Parse(token, false)
	require.Error(t, err)
}
