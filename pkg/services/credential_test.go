package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgehq/forge/pkg/models"
	"github.com/forgehq/forge/pkg/persistence/file"
)

func setupCredentialService(t *testing.T) (*Credential, *Environment) {
	t.Helper()

	persistence := file.NewPersistence(t.TempDir())

	return NewCredential(persistence), NewEnvironment(persistence)
}

func sandboxEnvironment(t *testing.T, environments *Environment, orgID string) *models.Environment {
	t.Helper()

	provisioned, err := environments.EnsureEnvironments(t.Context(), orgID)
	require.NoError(t, err)

	for _, environment := range provisioned {
		if environment.Name == models.EnvironmentSandbox {
			return environment
		}
	}

	t.Fatal("sandbox environment not provisioned")

	return nil
}

func TestCredential_CreateReturnsPlaintextOnce(t *testing.T) {
	credentials, environments := setupCredentialService(t)
	sandbox := sandboxEnvironment(t, environments, "org-1")

	created, err := credentials.Create(t.Context(), "org-1", sandbox.ID, "ci key", CreateOptions{})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(created.Key, models.CredentialPrefixSandbox))
	assert.Equal(t, models.CredentialPrefixSandbox, created.Credential.Prefix)
	assert.Equal(t, models.CredentialStatusActive, created.Credential.Status)

	// The stored hash never equals and never contains the plaintext.
	assert.NotEqual(t, created.Key, created.Credential.Hash)
	assert.NotContains(t, created.Credential.Hash, created.Key)
}

func TestCredential_ValidateMatchesIssuedKey(t *testing.T) {
	credentials, environments := setupCredentialService(t)
	sandbox := sandboxEnvironment(t, environments, "org-1")

	created, err := credentials.Create(t.Context(), "org-1", sandbox.ID, "ci key", CreateOptions{})
	require.NoError(t, err)

	validated, err := credentials.Validate(t.Context(), created.Key)
	require.NoError(t, err)

	assert.Equal(t, created.Credential.ID, validated.ID)
	assert.NotNil(t, validated.LastUsedAt)
}

func TestCredential_ValidateRejectsGarbage(t *testing.T) {
	credentials, _ := setupCredentialService(t)

	for _, key := range []string{
		"",
		"short",
		"zz_nope_0123456789abcdef",
		models.CredentialPrefixSandbox + "0123456789abcdef0123456789abcdef",
	} {
		_, err := credentials.Validate(t.Context(), key)
		require.ErrorIs(t, err, ErrCredentialInvalid, "key %q", key)
	}
}

func TestCredential_RevokedKeyStopsValidating(t *testing.T) {
	credentials, environments := setupCredentialService(t)
	sandbox := sandboxEnvironment(t, environments, "org-1")

	created, err := credentials.Create(t.Context(), "org-1", sandbox.ID, "ci key", CreateOptions{})
	require.NoError(t, err)

	_, err = credentials.Validate(t.Context(), created.Key)
	require.NoError(t, err)

	revoked, err := credentials.Revoke(t.Context(), "org-1", created.Credential.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CredentialStatusRevoked, revoked.Status)

	_, err = credentials.Validate(t.Context(), created.Key)
	require.ErrorIs(t, err, ErrCredentialInvalid)
}

func TestCredential_PrefixFollowsEnvironment(t *testing.T) {
	credentials, environments := setupCredentialService(t)

	provisioned, err := environments.EnsureEnvironments(t.Context(), "org-1")
	require.NoError(t, err)

	for _, environment := range provisioned {
		created, err := credentials.Create(t.Context(), "org-1", environment.ID, string(environment.Name), CreateOptions{})
		require.NoError(t, err)

		switch environment.Name {
		case models.EnvironmentSandbox:
			assert.True(t, strings.HasPrefix(created.Key, models.CredentialPrefixSandbox))
		case models.EnvironmentProduction:
			assert.True(t, strings.HasPrefix(created.Key, models.CredentialPrefixProduction))
		}
	}
}

func TestCredential_UpdateNeverTouchesKeyMaterial(t *testing.T) {
	credentials, environments := setupCredentialService(t)
	sandbox := sandboxEnvironment(t, environments, "org-1")

	created, err := credentials.Create(t.Context(), "org-1", sandbox.ID, "old name", CreateOptions{})
	require.NoError(t, err)

	name := "new name"
	limit := 10
	updated, err := credentials.Update(t.Context(), "org-1", created.Credential.ID, UpdateOptions{
		Name:            &name,
		RateLimitPerMin: &limit,
	})
	require.NoError(t, err)

	assert.Equal(t, "new name", updated.Name)
	assert.Equal(t, 10, updated.RateLimitPerMin)

	// The original key still validates.
	_, err = credentials.Validate(t.Context(), created.Key)
	require.NoError(t, err)
}

func TestCredential_DeleteRemovesRecord(t *testing.T) {
	credentials, environments := setupCredentialService(t)
	sandbox := sandboxEnvironment(t, environments, "org-1")

	created, err := credentials.Create(t.Context(), "org-1", sandbox.ID, "temp", CreateOptions{})
	require.NoError(t, err)

	require.NoError(t, credentials.Delete(t.Context(), "org-1", created.Credential.ID))

	_, err = credentials.Validate(t.Context(), created.Key)
	require.ErrorIs(t, err, ErrCredentialInvalid)
}
