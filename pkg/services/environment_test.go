package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgehq/forge/pkg/models"
	"github.com/forgehq/forge/pkg/persistence/file"
)

func TestEnvironment_EnsureProvisionsBoth(t *testing.T) {
	service := NewEnvironment(file.NewPersistence(t.TempDir()))

	environments, err := service.EnsureEnvironments(t.Context(), "org-1")
	require.NoError(t, err)
	require.Len(t, environments, 2)

	names := map[models.EnvironmentName]bool{}
	for _, environment := range environments {
		names[environment.Name] = true
		assert.Equal(t, "org-1", environment.OrgID)
		assert.NotEmpty(t, environment.ID)
	}

	assert.True(t, names[models.EnvironmentSandbox])
	assert.True(t, names[models.EnvironmentProduction])
}

func TestEnvironment_EnsureIsIdempotent(t *testing.T) {
	service := NewEnvironment(file.NewPersistence(t.TempDir()))

	first, err := service.EnsureEnvironments(t.Context(), "org-1")
	require.NoError(t, err)

	second, err := service.EnsureEnvironments(t.Context(), "org-1")
	require.NoError(t, err)

	require.Len(t, second, 2)

	firstIDs := map[string]bool{}
	for _, environment := range first {
		firstIDs[environment.ID] = true
	}

	for _, environment := range second {
		assert.True(t, firstIDs[environment.ID], "environment %s recreated", environment.Name)
	}

	listed, err := service.List(t.Context(), "org-1")
	require.NoError(t, err)
	assert.Len(t, listed, 2)
}

func TestEnvironment_OrgsAreIsolated(t *testing.T) {
	service := NewEnvironment(file.NewPersistence(t.TempDir()))

	mine, err := service.EnsureEnvironments(t.Context(), "org-1")
	require.NoError(t, err)

	_, err = service.EnsureEnvironments(t.Context(), "org-2")
	require.NoError(t, err)

	_, err = service.FetchByID(t.Context(), "org-2", mine[0].ID)
	require.Error(t, err)
}
