package file

import (
	"context"
	"sort"
	"time"

	"github.com/forgehq/forge/pkg/models"
	"github.com/forgehq/forge/pkg/persistence"
)

const credentialsDir = "credentials"

// CredentialRepository handles credential storage on the file system.
type CredentialRepository struct {
	root string
}

func (r *CredentialRepository) Save(_ context.Context, credential *models.Credential) error {
	if credential.CreatedAt.IsZero() {
		credential.CreatedAt = time.Now().UTC()
	}

	// The model hides the hash from JSON; the storage document carries it.
	return writeEntity(r.root, credentialsDir, credential.ID, newCredentialDocument(credential))
}

func (r *CredentialRepository) GetByID(_ context.Context, id string) (*models.Credential, error) {
	var credential credentialDocument
	if err := readEntity(r.root, credentialsDir, id, &credential, persistence.ErrCredentialNotFound); err != nil {
		return nil, err
	}

	return credential.toModel(), nil
}

func (r *CredentialRepository) ListByOrg(ctx context.Context, orgID string) ([]*models.Credential, error) {
	credentials, err := r.all(ctx)
	if err != nil {
		return nil, err
	}

	matched := make([]*models.Credential, 0, len(credentials))

	for _, credential := range credentials {
		if credential.OrgID == orgID {
			matched = append(matched, credential)
		}
	}

	return matched, nil
}

func (r *CredentialRepository) ListActiveByPrefix(ctx context.Context, prefix string) ([]*models.Credential, error) {
	credentials, err := r.all(ctx)
	if err != nil {
		return nil, err
	}

	matched := make([]*models.Credential, 0)

	for _, credential := range credentials {
		if credential.Prefix == prefix && credential.Status == models.CredentialStatusActive {
			matched = append(matched, credential)
		}
	}

	return matched, nil
}

func (r *CredentialRepository) Delete(_ context.Context, id string) error {
	return removeEntity(r.root, credentialsDir, id, persistence.ErrCredentialNotFound)
}

func (r *CredentialRepository) all(ctx context.Context) ([]*models.Credential, error) {
	ids, err := listEntityIDs(r.root, credentialsDir)
	if err != nil {
		return []*models.Credential{}, nil
	}

	credentials := make([]*models.Credential, 0, len(ids))

	for _, id := range ids {
		credential, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		credentials = append(credentials, credential)
	}

	sort.Slice(credentials, func(i, j int) bool {
		return credentials[i].CreatedAt.After(credentials[j].CreatedAt)
	})

	return credentials, nil
}

// credentialDocument mirrors models.Credential with the hash included, since
// the model deliberately excludes it from JSON marshaling.
type credentialDocument struct {
	models.Credential

	Hash string `json:"hash"`
}

func (d *credentialDocument) toModel() *models.Credential {
	credential := d.Credential
	credential.Hash = d.Hash

	return &credential
}

// newCredentialDocument wraps a model for storage.
func newCredentialDocument(credential *models.Credential) *credentialDocument {
	return &credentialDocument{Credential: *credential, Hash: credential.Hash}
}
