package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/forgehq/forge/pkg/models"
	"github.com/forgehq/forge/pkg/persistence"
)

// credentialSecretBytes sizes the random part of a key. The full key stays
// well under bcrypt's 72 byte input limit.
const credentialSecretBytes = 16

const defaultRateLimitPerMin = 120

// Credential issues and validates the API keys that authenticate calls.
type Credential struct {
	persistence persistence.Persistence
}

func NewCredential(persistence persistence.Persistence) *Credential {
	return &Credential{persistence: persistence}
}

// CreatedCredential pairs a stored credential with its plaintext key. The
// key exists only in this value; it is never persisted and cannot be
// retrieved again.
type CreatedCredential struct {
	Credential *models.Credential
	Key        string
}

// CreateOptions are the optional attributes of a new credential.
type CreateOptions struct {
	Scopes          []string
	IPAllowlist     []string
	RateLimitPerMin int
}

// Create issues a new API key in the given environment. The key prefix
// encodes the environment name, so the environment must belong to the
// organization and be one of the known names.
func (s *Credential) Create(ctx context.Context, orgID, environmentID, name string, opts CreateOptions) (*CreatedCredential, error) {
	if orgID == "" {
		return nil, &ServiceError{Op: "Create", Err: ErrEmptyOrgID}
	}

	environment, err := s.persistence.Environments().GetByID(ctx, environmentID)
	if err != nil {
		return nil, err
	}

	if environment.OrgID != orgID {
		return nil, persistence.NewEntityError("Create", "environment", environmentID, persistence.ErrEnvironmentNotFound)
	}

	prefix, err := prefixForEnvironment(environment.Name)
	if err != nil {
		return nil, &ServiceError{Op: "Create", Message: err.Error(), Err: ErrEnvironmentInvalid}
	}

	secret, err := randomHex(credentialSecretBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key material: %w", err)
	}

	key := prefix + secret

	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash key: %w", err)
	}

	rateLimit := opts.RateLimitPerMin
	if rateLimit <= 0 {
		rateLimit = defaultRateLimitPerMin
	}

	credential := &models.Credential{
		ID:              uuid.New().String(),
		OrgID:           orgID,
		EnvironmentID:   environmentID,
		Prefix:          prefix,
		Hash:            string(hash),
		Name:            name,
		Scopes:          opts.Scopes,
		IPAllowlist:     opts.IPAllowlist,
		RateLimitPerMin: rateLimit,
		Status:          models.CredentialStatusActive,
		CreatedAt:       time.Now().UTC(),
	}

	if err := s.persistence.Credentials().Save(ctx, credential); err != nil {
		return nil, fmt.Errorf("failed to save credential: %w", err)
	}

	return &CreatedCredential{Credential: credential, Key: key}, nil
}

// Validate resolves a presented key to its credential. The key's prefix
// narrows the candidate set to active credentials of the same environment
// class before the hash compare; a revoked or unknown key is rejected with
// the same error so callers cannot probe which keys exist.
func (s *Credential) Validate(ctx context.Context, key string) (*models.Credential, error) {
	if len(key) <= models.CredentialPrefixLength {
		return nil, &ServiceError{Op: "Validate", Err: ErrCredentialInvalid}
	}

	prefix := key[:models.CredentialPrefixLength]
	if prefix != models.CredentialPrefixSandbox && prefix != models.CredentialPrefixProduction {
		return nil, &ServiceError{Op: "Validate", Err: ErrCredentialInvalid}
	}

	candidates, err := s.persistence.Credentials().ListActiveByPrefix(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate credentials: %w", err)
	}

	for _, candidate := range candidates {
		if bcrypt.CompareHashAndPassword([]byte(candidate.Hash), []byte(key)) != nil {
			continue
		}

		now := time.Now().UTC()
		candidate.LastUsedAt = &now

		if err := s.persistence.Credentials().Save(ctx, candidate); err != nil {
			return nil, fmt.Errorf("failed to record credential use: %w", err)
		}

		return candidate, nil
	}

	return nil, &ServiceError{Op: "Validate", Err: ErrCredentialInvalid}
}

// FetchByID returns a credential owned by the organization.
func (s *Credential) FetchByID(ctx context.Context, orgID, id string) (*models.Credential, error) {
	credential, err := s.persistence.Credentials().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if credential.OrgID != orgID {
		return nil, persistence.NewEntityError("FetchByID", "credential", id, persistence.ErrCredentialNotFound)
	}

	return credential, nil
}

// List returns the organization's credentials. Hashes are excluded from
// serialization by the model.
func (s *Credential) List(ctx context.Context, orgID string) ([]*models.Credential, error) {
	if orgID == "" {
		return nil, &ServiceError{Op: "List", Err: ErrEmptyOrgID}
	}

	return s.persistence.Credentials().ListByOrg(ctx, orgID)
}

// UpdateOptions are the mutable credential attributes. The key itself is
// immutable; rotating means revoking and creating a new one.
type UpdateOptions struct {
	Name            *string
	Scopes          *[]string
	IPAllowlist     *[]string
	RateLimitPerMin *int
}

// Update changes credential metadata.
func (s *Credential) Update(ctx context.Context, orgID, id string, opts UpdateOptions) (*models.Credential, error) {
	credential, err := s.FetchByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	if opts.Name != nil {
		credential.Name = *opts.Name
	}

	if opts.Scopes != nil {
		credential.Scopes = *opts.Scopes
	}

	if opts.IPAllowlist != nil {
		credential.IPAllowlist = *opts.IPAllowlist
	}

	if opts.RateLimitPerMin != nil && *opts.RateLimitPerMin > 0 {
		credential.RateLimitPerMin = *opts.RateLimitPerMin
	}

	if err := s.persistence.Credentials().Save(ctx, credential); err != nil {
		return nil, fmt.Errorf("failed to save credential: %w", err)
	}

	return credential, nil
}

// Revoke deactivates a credential immediately. Revocation keeps the record;
// a revoked key fails validation from the next request on.
func (s *Credential) Revoke(ctx context.Context, orgID, id string) (*models.Credential, error) {
	credential, err := s.FetchByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	credential.Status = models.CredentialStatusRevoked

	if err := s.persistence.Credentials().Save(ctx, credential); err != nil {
		return nil, fmt.Errorf("failed to save revoked credential: %w", err)
	}

	return credential, nil
}

// Delete removes a credential record entirely.
func (s *Credential) Delete(ctx context.Context, orgID, id string) error {
	if _, err := s.FetchByID(ctx, orgID, id); err != nil {
		return err
	}

	return s.persistence.Credentials().Delete(ctx, id)
}

func prefixForEnvironment(name models.EnvironmentName) (string, error) {
	switch name {
	case models.EnvironmentSandbox:
		return models.CredentialPrefixSandbox, nil
	case models.EnvironmentProduction:
		return models.CredentialPrefixProduction, nil
	default:
		return "", fmt.Errorf("no key prefix for environment %q", name)
	}
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	return hex.EncodeToString(buf), nil
}
