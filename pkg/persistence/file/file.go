// Package file provides file-based persistence for development and tests.
// Each entity is stored as one JSON document under the root directory.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/forgehq/forge/pkg/persistence"
)

// Persistence implements persistence.Persistence on top of the file system.
type Persistence struct {
	root         string
	flows        *FlowRepository
	runs         *RunRepository
	usage        *UsageRepository
	credentials  *CredentialRepository
	environments *EnvironmentRepository
	webhooks     *WebhookRepository
}

// NewPersistence creates a file persistence rooted at the given directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:         cleanRoot,
		flows:        &FlowRepository{root: cleanRoot},
		runs:         &RunRepository{root: cleanRoot},
		usage:        &UsageRepository{root: cleanRoot},
		credentials:  &CredentialRepository{root: cleanRoot},
		environments: &EnvironmentRepository{root: cleanRoot},
		webhooks:     &WebhookRepository{root: cleanRoot},
	}
}

func (p *Persistence) Flows() persistence.FlowRepository               { return p.flows }
func (p *Persistence) Runs() persistence.RunRepository                 { return p.runs }
func (p *Persistence) Usage() persistence.UsageRepository              { return p.usage }
func (p *Persistence) Credentials() persistence.CredentialRepository   { return p.credentials }
func (p *Persistence) Environments() persistence.EnvironmentRepository { return p.environments }
func (p *Persistence) Webhooks() persistence.WebhookRepository         { return p.webhooks }

// Close performs any necessary cleanup. Nothing to do for files.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// writeEntity marshals v into <root>/<dir>/<id>.json, creating the directory
// on first use.
func writeEntity(root, dir, id string, v any) error {
	if err := os.MkdirAll(path.Join(root, dir), 0750); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", dir, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s %s: %w", dir, id, err)
	}

	filePath := filepath.Clean(path.Join(root, dir, id+".json"))
	if err := os.WriteFile(filePath, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s %s: %w", dir, id, err)
	}

	return nil
}

// readEntity unmarshals <root>/<dir>/<id>.json into v. Returns notFound when
// the file does not exist.
func readEntity(root, dir, id string, v any, notFound error) error {
	filePath := filepath.Clean(path.Join(root, dir, id+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return notFound
		}

		return fmt.Errorf("failed to read %s %s: %w", dir, id, err)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s %s: %w", dir, id, err)
	}

	return nil
}

// listEntityIDs returns the ids of every document stored under <root>/<dir>.
func listEntityIDs(root, dir string) ([]string, error) {
	entityFS := os.DirFS(path.Join(root, dir))

	jsonFiles, err := fs.Glob(entityFS, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s files: %w", dir, err)
	}

	ids := make([]string, 0, len(jsonFiles))
	for _, file := range jsonFiles {
		ids = append(ids, strings.TrimSuffix(file, ".json"))
	}

	return ids, nil
}

// removeEntity deletes <root>/<dir>/<id>.json. Returns notFound when absent.
func removeEntity(root, dir, id string, notFound error) error {
	filePath := filepath.Clean(path.Join(root, dir, id+".json"))

	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			return notFound
		}

		return fmt.Errorf("failed to delete %s %s: %w", dir, id, err)
	}

	return nil
}
