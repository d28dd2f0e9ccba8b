// Package importer loads workflow definitions with their channel bindings
// from YAML or JSON files.
package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/dukex/chanmirror/pkg/models"
	"github.com/dukex/chanmirror/pkg/services"
)

var (
	ErrEmptyDefinition   = errors.New("definition payload is empty")
	ErrInvalidDefinition = errors.New("invalid workflow definition")
)

// Document is the root of a definition file.
type Document struct {
	Workflows []WorkflowDefinition `yaml:"workflows" json:"workflows"`
}

type WorkflowDefinition struct {
	ID           string              `yaml:"id"             json:"id,omitempty"`
	Name         string              `yaml:"name"           json:"name"`
	Status       string              `yaml:"status"         json:"status,omitempty"`
	TargetRootID string              `yaml:"target_root_id" json:"target_root_id"`
	Schedule     string              `yaml:"schedule"       json:"schedule,omitempty"`
	Owner        string              `yaml:"owner"          json:"owner,omitempty"`
	Channels     []ChannelDefinition `yaml:"channels"       json:"channels,omitempty"`
}

type ChannelDefinition struct {
	ID   string `yaml:"id"   json:"id"`
	Name string `yaml:"name" json:"name"`
}

func (d WorkflowDefinition) workflow() *models.Workflow {
	return &models.Workflow{
		ID:           strings.TrimSpace(d.ID),
		Name:         d.Name,
		Type:         models.WorkflowTypeMirror,
		Status:       models.WorkflowStatus(d.Status),
		TargetRootID: d.TargetRootID,
		Schedule:     d.Schedule,
		Owner:        d.Owner,
	}
}

// Result counts what an import changed.
type Result struct {
	Created       int      `json:"created"`
	Updated       int      `json:"updated"`
	ChannelsBound int      `json:"channels_bound"`
	WorkflowIDs   []string `json:"workflow_ids"`
}

// Parse decodes a definition and checks it against the definition schema.
func Parse(data []byte) (*Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyDefinition
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode definition: %w", err)
	}

	if err := validateSchema(raw); err != nil {
		return nil, err
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode definition: %w", err)
	}

	return &doc, nil
}

func validateSchema(raw any) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(definitionSchema),
		gojsonschema.NewGoLoader(raw),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, resultErr := range result.Errors() {
			messages = append(messages, resultErr.String())
		}

		return fmt.Errorf("%w: %s", ErrInvalidDefinition, strings.Join(messages, "; "))
	}

	return nil
}

// Importer creates or updates workflows through the service layer, so
// imported definitions get the same validation as API requests.
type Importer struct {
	workflows *services.Workflow
	channels  *services.Channel
	logger    *slog.Logger
}

func New(workflows *services.Workflow, channels *services.Channel, logger *slog.Logger) *Importer {
	return &Importer{
		workflows: workflows,
		channels:  channels,
		logger:    logger.With("module", "importer"),
	}
}

func (i *Importer) ImportFile(ctx context.Context, path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return i.Import(ctx, doc)
}

// Import applies every workflow of the document in order. A definition with
// an id that already exists updates it; anything else is created. It stops
// at the first failure and returns what was applied so far.
func (i *Importer) Import(ctx context.Context, doc *Document) (*Result, error) {
	result := &Result{}

	for _, def := range doc.Workflows {
		workflow, created, err := i.upsert(ctx, def)
		if err != nil {
			return result, fmt.Errorf("workflow %q: %w", def.Name, err)
		}

		if created {
			result.Created++
		} else {
			result.Updated++
		}

		result.WorkflowIDs = append(result.WorkflowIDs, workflow.ID)

		for _, ch := range def.Channels {
			_, err := i.channels.Bind(ctx, workflow.ID, &models.ChannelBinding{
				SourceChannelID:   ch.ID,
				SourceChannelName: ch.Name,
			})
			if err != nil {
				return result, fmt.Errorf("workflow %q channel %s: %w", def.Name, ch.ID, err)
			}

			result.ChannelsBound++
		}

		i.logger.Info("Workflow imported",
			"workflow_id", workflow.ID,
			"created", created,
			"channels", len(def.Channels))
	}

	return result, nil
}

func (i *Importer) upsert(ctx context.Context, def WorkflowDefinition) (*models.Workflow, bool, error) {
	workflow := def.workflow()

	if workflow.ID != "" {
		_, err := i.workflows.FetchByID(ctx, workflow.ID)

		switch {
		case err == nil:
			updated, err := i.workflows.Update(ctx, workflow.ID, workflow)

			return updated, false, err
		case !errors.Is(err, services.ErrWorkflowNotFound):
			return nil, false, err
		}
	}

	created, err := i.workflows.Create(ctx, workflow)

	return created, true, err
}
