package api

import "github.com/xraph/stepwise/definition"

// CreateWorkflowRequest is the body of POST /v1/workflows.
type CreateWorkflowRequest struct {
	SkillType string `json:"skill_type"`
	Name      string `json:"name,omitempty"`
	// OwnerID, when set, must match the owner header.
	OwnerID  string         `json:"owner_id,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`

	// Definition runs an unregistered definition for this one instance.
	Definition *definition.Workflow `json:"definition,omitempty"`
}

// ReasonRequest is the body of the fail and skip endpoints.
type ReasonRequest struct {
	Reason string `json:"reason"`
}

// SkillSummary describes one registered skill type.
type SkillSummary struct {
	SkillType   string `json:"skill_type"`
	Name        string `json:"name"`
	Version     int    `json:"version"`
	Description string `json:"description,omitempty"`
	Phases      int    `json:"phases"`
	Steps       int    `json:"steps"`
}

// ListSkillsResponse is returned by GET /v1/skills.
type ListSkillsResponse struct {
	Skills []SkillSummary `json:"skills"`
}
