package validators

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"atlas-graph/domain/config"
	"atlas-graph/domain/core/entities"
	"atlas-graph/domain/core/valueobjects"
	"atlas-graph/pkg/errors"
)

var tagPattern = regexp.MustCompile(`^[a-zA-Z0-9_.:-]+$`)

// NodeValidator enforces node rules at the API boundary. It collects
// every failure instead of stopping at the first, so clients see the
// whole problem in one response.
type NodeValidator struct {
	cfg          *config.DomainConfig
	tagMaxLength int
}

// NewNodeValidator creates a node validator with the given limits
func NewNodeValidator(cfg *config.DomainConfig) *NodeValidator {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &NodeValidator{
		cfg:          cfg,
		tagMaxLength: 100,
	}
}

// NodeInput carries the raw creation fields as they arrive on the wire.
type NodeInput struct {
	NodeType    string
	Label       string
	Description string
	Tags        []string
	Categories  []string
	Properties  map[string]interface{}
	Confidence  *float64
}

// ValidateCreate checks a node creation request
func (v *NodeValidator) ValidateCreate(input NodeInput) error {
	verrs := errors.NewValidationErrors()

	nodeType, err := valueobjects.ParseNodeType(input.NodeType)
	if err != nil {
		verrs.Add("nodeType", err.Error())
	}

	if _, err := valueobjects.NewLabel(input.Label); err != nil {
		verrs.Add("label", err.Error())
	}

	if _, err := valueobjects.ValidateDescription(input.Description); err != nil {
		verrs.Add("description", err.Error())
	}

	v.validateStringSet(verrs, "tags", input.Tags, v.cfg.MaxTagsPerNode)
	v.validateStringSet(verrs, "categories", input.Categories, v.cfg.MaxCategoriesPerNode)

	if len(input.Properties) > v.cfg.MaxPropertyKeys {
		verrs.Add("properties", fmt.Sprintf("cannot have more than %d property keys", v.cfg.MaxPropertyKeys))
	} else if nodeType.IsValid() {
		if err := entities.ValidateNodeProperties(nodeType, input.Properties); err != nil {
			verrs.AddError("properties", err)
		}
	}

	if input.Confidence != nil {
		if _, err := valueobjects.NewConfidence(*input.Confidence); err != nil {
			verrs.Add("confidenceScore", err.Error())
		}
	}

	if verrs.HasErrors() {
		return verrs.AsAppError()
	}

	return nil
}

// NodeUpdateInput carries the raw partial-update fields. Nil means the
// field was absent from the request.
type NodeUpdateInput struct {
	Label       *string
	Description *string
	Tags        []string
	Categories  []string
	Properties  map[string]interface{}
	Confidence  *float64
}

// ValidateUpdate checks a node update request. The node type is needed
// to validate properties against the right schema.
func (v *NodeValidator) ValidateUpdate(nodeType valueobjects.NodeType, input NodeUpdateInput) error {
	verrs := errors.NewValidationErrors()

	if input.Label != nil {
		if _, err := valueobjects.NewLabel(*input.Label); err != nil {
			verrs.Add("label", err.Error())
		}
	}

	if input.Description != nil {
		if _, err := valueobjects.ValidateDescription(*input.Description); err != nil {
			verrs.Add("description", err.Error())
		}
	}

	if input.Tags != nil {
		v.validateStringSet(verrs, "tags", input.Tags, v.cfg.MaxTagsPerNode)
	}
	if input.Categories != nil {
		v.validateStringSet(verrs, "categories", input.Categories, v.cfg.MaxCategoriesPerNode)
	}

	if input.Properties != nil {
		if len(input.Properties) > v.cfg.MaxPropertyKeys {
			verrs.Add("properties", fmt.Sprintf("cannot have more than %d property keys", v.cfg.MaxPropertyKeys))
		} else if err := entities.ValidateNodeProperties(nodeType, input.Properties); err != nil {
			verrs.AddError("properties", err)
		}
	}

	if input.Confidence != nil {
		if _, err := valueobjects.NewConfidence(*input.Confidence); err != nil {
			verrs.Add("confidenceScore", err.Error())
		}
	}

	if verrs.HasErrors() {
		return verrs.AsAppError()
	}

	return nil
}

// validateStringSet checks size and entry shape for tags and categories
func (v *NodeValidator) validateStringSet(verrs *errors.ValidationErrors, field string, values []string, max int) {
	if len(values) > max {
		verrs.Add(field, fmt.Sprintf("cannot have more than %d %s", max, field))
		return
	}

	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			verrs.Add(field, "entries cannot be empty")
			return
		}
		if utf8.RuneCountInString(trimmed) > v.tagMaxLength {
			verrs.Add(field, fmt.Sprintf("entry %q exceeds maximum length of %d", trimmed, v.tagMaxLength))
			return
		}
		if field == "tags" && !tagPattern.MatchString(trimmed) {
			verrs.Add(field, fmt.Sprintf("entry %q contains invalid characters", trimmed))
			return
		}
	}
}

// EdgeValidator enforces edge rules at the API boundary.
type EdgeValidator struct {
	cfg *config.DomainConfig
}

// NewEdgeValidator creates an edge validator with the given limits
func NewEdgeValidator(cfg *config.DomainConfig) *EdgeValidator {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &EdgeValidator{cfg: cfg}
}

// EdgeInput carries the raw edge creation fields.
type EdgeInput struct {
	SourceNodeID    string
	TargetNodeID    string
	EdgeType        string
	Label           string
	Description     string
	Weight          *float64
	IsBidirectional bool
	Properties      map[string]interface{}
	Confidence      *float64
}

// ValidateCreate checks an edge creation request. Endpoint existence is
// the registry's job; this validates shape only.
func (v *EdgeValidator) ValidateCreate(input EdgeInput) error {
	verrs := errors.NewValidationErrors()

	if _, err := valueobjects.NewNodeIDFromString(input.SourceNodeID); err != nil {
		verrs.Add("sourceNodeId", err.Error())
	}
	if _, err := valueobjects.NewNodeIDFromString(input.TargetNodeID); err != nil {
		verrs.Add("targetNodeId", err.Error())
	}
	if !v.cfg.AllowSelfEdges && input.SourceNodeID != "" && input.SourceNodeID == input.TargetNodeID {
		verrs.Add("targetNodeId", "self-edges are not allowed")
	}

	if _, err := valueobjects.ParseEdgeType(input.EdgeType); err != nil {
		verrs.Add("edgeType", err.Error())
	}

	if _, err := valueobjects.NewOptionalLabel(input.Label); err != nil {
		verrs.Add("label", err.Error())
	}
	if _, err := valueobjects.ValidateDescription(input.Description); err != nil {
		verrs.Add("description", err.Error())
	}

	if input.Weight != nil {
		if _, err := valueobjects.NewWeight(*input.Weight); err != nil {
			verrs.Add("weight", err.Error())
		}
	}

	if len(input.Properties) > v.cfg.MaxPropertyKeys {
		verrs.Add("properties", fmt.Sprintf("cannot have more than %d property keys", v.cfg.MaxPropertyKeys))
	}

	if input.Confidence != nil {
		if _, err := valueobjects.NewConfidence(*input.Confidence); err != nil {
			verrs.Add("confidenceScore", err.Error())
		}
	}

	if verrs.HasErrors() {
		return verrs.AsAppError()
	}

	return nil
}

// EdgeUpdateInput carries the raw edge partial-update fields.
type EdgeUpdateInput struct {
	Label       *string
	Description *string
	Weight      *float64
	Properties  map[string]interface{}
	Confidence  *float64
}

// ValidateUpdate checks an edge update request
func (v *EdgeValidator) ValidateUpdate(input EdgeUpdateInput) error {
	verrs := errors.NewValidationErrors()

	if input.Label != nil {
		if _, err := valueobjects.NewOptionalLabel(*input.Label); err != nil {
			verrs.Add("label", err.Error())
		}
	}
	if input.Description != nil {
		if _, err := valueobjects.ValidateDescription(*input.Description); err != nil {
			verrs.Add("description", err.Error())
		}
	}

	if input.Weight != nil {
		if _, err := valueobjects.NewWeight(*input.Weight); err != nil {
			verrs.Add("weight", err.Error())
		}
	}
	if len(input.Properties) > v.cfg.MaxPropertyKeys {
		verrs.Add("properties", fmt.Sprintf("cannot have more than %d property keys", v.cfg.MaxPropertyKeys))
	}
	if input.Confidence != nil {
		if _, err := valueobjects.NewConfidence(*input.Confidence); err != nil {
			verrs.Add("confidenceScore", err.Error())
		}
	}

	if verrs.HasErrors() {
		return verrs.AsAppError()
	}

	return nil
}

// MergeValidator enforces merge request rules.
type MergeValidator struct {
	cfg *config.DomainConfig
}

// NewMergeValidator creates a merge validator with the given limits
func NewMergeValidator(cfg *config.DomainConfig) *MergeValidator {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &MergeValidator{cfg: cfg}
}

// ValidateSources checks the merge source id list: at least two entries,
// no duplicates, all well-formed, and within the batch cap.
func (v *MergeValidator) ValidateSources(sourceIDs []string) error {
	if len(sourceIDs) < 2 {
		return errors.MergeSourcesInvalid("merge requires at least two source nodes")
	}
	if len(sourceIDs) > v.cfg.MaxMergeSources {
		return errors.MergeSourcesInvalid(
			fmt.Sprintf("merge cannot cover more than %d source nodes", v.cfg.MaxMergeSources))
	}

	seen := make(map[string]bool, len(sourceIDs))
	for _, raw := range sourceIDs {
		if _, err := valueobjects.NewNodeIDFromString(raw); err != nil {
			return errors.MergeSourcesInvalid(fmt.Sprintf("invalid source node id %q", raw))
		}
		if seen[raw] {
			return errors.MergeSourcesInvalid(fmt.Sprintf("duplicate source node id %q", raw))
		}
		seen[raw] = true
	}

	return nil
}
