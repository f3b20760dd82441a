package entities

import (
	"fmt"

	"atlas-graph/domain/core/valueobjects"
	pkgerrors "atlas-graph/pkg/errors"
)

// propertyKind is the expected JSON shape of a well-known property value.
type propertyKind int

const (
	kindString propertyKind = iota
	kindNumber
	kindBool
	kindStringList
)

func (k propertyKind) String() string {
	switch k {
	case kindString:
		return "string"
	case kindNumber:
		return "number"
	case kindBool:
		return "boolean"
	case kindStringList:
		return "list of strings"
	default:
		return "unknown"
	}
}

// nodePropertySchemas declares the well-known property keys per node type.
// Keys outside the schema are allowed as free-form metadata; keys inside
// it must carry the declared shape.
var nodePropertySchemas = map[valueobjects.NodeType]map[string]propertyKind{
	valueobjects.NodeTypeContentPiece: {
		"url":         kindString,
		"publishedAt": kindString,
		"language":    kindString,
		"wordCount":   kindNumber,
		"outlet":      kindString,
	},
	valueobjects.NodeTypeJournalist: {
		"beat":     kindString,
		"outlet":   kindString,
		"country":  kindString,
		"verified": kindBool,
	},
	valueobjects.NodeTypeMediaOutlet: {
		"domain":    kindString,
		"country":   kindString,
		"reachTier": kindString,
	},
	valueobjects.NodeTypeRiskIndicator: {
		"severity":   kindString,
		"source":     kindString,
		"expression": kindString,
	},
	valueobjects.NodeTypeCampaign: {
		"startDate": kindString,
		"endDate":   kindString,
		"objective": kindString,
		"status":    kindString,
	},
	valueobjects.NodeTypeTopic: {
		"keywords":    kindStringList,
		"parentTopic": kindString,
	},
}

// riskSeverities are the accepted values for a risk indicator's severity.
var riskSeverities = map[string]bool{
	"low":      true,
	"medium":   true,
	"high":     true,
	"critical": true,
}

// ValidateNodeProperties checks the well-known keys of the given node
// type against their declared shapes. Unknown keys pass through.
func ValidateNodeProperties(nodeType valueobjects.NodeType, props map[string]interface{}) error {
	schema, ok := nodePropertySchemas[nodeType]
	if !ok {
		return pkgerrors.UnknownNodeType(string(nodeType))
	}

	for key, kind := range schema {
		value, present := props[key]
		if !present || value == nil {
			continue
		}
		if !matchesKind(value, kind) {
			return pkgerrors.NewValidationError(
				fmt.Sprintf("property %q must be a %s", key, kind)).
				WithDetail("property", key)
		}
	}

	if nodeType == valueobjects.NodeTypeRiskIndicator {
		if raw, present := props["severity"]; present && raw != nil {
			severity, _ := raw.(string)
			if !riskSeverities[severity] {
				return pkgerrors.NewValidationError(
					"property \"severity\" must be one of low, medium, high, critical").
					WithDetail("severity", severity)
			}
		}
	}

	return nil
}

// matchesKind checks a decoded JSON value against the expected shape.
// Numbers tolerate the integer types the storage layer round-trips.
func matchesKind(value interface{}, kind propertyKind) bool {
	switch kind {
	case kindString:
		_, ok := value.(string)
		return ok
	case kindNumber:
		switch value.(type) {
		case float64, float32, int, int64, int32:
			return true
		}
		return false
	case kindBool:
		_, ok := value.(bool)
		return ok
	case kindStringList:
		switch list := value.(type) {
		case []string:
			return true
		case []interface{}:
			for _, item := range list {
				if _, ok := item.(string); !ok {
					return false
				}
			}
			return true
		}
		return false
	default:
		return false
	}
}
