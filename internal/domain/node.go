package domain

import (
	"strings"
	"time"
)

type Leg string

const (
	LegLeft  Leg = "left"
	LegRight Leg = "right"
)

type NodeKind string

const (
	// NodeKindRegular participates in left/right matching.
	NodeKindRegular NodeKind = "regular"
	// NodeKindRootAggregate is the admin super-root: downlines are not split
	// into legs, so it only accumulates totals and never earns a binary bonus.
	NodeKindRootAggregate NodeKind = "root_aggregate"
)

// BinaryNode is one placement slot in the binary tree, keyed by the stable
// external user id. Parent/child relations are stored as ids and resolved
// through the node repository, never as live references.
type BinaryNode struct {
	UserID         string    `json:"user_id"`
	ParentID       string    `json:"parent_id,omitempty"`
	LeftChildID    string    `json:"left_child_id,omitempty"`
	RightChildID   string    `json:"right_child_id,omitempty"`
	Kind           NodeKind  `json:"kind"`
	Level          int       `json:"level"`
	LeftBusiness   float64   `json:"left_business"`
	RightBusiness  float64   `json:"right_business"`
	LeftCarry      float64   `json:"left_carry"`
	RightCarry     float64   `json:"right_carry"`
	LeftDownlines  int       `json:"left_downlines"`
	RightDownlines int       `json:"right_downlines"`
	ChildrenCount  int       `json:"children_count"`
	TotalVolume    float64   `json:"total_volume"`
	CappingLimit   float64   `json:"capping_limit"`
	Version        int64     `json:"version"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (n BinaryNode) IsRoot() bool {
	return strings.TrimSpace(n.ParentID) == ""
}

// LegOf reports which leg of n the given child occupies. A child that is
// linked to n by its parent pointer but appears on neither leg is a
// data-integrity violation and is surfaced, not repaired.
func (n BinaryNode) LegOf(childID string) (Leg, error) {
	switch {
	case childID != "" && childID == n.LeftChildID:
		return LegLeft, nil
	case childID != "" && childID == n.RightChildID:
		return LegRight, nil
	default:
		return "", ErrTreeIntegrity
	}
}

// ChildOnLeg returns the occupant of the given leg, empty if vacant.
func (n BinaryNode) ChildOnLeg(leg Leg) string {
	if leg == LegLeft {
		return n.LeftChildID
	}
	return n.RightChildID
}

const userIDPrefix = "CROWN-"

func ValidateUserID(userID string) error {
	userID = strings.TrimSpace(userID)
	if !strings.HasPrefix(userID, userIDPrefix) {
		return ErrInvalidInput
	}
	suffix := strings.TrimPrefix(userID, userIDPrefix)
	if len(suffix) < 6 {
		return ErrInvalidInput
	}
	for _, r := range suffix {
		if (r < '0' || r > '9') && (r < 'A' || r > 'Z') {
			return ErrInvalidInput
		}
	}
	return nil
}

func ValidatePlacementInput(userID, sponsorID string, leg Leg) error {
	if err := ValidateUserID(userID); err != nil {
		return err
	}
	if err := ValidateUserID(sponsorID); err != nil {
		return err
	}
	if userID == sponsorID {
		return ErrInvalidInput
	}
	switch leg {
	case LegLeft, LegRight:
	default:
		return ErrInvalidInput
	}
	return nil
}
