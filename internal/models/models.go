package models

import (
	"time"
)

// NodeLevel identifies the level of a node in the organization tree
type NodeLevel string

const (
	NodeLevelOrganization NodeLevel = "organization"
	NodeLevelBusinessLine NodeLevel = "business_line"
	NodeLevelSubsidiary   NodeLevel = "subsidiary"
	NodeLevelSite         NodeLevel = "site"
)

// IsValid checks if the node level is valid
func (l NodeLevel) IsValid() bool {
	switch l {
	case NodeLevelOrganization, NodeLevelBusinessLine, NodeLevelSubsidiary, NodeLevelSite:
		return true
	default:
		return false
	}
}

// OrgClassification describes how much structure an organization carries
type OrgClassification string

const (
	OrgClassificationSimple           OrgClassification = "simple"
	OrgClassificationWithSubsidiaries OrgClassification = "with_subsidiaries"
	OrgClassificationGroup            OrgClassification = "group"
)

// IsValid checks if the organization classification is valid
func (c OrgClassification) IsValid() bool {
	switch c {
	case OrgClassificationSimple, OrgClassificationWithSubsidiaries, OrgClassificationGroup:
		return true
	default:
		return false
	}
}

// HasSubStructure returns true when sites report under intermediate nodes.
// Simple organizations report directly at the organization scope.
func (c OrgClassification) HasSubStructure() bool {
	return c != OrgClassificationSimple
}

// ValueStatus represents the lifecycle status of an indicator value
type ValueStatus string

const (
	ValueStatusDraft     ValueStatus = "draft"
	ValueStatusSubmitted ValueStatus = "submitted"
	ValueStatusValidated ValueStatus = "validated"
	ValueStatusRejected  ValueStatus = "rejected"
)

// IsValid checks if the value status is valid
func (s ValueStatus) IsValid() bool {
	switch s {
	case ValueStatusDraft, ValueStatusSubmitted, ValueStatusValidated, ValueStatusRejected:
		return true
	default:
		return false
	}
}

// Editable returns true when a value in this status may still be changed
func (s ValueStatus) Editable() bool {
	return s == ValueStatusDraft || s == ValueStatusRejected
}

// ConsolidationMethod declares how site values combine into one figure
type ConsolidationMethod string

const (
	ConsolidationSum     ConsolidationMethod = "sum"
	ConsolidationLast    ConsolidationMethod = "last"
	ConsolidationAverage ConsolidationMethod = "average"
	ConsolidationMax     ConsolidationMethod = "max"
	ConsolidationMin     ConsolidationMethod = "min"
)

// IsValid checks if the consolidation method is valid
func (m ConsolidationMethod) IsValid() bool {
	switch m {
	case ConsolidationSum, ConsolidationLast, ConsolidationAverage, ConsolidationMax, ConsolidationMin:
		return true
	default:
		return false
	}
}

// IndicatorAxis classifies an indicator on the ESG axes
type IndicatorAxis string

const (
	AxisEnvironmental IndicatorAxis = "environmental"
	AxisSocial        IndicatorAxis = "social"
	AxisGovernance    IndicatorAxis = "governance"
)

// OrganizationNode is one node of the 4-level reporting tree.
// Parent references are by name; a node with no parent fields hangs
// directly under the organization.
type OrganizationNode struct {
	Name             string            `json:"name" db:"name"`
	Level            NodeLevel         `json:"level" db:"level"`
	OrganizationName string            `json:"organization_name" db:"organization_name"`
	BusinessLineName *string           `json:"business_line_name,omitempty" db:"business_line_name"`
	SubsidiaryName   *string           `json:"subsidiary_name,omitempty" db:"subsidiary_name"`
	Classification   OrgClassification `json:"classification,omitempty" db:"classification"`
	CreatedAt        time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at" db:"updated_at"`
}

// Process is a named unit of reporting activity owning a set of indicators
type Process struct {
	Code           string    `json:"code" db:"code"`
	Name           string    `json:"name" db:"name"`
	IndicatorCodes []string  `json:"indicator_codes"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// Indicator is a named metric with its consolidation semantics.
// Formula is a display-only descriptor; the core never evaluates it.
type Indicator struct {
	Code      string              `json:"code" db:"code"`
	Name      string              `json:"name" db:"name"`
	Unit      string              `json:"unit" db:"unit"`
	Method    ConsolidationMethod `json:"method" db:"method"`
	Axis      IndicatorAxis       `json:"axis" db:"axis"`
	Category  string              `json:"category,omitempty" db:"category"`
	Formula   string              `json:"formula,omitempty" db:"formula"`
	Target    *float64            `json:"target,omitempty" db:"target"`
	CreatedAt time.Time           `json:"created_at" db:"created_at"`
}

// ProcessAssignment links a scope or a user to a process
type ProcessAssignment struct {
	ProcessCode string `json:"process_code" db:"process_code"`
	// Exactly one of ScopeName / UserEmail is set depending on the table
	ScopeName string `json:"scope_name,omitempty" db:"scope_name"`
	UserEmail string `json:"user_email,omitempty" db:"user_email"`
	Role      string `json:"role,omitempty" db:"role"`
	IsActive  bool   `json:"is_active" db:"is_active"`
}

// Assignment roles on user_processes rows
const (
	RoleContributor = "contributor"
	RoleValidator   = "validator"
)

// ValueKey is the composite natural key of one monthly measurement
type ValueKey struct {
	Scope         string `json:"scope" db:"scope"`
	ProcessCode   string `json:"process_code" db:"process_code"`
	IndicatorCode string `json:"indicator_code" db:"indicator_code"`
	Year          int    `json:"year" db:"year"`
	Month         int    `json:"month" db:"month"`
}

// IndicatorValue is the atomic fact: one measurement with its lifecycle state
type IndicatorValue struct {
	ID               string      `json:"id" db:"id"`
	OrganizationName string      `json:"organization_name" db:"organization_name"`
	Scope            string      `json:"scope" db:"scope"`
	ProcessCode      string      `json:"process_code" db:"process_code"`
	IndicatorCode    string      `json:"indicator_code" db:"indicator_code"`
	Year             int         `json:"year" db:"year"`
	Month            int         `json:"month" db:"month"`
	Value            *float64    `json:"value" db:"value"`
	Status           ValueStatus `json:"status" db:"status"`
	Comment          *string     `json:"comment,omitempty" db:"comment"`
	SubmittedBy      *string     `json:"submitted_by,omitempty" db:"submitted_by"`
	SubmittedAt      *time.Time  `json:"submitted_at,omitempty" db:"submitted_at"`
	ValidatedBy      *string     `json:"validated_by,omitempty" db:"validated_by"`
	ValidatedAt      *time.Time  `json:"validated_at,omitempty" db:"validated_at"`
	CreatedAt        time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at" db:"updated_at"`
}

// Key returns the composite natural key of the value
func (v *IndicatorValue) Key() ValueKey {
	return ValueKey{
		Scope:         v.Scope,
		ProcessCode:   v.ProcessCode,
		IndicatorCode: v.IndicatorCode,
		Year:          v.Year,
		Month:         v.Month,
	}
}

// CellKind discriminates the two shapes of a matrix cell
type CellKind string

const (
	CellRecorded CellKind = "recorded"
	CellRequired CellKind = "required"
)

// ValueCell is one element of the complete reporting matrix: either a
// persisted value or a required-but-missing placeholder. Only recorded
// cells carry an id and can be transitioned; required cells are
// synthesized from the resolver's required set and never persisted.
type ValueCell struct {
	Kind     CellKind        `json:"kind"`
	Recorded *IndicatorValue `json:"recorded,omitempty"`
	Required *ValueKey       `json:"required,omitempty"`
}

// StatusChange is one audit entry of a workflow transition
type StatusChange struct {
	ID        string      `json:"id" db:"id"`
	ValueID   string      `json:"value_id" db:"value_id"`
	OldStatus ValueStatus `json:"old_status" db:"old_status"`
	NewStatus ValueStatus `json:"new_status" db:"new_status"`
	ChangedBy string      `json:"changed_by" db:"changed_by"`
	Comment   string      `json:"comment,omitempty" db:"comment"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
}

// ConsolidatedIndicatorValue is the derived consolidation row. It is a
// cache: always reproducible from current indicator_values rows.
type ConsolidatedIndicatorValue struct {
	OrganizationName string              `json:"organization_name" db:"organization_name"`
	NodeLevel        NodeLevel           `json:"node_level" db:"node_level"`
	NodeName         string              `json:"node_name" db:"node_name"`
	IndicatorCode    string              `json:"indicator_code" db:"indicator_code"`
	Method           ConsolidationMethod `json:"method" db:"method"`
	Year             int                 `json:"year" db:"year"`
	Months           [12]*float64        `json:"months"`
	AnnualTotal      *float64            `json:"annual_total"`
	Target           *float64            `json:"target,omitempty" db:"target"`
	PreviousTotal    *float64            `json:"previous_total,omitempty" db:"previous_total"`
	Variation        *float64            `json:"variation,omitempty" db:"variation"`
	Performance      *float64            `json:"performance,omitempty" db:"performance"`
	SiteNames        []string            `json:"site_names" db:"site_names"`
	ComputedAt       time.Time           `json:"computed_at" db:"computed_at"`
}

// Request/Response models

// SetValueRequest represents a request to create or edit one measurement
type SetValueRequest struct {
	Scope         string `json:"scope" binding:"required"`
	ProcessCode   string `json:"process_code" binding:"required"`
	IndicatorCode string `json:"indicator_code" binding:"required"`
	Year          int    `json:"year" binding:"required,min=2000,max=2100"`
	Month         int    `json:"month" binding:"required,min=1,max=12"`
	// Value is the raw input; empty string means "clear / not yet entered"
	Value   string  `json:"value"`
	Comment *string `json:"comment,omitempty"`
}

// TransitionRequest represents a bulk submit/validate/reject request
type TransitionRequest struct {
	ValueIDs []string `json:"value_ids" binding:"required,min=1"`
	Comment  string   `json:"comment,omitempty"`
}

// TransitionResult reports the outcome of a bulk transition
type TransitionResult struct {
	Affected int      `json:"affected"`
	Skipped  int      `json:"skipped"`
	Signal   string   `json:"signal,omitempty"`
	IDs      []string `json:"ids,omitempty"`
}

// RequiredTriple is one (scope, process, indicator) the resolver demands
type RequiredTriple struct {
	Scope         string `json:"scope"`
	ProcessCode   string `json:"process_code"`
	IndicatorCode string `json:"indicator_code"`
}

// CompletionSummary reports reporting progress for one scope and period
type CompletionSummary struct {
	Scope          string  `json:"scope"`
	Required       int     `json:"required"`
	Entered        int     `json:"entered"`
	Submitted      int     `json:"submitted"`
	Validated      int     `json:"validated"`
	Rejected       int     `json:"rejected"`
	CompletionRate float64 `json:"completion_rate"`
}

// RecomputeRequest asks for an explicit consolidated-cache rebuild
type RecomputeRequest struct {
	NodeLevel     NodeLevel `json:"node_level" binding:"required"`
	NodeName      string    `json:"node_name" binding:"required"`
	IndicatorCode string    `json:"indicator_code,omitempty"`
	Year          int       `json:"year" binding:"required,min=2000,max=2100"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
