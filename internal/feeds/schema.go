package feeds

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// FeedID names a logical ERP feed independently of its AFAS connector.
type FeedID string

const (
	BasePhases          FeedID = "base_phases"
	CumulativeWorkTypes FeedID = "cumulative_work_types"
	CumulativeCosts     FeedID = "cumulative_costs"
	ActualCosts         FeedID = "actual_costs"
	ActualWorkTypes     FeedID = "actual_work_types"
	InvoiceTerms        FeedID = "invoice_terms"
	InvoicedAmounts     FeedID = "invoiced_amounts"
	SidebarProjects     FeedID = "sidebar_projects"
)

// Logical field names used as keys in the schema's fields section.
const (
	FieldProjectCode        = "project_code"
	FieldPhaseCode          = "phase_code"
	FieldProjectDescription = "project_description"
	FieldPhaseDescription   = "phase_description"
	FieldItemCode           = "item_code"
	FieldDescription        = "description"
	FieldBudgetHours        = "budget_hours"
	FieldActualHours        = "actual_hours"
	FieldBudgetCosts        = "budget_costs"
	FieldActualCosts        = "actual_costs"
	FieldAmount             = "amount"
	FieldLeaderName         = "leader_name"
	FieldCustomerName       = "customer_name"
)

var requiredFields = map[FeedID][]string{
	BasePhases:          {FieldProjectCode, FieldPhaseCode, FieldProjectDescription, FieldPhaseDescription},
	CumulativeWorkTypes: {FieldProjectCode, FieldItemCode, FieldDescription, FieldBudgetHours, FieldActualHours, FieldBudgetCosts, FieldActualCosts},
	CumulativeCosts:     {FieldProjectCode, FieldItemCode, FieldDescription, FieldBudgetCosts, FieldActualCosts},
	ActualCosts:         {FieldProjectCode, FieldPhaseCode, FieldAmount},
	ActualWorkTypes:     {FieldProjectCode, FieldPhaseCode, FieldAmount},
	InvoiceTerms:        {FieldProjectCode, FieldPhaseCode, FieldAmount},
	InvoicedAmounts:     {FieldProjectCode, FieldPhaseCode, FieldAmount},
	SidebarProjects:     {FieldProjectCode, FieldDescription, FieldLeaderName, FieldCustomerName},
}

//go:embed schema.yaml
var defaultSchema []byte

// FeedSchema maps one logical feed to its connector and vendor field names.
type FeedSchema struct {
	Connector   string            `yaml:"connector"`
	FilterField string            `yaml:"filter_field"`
	Fields      map[string]string `yaml:"fields"`
}

type Schema struct {
	Version int                   `yaml:"version"`
	Feeds   map[FeedID]FeedSchema `yaml:"feeds"`
}

// DefaultSchema returns the mapping compiled into the binary.
func DefaultSchema() (*Schema, error) {
	return parseSchema(defaultSchema)
}

// LoadSchema reads a mapping file, falling back to the embedded default when
// path is empty.
func LoadSchema(path string) (*Schema, error) {
	if path == "" {
		return DefaultSchema()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file %s: %w", path, err)
	}
	return parseSchema(data)
}

func parseSchema(data []byte) (*Schema, error) {
	var schema Schema
	if err := yaml.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	return &schema, nil
}

// Validate checks that every feed has a connector and maps every field the
// fetchers read.
func (s *Schema) Validate() error {
	if s.Version <= 0 {
		return fmt.Errorf("schema version must be positive")
	}

	ids := make([]string, 0, len(requiredFields))
	for id := range requiredFields {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)

	for _, id := range ids {
		feed, ok := s.Feeds[FeedID(id)]
		if !ok {
			return fmt.Errorf("schema is missing feed %s", id)
		}
		if feed.Connector == "" {
			return fmt.Errorf("feed %s has no connector", id)
		}
		for _, field := range requiredFields[FeedID(id)] {
			if feed.Fields[field] == "" {
				return fmt.Errorf("feed %s does not map field %s", id, field)
			}
		}
	}
	return nil
}

func (s *Schema) Feed(id FeedID) FeedSchema {
	return s.Feeds[id]
}
