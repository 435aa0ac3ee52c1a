package flows

// FlowReportIssue is the guided issue-reporting flow identifier.
const FlowReportIssue = "report_issue"

// Issue reporting slot names.
const (
	SlotIssueType   = "issue_type"
	SlotLocation    = "location"
	SlotDescription = "description"
)

// Registry holds the static flow schemas keyed by flow ID.
type Registry struct {
	schemas map[string]*Schema
}

// NewRegistry creates a registry from the given schemas.
func NewRegistry(schemas ...*Schema) *Registry {
	r := &Registry{schemas: make(map[string]*Schema, len(schemas))}
	for _, schema := range schemas {
		r.schemas[schema.ID] = schema
	}
	return r
}

// Get returns the schema for flowID, or nil when unknown.
func (r *Registry) Get(flowID string) *Schema {
	return r.schemas[flowID]
}

// DefaultRegistry returns the registry with the flows the bot ships with.
func DefaultRegistry() *Registry {
	return NewRegistry(ReportIssueSchema())
}

// ReportIssueSchema declares the issue-reporting flow: what kind of issue,
// where it is, and a free-text description.
func ReportIssueSchema() *Schema {
	return &Schema{
		ID: FlowReportIssue,
		Slots: []SlotDefinition{
			{
				Name:     SlotIssueType,
				Prompt:   "What kind of issue would you like to report? For example: pothole, graffiti, broken streetlight, missed trash pickup.",
				Guidance: "Please name the type of issue, e.g. \"pothole\" or \"graffiti\".",
				Validate: NonEmpty(3),
			},
			{
				Name:     SlotLocation,
				Prompt:   "Where is the issue located? A street address or an intersection works best.",
				Guidance: "Please give an address or intersection, e.g. \"5th Ave and Pine St\".",
				Validate: NonEmpty(5),
			},
			{
				Name:     SlotDescription,
				Prompt:   "Please describe the issue briefly so the crew knows what to look for.",
				Guidance: "A short sentence is enough, e.g. \"large pothole in the right lane\".",
				Validate: NonEmpty(10),
			},
		},
		ConfirmPrompt: "Shall I submit this? Reply \"yes\" to submit or \"no\" to start over.",
	}
}
