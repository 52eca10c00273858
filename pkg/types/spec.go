package types

// IssueSpec is the declarative description of a single issue to create.
// Beyond the named fields, any extra key is passed through to the payload
// builder as a schema field value.
type IssueSpec map[string]any

// ProjectKey returns the project_key entry, if present.
func (s IssueSpec) ProjectKey() string {
	v, _ := s["project_key"].(string)
	return v
}

// IssueType returns the issuetype entry, if present.
func (s IssueSpec) IssueType() string {
	v, _ := s["issuetype"].(string)
	return v
}

// BulkSpec defines the structure of a bulk-create JSON/YAML file. Top-level
// issuetype, parent and squad are inherited by every item unless the item
// overrides them.
type BulkSpec struct {
	ProjectKey string     `json:"project_key" yaml:"project_key"`
	IssueType  string     `json:"issuetype" yaml:"issuetype"`
	Parent     string     `json:"parent" yaml:"parent"`
	Squad      string     `json:"squad" yaml:"squad"`
	Issues     []BulkItem `json:"issues" yaml:"issues"`
}

// BulkItem is one issue inside a bulk batch.
type BulkItem struct {
	Summary     string   `json:"summary" yaml:"summary"`
	Description string   `json:"description" yaml:"description"`
	Components  []string `json:"components" yaml:"components"`
	IssueType   string   `json:"issuetype" yaml:"issuetype"`
}
