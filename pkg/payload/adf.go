package payload

// Atlassian Document Format. Rich-text fields (description, environment)
// refuse plain strings on the v3 API and need a document wrapper.

// ADFNode is a node of an ADF document tree.
type ADFNode struct {
	Type    string    `json:"type"`
	Content []ADFNode `json:"content,omitempty"`
	Text    string    `json:"text,omitempty"`
}

// ADFDoc is the top-level ADF document.
type ADFDoc struct {
	Type    string    `json:"type"`
	Version int       `json:"version"`
	Content []ADFNode `json:"content"`
}

// adfDocument wraps text into a document containing one paragraph with one
// text run.
func adfDocument(text string) ADFDoc {
	return ADFDoc{
		Type:    "doc",
		Version: 1,
		Content: []ADFNode{
			{
				Type:    "paragraph",
				Content: []ADFNode{{Type: "text", Text: text}},
			},
		},
	}
}
