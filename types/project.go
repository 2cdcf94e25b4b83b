package types

// ProjectContext is the project information gathered during a conversation.
type ProjectContext struct {
	Name        string `json:"name,omitempty"`
	Type        string `json:"type,omitempty"`
	Industry    string `json:"industry,omitempty"`
	Methodology string `json:"methodology,omitempty"`
	Budget      string `json:"budget,omitempty"`
	Timeline    string `json:"timeline,omitempty"`
	TeamSize    string `json:"team_size,omitempty"`
	Description string `json:"description,omitempty"`
}

// Merge returns c with every non-empty field of patch applied on top.
func (c ProjectContext) Merge(patch ProjectContext) ProjectContext {
	out := c
	if patch.Name != "" {
		out.Name = patch.Name
	}
	if patch.Type != "" {
		out.Type = patch.Type
	}
	if patch.Industry != "" {
		out.Industry = patch.Industry
	}
	if patch.Methodology != "" {
		out.Methodology = patch.Methodology
	}
	if patch.Budget != "" {
		out.Budget = patch.Budget
	}
	if patch.Timeline != "" {
		out.Timeline = patch.Timeline
	}
	if patch.TeamSize != "" {
		out.TeamSize = patch.TeamSize
	}
	if patch.Description != "" {
		out.Description = patch.Description
	}
	return out
}

// IsZero reports whether no field has been set.
func (c ProjectContext) IsZero() bool {
	return c == ProjectContext{}
}
