package graph

// Model is a catalog entry for a language model a worker or supervisor node
// can reference.
type Model struct {
	ID       string `json:"id"`
	Provider string `json:"provider"`
	Name     string `json:"name"`
}

// Label is the display label used by the editor.
func (m Model) Label() string {
	return m.Provider + " / " + m.Name
}

// Tool is a catalog entry for a deterministic function a tool node binds to
// or a worker node carries as a capability.
type Tool struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	InputFields  []string `json:"inputFields"`
	OutputFields []string `json:"outputFields"`
}

// Catalogs is an immutable snapshot of the reference registries the
// normalizer and editor check graphs against. Catalogs are threaded in
// explicitly; there is no ambient registry.
type Catalogs struct {
	Models []Model
	Tools  []Tool

	modelByID map[string]Model
	toolByID  map[string]Tool
}

// NewCatalogs builds a snapshot with id lookups.
func NewCatalogs(models []Model, tools []Tool) Catalogs {
	c := Catalogs{
		Models:    models,
		Tools:     tools,
		modelByID: make(map[string]Model, len(models)),
		toolByID:  make(map[string]Tool, len(tools)),
	}
	for _, m := range models {
		c.modelByID[m.ID] = m
	}
	for _, t := range tools {
		c.toolByID[t.ID] = t
	}
	return c
}

// Model looks up a model by id.
func (c Catalogs) Model(id string) (Model, bool) {
	m, ok := c.modelByID[id]
	return m, ok
}

// Tool looks up a tool by id.
func (c Catalogs) Tool(id string) (Tool, bool) {
	t, ok := c.toolByID[id]
	return t, ok
}

// HasModel reports whether the model id is in the catalog.
func (c Catalogs) HasModel(id string) bool {
	_, ok := c.modelByID[id]
	return ok
}

// HasTool reports whether the tool id is in the catalog.
func (c Catalogs) HasTool(id string) bool {
	_, ok := c.toolByID[id]
	return ok
}
