package domain

// Document is the persisted shape of a recipe. Statuses are not stored;
// everything loaded from a document starts untouched.
type Document struct {
	ID          string                 `json:"id" bson:"_id"`
	Title       string                 `json:"title" bson:"title"`
	Description string                 `json:"description" bson:"description"`
	Owner       string                 `json:"owner" bson:"owner"`
	RootStepID  StepID                 `json:"rootStepId" bson:"rootStepId"`
	Steps       map[StepID]DocStep     `json:"steps" bson:"steps"`
	Relations   map[string]DocRelation `json:"relations" bson:"relations"`
}

// DocStep is a persisted step.
type DocStep struct {
	ID          StepID        `json:"id" bson:"id"`
	Title       string        `json:"title" bson:"title"`
	Instruction string        `json:"instruction" bson:"instruction"`
	Extension   *DocExtension `json:"extension,omitempty" bson:"extension,omitempty"`
}

// DocExtension is a persisted timer extension.
type DocExtension struct {
	Body     string `json:"body" bson:"body"`
	Duration int    `json:"duration" bson:"duration"`
}

// DocRelation is a persisted edge.
type DocRelation struct {
	ParentID StepID `json:"parentId" bson:"parentId"`
	ChildID  StepID `json:"childId" bson:"childId"`
}

// Summary returns the listing view of the document.
func (d *Document) Summary() RecipeSummary {
	return RecipeSummary{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		Owner:       d.Owner,
		Steps:       len(d.Steps),
	}
}

// ChangeSet is the save diff emitted by the editor. Untouched entities are
// omitted. Created entities carry their temporary ids.
type ChangeSet struct {
	RecipeID  string          `json:"recipeId"`
	Header    RecipeHeader    `json:"header"`
	Steps     StepChanges     `json:"steps"`
	Relations RelationChanges `json:"relations"`

	// HeaderChanged is set when the title or description was edited.
	HeaderChanged bool `json:"headerChanged,omitempty"`
}

// RecipeHeader carries the recipe-level fields of a save.
type RecipeHeader struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Owner       string `json:"owner"`
	RootStepID  StepID `json:"rootStepId"`
}

// StepChanges partitions step changes by action.
type StepChanges struct {
	Create   []DocStep `json:"create,omitempty"`
	Modified []DocStep `json:"modified,omitempty"`
	Delete   []StepID  `json:"delete,omitempty"`
}

// RelationChanges partitions relation changes by action.
type RelationChanges struct {
	Create []RelationChange `json:"create,omitempty"`
	Delete []RelationID     `json:"delete,omitempty"`
}

// RelationChange is a created relation in a change set.
type RelationChange struct {
	ID       RelationID `json:"id"`
	ParentID StepID     `json:"parentId"`
	ChildID  StepID     `json:"childId"`
}

// Empty reports whether the change set has neither header nor entity changes.
func (c *ChangeSet) Empty() bool {
	return !c.HeaderChanged &&
		len(c.Steps.Create) == 0 && len(c.Steps.Modified) == 0 && len(c.Steps.Delete) == 0 &&
		len(c.Relations.Create) == 0 && len(c.Relations.Delete) == 0
}

// IDMap maps temporary ids to the ids assigned by a store.
type IDMap struct {
	Steps     map[StepID]StepID
	Relations map[RelationID]RelationID
}

// NewIDMap returns an empty mapping.
func NewIDMap() *IDMap {
	return &IDMap{
		Steps:     make(map[StepID]StepID),
		Relations: make(map[RelationID]RelationID),
	}
}

// Step resolves a possibly temporary step id.
func (m *IDMap) Step(id StepID) StepID {
	if m == nil {
		return id
	}
	if v, ok := m.Steps[id]; ok {
		return v
	}
	return id
}

// Relation resolves a possibly temporary relation id.
func (m *IDMap) Relation(id RelationID) RelationID {
	if m == nil {
		return id
	}
	if v, ok := m.Relations[id]; ok {
		return v
	}
	return id
}
