package wire

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/hammamikhairi/dagchef/internal/domain"
)

func sampleDoc() *domain.Document {
	return &domain.Document{
		ID:          "r1",
		Title:       "Pancakes",
		Description: "Fluffy",
		Owner:       "alice",
		RootStepID:  "s1",
		Steps: map[domain.StepID]domain.DocStep{
			"s1": {ID: "s1", Title: "Mix", Instruction: "Mix dry ingredients"},
			"s2": {ID: "s2", Title: "Rest", Instruction: "Let it rest", Extension: &domain.DocExtension{Body: "rest", Duration: 300}},
			"s3": {ID: "s3", Title: "Fry", Instruction: "Fry both sides"},
		},
		Relations: map[string]domain.DocRelation{
			"r12": {ParentID: "s1", ChildID: "s2"},
			"r23": {ParentID: "s2", ChildID: "s3"},
		},
	}
}

func TestFromDocument(t *testing.T) {
	r := FromDocument(sampleDoc())

	if r.CurrentStepID != "s1" {
		t.Fatalf("expected cursor on root, got %s", r.CurrentStepID)
	}
	if len(r.Steps) != 3 || len(r.Relations) != 2 {
		t.Fatalf("expected 3 steps and 2 relations, got %d and %d", len(r.Steps), len(r.Relations))
	}
	for id, s := range r.Steps {
		if s.Status != domain.EditUntouched {
			t.Fatalf("step %s: expected untouched, got %s", id, s.Status)
		}
	}
	if !r.Steps["s2"].Timed() || r.Steps["s2"].Extension.Duration != 300 {
		t.Fatalf("expected s2 timed for 300s, got %+v", r.Steps["s2"].Extension)
	}
	rel := r.Relations["r23"]
	if rel.ParentID != "s2" || rel.ChildID != "s3" {
		t.Fatalf("unexpected relation %+v", rel)
	}
}

func TestToDocumentDropsTombstones(t *testing.T) {
	r := FromDocument(sampleDoc())
	r.Steps["s3"].Status = domain.EditDeleted
	r.Relations["r23"].Status = domain.EditDeleted

	doc := ToDocument(r)
	if _, ok := doc.Steps["s3"]; ok {
		t.Fatal("deleted step should not be rendered")
	}
	if _, ok := doc.Relations["r23"]; ok {
		t.Fatal("deleted relation should not be rendered")
	}
	if err := Check(doc); err != nil {
		t.Fatalf("rendered document should be consistent: %v", err)
	}
}

func TestToChangeSet(t *testing.T) {
	r := FromDocument(sampleDoc())
	r.Steps["s2"].Title = "Rest well"
	r.Steps["s2"].Status = domain.EditModified
	r.Steps["s3"].Status = domain.EditDeleted
	r.Relations["r23"].Status = domain.EditDeleted
	r.Steps["tmp-a"] = &domain.Step{ID: "tmp-a", Title: "Serve", Status: domain.EditCreated}
	r.Relations["tmp-r"] = &domain.Relation{ID: "tmp-r", ParentID: "s2", ChildID: "tmp-a", Status: domain.EditCreated}

	cs := ToChangeSet(r)

	if len(cs.Steps.Create) != 1 || cs.Steps.Create[0].ID != "tmp-a" {
		t.Fatalf("unexpected creates %+v", cs.Steps.Create)
	}
	if len(cs.Steps.Modified) != 1 || cs.Steps.Modified[0].Title != "Rest well" {
		t.Fatalf("unexpected modifications %+v", cs.Steps.Modified)
	}
	if len(cs.Steps.Delete) != 1 || cs.Steps.Delete[0] != "s3" {
		t.Fatalf("unexpected step deletes %v", cs.Steps.Delete)
	}
	if len(cs.Relations.Create) != 1 || cs.Relations.Create[0].ChildID != "tmp-a" {
		t.Fatalf("unexpected relation creates %+v", cs.Relations.Create)
	}
	if len(cs.Relations.Delete) != 1 || cs.Relations.Delete[0] != "r23" {
		t.Fatalf("unexpected relation deletes %v", cs.Relations.Delete)
	}
	if cs.Header.RootStepID != "s1" || cs.Header.Owner != "alice" {
		t.Fatalf("unexpected header %+v", cs.Header)
	}
}

func TestToChangeSetUntouchedIsEmpty(t *testing.T) {
	cs := ToChangeSet(FromDocument(sampleDoc()))
	if !cs.Empty() {
		t.Fatalf("expected empty change set, got %+v", cs)
	}
}

func TestToChangeSetHeaderOnly(t *testing.T) {
	r := FromDocument(sampleDoc())
	r.Title = "Renamed"
	r.Status = domain.EditModified

	cs := ToChangeSet(r)
	if !cs.HeaderChanged || cs.Empty() {
		t.Fatalf("expected a header change, got %+v", cs)
	}
	out, _, err := Apply(sampleDoc(), cs, nil)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if out.Title != "Renamed" {
		t.Fatalf("expected the new title stored, got %q", out.Title)
	}
}

func TestApply(t *testing.T) {
	r := FromDocument(sampleDoc())
	r.Steps["s3"].Status = domain.EditDeleted
	r.Relations["r23"].Status = domain.EditDeleted
	r.Steps["tmp-a"] = &domain.Step{ID: "tmp-a", Title: "Serve", Status: domain.EditCreated}
	r.Relations["tmp-r"] = &domain.Relation{ID: "tmp-r", ParentID: "s2", ChildID: "tmp-a", Status: domain.EditCreated}
	r.Title = "Better pancakes"

	n := 0
	newID := func() string {
		n++
		return fmt.Sprintf("p%d", n)
	}

	before := sampleDoc()
	out, ids, err := Apply(before, ToChangeSet(r), newID)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	if out.Title != "Better pancakes" {
		t.Fatalf("expected title updated, got %q", out.Title)
	}
	stepID := ids.Step("tmp-a")
	if stepID == "tmp-a" {
		t.Fatal("expected created step to get a persisted id")
	}
	if s, ok := out.Steps[stepID]; !ok || s.ID != stepID {
		t.Fatalf("created step missing or mislabelled: %+v", s)
	}
	relID := ids.Relation("tmp-r")
	rel, ok := out.Relations[string(relID)]
	if !ok || rel.ChildID != stepID {
		t.Fatalf("created relation should point at the remapped step, got %+v", rel)
	}
	if _, ok := out.Steps["s3"]; ok {
		t.Fatal("deleted step still present")
	}
	if len(before.Steps) != 3 {
		t.Fatal("apply must not modify its input")
	}
}

func TestApplyKeepsTemporaryIDs(t *testing.T) {
	r := FromDocument(sampleDoc())
	r.Steps["tmp-a"] = &domain.Step{ID: "tmp-a", Title: "Serve", Status: domain.EditCreated}
	r.Relations["tmp-r"] = &domain.Relation{ID: "tmp-r", ParentID: "s3", ChildID: "tmp-a", Status: domain.EditCreated}

	out, ids, err := Apply(sampleDoc(), ToChangeSet(r), nil)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if ids.Step("tmp-a") != "tmp-a" {
		t.Fatalf("expected identity mapping, got %s", ids.Step("tmp-a"))
	}
	if _, ok := out.Relations["tmp-r"]; !ok {
		t.Fatal("expected relation stored under its temporary id")
	}
}

func TestApplyRejectsInconsistentChanges(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cs *domain.ChangeSet)
		wantErr error
	}{
		{
			"modified step missing",
			func(cs *domain.ChangeSet) {
				cs.Steps.Modified = append(cs.Steps.Modified, domain.DocStep{ID: "ghost"})
			},
			domain.ErrNotFound,
		},
		{
			"step deleted under a live relation",
			func(cs *domain.ChangeSet) {
				cs.Steps.Delete = append(cs.Steps.Delete, "s3")
			},
			domain.ErrDanglingRelation,
		},
		{
			"root deleted",
			func(cs *domain.ChangeSet) {
				cs.Steps.Delete = append(cs.Steps.Delete, "s1")
				cs.Relations.Delete = append(cs.Relations.Delete, "r12")
			},
			domain.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs := ToChangeSet(FromDocument(sampleDoc()))
			tt.mutate(cs)
			_, _, err := Apply(sampleDoc(), cs, nil)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestEncodeDecode(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, sampleDoc()); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.Contains(buf.String(), `"rootStepId": "s1"`) {
		t.Fatalf("expected camelCase root field, got:\n%s", buf.String())
	}

	doc, err := Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Steps["s2"].Extension == nil || doc.Steps["s2"].Extension.Duration != 300 {
		t.Fatalf("extension lost: %+v", doc.Steps["s2"])
	}
}

func TestDecodeFillsStepIDs(t *testing.T) {
	in := `{"id":"x","rootStepId":"a","steps":{"a":{"title":"Only"}},"relations":{}}`
	doc, err := Decode(strings.NewReader(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Steps["a"].ID != "a" {
		t.Fatalf("expected step id filled from key, got %q", doc.Steps["a"].ID)
	}
}

func TestDecodeRejectsDangling(t *testing.T) {
	in := `{"id":"x","rootStepId":"a","steps":{"a":{}},"relations":{"r":{"parentId":"a","childId":"b"}}}`
	if _, err := Decode(strings.NewReader(in)); !errors.Is(err, domain.ErrDanglingRelation) {
		t.Fatalf("expected ErrDanglingRelation, got %v", err)
	}
}
