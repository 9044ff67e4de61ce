package taxonomy

import (
	"encoding/json"
	"testing"
)

func sample() Taxonomy {
	return New([]Category{
		{ID: "c-style", Title: "Style", Mandatory: true, Tags: []Tag{
			{ID: "t-minimal", Title: "Minimal"},
			{ID: "t-bold", Title: "Bold"},
		}},
		{ID: "c-industry", Title: "Industry", Tags: []Tag{{ID: "t-food", Title: "Food"}}},
		{ID: "c-empty", Title: "Audience"},
	})
}

func TestNew_SortsByTitle(t *testing.T) {
	tx := sample()
	var got []string
	for _, c := range tx.Categories {
		got = append(got, c.Title)
	}
	want := []string{"Audience", "Industry", "Style"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("categories = %v, want %v", got, want)
		}
	}
	if style := tx.Categories[2]; style.Tags[0].ID != "t-bold" {
		t.Errorf("tags not sorted: %+v", style.Tags)
	}
}

func TestNew_DoesNotAliasInput(t *testing.T) {
	in := []Category{{ID: "c", Title: "C", Tags: []Tag{{ID: "b", Title: "B"}, {ID: "a", Title: "A"}}}}
	New(in)
	if in[0].Tags[0].ID != "b" {
		t.Error("New reordered the caller's slice")
	}
}

func TestLookups(t *testing.T) {
	tx := sample()
	if !tx.HasTag("t-food") || tx.HasTag("c-style") {
		t.Error("HasTag must match leaf tags only")
	}
	if !tx.HasParent("c-style") || !tx.HasParent("t-bold") || tx.HasParent("nope") {
		t.Error("HasParent must accept categories and tags")
	}
	if !tx.HasTitle("  minimal ") || !tx.HasTitle("INDUSTRY") || tx.HasTitle("Retro") {
		t.Error("HasTitle must compare trimmed titles case-insensitively")
	}
	if m := tx.MandatoryTitles(); len(m) != 1 || m[0] != "Style" {
		t.Errorf("MandatoryTitles = %v", m)
	}
}

func TestIsEmpty(t *testing.T) {
	if !(Taxonomy{}).IsEmpty() {
		t.Error("zero taxonomy is not empty")
	}
	if !New([]Category{{ID: "c", Title: "C"}}).IsEmpty() {
		t.Error("categories without tags are empty")
	}
	if sample().IsEmpty() {
		t.Error("sample is empty")
	}
}

func TestPromptJSON(t *testing.T) {
	var cats []Category
	if err := json.Unmarshal([]byte(sample().PromptJSON()), &cats); err != nil {
		t.Fatalf("PromptJSON is not JSON: %v", err)
	}
	if len(cats) != 3 || !cats[2].Mandatory {
		t.Errorf("categories = %+v", cats)
	}
}
