package models

import (
	"reflect"
	"testing"
)

func TestUnionIDs(t *testing.T) {
	got := UnionIDs([]string{"a", "b", "a", ""}, []string{"c", "b"})
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("UnionIDs = %v, want %v", got, want)
	}
}

func TestIsAutoImported(t *testing.T) {
	cases := []struct {
		col  Collection
		want bool
	}{
		{Collection{ID: "x", Category: "Auto-Imported"}, true},
		{Collection{ID: "col_QQ"}, true},
		{Collection{ID: "abc", Category: "favourites"}, false},
	}
	for _, c := range cases {
		if got := c.col.IsAutoImported(); got != c.want {
			t.Errorf("%+v: IsAutoImported = %v, want %v", c.col, got, c.want)
		}
	}
}

func TestCloneIsDeep(t *testing.T) {
	orig := Collection{ID: "a", ModelIDs: []string{"m1"}}
	cp := orig.Clone()
	cp.ModelIDs[0] = "changed"
	if orig.ModelIDs[0] != "m1" {
		t.Error("Clone shares the ModelIDs backing array")
	}
}
