package domain

import (
	"errors"
	"testing"
)

func TestAttrKey(t *testing.T) {
	cases := []struct {
		name  string
		attrs map[string]string
		want  string
	}{
		{"nil", nil, ""},
		{"empty", map[string]string{}, ""},
		{"single", map[string]string{"Length": "3.9m"}, "Length=3.9m"},
		{"sorted", map[string]string{"Line": "0.16", "Connector": "loop"}, "Connector=loop;Line=0.16"},
		{"trimmed", map[string]string{" Length ": " 3.9m "}, "Length=3.9m"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := AttrKey(c.attrs); got != c.want {
				t.Fatalf("AttrKey = %q, want %q", got, c.want)
			}
		})
	}
}

func TestAttrKeyOrderIndependent(t *testing.T) {
	a := map[string]string{"a": "1", "b": "2", "c": "3"}
	b := map[string]string{"c": "3", "a": "1", "b": "2"}
	if AttrKey(a) != AttrKey(b) {
		t.Fatal("same attribute sets produced different keys")
	}
}

func TestVariantIndexMatch(t *testing.T) {
	p := Product{Variants: []Variant{
		{ID: "v1", Attributes: map[string]string{"Length": "3.9m"}, IsActive: true},
		{ID: "v2", Attributes: map[string]string{"Length": "4.4m"}, IsActive: true},
		{ID: "v3", Attributes: map[string]string{"Length": "4.8m"}, IsActive: false},
	}}
	ix := BuildVariantIndex(p.ActiveVariants())

	if ix.Len() != 2 {
		t.Fatalf("index size = %d, want 2 (inactive excluded)", ix.Len())
	}

	v, err := ix.Match(map[string]string{"Length": "4.4m"})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if v.ID != "v2" {
		t.Fatalf("matched %s, want v2", v.ID)
	}

	_, err = ix.Match(map[string]string{"Length": "4.8m"})
	if !errors.Is(err, ErrNoMatchingVariant) {
		t.Fatalf("inactive variant matched: %v", err)
	}
	_, err = ix.Match(map[string]string{"Length": "5.4m"})
	if !errors.Is(err, ErrNoMatchingVariant) {
		t.Fatalf("unknown selection matched: %v", err)
	}
}

func TestEffectiveWeightGrams(t *testing.T) {
	v := Variant{WeightGrams: 250}
	if got := v.EffectiveWeightGrams(900); got != 250 {
		t.Fatalf("own weight ignored: %d", got)
	}
	v.WeightGrams = 0
	if got := v.EffectiveWeightGrams(900); got != 900 {
		t.Fatalf("parent fallback = %d", got)
	}
}
