package main

import (
	"testing"

	"github.com/star/terrafusion/internal/registry"
)

func TestAgenciesTakeFirstBodyColour(t *testing.T) {
	reg := &registry.Registry{
		Bodies: []registry.BodySpec{
			{ID: "A1", Agency: "ESA", Color: "#111111"},
			{ID: "A2", Agency: "ESA", Color: "#222222"},
			{ID: "B1", Agency: "NASA", Color: "#333333"},
		},
		Agencies: []registry.Agency{
			{Name: "ESA", Link: "ESA_LINK", Status: "online"},
			{Name: "NASA", Link: "NASA_LINK", Status: "degraded"},
			{Name: "JAXA", Link: "JAXA_LINK", Status: "offline"},
		},
	}

	got := agencies(reg)
	want := map[string]string{"ESA": "#111111", "NASA": "#333333", "JAXA": ""}
	if len(got) != 3 {
		t.Fatalf("got %d agencies, want 3", len(got))
	}
	for _, a := range got {
		if a.Color != want[a.Name] {
			t.Errorf("%s colour = %q, want %q", a.Name, a.Color, want[a.Name])
		}
	}
}

func TestMarkersFromDefaultRegistry(t *testing.T) {
	reg, err := registry.Default()
	if err != nil {
		t.Fatal(err)
	}
	ms := markers(reg)
	if len(ms) != len(reg.POIs) {
		t.Fatalf("got %d markers for %d points of interest", len(ms), len(reg.POIs))
	}
	for i, m := range ms {
		if m.ID != reg.POIs[i].ID || m.Lat != reg.POIs[i].Lat || m.Lng != reg.POIs[i].Lng {
			t.Errorf("marker %d = %+v, want %+v", i, m, reg.POIs[i])
		}
	}
}

func TestCheckSelection(t *testing.T) {
	reg, err := registry.Default()
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		id      string
		wantErr bool
	}{
		{"", false},
		{"S1", false},
		{"L9", false},
		{"ZZ9", true},
		{"s1", true},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if err := checkSelection(reg, tt.id); (err != nil) != tt.wantErr {
				t.Errorf("checkSelection(%q) = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}
