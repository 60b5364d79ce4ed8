package registry

import (
	"errors"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	r, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if len(r.Bodies) != 6 {
		t.Errorf("bodies = %d, want 6", len(r.Bodies))
	}
	if len(r.POIs) != 4 {
		t.Errorf("points of interest = %d, want 4", len(r.POIs))
	}
	if len(r.Agencies) != 3 {
		t.Errorf("agencies = %d, want 3", len(r.Agencies))
	}

	bodies := r.PropagationBodies()
	if bodies[0].ID != "S1" || bodies[0].Params.AngularSpeed != 0.003 || bodies[0].Params.InclinationDeg != 35 {
		t.Errorf("first body = %+v", bodies[0])
	}
	if math.Abs(bodies[3].Params.Phase-1.5*math.Pi) > 1e-12 {
		t.Errorf("L9 phase = %v, want 1.5*pi", bodies[3].Params.Phase)
	}

	if _, ok := r.POI("paris"); !ok {
		t.Error("POI(paris) not found")
	}
	if _, ok := r.POI("atlantis"); ok {
		t.Error("POI(atlantis) should not exist")
	}
	if zones := r.UrbanZones(); len(zones) != 2 {
		t.Errorf("urban zones = %d, want 2", len(zones))
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"no bodies", "bodies: []"},
		{"missing id", "bodies:\n  - label: x\n    color: '#fff'\n    radius_factor: 1.2"},
		{"duplicate id", "bodies:\n  - {id: A, color: '#fff', radius_factor: 1.2}\n  - {id: A, color: '#fff', radius_factor: 1.2}"},
		{"bad colour", "bodies:\n  - {id: A, color: 'blue', radius_factor: 1.2}"},
		{"radius below globe", "bodies:\n  - {id: A, color: '#fff', radius_factor: 0.5}"},
		{"inclination too high", "bodies:\n  - {id: A, color: '#fff', radius_factor: 1.2, inclination: 120}"},
		{"not finite", "bodies:\n  - {id: A, color: '#fff', radius_factor: 1.2, angular_speed: .nan}"},
		{"poi out of range", "bodies:\n  - {id: A, color: '#fff', radius_factor: 1.2}\npoints_of_interest:\n  - {id: p, lat: 95, lng: 0}"},
		{"duplicate poi", "bodies:\n  - {id: A, color: '#fff', radius_factor: 1.2}\npoints_of_interest:\n  - {id: p}\n  - {id: p}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("Parse error = %v, want ErrInvalid", err)
			}
		})
	}

	if _, err := Parse([]byte("bodies: [")); err == nil || errors.Is(err, ErrInvalid) {
		t.Errorf("malformed YAML error = %v, want decode error", err)
	}
}

func TestLoad(t *testing.T) {
	r, err := Load("")
	if err != nil || len(r.Bodies) != 6 {
		t.Fatalf("Load(\"\") = %v, %v", r, err)
	}

	path := filepath.Join(t.TempDir(), "registry.yaml")
	doc := "bodies:\n  - {id: X1, label: Test, color: '#abc', radius_factor: 1.1, angular_speed: 0.01}\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	r, err = Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(r.Bodies) != 1 || r.Bodies[0].ID != "X1" {
		t.Errorf("bodies = %+v", r.Bodies)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil || !strings.Contains(err.Error(), "reading registry") {
		t.Errorf("missing file error = %v", err)
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    color.RGBA
		wantErr bool
	}{
		{"#38bdf8", color.RGBA{0x38, 0xbd, 0xf8, 0xff}, false},
		{"#10B981", color.RGBA{0x10, 0xb9, 0x81, 0xff}, false},
		{"#abc", color.RGBA{0xaa, 0xbb, 0xcc, 0xff}, false},
		{"38bdf8", color.RGBA{}, true},
		{"#38bdf", color.RGBA{}, true},
		{"#zzzzzz", color.RGBA{}, true},
	}
	for _, tt := range tests {
		got, err := ParseColor(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseColor(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseColor(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
