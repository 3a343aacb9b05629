package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegions_Parse(t *testing.T) {
	r := NewRegions(nil)
	tests := []struct {
		text string
		want string
		ok   bool
	}{
		{"North Carolina", "North Carolina", true},
		{"nc", "North Carolina", true},
		{"  NORTH   carolina!! ", "North Carolina", true},
		{"I live in West Virginia", "West Virginia", true},
		{"virginia please", "Virginia", true},
		{"I'm in new-york", "New York", true},
		{"US", OverflowRegion, true},
		{"call me maybe", "", false},
		{"I am in ME", "", false},
		{"asdf", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := r.Parse(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegions_Group(t *testing.T) {
	r := NewRegions(map[string]string{"ND": "Dakotas", "South Dakota": "Dakotas"})

	assert.Equal(t, "Dakotas", r.Group("North Dakota"))
	assert.Equal(t, "Dakotas", r.Group("sd"))
	assert.Equal(t, "Ohio", r.Group("OH"))
	assert.Equal(t, "Atlantis", r.Group(" Atlantis "))
}

func TestRegions_Code(t *testing.T) {
	r := NewRegions(nil)
	assert.Equal(t, "NC", r.Code("North Carolina"))
	assert.Equal(t, "US", r.Code(OverflowRegion))
	assert.Equal(t, "", r.Code("Atlantis"))
}
