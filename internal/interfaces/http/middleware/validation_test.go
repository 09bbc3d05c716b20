package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsPlanID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want bool
	}{
		{"simple", "starter", true},
		{"with digits and dash", "team-2026", true},
		{"with underscore", "legacy_pro", true},
		{"empty", "", false},
		{"uppercase", "Starter", false},
		{"spaces", "starter plan", false},
		{"punctuation", "starter!", false},
		{"too long", string(make([]byte, 65)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isPlanID(tt.id))
		})
	}
}
