package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitFullName(t *testing.T) {
	tests := []struct {
		name, full, addr string
		first, last      string
	}{
		{"first and surnames", "Maria Clara da Silva", "m@example.com", "Maria", "Clara da Silva"},
		{"single name", "Pelé", "p@example.com", "Pelé", ""},
		{"falls back to email", "  ", "joao.souza@example.com", "Joao", "Souza"},
		{"nothing usable", "", "", "User", "User"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, last := SplitFullName(tt.full, tt.addr)
			assert.Equal(t, tt.first, first)
			assert.Equal(t, tt.last, last)
		})
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "ana@example.com", Normalize("  Ana@Example.COM "))
}
