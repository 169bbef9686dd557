package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"null", nil, "NULL"},
		{"bytes", []byte("Courtyard"), "Courtyard"},
		{"string", "O1", "O1"},
		{"integer", int64(3), "3"},
		{"whole float", 80.0, "80"},
		{"fraction", 42.5, "42.5"},
		{"small float", 1e-5, "0.00001"},
		{"many decimals", 0.123456, "0.123456"},
		{"negative", -2.25, "-2.25"},
		{"float32", float32(0.1), "0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatValue(tt.in))
		})
	}
}

func TestRowsString(t *testing.T) {
	var empty *Rows
	assert.True(t, empty.Empty())
	assert.Equal(t, "[]", empty.String())

	rows := &Rows{Columns: []string{"key", "weight"}, Values: [][]any{{"O1", 0.00002}, {"O2", nil}}}
	assert.False(t, rows.Empty())
	assert.Equal(t, "[(O1, 0.00002), (O2, NULL)]", rows.String())
}
