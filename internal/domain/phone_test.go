package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"adds plus", "923001234567", "+923001234567"},
		{"keeps existing plus", "+923001234567", "+923001234567"},
		{"trims surrounding whitespace", "  923001234567\n", "+923001234567"},
		{"trims before checking plus", "\t+15550000 ", "+15550000"},
		{"keeps internal whitespace", "1 555 0000", "+1 555 0000"},
		{"empty becomes bare plus", "", "+"},
		{"whitespace only becomes bare plus", "   ", "+"},
		{"strips byte order mark", "\uFEFF923001234567", "+923001234567"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePhone(tt.in))
		})
	}
}

func TestNormalizePhones_DropsUndispatchable(t *testing.T) {
	got := NormalizePhones([]string{"", "+", "1"})
	assert.Equal(t, []string{"+1"}, got)

	got = NormalizePhones([]string{" 5550001", "+5550002", "  ", "5550003"})
	assert.Equal(t, []string{"+5550001", "+5550002", "+5550003"}, got)

	assert.Empty(t, NormalizePhones(nil))
}

func TestBatches(t *testing.T) {
	ids := []string{"+1", "+2", "+3", "+4", "+5"}

	assert.Equal(t, [][]string{{"+1"}, {"+2"}, {"+3"}, {"+4"}, {"+5"}}, Batches(ids, 1))
	assert.Equal(t, [][]string{{"+1", "+2"}, {"+3", "+4"}, {"+5"}}, Batches(ids, 2))
	assert.Equal(t, [][]string{ids}, Batches(ids, 10))
	assert.Len(t, Batches(ids, 0), 5, "non-positive size falls back to one per batch")
	assert.Empty(t, Batches(nil, 3))
}
