package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain", `{"action":"update"}`, `{"action":"update"}`},
		{"json fence", "```json\n{\"action\": \"remove\"}\n```", `{"action": "remove"}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding prose", `Sure! {"action":"create","targetHologram":""} Hope this helps.`, `{"action":"create","targetHologram":""}`},
		{"array is not an object", `["create"]`, ""},
		{"truncated", `{"action": "upd`, ""},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSONObject(tt.raw))
		})
	}
}
