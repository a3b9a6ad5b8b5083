package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type keyHolder struct {
	Key string `validate:"required,object_key"`
}

func TestValidatorObjectKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{name: "plain", key: "30x30-Rizzo.png"},
		{name: "nested path", key: "pets/200x200_Mypet.jpg"},
		{name: "unicode", key: "50x50_kedi-çiçek.png"},
		{name: "empty", key: "", wantErr: true},
		{name: "control char", key: "50x50_a\nb.png", wantErr: true},
		{name: "too long", key: strings.Repeat("a", maxObjectKeyLength+1), wantErr: true},
		{name: "invalid utf8", key: "50x50_\xff.png", wantErr: true},
	}

	v := NewValidator()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Struct(keyHolder{Key: tc.key})
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
