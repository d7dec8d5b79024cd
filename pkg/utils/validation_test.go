package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "relmap/pkg/errors"
)

type sample struct {
	FirstName string   `validate:"required,max=5"`
	Proximity string   `validate:"omitempty,proximity"`
	Tags      []string `validate:"dive,max=3"`
	Kinds     []string `validate:"dive,category"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name    string
		input   sample
		wantErr string
	}{
		{name: "valid", input: sample{FirstName: "Marie", Proximity: "fort"}},
		{name: "missing name", input: sample{}, wantErr: "firstName is required"},
		{name: "too long", input: sample{FirstName: "Marie-Anne"}, wantErr: "firstName must be at most 5 characters"},
		{name: "bad proximity", input: sample{FirstName: "Jean", Proximity: "close"}, wantErr: "proximity must be one of: fort, moyen, faible"},
		{name: "known category", input: sample{FirstName: "Jean", Kinds: []string{"Advisor"}}},
		{name: "unknown category", input: sample{FirstName: "Jean", Kinds: []string{"Client"}}, wantErr: "contains an unknown category"},
		{name: "long tag", input: sample{FirstName: "Jean", Tags: []string{"abcd"}}, wantErr: "must be at most 3 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(tt.input)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
