package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/codeready-toolchain/kitt/pkg/dispatch"
	"github.com/codeready-toolchain/kitt/pkg/ledger"
	"github.com/codeready-toolchain/kitt/pkg/registry"
)

func TestStatusForError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		expectCode int
	}{
		{"ledger not found maps to 404", ledger.ErrNotFound, http.StatusNotFound},
		{"registry not found maps to 404", registry.ErrNotFound, http.StatusNotFound},
		{"wrapped conflict maps to 409", fmt.Errorf("wrap: %w", ledger.ErrConflict), http.StatusConflict},
		{"name taken maps to 409", registry.ErrNameTaken, http.StatusConflict},
		{"bad token maps to 401", registry.ErrUnauthorized, http.StatusUnauthorized},
		{"full queue maps to 503", dispatch.ErrQueueFull, http.StatusServiceUnavailable},
		{"unknown error maps to 500", fmt.Errorf("something unexpected"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectCode, statusForError(tt.err))
		})
	}
}
