package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorMessageAndUnwrap(t *testing.T) {
	inner := errors.New("no such table: usuarios")
	err := NewNotFoundError("tabela ausente", inner)

	assert.Equal(t, "tabela ausente: no such table: usuarios", err.Error())
	assert.True(t, errors.Is(err, inner))
	assert.Equal(t, 3, err.ExitCode())
}

func TestWrapErrorKeepsKind(t *testing.T) {
	base := NewValidationError("posição inválida", nil).WithContext("containers")
	wrapped := WrapError(fmt.Errorf("step: %w", base), "migração")

	assert.Equal(t, KindValidation, wrapped.Kind)
	assert.Equal(t, "migração: posição inválida", wrapped.Message)
	assert.Equal(t, "containers", wrapped.Context)
}

func TestWrapErrorPlainError(t *testing.T) {
	wrapped := WrapError(errors.New("disk I/O error"), "backup")
	assert.Equal(t, KindInternal, wrapped.Kind)
	assert.Equal(t, 1, wrapped.ExitCode())

	assert.Nil(t, WrapError(nil, "nada"))
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"plain", errors.New("x"), 1},
		{"validation", NewValidationError("x", nil), 2},
		{"not found", NewNotFoundError("x", nil), 3},
		{"conflict", NewConflictError("x", nil), 4},
		{"unavailable wrapped", fmt.Errorf("ctx: %w", NewUnavailableError("x", nil)), 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}
