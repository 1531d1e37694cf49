package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifica o erro de uma ferramenta
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindUnavailable
)

// String retorna o nome do tipo de erro
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// AppError erro de aplicação com tipo e contexto
type AppError struct {
	Kind    Kind   // tipo do erro, define o código de saída
	Message string // mensagem para o operador
	Err     error  // erro interno, só para logs
	Context string // contexto adicional (tabela, usuário, arquivo)
}

// Error implementa a interface error
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap devolve o erro interno para errors.Is e errors.As
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithContext adiciona contexto ao erro
func (e *AppError) WithContext(context string) *AppError {
	e.Context = context
	return e
}

// ExitCode código de saída do processo para o tipo do erro
func (e *AppError) ExitCode() int {
	switch e.Kind {
	case KindValidation:
		return 2
	case KindNotFound:
		return 3
	case KindConflict:
		return 4
	case KindUnavailable:
		return 5
	default:
		return 1
	}
}

// NewValidationError argumentos ou dados inválidos
func NewValidationError(message string, err error) *AppError {
	return &AppError{Kind: KindValidation, Message: message, Err: err}
}

// NewNotFoundError registro, tabela ou arquivo inexistente
func NewNotFoundError(message string, err error) *AppError {
	return &AppError{Kind: KindNotFound, Message: message, Err: err}
}

// NewConflictError estado do banco impede a operação
func NewConflictError(message string, err error) *AppError {
	return &AppError{Kind: KindConflict, Message: message, Err: err}
}

// NewUnavailableError servidor web ou banco inacessível
func NewUnavailableError(message string, err error) *AppError {
	return &AppError{Kind: KindUnavailable, Message: message, Err: err}
}

// NewInternalError falha inesperada
func NewInternalError(message string, err error) *AppError {
	return &AppError{Kind: KindInternal, Message: message, Err: err}
}

// WrapError embrulha um erro existente mantendo o tipo se já for AppError
func WrapError(err error, message string) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return &AppError{
			Kind:    appErr.Kind,
			Message: fmt.Sprintf("%s: %s", message, appErr.Message),
			Err:     appErr.Err,
			Context: appErr.Context,
		}
	}

	return NewInternalError(message, err)
}

// ExitCode código de saída para qualquer erro (0 para nil)
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.ExitCode()
	}
	return 1
}
