package wizard

import (
	"errors"

	"github.com/transformar/console/internal/api"
)

// ErrInputRequired matches every missing-input guard failure.
var ErrInputRequired = errors.New("input required")

// Input guard failures. All of them match ErrInputRequired.
var (
	ErrNoSource  error = &inputError{"no source selected"}
	ErrNoFile    error = &inputError{"no file selected"}
	ErrNoText    error = &inputError{"text is empty"}
	ErrNoMessage error = &inputError{"no message selected"}
	ErrNoContent error = &inputError{"selected message has no usable content"}
)

var (
	// ErrNoTemplate is returned by Submit when no template is selected.
	ErrNoTemplate = errors.New("no template selected")
	// ErrBusy is returned when the same operation is already in flight.
	ErrBusy = errors.New("operation already in progress")
	// ErrSuperseded is returned when a newer request replaced this one. The
	// response was discarded.
	ErrSuperseded = errors.New("superseded by a newer request")
	// ErrWrongSource is returned for an input action the current source does not take.
	ErrWrongSource = errors.New("action not available for this source")
	// ErrNoChannel is returned when the requested channel does not exist in the message.
	ErrNoChannel = errors.New("channel not available for this message")
)

type inputError struct{ msg string }

func (e *inputError) Error() string { return e.msg }

func (e *inputError) Is(target error) bool { return target == ErrInputRequired }

// UserMessage returns the alert shown to the user for err.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoTemplate):
		return "Elegí una plantilla."
	case errors.Is(err, ErrNoFile):
		return "Seleccioná un archivo."
	case errors.Is(err, ErrNoText):
		return "Pegá un texto."
	case errors.Is(err, ErrNoMessage):
		return "Elegí un mensaje."
	case errors.Is(err, ErrNoContent):
		return "El mensaje no tiene contenido para procesar."
	case errors.Is(err, ErrNoSource):
		return "Elegí una fuente."
	case errors.Is(err, ErrBusy):
		return "Procesando..."
	}

	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return "Error: " + apiErr.Error()
	}
	return "Error: " + err.Error()
}
