// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"

	"github.com/disam-ia/disamia/internal/ollama"
)

// Describe turns a Send error into the short Spanish message shown to the
// person chatting. Unknown errors fall back to their own text.
func Describe(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrBusy):
		return "Espera a que termine la respuesta actual."
	case errors.Is(err, ErrEmptyMessage):
		return "Escribe un mensaje antes de enviar."
	case errors.Is(err, ErrNoModel):
		return "No hay un modelo seleccionado. Instala uno con 'ollama pull <modelo>'."
	case ollama.IsNotRunning(err):
		return "No se pudo conectar con Ollama. Verifica que esté en ejecución ('ollama serve')."
	case ollama.IsModelNotFound(err):
		return "El modelo seleccionado no está instalado en Ollama."
	case ollama.IsTimeout(err):
		return "Ollama tardó demasiado en responder."
	case ollama.IsCanceled(err):
		return "Respuesta cancelada."
	}
	return "Error: " + err.Error()
}
