// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prompt

import (
	"fmt"

	"github.com/disam-ia/disamia/internal/ollama"
)

// DefaultPreamble states who the assistant is.
const DefaultPreamble = "Eres un asistente inteligente oficial de DISAM (Dirección de Salud Municipal de Arica)."

// DefaultInstructions is the closing block of operating rules.
const DefaultInstructions = `INSTRUCCIONES:
- Responde siempre en español, de manera amable, profesional y útil.
- Proporciona información precisa basándote en la base de conocimientos.
- Si no tienes la información específica, sugiere contactar directamente a DISAM al (56-58) 2206004.
- Cuando te pregunten por horarios de atención, menciona que pueden variar y recomienda confirmar por teléfono.
- Web oficial: https://apsmuniarica.cl/web/`

// ContextRenderer produces the knowledge block embedded in the prompt.
// *knowledge.Store implements it.
type ContextRenderer interface {
	RenderContext() string
}

// Template holds the fixed parts around the knowledge block.
type Template struct {
	Preamble     string
	Instructions string
}

// DefaultTemplate returns the DISAM template.
func DefaultTemplate() Template {
	return Template{Preamble: DefaultPreamble, Instructions: DefaultInstructions}
}

// Composer builds system messages from the current knowledge state.
type Composer struct {
	knowledge ContextRenderer
	tmpl      Template
}

// NewComposer returns a Composer over knowledge. Empty template fields fall
// back to the defaults.
func NewComposer(knowledge ContextRenderer, tmpl Template) *Composer {
	if tmpl.Preamble == "" {
		tmpl.Preamble = DefaultPreamble
	}
	if tmpl.Instructions == "" {
		tmpl.Instructions = DefaultInstructions
	}
	return &Composer{knowledge: knowledge, tmpl: tmpl}
}

// SystemPrompt returns the full system prompt text. It re-reads the
// knowledge store on every call.
func (c *Composer) SystemPrompt() string {
	return c.tmpl.Preamble + "\n\n" + c.knowledge.RenderContext() + "\n\n---\n" + c.tmpl.Instructions
}

// BuildSystemMessage returns SystemPrompt as a system-role message.
func (c *Composer) BuildSystemMessage() ollama.Message {
	return ollama.NewSystemMessage(c.SystemPrompt())
}

// DocumentPrompt asks the model to summarize an attached document.
func DocumentPrompt(name, text string) string {
	return fmt.Sprintf("He subido un documento llamado %q. Aquí está su contenido:\n\n%s\n\nPor favor, analízalo y genera un resumen detallado de sus puntos principales.", name, text)
}
