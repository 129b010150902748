package assistant

import "fmt"

// FallbackReply synthesizes the degraded-mode reply used when no upstream
// client is configured. Deterministic on purpose: it references the last user
// message so the rest of the pipeline (session persistence, webhook encoding,
// delivery) stays fully exercised without an API key.
func FallbackReply(history []Message) string {
	var last string
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == "user" {
			last = history[i].Content
			break
		}
	}
	if last == "" {
		return "Hola, ¿cómo puedo ayudarte hoy?"
	}
	return fmt.Sprintf(
		"He recibido tu mensaje pero el asistente aún no está configurado. Mensaje: %s", last)
}
