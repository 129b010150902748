package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nextlevelbuilder/turnero/internal/clientdata"
	"github.com/nextlevelbuilder/turnero/internal/crm"
	"github.com/nextlevelbuilder/turnero/internal/store"
)

// metadata keys on the bot that configure branch notification.
const (
	metaBranchPhoneMap    = "branch_phone_map" // JSON object comuna -> phone
	metaDefaultNotifyNum  = "default_notify_phone"
	metaNotifyTemplateSID = "notify_template_sid" // Twilio content template
)

// leadCreator is the slice of the CRM client the extraction tool uses.
type leadCreator interface {
	CreateLead(ctx context.Context, lead crm.Lead, token string) (*crm.LeadResult, error)
}

// notifier is the slice of the Twilio client the extraction tool uses.
type notifier interface {
	Available() bool
	SendWhatsApp(ctx context.Context, to, body, from string) (string, error)
	SendTemplate(ctx context.Context, to, contentSID string, variables map[string]string, messagingServiceSID string) (string, error)
}

// ExtractTool handles the structured data handoff at the end of a service
// conversation: it formats a summary for the branch sales channel, creates a
// CRM lead when the customer data is complete, and reports per-step status so
// the assistant can tell the customer what actually happened. Lead creation
// and notification are best effort; a failure in either never fails the tool.
type ExtractTool struct {
	leads        leadCreator
	leadIDs      store.LeadStore
	notify       notifier
	defaultToken string
}

func NewExtractTool(leads leadCreator, leadIDs store.LeadStore, notify notifier, defaultToken string) *ExtractTool {
	return &ExtractTool{leads: leads, leadIDs: leadIDs, notify: notify, defaultToken: defaultToken}
}

func (t *ExtractTool) Name() string { return "extract_client_data" }

func (t *ExtractTool) Description() string {
	return "Hand off collected service, vehicle and customer data to the branch."
}

func (t *ExtractTool) Parameters() map[string]interface{} {
	obj := func(props map[string]interface{}) map[string]interface{} {
		return map[string]interface{}{"type": "object", "properties": props}
	}
	str := map[string]interface{}{"type": "string"}
	return obj(map[string]interface{}{
		"servicio": obj(map[string]interface{}{"comuna": str}),
		"vehiculo": obj(map[string]interface{}{
			"marca": str, "modelo": str, "anio": str, "combustible": str, "start_stop": str,
		}),
		"cliente": obj(map[string]interface{}{
			"nombre": str, "apellido": str, "rut": str, "telefono": str,
			"correo": str, "direccion": str, "referencia": str,
		}),
		"estado_flujo": str,
	})
}

func (t *ExtractTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	servicio := section(args, "servicio")
	vehiculo := section(args, "vehiculo")
	cliente := section(args, "cliente")
	estado, _ := args["estado_flujo"].(string)
	if estado == "" {
		estado = "pre_cotizacion"
	}

	response := map[string]interface{}{
		"success": true,
		"extracted_data": map[string]interface{}{
			"servicio":     servicio,
			"vehiculo":     vehiculo,
			"cliente":      cliente,
			"estado_flujo": estado,
		},
	}

	// Lead creation requires name, email and phone.
	missing := clientdata.MissingFields(map[string]string{
		"nombre":   field(cliente, "nombre"),
		"correo":   field(cliente, "correo"),
		"telefono": field(cliente, "telefono"),
	}, []string{"nombre", "correo", "telefono"})
	leadID := t.createLead(ctx, servicio, vehiculo, cliente, estado)
	switch {
	case leadID > 0:
		response["lead_id"] = leadID
		response["lead_status"] = "created"
	case len(missing) > 0:
		response["lead_status"] = "skipped"
		response["lead_note"] = "Datos de cliente incompletos para crear lead, faltan: " + strings.Join(missing, ", ")
	default:
		response["lead_status"] = "error"
		response["lead_error"] = "No se pudo crear el lead"
	}

	sent, target := t.notifyBranch(ctx, servicio, vehiculo, cliente, estado)
	if sent {
		response["message"] = "Datos extraídos, notificación enviada a sucursal"
		response["target_phone"] = target
	} else {
		response["message"] = "Datos extraídos (notificación no enviada)"
	}
	return JSONResult(response)
}

func (t *ExtractTool) createLead(ctx context.Context, servicio, vehiculo, cliente map[string]interface{}, estado string) int64 {
	nombre := field(cliente, "nombre")
	correo := field(cliente, "correo")
	telefono := field(cliente, "telefono")
	if nombre == "" || correo == "" || telefono == "" {
		return 0
	}

	mensaje := fmt.Sprintf(
		"Vehículo: %s %s %s - Combustible: %s, Start-Stop: %s. Servicio en: %s. Dirección: %s, Ref: %s. Estado: %s",
		orNA(field(vehiculo, "marca")), orNA(field(vehiculo, "modelo")), orNA(field(vehiculo, "anio")),
		orNA(field(vehiculo, "combustible")), orNA(field(vehiculo, "start_stop")),
		orNA(field(servicio, "comuna")),
		orNA(field(cliente, "direccion")), orNA(field(cliente, "referencia")),
		estado)

	result, err := t.leads.CreateLead(ctx, crm.Lead{
		Source:  "whatsapp",
		Name:    strings.TrimSpace(nombre + " " + field(cliente, "apellido")),
		Email:   correo,
		Phone:   telefono,
		Message: mensaje,
	}, crmToken(ctx, t.defaultToken))
	if err != nil {
		slog.Error("lead creation failed", "error", err)
		return 0
	}

	if err := t.leadIDs.SaveLeadID(telefono, result.ID); err != nil {
		slog.Warn("could not store lead id", "lead", result.ID, "error", err)
	}
	slog.Info("lead created", "lead", result.ID)
	return result.ID
}

// notifyBranch sends the summary to the branch phone mapped from the service
// comuna (bot metadata), falling back to the bot's default notify number.
func (t *ExtractTool) notifyBranch(ctx context.Context, servicio, vehiculo, cliente map[string]interface{}, estado string) (bool, string) {
	if t.notify == nil || !t.notify.Available() {
		return false, ""
	}
	bot := BotFromCtx(ctx)
	if bot == nil {
		return false, ""
	}

	target := bot.Metadata[metaDefaultNotifyNum]
	if raw := bot.Metadata[metaBranchPhoneMap]; raw != "" {
		var phones map[string]string
		if err := json.Unmarshal([]byte(raw), &phones); err != nil {
			slog.Warn("invalid branch phone map on bot", "bot", bot.ID, "error", err)
		} else {
			comuna := strings.ToLower(field(servicio, "comuna"))
			for key, phone := range phones {
				if strings.Contains(comuna, strings.ToLower(key)) {
					target = phone
					break
				}
			}
		}
	}
	if target == "" {
		return false, ""
	}

	// A configured content template goes first; freeform is the fallback so a
	// template rejection still reaches the branch.
	if contentSID := bot.Metadata[metaNotifyTemplateSID]; contentSID != "" {
		vars := map[string]string{
			"1": orNA(field(servicio, "comuna")),
			"2": strings.TrimSpace(orNA(field(vehiculo, "marca")) + " " + orNA(field(vehiculo, "modelo")) + " " + orNA(field(vehiculo, "anio"))),
			"3": estado,
		}
		sid, err := t.notify.SendTemplate(ctx, target, contentSID, vars, bot.MessagingServiceSID)
		if err == nil {
			slog.Info("branch notified via template", "target", target, "sid", sid)
			return true, target
		}
		slog.Warn("template notification failed, falling back to freeform", "target", target, "error", err)
	}

	sid, err := t.notify.SendWhatsApp(ctx, target, t.summary(servicio, vehiculo, cliente, estado), bot.PhoneNumber)
	if err != nil {
		slog.Error("branch notification failed", "target", target, "error", err)
		return false, ""
	}
	slog.Info("branch notified", "target", target, "sid", sid)
	return true, target
}

func (t *ExtractTool) summary(servicio, vehiculo, cliente map[string]interface{}, estado string) string {
	parts := []string{
		"*NUEVO SERVICIO*",
		"",
		"*Servicio:*",
		"   Comuna: " + orNA(field(servicio, "comuna")),
		"",
		"*Vehículo:*",
		"   Marca: " + orNA(field(vehiculo, "marca")),
		"   Modelo: " + orNA(field(vehiculo, "modelo")),
		"   Año: " + orNA(field(vehiculo, "anio")),
		"   Combustible: " + orNA(field(vehiculo, "combustible")),
		"   Start-Stop: " + orNA(field(vehiculo, "start_stop")),
	}
	if field(cliente, "nombre") != "" {
		parts = append(parts,
			"",
			"*Cliente:*",
			"   Nombre: "+strings.TrimSpace(field(cliente, "nombre")+" "+field(cliente, "apellido")),
			"   RUT: "+orNA(field(cliente, "rut")),
			"   Teléfono: "+orNA(field(cliente, "telefono")),
			"   Email: "+orNA(field(cliente, "correo")),
			"   Dirección: "+orNA(field(cliente, "direccion")),
			"   Referencia: "+orNA(field(cliente, "referencia")),
		)
	}
	parts = append(parts, "", "*Estado:* "+estado)
	return strings.Join(parts, "\n")
}

func section(args map[string]interface{}, key string) map[string]interface{} {
	if m, ok := args[key].(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{}
}

func field(m map[string]interface{}, key string) string {
	v, _ := m[key].(string)
	return v
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
