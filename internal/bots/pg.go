package bots

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nextlevelbuilder/turnero/internal/crm"
)

const selectBase = `
SELECT id, client_id, name, phone_number, messaging_service_sid,
       assistant_id, assistant_model, assistant_instructions,
       assistant_functions, crm_actions, crm_token, metadata, status,
       created_at, updated_at
  FROM whatsapp_bots`

// PGRepository reads bot definitions from the shared Postgres registry. The
// table is owned by the CRM side; this repository is read-mostly and writes
// go through Put only in admin tooling.
type PGRepository struct {
	db *sql.DB
}

// NewPGRepository wraps an open database handle. The caller registers the
// pgx stdlib driver and owns the pool lifecycle.
func NewPGRepository(db *sql.DB) *PGRepository {
	return &PGRepository{db: db}
}

func (r *PGRepository) Get(ctx context.Context, id string) (*Bot, error) {
	row := r.db.QueryRowContext(ctx, selectBase+" WHERE id = $1", id)
	return scanBot(row)
}

func (r *PGRepository) FindByNumber(ctx context.Context, number string) (*Bot, error) {
	row := r.db.QueryRowContext(ctx, selectBase+" WHERE phone_number = $1", number)
	return scanBot(row)
}

func (r *PGRepository) List(ctx context.Context) ([]*Bot, error) {
	rows, err := r.db.QueryContext(ctx, selectBase+" ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("list bots: %w", err)
	}
	defer rows.Close()

	var out []*Bot
	for rows.Next() {
		bot, err := scanBot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, bot)
	}
	return out, rows.Err()
}

func (r *PGRepository) Put(ctx context.Context, bot *Bot) error {
	functions, _ := json.Marshal(bot.Functions)
	actions, _ := json.Marshal(bot.Actions)
	metadata, _ := json.Marshal(bot.Metadata)

	_, err := r.db.ExecContext(ctx, `
INSERT INTO whatsapp_bots (id, client_id, name, phone_number, messaging_service_sid,
       assistant_id, assistant_model, assistant_instructions,
       assistant_functions, crm_actions, crm_token, metadata, status,
       created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now(), now())
ON CONFLICT (id) DO UPDATE SET
       client_id = EXCLUDED.client_id,
       name = EXCLUDED.name,
       phone_number = EXCLUDED.phone_number,
       messaging_service_sid = EXCLUDED.messaging_service_sid,
       assistant_id = EXCLUDED.assistant_id,
       assistant_model = EXCLUDED.assistant_model,
       assistant_instructions = EXCLUDED.assistant_instructions,
       assistant_functions = EXCLUDED.assistant_functions,
       crm_actions = EXCLUDED.crm_actions,
       crm_token = EXCLUDED.crm_token,
       metadata = EXCLUDED.metadata,
       status = EXCLUDED.status,
       updated_at = now()`,
		bot.ID, bot.ClientID, bot.Name, bot.PhoneNumber, bot.MessagingServiceSID,
		bot.AssistantID, bot.Model, bot.Instructions,
		functions, actions, bot.CRMToken, metadata, bot.Status)
	if err != nil {
		return fmt.Errorf("upsert bot %s: %w", bot.ID, err)
	}
	return nil
}

func (r *PGRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM whatsapp_bots WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete bot %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanBot(row scanner) (*Bot, error) {
	var bot Bot
	var clientID, phone, serviceSID, assistantID, model, instructions, token, status sql.NullString
	var functions, actions, metadata []byte
	var created, updated sql.NullTime

	err := row.Scan(&bot.ID, &clientID, &bot.Name, &phone, &serviceSID,
		&assistantID, &model, &instructions,
		&functions, &actions, &token, &metadata, &status,
		&created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan bot: %w", err)
	}

	bot.ClientID = clientID.String
	bot.PhoneNumber = phone.String
	bot.MessagingServiceSID = serviceSID.String
	bot.AssistantID = assistantID.String
	bot.Model = model.String
	bot.Instructions = instructions.String
	bot.CRMToken = token.String
	bot.Status = status.String
	bot.CreatedAt = created.Time
	bot.UpdatedAt = updated.Time

	if len(functions) > 0 {
		if err := json.Unmarshal(functions, &bot.Functions); err != nil {
			return nil, fmt.Errorf("decode functions for bot %s: %w", bot.ID, err)
		}
	}
	if len(actions) > 0 {
		var templates []crm.ActionTemplate
		if err := json.Unmarshal(actions, &templates); err != nil {
			return nil, fmt.Errorf("decode actions for bot %s: %w", bot.ID, err)
		}
		bot.Actions = templates
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &bot.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata for bot %s: %w", bot.ID, err)
		}
	}
	return &bot, nil
}
