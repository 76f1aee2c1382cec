package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/jafarshop/opsapi/internal/domain"
	"github.com/jafarshop/opsapi/pkg/errors"
)

type whatsAppTemplateRepository struct {
	db     dbtx
	logger *zap.Logger
}

// NewWhatsAppTemplateRepository creates a new messaging template repository
func NewWhatsAppTemplateRepository(db dbtx, logger *zap.Logger) *whatsAppTemplateRepository {
	return &whatsAppTemplateRepository{db: db, logger: logger}
}

const templateColumns = `id, shop, name, language_code, event, body_params, active, created_at, updated_at`

func (r *whatsAppTemplateRepository) Create(ctx context.Context, t *domain.WhatsAppTemplate) error {
	now := time.Now()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	_, err := r.db.ExecContext(ctx, `INSERT INTO whatsapp_templates (`+templateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`, templateArgs(t)...)
	if err != nil {
		if isUniqueViolation(err) {
			return &errors.ErrConflict{Message: "template already exists: " + t.Name}
		}
		r.logger.Error("Failed to create WhatsApp template", zap.Error(err))
		return err
	}
	return nil
}

func (r *whatsAppTemplateRepository) Update(ctx context.Context, t *domain.WhatsAppTemplate) error {
	t.UpdatedAt = time.Now()
	res, err := r.db.ExecContext(ctx, `
		UPDATE whatsapp_templates SET
			name = $3, language_code = $4, event = $5, body_params = $6, active = $7,
			created_at = $8, updated_at = $9
		WHERE id = $1 AND shop = $2
	`, templateArgs(t)...)
	if err != nil {
		if isUniqueViolation(err) {
			return &errors.ErrConflict{Message: "template already exists: " + t.Name}
		}
		r.logger.Error("Failed to update WhatsApp template", zap.Error(err))
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &errors.ErrNotFound{Resource: "whatsapp_template", ID: t.ID.String()}
	}
	return nil
}

func (r *whatsAppTemplateRepository) GetByID(ctx context.Context, shop string, id uuid.UUID) (*domain.WhatsAppTemplate, error) {
	return r.getOne(ctx, id.String(), `shop = $1 AND id = $2`, shop, id)
}

func (r *whatsAppTemplateRepository) GetByName(ctx context.Context, shop, name string) (*domain.WhatsAppTemplate, error) {
	return r.getOne(ctx, name, `shop = $1 AND name = $2`, shop, name)
}

func (r *whatsAppTemplateRepository) getOne(ctx context.Context, ref, where string, args ...interface{}) (*domain.WhatsAppTemplate, error) {
	t, err := scanTemplate(r.db.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM whatsapp_templates WHERE `+where, args...))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "whatsapp_template", ID: ref}
	}
	if err != nil {
		r.logger.Error("Failed to get WhatsApp template", zap.Error(err))
		return nil, err
	}
	return t, nil
}

func (r *whatsAppTemplateRepository) List(ctx context.Context, shop string) ([]*domain.WhatsAppTemplate, error) {
	return r.list(ctx, `shop = $1`, shop)
}

func (r *whatsAppTemplateRepository) ListActiveByEvent(ctx context.Context, shop string, event domain.TemplateEvent) ([]*domain.WhatsAppTemplate, error) {
	return r.list(ctx, `shop = $1 AND event = $2 AND active`, shop, event)
}

func (r *whatsAppTemplateRepository) list(ctx context.Context, where string, args ...interface{}) ([]*domain.WhatsAppTemplate, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+templateColumns+` FROM whatsapp_templates WHERE `+where+` ORDER BY name`, args...)
	if err != nil {
		r.logger.Error("Failed to list WhatsApp templates", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var out []*domain.WhatsAppTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *whatsAppTemplateRepository) Delete(ctx context.Context, shop string, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM whatsapp_templates WHERE shop = $1 AND id = $2`, shop, id)
	if err != nil {
		r.logger.Error("Failed to delete WhatsApp template", zap.Error(err))
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &errors.ErrNotFound{Resource: "whatsapp_template", ID: id.String()}
	}
	return nil
}

func templateArgs(t *domain.WhatsAppTemplate) []interface{} {
	params := t.BodyParams
	if params == nil {
		params = []string{}
	}
	return []interface{}{
		t.ID, t.Shop, t.Name, t.LanguageCode, t.Event, pq.Array(params), t.Active, t.CreatedAt, t.UpdatedAt,
	}
}

func scanTemplate(row rowScanner) (*domain.WhatsAppTemplate, error) {
	var t domain.WhatsAppTemplate
	var params pq.StringArray
	if err := row.Scan(&t.ID, &t.Shop, &t.Name, &t.LanguageCode, &t.Event, &params, &t.Active, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.BodyParams = []string(params)
	return &t, nil
}
