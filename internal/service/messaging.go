package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/opsapi/internal/courier"
	"github.com/jafarshop/opsapi/internal/domain"
	"github.com/jafarshop/opsapi/internal/phone"
	"github.com/jafarshop/opsapi/internal/repository"
	"github.com/jafarshop/opsapi/internal/whatsapp"
	"github.com/jafarshop/opsapi/pkg/errors"
)

// Placeholders a template body parameter may reference
const (
	ParamCustomerName = "customer_name"
	ParamOrderName    = "order_name"
	ParamTotalPrice   = "total_price"
	ParamAWB          = "awb"
	ParamCourier      = "courier"
	ParamTrackingURL  = "tracking_url"
	ParamStoreName    = "store_name"
)

type messagingService struct {
	repos  *repository.Repositories
	sender whatsapp.Sender
	region string
	logger *zap.Logger
}

// NewMessagingService creates the WhatsApp template service
func NewMessagingService(d Deps) *messagingService {
	region := ""
	if d.Config != nil {
		region = d.Config.DefaultPhoneRegion
	}
	return &messagingService{repos: d.Repos, sender: d.WhatsApp, region: region, logger: d.Logger}
}

func (s *messagingService) CreateTemplate(ctx context.Context, shop string, req TemplateRequest) (*domain.WhatsAppTemplate, error) {
	if !req.Event.IsValid() {
		return nil, errors.Validation("unknown template event %q", req.Event)
	}
	tpl := &domain.WhatsAppTemplate{
		Shop:         shop,
		Name:         strings.TrimSpace(req.Name),
		LanguageCode: req.LanguageCode,
		Event:        req.Event,
		BodyParams:   req.BodyParams,
		Active:       true,
	}
	if req.Active != nil {
		tpl.Active = *req.Active
	}
	if tpl.LanguageCode == "" {
		tpl.LanguageCode = "en"
	}
	if err := s.repos.WhatsAppTemplate.Create(ctx, tpl); err != nil {
		return nil, err
	}
	return tpl, nil
}

func (s *messagingService) UpdateTemplate(ctx context.Context, shop string, id uuid.UUID, req TemplateRequest) (*domain.WhatsAppTemplate, error) {
	if !req.Event.IsValid() {
		return nil, errors.Validation("unknown template event %q", req.Event)
	}
	tpl, err := s.repos.WhatsAppTemplate.GetByID(ctx, shop, id)
	if err != nil {
		return nil, err
	}
	tpl.Name = strings.TrimSpace(req.Name)
	tpl.Event = req.Event
	tpl.BodyParams = req.BodyParams
	if req.LanguageCode != "" {
		tpl.LanguageCode = req.LanguageCode
	}
	if req.Active != nil {
		tpl.Active = *req.Active
	}
	if err := s.repos.WhatsAppTemplate.Update(ctx, tpl); err != nil {
		return nil, err
	}
	return tpl, nil
}

func (s *messagingService) GetTemplate(ctx context.Context, shop string, id uuid.UUID) (*domain.WhatsAppTemplate, error) {
	return s.repos.WhatsAppTemplate.GetByID(ctx, shop, id)
}

func (s *messagingService) ListTemplates(ctx context.Context, shop string) ([]*domain.WhatsAppTemplate, error) {
	return s.repos.WhatsAppTemplate.List(ctx, shop)
}

func (s *messagingService) DeleteTemplate(ctx context.Context, shop string, id uuid.UUID) error {
	return s.repos.WhatsAppTemplate.Delete(ctx, shop, id)
}

// SendManual sends one template to each order. Orders that cannot be messaged
// are reported in the results; only setup problems fail the whole call.
func (s *messagingService) SendManual(ctx context.Context, store *domain.Store, req SendTemplateRequest) ([]SendResult, error) {
	apiKey, err := interaktKey(store)
	if err != nil {
		return nil, err
	}
	tpl, err := s.repos.WhatsAppTemplate.GetByID(ctx, store.Shop, req.TemplateID)
	if err != nil {
		return nil, err
	}
	if !tpl.Active {
		return nil, errors.Validation("template %s is inactive", tpl.Name)
	}

	results := make([]SendResult, 0, len(req.OrderIDs))
	for _, id := range req.OrderIDs {
		res := SendResult{OrderID: id}
		order, err := s.repos.Order.GetByID(ctx, store.Shop, id)
		if err != nil {
			res.Error = err.Error()
			results = append(results, res)
			continue
		}
		messageID, err := s.send(ctx, apiKey, store, tpl, order)
		if err != nil {
			res.Error = err.Error()
		} else {
			res.OK = true
			res.MessageID = messageID
		}
		results = append(results, res)
	}
	return results, nil
}

// SendForEvent sends every active template bound to event. Failures are logged only.
func (s *messagingService) SendForEvent(ctx context.Context, store *domain.Store, order *domain.Order, event domain.TemplateEvent) {
	apiKey, err := interaktKey(store)
	if err != nil {
		return
	}
	templates, err := s.repos.WhatsAppTemplate.ListActiveByEvent(ctx, store.Shop, event)
	if err != nil {
		s.logger.Error("Failed to load templates", zap.String("shop", store.Shop), zap.String("event", string(event)), zap.Error(err))
		return
	}
	for _, tpl := range templates {
		messageID, err := s.send(ctx, apiKey, store, tpl, order)
		if err != nil {
			s.logger.Warn("WhatsApp template send failed",
				zap.String("shop", store.Shop),
				zap.String("order", order.Name),
				zap.String("template", tpl.Name),
				zap.Error(err),
			)
			continue
		}
		s.logger.Info("WhatsApp template sent",
			zap.String("shop", store.Shop),
			zap.String("order", order.Name),
			zap.String("template", tpl.Name),
			zap.String("message_id", messageID),
		)
	}
}

func (s *messagingService) send(ctx context.Context, apiKey string, store *domain.Store, tpl *domain.WhatsAppTemplate, order *domain.Order) (string, error) {
	to, err := s.recipient(order)
	if err != nil {
		return "", err
	}
	messageID, err := s.sender.SendTemplate(ctx, apiKey, whatsapp.TemplateMessage{
		Phone:        to,
		TemplateName: tpl.Name,
		LanguageCode: tpl.LanguageCode,
		BodyValues:   ResolveParams(tpl.BodyParams, store, order),
		CallbackData: order.ID.String(),
	})
	if err != nil {
		return "", &errors.ErrUpstream{Service: "interakt", Err: err}
	}
	return messageID, nil
}

func (s *messagingService) recipient(order *domain.Order) (string, error) {
	candidates := []string{order.Phone}
	if order.ShippingAddress != nil {
		candidates = append(candidates, order.ShippingAddress.Phone)
	}
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if e164, err := phone.Normalize(c, s.region); err == nil {
			return e164, nil
		}
	}
	return "", errors.Validation("order %s has no valid phone number", order.Name)
}

// ResolveParams fills template body parameters from the order. Parameters may be
// written bare or wrapped in {{ }}; anything that is not a known placeholder is sent as is.
func ResolveParams(params []string, store *domain.Store, order *domain.Order) []string {
	out := make([]string, 0, len(params))
	for _, p := range params {
		token := strings.TrimSpace(p)
		token = strings.TrimSuffix(strings.TrimPrefix(token, "{{"), "}}")
		token = strings.ToLower(strings.TrimSpace(token))
		switch token {
		case ParamCustomerName:
			name := order.CustomerName
			if name == "" && order.ShippingAddress != nil {
				name = order.ShippingAddress.Name
			}
			out = append(out, name)
		case ParamOrderName:
			out = append(out, order.Name)
		case ParamTotalPrice:
			out = append(out, strings.TrimSpace(order.Currency+" "+order.TotalPrice.StringFixed(2)))
		case ParamAWB:
			out = append(out, order.AWB)
		case ParamCourier:
			out = append(out, order.Courier)
		case ParamTrackingURL:
			out = append(out, courier.TrackingURL(order.Courier, order.AWB))
		case ParamStoreName:
			out = append(out, firstNonEmpty(store.Name, store.Shop))
		default:
			out = append(out, p)
		}
	}
	return out
}

func interaktKey(store *domain.Store) (string, error) {
	if store.Integrations.Interakt == nil || store.Integrations.Interakt.APIKey == "" {
		return "", errors.Validation("WhatsApp is not configured for store %s", store.Shop)
	}
	return store.Integrations.Interakt.APIKey, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
