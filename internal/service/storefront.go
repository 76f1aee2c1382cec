package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/opsapi/internal/domain"
	"github.com/jafarshop/opsapi/internal/lock"
	"github.com/jafarshop/opsapi/internal/phone"
	"github.com/jafarshop/opsapi/internal/repository"
	"github.com/jafarshop/opsapi/internal/shopify"
	"github.com/jafarshop/opsapi/pkg/errors"
)

// Tags put on orders placed through the storefront checkout
const (
	TagProxyCheckout = "proxy_checkout"
	TagCOD           = "cod"
	TagPrepaid       = "prepaid"
)

const (
	createdByCustomer   = "customer"
	returnStatusPending = "requested"
)

type storefrontService struct {
	repos        *repository.Repositories
	shopify      shopify.Factory
	orders       *orderService
	locker       lock.Locker
	sessionTTL   time.Duration
	customerTTL  time.Duration
	returnWindow time.Duration
	region       string
	logger       *zap.Logger
	now          func() time.Time
}

// NewStorefrontService creates the App Proxy checkout and returns service
func NewStorefrontService(d Deps, orders *orderService) *storefrontService {
	s := &storefrontService{
		repos:        d.Repos,
		shopify:      d.Shopify,
		orders:       orders,
		locker:       d.Locker,
		sessionTTL:   30 * time.Minute,
		customerTTL:  90 * 24 * time.Hour,
		returnWindow: 7 * 24 * time.Hour,
		logger:       d.Logger,
		now:          d.Now,
	}
	if d.Config != nil {
		s.region = d.Config.DefaultPhoneRegion
		if d.Config.Checkout.SessionTTL > 0 {
			s.sessionTTL = d.Config.Checkout.SessionTTL
		}
		if d.Config.Checkout.CustomerTTL > 0 {
			s.customerTTL = d.Config.Checkout.CustomerTTL
		}
		if d.Config.Checkout.ReturnWindow > 0 {
			s.returnWindow = d.Config.Checkout.ReturnWindow
		}
	}
	return s
}

// Checkout sessions

func (s *storefrontService) CreateSession(ctx context.Context, shop string, req CreateSessionRequest) (*domain.CheckoutSession, error) {
	if len(req.Items) == 0 {
		return nil, errors.Validation("at least one item is required")
	}
	items := make([]domain.CheckoutItem, 0, len(req.Items))
	for i, it := range req.Items {
		if it.VariantID <= 0 || it.Quantity < 1 {
			return nil, &errors.ErrValidation{
				Message: "invalid item",
				Fields:  map[string]string{fmt.Sprintf("items[%d]", i): "variantId and quantity >= 1 are required"},
			}
		}
		if it.Price.IsNegative() {
			return nil, &errors.ErrValidation{
				Message: "invalid item",
				Fields:  map[string]string{fmt.Sprintf("items[%d].price", i): "must be >= 0"},
			}
		}
		items = append(items, domain.CheckoutItem{VariantID: it.VariantID, Quantity: it.Quantity, Title: it.Title, Price: it.Price})
	}
	session := &domain.CheckoutSession{
		Shop:      shop,
		Items:     items,
		Status:    domain.CheckoutOpen,
		ExpiresAt: s.now().Add(s.sessionTTL),
	}
	if err := s.repos.CheckoutSession.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// GetSession returns ErrGone once the session has expired
func (s *storefrontService) GetSession(ctx context.Context, shop string, id uuid.UUID) (*domain.CheckoutSession, error) {
	session, err := s.repos.CheckoutSession.GetByID(ctx, shop, id)
	if err != nil {
		return nil, err
	}
	if session.IsExpired(s.now()) {
		return nil, &errors.ErrGone{Resource: "checkout session", ID: id.String()}
	}
	return session, nil
}

// Identify attaches a customer to the session, keyed by (shop, phone). The customer's
// expiry rolls forward on every visit; an expired customer starts over.
func (s *storefrontService) Identify(ctx context.Context, shop string, sessionID uuid.UUID, req IdentifyRequest) (*domain.CheckoutCustomer, error) {
	session, err := s.GetSession(ctx, shop, sessionID)
	if err != nil {
		return nil, err
	}
	e164, err := phone.Normalize(req.Phone, s.region)
	if err != nil {
		return nil, &errors.ErrValidation{Message: "invalid phone number", Fields: map[string]string{"phone": err.Error()}}
	}

	now := s.now()
	customer, err := s.repos.CheckoutCustomer.GetByPhone(ctx, shop, e164)
	if err != nil && !isNotFound(err) {
		return nil, err
	}
	if customer == nil || !now.Before(customer.ExpiresAt) {
		customer = &domain.CheckoutCustomer{Shop: shop, Phone: e164}
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		customer.Name = name
	}
	if email := strings.TrimSpace(req.Email); email != "" {
		customer.Email = email
	}
	customer.ExpiresAt = now.Add(s.customerTTL)
	if err := s.repos.CheckoutCustomer.Upsert(ctx, customer); err != nil {
		return nil, err
	}

	session.Phone = e164
	if err := s.repos.CheckoutSession.Update(ctx, session); err != nil {
		return nil, err
	}
	return customer, nil
}

func (s *storefrontService) sessionCustomer(ctx context.Context, shop string, sessionID uuid.UUID) (*domain.CheckoutSession, *domain.CheckoutCustomer, error) {
	session, err := s.GetSession(ctx, shop, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if session.Phone == "" {
		return session, nil, errors.Validation("identify the customer first")
	}
	customer, err := s.repos.CheckoutCustomer.GetByPhone(ctx, shop, session.Phone)
	if isNotFound(err) || (err == nil && !s.now().Before(customer.ExpiresAt)) {
		return session, nil, errors.Validation("identify the customer first")
	}
	if err != nil {
		return nil, nil, err
	}
	return session, customer, nil
}

func (s *storefrontService) ListAddresses(ctx context.Context, shop string, sessionID uuid.UUID) ([]domain.CustomerAddress, error) {
	_, customer, err := s.sessionCustomer(ctx, shop, sessionID)
	if err != nil {
		return nil, err
	}
	return customer.Addresses, nil
}

// AddAddress saves an address for the session's customer. The first address becomes the default.
func (s *storefrontService) AddAddress(ctx context.Context, shop string, sessionID uuid.UUID, req AddressRequest) (*domain.CustomerAddress, error) {
	_, customer, err := s.sessionCustomer(ctx, shop, sessionID)
	if err != nil {
		return nil, err
	}
	addr := domain.CustomerAddress{
		ID: uuid.NewString(),
		Address: domain.Address{
			Name:        strings.TrimSpace(req.Name),
			Phone:       strings.TrimSpace(req.Phone),
			Address1:    strings.TrimSpace(req.Address1),
			Address2:    strings.TrimSpace(req.Address2),
			City:        strings.TrimSpace(req.City),
			Province:    strings.TrimSpace(req.Province),
			Zip:         strings.TrimSpace(req.Zip),
			Country:     strings.TrimSpace(req.Country),
			CountryCode: strings.ToUpper(strings.TrimSpace(req.CountryCode)),
		},
		IsDefault: req.IsDefault || len(customer.Addresses) == 0,
	}
	if addr.Phone == "" {
		addr.Phone = customer.Phone
	}
	if addr.CountryCode == "" {
		addr.CountryCode = strings.ToUpper(firstNonEmpty(s.region, "IN"))
	}
	if addr.IsDefault {
		for i := range customer.Addresses {
			customer.Addresses[i].IsDefault = false
		}
	}
	customer.Addresses = append(customer.Addresses, addr)
	customer.ExpiresAt = s.now().Add(s.customerTTL)
	if err := s.repos.CheckoutCustomer.Upsert(ctx, customer); err != nil {
		return nil, err
	}
	return &addr, nil
}

// PlaceOrder turns the session into a Shopify order through a completed draft order.
// Placing an already placed session returns it unchanged.
func (s *storefrontService) PlaceOrder(ctx context.Context, store *domain.Store, sessionID uuid.UUID, req PlaceOrderRequest) (*domain.CheckoutSession, error) {
	method := strings.ToLower(req.PaymentMethod)
	if method != TagCOD && method != TagPrepaid {
		return nil, errors.Validation("paymentMethod must be cod or prepaid")
	}

	release, err := s.locker.Obtain(ctx, "lock:checkout:"+sessionID.String(), lock.DefaultTTL)
	switch {
	case stderrors.Is(err, lock.ErrNotObtained):
		return nil, &errors.ErrConflict{Message: "order placement already in progress"}
	case err != nil:
		s.logger.Warn("Lock backend unavailable, placing order without lock", zap.Error(err))
		release = func() {}
	}
	defer release()

	session, customer, err := s.sessionCustomer(ctx, store.Shop, sessionID)
	if session != nil && session.Status == domain.CheckoutCompleted {
		return session, nil
	}
	if err != nil {
		return nil, err
	}
	addr, ok := customer.FindAddress(req.AddressID)
	if !ok {
		return nil, &errors.ErrValidation{Message: "unknown address", Fields: map[string]string{"addressId": "not found for this customer"}}
	}

	input := draftOrderInput(session, customer, addr, method)
	admin := s.shopify.ForStore(store)
	draft, err := admin.CreateDraftOrder(ctx, input)
	if err != nil {
		return nil, &errors.ErrUpstream{Service: "shopify", Err: err}
	}
	placed, err := admin.CompleteDraftOrder(ctx, draft.ID, true)
	if err != nil {
		return nil, &errors.ErrUpstream{Service: "shopify", Err: err}
	}

	session.Status = domain.CheckoutCompleted
	session.PaymentMethod = method
	session.ShopifyOrderID = strconv.FormatInt(placed.ID, 10)
	session.OrderName = placed.Name
	if err := s.repos.CheckoutSession.Update(ctx, session); err != nil {
		return nil, err
	}
	s.logger.Info("Storefront order placed",
		zap.String("shop", store.Shop),
		zap.String("session_id", session.ID.String()),
		zap.String("order", placed.Name),
		zap.String("payment_method", method),
	)
	return session, nil
}

func draftOrderInput(session *domain.CheckoutSession, customer *domain.CheckoutCustomer, addr *domain.CustomerAddress, method string) shopify.DraftOrderInput {
	input := shopify.DraftOrderInput{
		Tags: []string{TagProxyCheckout, method},
		CustomAttributes: []shopify.DraftOrderAttributeInput{
			{Key: "checkout_session", Value: session.ID.String()},
			{Key: "payment_method", Value: method},
		},
	}
	for _, it := range session.Items {
		gid := shopify.VariantGID(it.VariantID)
		input.LineItems = append(input.LineItems, shopify.DraftOrderLineItemInput{VariantID: &gid, Quantity: it.Quantity})
	}
	if customer.Email != "" {
		email := customer.Email
		input.Email = &email
	}
	phoneNumber := customer.Phone
	input.Phone = &phoneNumber

	first, last := splitName(firstNonEmpty(addr.Name, customer.Name))
	shipping := &shopify.DraftOrderAddressInput{
		FirstName:   first,
		Address1:    addr.Address1,
		City:        addr.City,
		Zip:         addr.Zip,
		CountryCode: addr.CountryCode,
	}
	if last != "" {
		shipping.LastName = &last
	}
	if addr.Address2 != "" {
		a2 := addr.Address2
		shipping.Address2 = &a2
	}
	if addr.Province != "" {
		province := addr.Province
		shipping.Province = &province
	}
	if p := firstNonEmpty(addr.Phone, customer.Phone); p != "" {
		shipping.Phone = &p
	}
	input.ShippingAddress = shipping
	return input
}

func splitName(name string) (string, string) {
	name = strings.TrimSpace(name)
	if i := strings.LastIndex(name, " "); i > 0 {
		return strings.TrimSpace(name[:i]), strings.TrimSpace(name[i+1:])
	}
	return name, ""
}

// Returns

// ReturnEligibility is the answer to a return lookup
type ReturnEligibility struct {
	Order     *domain.Order
	Eligible  bool
	Reason    string
	Returned  map[int64]int // quantity already requested per line item
	ExpiresAt *time.Time
}

// LookupReturn finds the order by name and phone. A phone mismatch looks like a missing order.
func (s *storefrontService) LookupReturn(ctx context.Context, shop string, req ReturnLookupRequest) (*ReturnEligibility, error) {
	order, err := s.repos.Order.GetByName(ctx, shop, req.OrderName)
	if err != nil {
		return nil, err
	}
	phones := []string{order.Phone}
	if order.ShippingAddress != nil {
		phones = append(phones, order.ShippingAddress.Phone)
	}
	matched := false
	for _, p := range phones {
		if p != "" && phone.Same(p, req.Phone, s.region) {
			matched = true
			break
		}
	}
	if !matched {
		return nil, &errors.ErrNotFound{Resource: "order", ID: req.OrderName}
	}

	out := &ReturnEligibility{Order: order, Returned: map[int64]int{}}
	previous, err := s.repos.ReturnRequest.ListByOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	for _, r := range previous {
		for _, it := range r.Items {
			out.Returned[it.LineItemID] += it.Quantity
		}
	}

	remaining := 0
	for _, li := range order.LineItems {
		remaining += li.Quantity - out.Returned[li.ShopifyLineItemID]
	}

	switch {
	case order.CustomStatus != domain.StatusDelivered && order.CustomStatus != domain.StatusDTORequested:
		out.Reason = fmt.Sprintf("order is %s", order.CustomStatus)
	case remaining <= 0:
		out.Reason = "all items already requested for return"
	case order.DeliveredAt == nil:
		out.Reason = "delivery date unknown"
	default:
		deadline := order.DeliveredAt.Add(s.returnWindow)
		out.ExpiresAt = &deadline
		if s.now().After(deadline) {
			out.Reason = "return window has closed"
		} else {
			out.Eligible = true
		}
	}
	return out, nil
}

// CreateReturn records a return request and moves the order to DTO Requested.
// Further partial returns are accepted while the order is DTO Requested.
func (s *storefrontService) CreateReturn(ctx context.Context, store *domain.Store, req CreateReturnRequest) (*domain.ReturnRequest, error) {
	elig, err := s.LookupReturn(ctx, store.Shop, ReturnLookupRequest{OrderName: req.OrderName, Phone: req.Phone})
	if err != nil {
		return nil, err
	}
	if !elig.Eligible {
		return nil, errors.Validation("order %s is not eligible for return: %s", elig.Order.Name, elig.Reason)
	}
	order := elig.Order

	lines := make(map[int64]domain.OrderLineItem, len(order.LineItems))
	for _, li := range order.LineItems {
		lines[li.ShopifyLineItemID] = li
	}
	fields := map[string]string{}
	seen := map[int64]bool{}
	items := make([]domain.ReturnItem, 0, len(req.Items))
	for i, it := range req.Items {
		key := fmt.Sprintf("items[%d]", i)
		li, ok := lines[it.LineItemID]
		switch {
		case !ok:
			fields[key+".lineItemId"] = "not on this order"
			continue
		case seen[it.LineItemID]:
			fields[key+".lineItemId"] = "duplicate line item"
			continue
		case it.Quantity < 1:
			fields[key+".quantity"] = "must be >= 1"
			continue
		case it.Quantity > li.Quantity-elig.Returned[it.LineItemID]:
			fields[key+".quantity"] = fmt.Sprintf("at most %d can be returned", li.Quantity-elig.Returned[it.LineItemID])
			continue
		}
		seen[it.LineItemID] = true
		items = append(items, domain.ReturnItem{LineItemID: it.LineItemID, SKU: li.SKU, Title: li.Title, Quantity: it.Quantity})
	}
	if len(fields) > 0 {
		return nil, &errors.ErrValidation{Message: "invalid return items", Fields: fields}
	}

	e164, err := phone.Normalize(req.Phone, s.region)
	if err != nil {
		e164 = req.Phone
	}
	ret := &domain.ReturnRequest{
		Shop:      store.Shop,
		OrderID:   order.ID,
		OrderName: order.Name,
		Phone:     e164,
		Items:     items,
		Reason:    strings.TrimSpace(req.Reason),
		Status:    returnStatusPending,
	}
	var change *statusChange
	err = s.repos.Tx.WithinTx(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		current, err := repos.Order.GetByID(ctx, store.Shop, order.ID)
		if err != nil {
			return err
		}
		if err := repos.ReturnRequest.Create(ctx, ret); err != nil {
			return err
		}
		if current.CustomStatus == domain.StatusDTORequested {
			return nil
		}
		change, err = s.orders.applyStatus(ctx, repos, store, current, domain.StatusDTORequested, "Return requested: "+ret.Reason, createdByCustomer)
		return err
	})
	if err != nil {
		return nil, err
	}
	if change != nil {
		s.orders.afterStatusChange(ctx, store, change)
	}
	s.logger.Info("Return requested", zap.String("shop", store.Shop), zap.String("order", order.Name), zap.Int("items", len(items)))
	return ret, nil
}
