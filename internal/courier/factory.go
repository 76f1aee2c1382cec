package courier

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/jafarshop/opsapi/internal/config"
	"github.com/jafarshop/opsapi/internal/domain"
	"github.com/jafarshop/opsapi/pkg/errors"
)

// Factory builds a courier client from a store's saved credentials
type Factory interface {
	ForStore(store *domain.Store, name string) (Client, error)
}

type clientFactory struct {
	vendors config.VendorConfig
	logger  *zap.Logger
}

func NewFactory(vendors config.VendorConfig, logger *zap.Logger) Factory {
	return &clientFactory{vendors: vendors, logger: logger}
}

// ForStore falls back to the store's default courier when name is empty
func (f *clientFactory) ForStore(store *domain.Store, name string) (Client, error) {
	if name == "" {
		name = store.Integrations.DefaultCourier
	}
	if name == "" {
		return nil, errors.Validation("no courier selected and store %s has no default courier", store.Shop)
	}
	if !domain.IsSupportedCourier(name) {
		return nil, errors.Validation("unsupported courier %q", name)
	}
	creds, ok := store.Integrations.Couriers[name]
	if !ok || !creds.Enabled {
		return nil, errors.Validation("courier %s is not configured for store %s", name, store.Shop)
	}
	if err := ValidateCredentials(name, creds); err != nil {
		return nil, err
	}

	logger := f.logger.With(zap.String("courier", name), zap.String("shop", store.Shop))
	switch name {
	case domain.CourierDelhivery:
		return NewDelhivery(f.vendors.DelhiveryBaseURL, creds, logger), nil
	case domain.CourierShiprocket:
		return NewShiprocket(f.vendors.ShiprocketBaseURL, creds, logger), nil
	case domain.CourierXpressbees:
		return NewXpressbees(f.vendors.XpressbeesBaseURL, creds, logger), nil
	case domain.CourierBluedart:
		return NewBluedart(f.vendors.BluedartBaseURL, creds, logger), nil
	}
	return nil, fmt.Errorf("courier %s has no client", name)
}

// ValidateCredentials checks the fields each courier needs
func ValidateCredentials(name string, c domain.CourierCredentials) error {
	missing := map[string]string{}
	switch name {
	case domain.CourierDelhivery:
		if c.Token == "" {
			missing["token"] = "required"
		}
		if c.PickupLocation == "" {
			missing["pickupLocation"] = "required"
		}
	case domain.CourierShiprocket:
		if c.Username == "" {
			missing["username"] = "required"
		}
		if c.Password == "" {
			missing["password"] = "required"
		}
		if c.PickupLocation == "" {
			missing["pickupLocation"] = "required"
		}
	case domain.CourierXpressbees:
		if c.Username == "" {
			missing["username"] = "required"
		}
		if c.Password == "" {
			missing["password"] = "required"
		}
	case domain.CourierBluedart:
		if c.ClientID == "" {
			missing["clientId"] = "required"
		}
		if c.ClientSecret == "" {
			missing["clientSecret"] = "required"
		}
		if c.LoginID == "" {
			missing["loginId"] = "required"
		}
	default:
		return errors.Validation("unsupported courier %q", name)
	}
	if len(missing) > 0 {
		return &errors.ErrValidation{Message: fmt.Sprintf("incomplete %s credentials", name), Fields: missing}
	}
	return nil
}

// Mask returns credentials safe to show in the dashboard
func Mask(c domain.CourierCredentials) domain.CourierCredentials {
	return domain.CourierCredentials{
		Token:          maskSecret(c.Token),
		Username:       c.Username,
		Password:       maskSecret(c.Password),
		ClientID:       c.ClientID,
		ClientSecret:   maskSecret(c.ClientSecret),
		LoginID:        c.LoginID,
		PickupLocation: c.PickupLocation,
		Enabled:        c.Enabled,
	}
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}
