package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Admin is the subset of the Admin API the service drives
type Admin interface {
	CreateDraftOrder(ctx context.Context, input DraftOrderInput) (*DraftOrder, error)
	CompleteDraftOrder(ctx context.Context, draftOrderID string, paymentPending bool) (*PlacedOrder, error)
	CancelOrder(ctx context.Context, orderID int64, reason string) error
	FulfillOrder(ctx context.Context, orderID int64, tracking FulfillmentTrackingInput) error
}

type DraftOrder struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PlacedOrder is the order created by completing a draft
type PlacedOrder struct {
	ID   int64
	GID  string
	Name string
}

// OrderGID formats a numeric order id as a GraphQL global id
func OrderGID(id int64) string {
	return fmt.Sprintf("gid://shopify/Order/%d", id)
}

// VariantGID formats a numeric variant id as a GraphQL global id
func VariantGID(id int64) string {
	return fmt.Sprintf("gid://shopify/ProductVariant/%d", id)
}

// ParseGID returns the numeric tail of a global id ("gid://shopify/Order/123" -> 123)
func ParseGID(gid string) (int64, error) {
	i := strings.LastIndex(gid, "/")
	return strconv.ParseInt(gid[i+1:], 10, 64)
}

func (c *Client) CreateDraftOrder(ctx context.Context, input DraftOrderInput) (*DraftOrder, error) {
	resp, err := c.Execute(ctx, DraftOrderCreateMutation, map[string]interface{}{"input": input})
	if err != nil {
		return nil, err
	}
	var data struct {
		DraftOrderCreate struct {
			DraftOrder *DraftOrder `json:"draftOrder"`
			UserErrors []UserError `json:"userErrors"`
		} `json:"draftOrderCreate"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to decode draftOrderCreate: %w", err)
	}
	if err := userErrorsToError("draftOrderCreate", data.DraftOrderCreate.UserErrors); err != nil {
		return nil, err
	}
	if data.DraftOrderCreate.DraftOrder == nil {
		return nil, fmt.Errorf("draftOrderCreate: no draft order returned")
	}
	return data.DraftOrderCreate.DraftOrder, nil
}

func (c *Client) CompleteDraftOrder(ctx context.Context, draftOrderID string, paymentPending bool) (*PlacedOrder, error) {
	resp, err := c.Execute(ctx, DraftOrderCompleteMutation, map[string]interface{}{
		"id":             draftOrderID,
		"paymentPending": paymentPending,
	})
	if err != nil {
		return nil, err
	}
	var data struct {
		DraftOrderComplete struct {
			DraftOrder *struct {
				Order *struct {
					ID   string `json:"id"`
					Name string `json:"name"`
				} `json:"order"`
			} `json:"draftOrder"`
			UserErrors []UserError `json:"userErrors"`
		} `json:"draftOrderComplete"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to decode draftOrderComplete: %w", err)
	}
	if err := userErrorsToError("draftOrderComplete", data.DraftOrderComplete.UserErrors); err != nil {
		return nil, err
	}
	draft := data.DraftOrderComplete.DraftOrder
	if draft == nil || draft.Order == nil {
		return nil, fmt.Errorf("draftOrderComplete: no order returned")
	}
	id, err := ParseGID(draft.Order.ID)
	if err != nil {
		return nil, fmt.Errorf("draftOrderComplete: bad order id %q: %w", draft.Order.ID, err)
	}
	return &PlacedOrder{ID: id, GID: draft.Order.ID, Name: draft.Order.Name}, nil
}

// CancelOrder cancels without refunding and restocks the items
func (c *Client) CancelOrder(ctx context.Context, orderID int64, reason string) error {
	if reason == "" {
		reason = "OTHER"
	}
	resp, err := c.Execute(ctx, OrderCancelMutation, map[string]interface{}{
		"orderId":        OrderGID(orderID),
		"reason":         strings.ToUpper(reason),
		"refund":         false,
		"restock":        true,
		"notifyCustomer": false,
	})
	if err != nil {
		return err
	}
	var data struct {
		OrderCancel struct {
			UserErrors []UserError `json:"orderCancelUserErrors"`
		} `json:"orderCancel"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return fmt.Errorf("failed to decode orderCancel: %w", err)
	}
	return userErrorsToError("orderCancel", data.OrderCancel.UserErrors)
}

// FulfillOrder fulfils every open fulfillment order of the order with one tracking number
func (c *Client) FulfillOrder(ctx context.Context, orderID int64, tracking FulfillmentTrackingInput) error {
	resp, err := c.Execute(ctx, FulfillmentOrdersQuery, map[string]interface{}{"id": OrderGID(orderID)})
	if err != nil {
		return err
	}
	var data struct {
		Order *struct {
			FulfillmentOrders struct {
				Nodes []struct {
					ID     string `json:"id"`
					Status string `json:"status"`
				} `json:"nodes"`
			} `json:"fulfillmentOrders"`
		} `json:"order"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return fmt.Errorf("failed to decode fulfillment orders: %w", err)
	}
	if data.Order == nil {
		return fmt.Errorf("order %d not found in shopify", orderID)
	}

	var open []FulfillmentOrderLineItems
	for _, fo := range data.Order.FulfillmentOrders.Nodes {
		if fo.Status == "OPEN" || fo.Status == "IN_PROGRESS" {
			open = append(open, FulfillmentOrderLineItems{FulfillmentOrderID: fo.ID})
		}
	}
	if len(open) == 0 {
		c.logger.Info("Order has no open fulfillment orders", zap.Int64("shopify_order_id", orderID))
		return nil
	}

	resp, err = c.Execute(ctx, FulfillmentCreateMutation, map[string]interface{}{
		"fulfillment": FulfillmentInput{
			LineItemsByFulfillmentOrder: open,
			TrackingInfo:                &tracking,
			NotifyCustomer:              true,
		},
	})
	if err != nil {
		return err
	}
	var created struct {
		FulfillmentCreate struct {
			UserErrors []UserError `json:"userErrors"`
		} `json:"fulfillmentCreate"`
	}
	if err := json.Unmarshal(resp.Data, &created); err != nil {
		return fmt.Errorf("failed to decode fulfillmentCreate: %w", err)
	}
	return userErrorsToError("fulfillmentCreate", created.FulfillmentCreate.UserErrors)
}
