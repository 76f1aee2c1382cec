package shopify

// DraftOrderCreateMutation creates a draft order
const DraftOrderCreateMutation = `
mutation draftOrderCreate($input: DraftOrderInput!) {
  draftOrderCreate(input: $input) {
    draftOrder {
      id
      name
    }
    userErrors {
      field
      message
    }
  }
}
`

// DraftOrderCompleteMutation completes a draft order and converts it into an order.
// paymentPending leaves the order unpaid (cash on delivery).
const DraftOrderCompleteMutation = `
mutation draftOrderComplete($id: ID!, $paymentPending: Boolean) {
  draftOrderComplete(id: $id, paymentPending: $paymentPending) {
    draftOrder {
      id
      order {
        id
        name
      }
    }
    userErrors {
      field
      message
    }
  }
}
`

// OrderCancelMutation cancels an order; the work runs as a Shopify job
const OrderCancelMutation = `
mutation orderCancel($orderId: ID!, $reason: OrderCancelReason!, $refund: Boolean!, $restock: Boolean!, $notifyCustomer: Boolean) {
  orderCancel(orderId: $orderId, reason: $reason, refund: $refund, restock: $restock, notifyCustomer: $notifyCustomer) {
    job {
      id
    }
    orderCancelUserErrors {
      field
      message
    }
  }
}
`

// FulfillmentCreateMutation fulfils open fulfillment orders with tracking info
const FulfillmentCreateMutation = `
mutation fulfillmentCreate($fulfillment: FulfillmentInput!) {
  fulfillmentCreate(fulfillment: $fulfillment) {
    fulfillment {
      id
      status
    }
    userErrors {
      field
      message
    }
  }
}
`

// DraftOrderInput represents the input for creating a draft order
type DraftOrderInput struct {
	LineItems        []DraftOrderLineItemInput  `json:"lineItems"`
	Email            *string                    `json:"email,omitempty"`
	Phone            *string                    `json:"phone,omitempty"`
	ShippingAddress  *DraftOrderAddressInput    `json:"shippingAddress,omitempty"`
	Tags             []string                   `json:"tags,omitempty"`
	Note             *string                    `json:"note,omitempty"`
	CustomAttributes []DraftOrderAttributeInput `json:"customAttributes,omitempty"`
}

type DraftOrderLineItemInput struct {
	VariantID *string `json:"variantId,omitempty"`
	Quantity  int     `json:"quantity"`
}

type DraftOrderAddressInput struct {
	FirstName   string  `json:"firstName"`
	LastName    *string `json:"lastName,omitempty"`
	Address1    string  `json:"address1"`
	Address2    *string `json:"address2,omitempty"`
	City        string  `json:"city"`
	Province    *string `json:"province,omitempty"`
	Zip         string  `json:"zip"`
	CountryCode string  `json:"countryCode"`
	Phone       *string `json:"phone,omitempty"`
}

type DraftOrderAttributeInput struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// FulfillmentInput is the fulfillmentCreate payload
type FulfillmentInput struct {
	LineItemsByFulfillmentOrder []FulfillmentOrderLineItems `json:"lineItemsByFulfillmentOrder"`
	TrackingInfo                *FulfillmentTrackingInput   `json:"trackingInfo,omitempty"`
	NotifyCustomer              bool                        `json:"notifyCustomer"`
}

type FulfillmentOrderLineItems struct {
	FulfillmentOrderID string `json:"fulfillmentOrderId"`
}

type FulfillmentTrackingInput struct {
	Company string `json:"company,omitempty"`
	Number  string `json:"number"`
	URL     string `json:"url,omitempty"`
}
