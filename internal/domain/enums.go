package domain

// CustomStatus is the merchant-facing order lifecycle status, independent of Shopify's own statuses
type CustomStatus string

const (
	StatusNew                   CustomStatus = "New"
	StatusConfirmed             CustomStatus = "Confirmed"
	StatusReadyToDispatch       CustomStatus = "Ready To Dispatch"
	StatusDispatched            CustomStatus = "Dispatched"
	StatusInTransit             CustomStatus = "In Transit"
	StatusOutForDelivery        CustomStatus = "Out For Delivery"
	StatusDelivered             CustomStatus = "Delivered"
	StatusRTOInTransit          CustomStatus = "RTO In Transit"
	StatusRTODelivered          CustomStatus = "RTO Delivered"
	StatusDTORequested          CustomStatus = "DTO Requested"
	StatusDTOBooked             CustomStatus = "DTO Booked"
	StatusDTOInTransit          CustomStatus = "DTO In Transit"
	StatusDTODelivered          CustomStatus = "DTO Delivered"
	StatusLost                  CustomStatus = "Lost"
	StatusClosed                CustomStatus = "Closed"
	StatusCancellationRequested CustomStatus = "Cancellation Requested"
	StatusCancelled             CustomStatus = "Cancelled"
)

var customStatusTransitions = map[CustomStatus][]CustomStatus{
	StatusNew:                   {StatusConfirmed, StatusCancellationRequested, StatusCancelled, StatusClosed},
	StatusConfirmed:             {StatusNew, StatusReadyToDispatch, StatusCancellationRequested, StatusCancelled},
	StatusReadyToDispatch:       {StatusConfirmed, StatusDispatched, StatusInTransit, StatusOutForDelivery, StatusDelivered, StatusCancellationRequested, StatusCancelled},
	StatusDispatched:            {StatusInTransit, StatusOutForDelivery, StatusDelivered, StatusRTOInTransit, StatusLost},
	StatusInTransit:             {StatusOutForDelivery, StatusDelivered, StatusRTOInTransit, StatusLost},
	StatusOutForDelivery:        {StatusInTransit, StatusDelivered, StatusRTOInTransit, StatusLost},
	StatusDelivered:             {StatusDTORequested, StatusClosed},
	StatusRTOInTransit:          {StatusRTODelivered, StatusLost},
	StatusRTODelivered:          {StatusClosed},
	StatusDTORequested:          {StatusDTOBooked, StatusDelivered, StatusClosed},
	StatusDTOBooked:             {StatusDTOInTransit, StatusClosed},
	StatusDTOInTransit:          {StatusDTODelivered, StatusLost},
	StatusDTODelivered:          {StatusClosed},
	StatusLost:                  {StatusClosed},
	StatusCancellationRequested: {StatusNew, StatusConfirmed, StatusCancelled},
	StatusClosed:                nil,
	StatusCancelled:             nil,
}

// IsValid checks if the status is known
func (s CustomStatus) IsValid() bool {
	_, ok := customStatusTransitions[s]
	return ok
}

// CanTransitionTo checks if a status transition is valid
func (s CustomStatus) CanTransitionTo(next CustomStatus) bool {
	for _, allowed := range customStatusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports statuses with no outgoing transitions
func (s CustomStatus) IsTerminal() bool {
	return s.IsValid() && len(customStatusTransitions[s]) == 0
}

// IsShipped reports whether the parcel has left the warehouse
func (s CustomStatus) IsShipped() bool {
	switch s {
	case StatusDispatched, StatusInTransit, StatusOutForDelivery, StatusDelivered,
		StatusRTOInTransit, StatusRTODelivered, StatusLost:
		return true
	}
	return false
}

// MemberRole is the role of a user inside a business or store
type MemberRole string

const (
	RoleOwner  MemberRole = "owner"
	RoleAdmin  MemberRole = "admin"
	RoleMember MemberRole = "member"
)

func (r MemberRole) IsValid() bool {
	return r == RoleOwner || r == RoleAdmin || r == RoleMember
}

// CanManageMembers reports whether the role may add or remove members
func (r MemberRole) CanManageMembers() bool {
	return r == RoleOwner || r == RoleAdmin
}

// PutAwayState tracks where a single inventory unit is
type PutAwayState string

const (
	PutAwayNone       PutAwayState = "none"
	PutAwayInbound    PutAwayState = "inbound"
	PutAwayOutbound   PutAwayState = "outbound"
	PutAwayDispatched PutAwayState = "dispatched"
)

func (s PutAwayState) IsValid() bool {
	switch s {
	case PutAwayNone, PutAwayInbound, PutAwayOutbound, PutAwayDispatched:
		return true
	}
	return false
}

// TemplateEvent triggers an automatic WhatsApp template send
type TemplateEvent string

const (
	EventOrderCreated    TemplateEvent = "order_created"
	EventOrderDispatched TemplateEvent = "order_dispatched"
	EventOrderDelivered  TemplateEvent = "order_delivered"
	EventManual          TemplateEvent = "manual"
)

func (e TemplateEvent) IsValid() bool {
	switch e {
	case EventOrderCreated, EventOrderDispatched, EventOrderDelivered, EventManual:
		return true
	}
	return false
}

// Courier names
const (
	CourierDelhivery  = "delhivery"
	CourierShiprocket = "shiprocket"
	CourierXpressbees = "xpressbees"
	CourierBluedart   = "bluedart"
)

// IsSupportedCourier reports whether a courier integration exists for name
func IsSupportedCourier(name string) bool {
	switch name {
	case CourierDelhivery, CourierShiprocket, CourierXpressbees, CourierBluedart:
		return true
	}
	return false
}
