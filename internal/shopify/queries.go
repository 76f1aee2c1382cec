package shopify

// FulfillmentOrdersQuery lists fulfillment orders of an order so they can be fulfilled
const FulfillmentOrdersQuery = `
query orderFulfillmentOrders($id: ID!) {
  order(id: $id) {
    id
    name
    fulfillmentOrders(first: 10) {
      nodes {
        id
        status
      }
    }
  }
}
`
