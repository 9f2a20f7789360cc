package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/athena-api/athena/internal/sales"
)

func customerIDSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"customerId": map[string]any{
				"type":        "string",
				"description": "The customer id",
			},
		},
		"required": []string{"customerId"},
	}
}

func emptySchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

type customerIDArgs struct {
	CustomerID string `json:"customerId"`
}

func marshalResult(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal tool result: %w", err)
	}
	return string(b), nil
}

// SalesTools builds the four data-retrieval tools. Every invocation
// opens its own repository session via the factory, so concurrent
// dispatches never share a handle.
func SalesTools(repos sales.RepoFactory) []Tool {
	return []Tool{
		{
			Name:        "GetSalesForCustomer",
			Description: "Retrieves the sales orders for a specific customer.",
			Parameters:  customerIDSchema(),
			Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
				var in customerIDArgs
				if err := json.Unmarshal(args, &in); err != nil {
					return "", fmt.Errorf("GetSalesForCustomer: bad arguments: %w", err)
				}
				orders, err := repos().SalesOrdersForCustomer(ctx, in.CustomerID)
				if err != nil {
					return "", fmt.Errorf("GetSalesForCustomer: %w", err)
				}
				return marshalResult(orders)
			},
		},
		{
			Name:        "GetAllSales",
			Description: "Retrieves all sales orders from all customers.",
			Parameters:  emptySchema(),
			Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
				orders, err := repos().ListSalesOrders(ctx)
				if err != nil {
					return "", fmt.Errorf("GetAllSales: %w", err)
				}
				return marshalResult(orders)
			},
		},
		{
			Name:        "GetCustomer",
			Description: "Retrieves customer information by customer ID.",
			Parameters:  customerIDSchema(),
			Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
				var in customerIDArgs
				if err := json.Unmarshal(args, &in); err != nil {
					return "", fmt.Errorf("GetCustomer: bad arguments: %w", err)
				}
				customer, err := repos().GetCustomer(ctx, in.CustomerID)
				if err != nil {
					return "", fmt.Errorf("GetCustomer: %w", err)
				}
				if customer == nil {
					// Absence is a valid answer, not a failure. Tell the
					// model explicitly so it can say so.
					return marshalResult(map[string]any{
						"found":      false,
						"customerId": in.CustomerID,
					})
				}
				return marshalResult(customer)
			},
		},
		{
			Name:        "GetAllCustomers",
			Description: "Retrieves all customers.",
			Parameters:  emptySchema(),
			Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
				customers, err := repos().ListCustomers(ctx)
				if err != nil {
					return "", fmt.Errorf("GetAllCustomers: %w", err)
				}
				return marshalResult(customers)
			},
		},
	}
}
