package frappe

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-resty/resty/v2"
	go_json "github.com/goccy/go-json"
)

// Filter is a [field, operator, value] triple as accepted by frappe.get_list.
type Filter [3]any

func Eq(field string, v any) Filter    { return Filter{field, "=", v} }
func Ne(field string, v any) Filter    { return Filter{field, "!=", v} }
func In(field string, v any) Filter    { return Filter{field, "in", v} }
func NotIn(field string, v any) Filter { return Filter{field, "not in", v} }
func Lte(field string, v any) Filter   { return Filter{field, "<=", v} }
func Gte(field string, v any) Filter   { return Filter{field, ">=", v} }

type ListParams struct {
	Fields    []string
	Filters   []Filter
	OrFilters []Filter
	OrderBy   string
	// Limit of 0 asks for every row.
	Limit int
}

func (p ListParams) query() (map[string]string, error) {
	q := map[string]string{"limit_page_length": strconv.Itoa(p.Limit)}
	for key, v := range map[string]any{"fields": p.Fields, "filters": p.Filters, "or_filters": p.OrFilters} {
		switch x := v.(type) {
		case []string:
			if len(x) == 0 {
				continue
			}
		case []Filter:
			if len(x) == 0 {
				continue
			}
		}
		b, err := go_json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", key, err)
		}
		q[key] = string(b)
	}
	if p.OrderBy != "" {
		q["order_by"] = p.OrderBy
	}
	return q, nil
}

type dataEnvelope[T any] struct {
	Data T `json:"data"`
}

type messageEnvelope[T any] struct {
	Message T `json:"message"`
}

func (c *Client) request(ctx context.Context) *resty.Request {
	return c.rc.R().SetContext(ctx)
}

func (c *Client) send(req *resty.Request, method, url string) error {
	resp, err := req.Execute(method, url)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	if resp.IsError() {
		return parseAPIError(resp)
	}
	return nil
}

func list[T any](ctx context.Context, c *Client, doctype string, p ListParams) ([]T, error) {
	q, err := p.query()
	if err != nil {
		return nil, err
	}
	var env dataEnvelope[[]T]
	req := c.request(ctx).
		SetPathParam("doctype", doctype).
		SetQueryParams(q).
		SetResult(&env)
	if err := c.send(req, "GET", "/api/resource/{doctype}"); err != nil {
		return nil, fmt.Errorf("list %s: %w", doctype, err)
	}
	return env.Data, nil
}

func get[T any](ctx context.Context, c *Client, doctype, name string) (T, error) {
	var env dataEnvelope[T]
	req := c.request(ctx).
		SetPathParams(map[string]string{"doctype": doctype, "name": name}).
		SetResult(&env)
	if err := c.send(req, "GET", "/api/resource/{doctype}/{name}"); err != nil {
		var zero T
		return zero, fmt.Errorf("get %s %s: %w", doctype, name, err)
	}
	return env.Data, nil
}

func insert[T any](ctx context.Context, c *Client, doctype string, doc any) (T, error) {
	var env dataEnvelope[T]
	req := c.request(ctx).
		SetPathParam("doctype", doctype).
		SetBody(doc).
		SetResult(&env)
	if err := c.send(req, "POST", "/api/resource/{doctype}"); err != nil {
		var zero T
		return zero, fmt.Errorf("insert %s: %w", doctype, err)
	}
	return env.Data, nil
}

func update[T any](ctx context.Context, c *Client, doctype, name string, patch any) (T, error) {
	var env dataEnvelope[T]
	req := c.request(ctx).
		SetPathParams(map[string]string{"doctype": doctype, "name": name}).
		SetBody(patch).
		SetResult(&env)
	if err := c.send(req, "PUT", "/api/resource/{doctype}/{name}"); err != nil {
		var zero T
		return zero, fmt.Errorf("update %s %s: %w", doctype, name, err)
	}
	return env.Data, nil
}

// call POSTs args to a whitelisted method and decodes its "message".
func call[T any](ctx context.Context, c *Client, method string, args any) (T, error) {
	var env messageEnvelope[T]
	req := c.request(ctx).
		SetPathParam("method", method).
		SetResult(&env)
	if args != nil {
		req.SetBody(args)
	}
	if err := c.send(req, "POST", "/api/method/{method}"); err != nil {
		var zero T
		return zero, fmt.Errorf("call %s: %w", method, err)
	}
	return env.Message, nil
}
