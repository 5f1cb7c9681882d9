package catalog

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

type listResponse struct {
	Data []Product `json:"data"`
}

// List fetches the whole catalog. A response without data yields an empty slice.
func (c *Client) List(ctx context.Context) (products []Product, err error) {
	const op = "list"
	defer func(started time.Time) { c.observe(ctx, op, started, err) }(time.Now())

	req, err := c.newRequest(ctx, http.MethodGet, productsPath, nil, "", true)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(op, req)
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apiError(op, resp)
	}
	var body listResponse
	if err := decodeBody(op, resp, &body); err != nil {
		return nil, err
	}
	if body.Data == nil {
		body.Data = []Product{}
	}
	return body.Data, nil
}

// Create posts a new product as multipart form data.
func (c *Client) Create(ctx context.Context, form ProductForm) (err error) {
	const op = "create"
	defer func(started time.Time) { c.observe(ctx, op, started, err) }(time.Now())
	return c.sendForm(ctx, op, http.MethodPost, productsPath, form)
}

// Update replaces product id. The existing image URLs in form are the complete set to keep.
func (c *Client) Update(ctx context.Context, id string, form ProductForm) (err error) {
	const op = "update"
	defer func(started time.Time) { c.observe(ctx, op, started, err) }(time.Now())
	return c.sendForm(ctx, op, http.MethodPut, productPath(id), form)
}

// Delete removes product id. A 404 is reported as AlreadyGone rather than an error.
func (c *Client) Delete(ctx context.Context, id string) (outcome DeleteOutcome, err error) {
	const op = "delete"
	defer func(started time.Time) { c.observe(ctx, op, started, err) }(time.Now())

	req, err := c.newRequest(ctx, http.MethodDelete, productPath(id), nil, "", true)
	if err != nil {
		return Deleted, err
	}
	resp, err := c.do(op, req)
	if err != nil {
		return Deleted, err
	}
	defer closeBody(resp)

	switch resp.StatusCode {
	case http.StatusOK:
		return Deleted, nil
	case http.StatusNotFound:
		return AlreadyGone, nil
	default:
		return Deleted, apiError(op, resp)
	}
}

func (c *Client) sendForm(ctx context.Context, op, method, path string, form ProductForm) error {
	body, contentType, err := encodeForm(form)
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, method, path, body, contentType, true)
	if err != nil {
		return err
	}
	resp, err := c.do(op, req)
	if err != nil {
		return err
	}
	defer closeBody(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(op, resp)
	}
	return nil
}

func productPath(id string) string {
	return productsPath + "/" + url.PathEscape(id)
}
