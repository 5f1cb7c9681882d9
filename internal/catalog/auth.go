package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"
)

type loginResponse struct {
	Token string `json:"token"`
}

// Login exchanges credentials for a bearer token. Only a 200 with a non-empty token succeeds.
func (c *Client) Login(ctx context.Context, creds Credentials) (token string, err error) {
	const op = "login"
	defer func(started time.Time) { c.observe(ctx, op, started, err) }(time.Now())

	payload, err := json.Marshal(creds)
	if err != nil {
		return "", err
	}
	req, err := c.newRequest(ctx, http.MethodPost, loginPath, bytes.NewReader(payload), "application/json", false)
	if err != nil {
		return "", err
	}
	resp, err := c.do(op, req)
	if err != nil {
		return "", err
	}
	defer closeBody(resp)

	if resp.StatusCode != http.StatusOK {
		return "", apiError(op, resp)
	}
	var body loginResponse
	if err := decodeBody(op, resp, &body); err != nil {
		return "", err
	}
	if body.Token == "" {
		return "", &APIError{Op: op, Status: resp.StatusCode, Message: "response carried no token"}
	}
	return body.Token, nil
}

// Register creates an account. Only a 201 succeeds; the caller is not logged in.
func (c *Client) Register(ctx context.Context, reg Registration) (err error) {
	const op = "register"
	defer func(started time.Time) { c.observe(ctx, op, started, err) }(time.Now())

	payload, err := json.Marshal(reg)
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPost, registerPath, bytes.NewReader(payload), "application/json", false)
	if err != nil {
		return err
	}
	resp, err := c.do(op, req)
	if err != nil {
		return err
	}
	defer closeBody(resp)

	if resp.StatusCode != http.StatusCreated {
		return apiError(op, resp)
	}
	return nil
}
