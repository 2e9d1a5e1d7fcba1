package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Operation names passed to the Observer.
const (
	OpGetTechnology    = "get_technology"
	OpCreateTechnology = "create_technology"
	OpTechnologyStatus = "technology_status"
	OpValidate         = "validate_technology"
)

// Validation decisions returned by ValidateTechnology.
const (
	DecisionAccept            = "accept"
	DecisionNeedsConfirmation = "needs_confirmation"
	DecisionReject            = "reject"
)

// ErrEmptyTechnology is returned when a technology name is blank.
var ErrEmptyTechnology = errors.New("techintel: technology name is empty")

// Validation is the backend's verdict on a free-text technology query.
type Validation struct {
	Decision   string `json:"decision"`
	Technology string `json:"technology,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
	Message    string `json:"message,omitempty"`
}

// Accepted reports whether the query names a known technology.
func (v *Validation) Accepted() bool { return v.Decision == DecisionAccept }

// StatusResponse is the raw result of one status poll.
type StatusResponse struct {
	StatusCode int
	Body       []byte
}

func techPath(prefix, tech string) (string, error) {
	tech = strings.TrimSpace(tech)
	if tech == "" {
		return "", ErrEmptyTechnology
	}
	return prefix + url.PathEscape(tech), nil
}

// GetTechnology returns the raw analytics bundle of tech.  A technology the
// backend does not know yields an *APIError with IsNotFound.
func (c *Client) GetTechnology(ctx context.Context, tech string) ([]byte, error) {
	path, err := techPath("/api/tech/", tech)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, OpGetTechnology, http.MethodGet, path, nil)
}

// CreateTechnology asks the backend to start producing analytics for tech.
// Creating a technology that already exists is a no-op on the backend.
func (c *Client) CreateTechnology(ctx context.Context, tech string) error {
	path, err := techPath("/api/tech/", tech)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, OpCreateTechnology, http.MethodPost, path, nil)
	return err
}

// FetchTechnology gets tech, creating it first when the backend answers 404.
func (c *Client) FetchTechnology(ctx context.Context, tech string) ([]byte, error) {
	body, err := c.GetTechnology(ctx, tech)
	var apiErr *APIError
	if err == nil || !errors.As(err, &apiErr) || !apiErr.IsNotFound() {
		return body, err
	}

	c.logger.Infof("Technology %q not found, creating it", tech)
	if err := c.CreateTechnology(ctx, tech); err != nil {
		return nil, err
	}
	return c.GetTechnology(ctx, tech)
}

// TechnologyStatus polls tech's status once.  Any HTTP response, including
// 4xx and 5xx, is returned as a StatusResponse; err is set only when no
// response arrived.
func (c *Client) TechnologyStatus(ctx context.Context, tech string) (*StatusResponse, error) {
	path, err := techPath("/api/technology/", tech)
	if err != nil {
		return nil, err
	}
	resp, err := c.roundTrip(ctx, OpTechnologyStatus, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return &StatusResponse{StatusCode: resp.statusCode, Body: resp.body}, nil
}

// ValidateTechnology asks the backend whether query names a technology.
func (c *Client) ValidateTechnology(ctx context.Context, query string) (*Validation, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyTechnology
	}
	body, err := c.do(ctx, OpValidate, http.MethodPost, "/api/validate-tech", map[string]string{"query": query})
	if err != nil {
		return nil, err
	}
	var v Validation
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	switch v.Decision {
	case DecisionAccept:
		if v.Technology == "" {
			v.Technology = query
		}
	case DecisionNeedsConfirmation, DecisionReject:
	default:
		return nil, fmt.Errorf("techintel: unknown validation decision %q", v.Decision)
	}
	return &v, nil
}
