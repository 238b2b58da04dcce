package client

import (
	"context"
	"net/url"
	"strconv"

	"github.com/turtacn/entigo/pkg/types/entity"
)

// ResolveResult is the outcome of resolving one utterance.
type ResolveResult struct {
	RequestID string        `json:"request_id"`
	Result    entity.Result `json:"result"`
	Cached    bool          `json:"cached"`
}

// Detector describes one registered detector.
type Detector struct {
	Name         string   `json:"name"`
	Dependencies []string `json:"dependencies"`
	Anonymize    bool     `json:"anonymize"`
}

// DependencyFilter selects the dependencies returned by Dependencies.
type DependencyFilter int

const (
	AllDependencies DependencyFilter = iota
	KnownDependencies
	UnknownDependencies
)

type resolveRequest struct {
	Text             string   `json:"text"`
	ExpectedEntities []string `json:"expected_entities,omitempty"`
	Entity           string   `json:"entity,omitempty"`
}

// Resolve returns the anonymised text and final entities of text.
func (c *Client) Resolve(ctx context.Context, text string, expected ...string) (*ResolveResult, error) {
	var env envelope[ResolveResult]
	if err := c.post(ctx, apiPrefix+"/resolve", resolveRequest{Text: text, ExpectedEntities: expected}, &env); err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// Entities returns the raw entities of text.  A non-empty name restricts
// extraction to that detector and its dependencies.
func (c *Client) Entities(ctx context.Context, text, name string, expected ...string) ([]entity.Entity, error) {
	var env envelope[struct {
		Entities []entity.Entity `json:"entities"`
	}]
	req := resolveRequest{Text: text, ExpectedEntities: expected, Entity: name}
	if err := c.post(ctx, apiPrefix+"/entities", req, &env); err != nil {
		return nil, err
	}
	return env.Data.Entities, nil
}

// Value returns the value of the first name entity in text.  JSON numbers
// decode as float64.
func (c *Client) Value(ctx context.Context, name, text string) (interface{}, error) {
	var env envelope[struct {
		Value interface{} `json:"value"`
	}]
	path := apiPrefix + "/entities/" + url.PathEscape(name) + "/value"
	if err := c.post(ctx, path, resolveRequest{Text: text}, &env); err != nil {
		return nil, err
	}
	return env.Data.Value, nil
}

// Dependencies lists the entities detectors depend on.
func (c *Client) Dependencies(ctx context.Context, filter DependencyFilter) ([]string, error) {
	path := apiPrefix + "/dependencies"
	switch filter {
	case KnownDependencies:
		path += "?known=" + strconv.FormatBool(true)
	case UnknownDependencies:
		path += "?known=" + strconv.FormatBool(false)
	}
	var env envelope[struct {
		Dependencies []string `json:"dependencies"`
	}]
	if err := c.get(ctx, path, &env); err != nil {
		return nil, err
	}
	return env.Data.Dependencies, nil
}

// Detectors lists registered detectors in scheduling order.
func (c *Client) Detectors(ctx context.Context) ([]Detector, error) {
	var env envelope[struct {
		Detectors []Detector `json:"detectors"`
	}]
	if err := c.get(ctx, apiPrefix+"/detectors", &env); err != nil {
		return nil, err
	}
	return env.Data.Detectors, nil
}

//Personal.AI order the ending
