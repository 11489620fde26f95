// Copyright 2025 The QuorumDB Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the LICENSE file.

package cluster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cockroachdb/errors"
)

// MakeBean constructs a management bean name, e.g. MakeBean("db",
// "IndexSummaries") -> "db:type=IndexSummaries".
func MakeBean(domain, typ string) string {
	return domain + ":type=" + typ
}

// MgmtClient talks to a node's JSON-over-HTTP management endpoint: named
// beans exposing readable/writable attributes and invokable operations.
type MgmtClient struct {
	base string
	hc   *http.Client
}

// NewMgmtClient returns a client for the management endpoint at addr
// (host:port).
func NewMgmtClient(addr string) *MgmtClient {
	return &MgmtClient{
		base: "http://" + addr + "/mgmt/v1",
		hc:   &http.Client{Timeout: 30 * time.Second},
	}
}

type attrPayload struct {
	Value interface{} `json:"value"`
}

type invokePayload struct {
	Arguments []interface{} `json:"arguments"`
}

func (m *MgmtClient) attrURL(bean, attr string) string {
	return fmt.Sprintf("%s/beans/%s/attributes/%s",
		m.base, url.PathEscape(bean), url.PathEscape(attr))
}

// ReadAttribute reads a bean attribute. JSON numbers come back as float64.
func (m *MgmtClient) ReadAttribute(ctx context.Context, bean, attr string) (interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.attrURL(bean, attr), nil)
	if err != nil {
		return nil, err
	}
	var payload attrPayload
	if err := m.do(req, &payload); err != nil {
		return nil, errors.Wrapf(err, "reading %s/%s", bean, attr)
	}
	return payload.Value, nil
}

// ReadFloatAttribute reads a numeric bean attribute.
func (m *MgmtClient) ReadFloatAttribute(ctx context.Context, bean, attr string) (float64, error) {
	v, err := m.ReadAttribute(ctx, bean, attr)
	if err != nil {
		return 0, err
	}
	f, ok := v.(float64)
	if !ok {
		return 0, errors.Newf("attribute %s/%s is %T, not a number", bean, attr, v)
	}
	return f, nil
}

// WriteAttribute sets a bean attribute.
func (m *MgmtClient) WriteAttribute(ctx context.Context, bean, attr string, value interface{}) error {
	body, err := json.Marshal(attrPayload{Value: value})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(
		ctx, http.MethodPut, m.attrURL(bean, attr), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if err := m.do(req, nil); err != nil {
		return errors.Wrapf(err, "writing %s/%s", bean, attr)
	}
	return nil
}

// Invoke calls a bean operation with the given arguments and returns its
// result, if any.
func (m *MgmtClient) Invoke(
	ctx context.Context, bean, op string, args ...interface{},
) (interface{}, error) {
	if args == nil {
		args = []interface{}{}
	}
	body, err := json.Marshal(invokePayload{Arguments: args})
	if err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/beans/%s/operations/%s",
		m.base, url.PathEscape(bean), url.PathEscape(op))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	var payload attrPayload
	if err := m.do(req, &payload); err != nil {
		return nil, errors.Wrapf(err, "invoking %s/%s", bean, op)
	}
	return payload.Value, nil
}

// Ping reports whether the endpoint is up.
func (m *MgmtClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.base+"/health", nil)
	if err != nil {
		return err
	}
	return m.do(req, nil)
}

func (m *MgmtClient) do(req *http.Request, out interface{}) error {
	resp, err := m.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Newf("%s %s: %s: %s", req.Method, req.URL.Path, resp.Status, bytes.TrimSpace(body))
	}
	if out == nil {
		return nil
	}
	return errors.Wrap(json.Unmarshal(body, out), "decoding management response")
}
