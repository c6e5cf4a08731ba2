// DAQctl
// Copyright (C) 2015-2026+ the ATTPC collaboration and contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package soapclient is the concrete eccstate.Client implementation. It
// talks to a real ECC SOAP server using gosoap, the same "consume the wire
// protocol as a library instead of hand-rolling it" move mgmt makes for BMC
// power control (engine/resources/bmc_power.go wraps bmclib; bmc.go and
// bmc_firmware.go wrap gofish). The WSDL itself is treated as a black box —
// this package never parses it, it only issues calls against the bound
// operations.
package soapclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tiaguinho/gosoap"

	"github.com/attpc/daqctl/eccstate"
)

// Client implements eccstate.Client against one ECC server endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// New builds a Client bound to one ECC server's WSDL endpoint. Mirrors
// bmc_power.go's per-target client() factory: one Client per (host, port).
func New(endpoint string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{endpoint: endpoint, httpClient: httpClient}
}

// dial opens a fresh gosoap client for a single call. gosoap clients are
// cheap and stateless beyond the parsed WSDL, so a call-scoped client
// avoids any shared mutable state between concurrent tasks touching
// different ECCs, matching the "no task holds shared state across a
// network call" rule that keeps concurrent ECC tasks independent.
func (c *Client) dial(ctx context.Context) (*gosoap.Client, error) {
	soap, err := gosoap.SoapClient(c.endpoint, c.httpClient)
	if err != nil {
		return nil, fmt.Errorf("dial ECC SOAP endpoint %s: %w", c.endpoint, err)
	}
	soap.WithContext(ctx)
	return soap, nil
}

type getStateResponse struct {
	ErrorCode    int    `xml:"ErrorCode"`
	ErrorMessage string `xml:"ErrorMessage"`
	State        int    `xml:"State"`
	Transition   int    `xml:"Transition"`
}

// GetState implements eccstate.Client.
func (c *Client) GetState(ctx context.Context) (eccstate.Reply, error) {
	soap, err := c.dial(ctx)
	if err != nil {
		return eccstate.Reply{}, err
	}
	if err := soap.Call("GetState", gosoap.Params{}); err != nil {
		return eccstate.Reply{}, fmt.Errorf("GetState call: %w", err)
	}
	var res getStateResponse
	if err := soap.Unmarshal(&res); err != nil {
		return eccstate.Reply{}, fmt.Errorf("GetState unmarshal: %w", err)
	}
	return eccstate.Reply{
		ErrorCode:    res.ErrorCode,
		ErrorMessage: res.ErrorMessage,
		State:        res.State,
		Transition:   res.Transition,
	}, nil
}

type getConfigIDsResponse struct {
	Body []byte `xml:",innerxml"`
}

// GetConfigIDs implements eccstate.Client.
func (c *Client) GetConfigIDs(ctx context.Context) ([]byte, error) {
	soap, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	if err := soap.Call("GetConfigIDs", gosoap.Params{}); err != nil {
		return nil, fmt.Errorf("GetConfigIDs call: %w", err)
	}
	var res getConfigIDsResponse
	if err := soap.Unmarshal(&res); err != nil {
		return nil, fmt.Errorf("GetConfigIDs unmarshal: %w", err)
	}
	return res.Body, nil
}

type transitionResponse struct {
	ErrorCode    int    `xml:"ErrorCode"`
	ErrorMessage string `xml:"ErrorMessage"`
}

func (c *Client) callTransition(ctx context.Context, op string, configXML, dataLinkXML []byte) (eccstate.Reply, error) {
	soap, err := c.dial(ctx)
	if err != nil {
		return eccstate.Reply{}, err
	}
	params := gosoap.Params{
		"ConfigId":    string(configXML),
		"DataLinkSet": string(dataLinkXML),
	}
	if err := soap.Call(op, params); err != nil {
		return eccstate.Reply{}, fmt.Errorf("%s call: %w", op, err)
	}
	var res transitionResponse
	if err := soap.Unmarshal(&res); err != nil {
		return eccstate.Reply{}, fmt.Errorf("%s unmarshal: %w", op, err)
	}
	return eccstate.Reply{ErrorCode: res.ErrorCode, ErrorMessage: res.ErrorMessage}, nil
}

// Describe implements eccstate.Client.
func (c *Client) Describe(ctx context.Context, configXML, dataLinkXML []byte) (eccstate.Reply, error) {
	return c.callTransition(ctx, "Describe", configXML, dataLinkXML)
}

// Prepare implements eccstate.Client.
func (c *Client) Prepare(ctx context.Context, configXML, dataLinkXML []byte) (eccstate.Reply, error) {
	return c.callTransition(ctx, "Prepare", configXML, dataLinkXML)
}

// Configure implements eccstate.Client.
func (c *Client) Configure(ctx context.Context, configXML, dataLinkXML []byte) (eccstate.Reply, error) {
	return c.callTransition(ctx, "Configure", configXML, dataLinkXML)
}

// Start implements eccstate.Client.
func (c *Client) Start(ctx context.Context, configXML, dataLinkXML []byte) (eccstate.Reply, error) {
	return c.callTransition(ctx, "Start", configXML, dataLinkXML)
}

// Stop implements eccstate.Client.
func (c *Client) Stop(ctx context.Context, configXML, dataLinkXML []byte) (eccstate.Reply, error) {
	return c.callTransition(ctx, "Stop", configXML, dataLinkXML)
}

// Breakup implements eccstate.Client.
func (c *Client) Breakup(ctx context.Context, configXML, dataLinkXML []byte) (eccstate.Reply, error) {
	return c.callTransition(ctx, "Breakup", configXML, dataLinkXML)
}

// Undo implements eccstate.Client.
func (c *Client) Undo(ctx context.Context, configXML, dataLinkXML []byte) (eccstate.Reply, error) {
	return c.callTransition(ctx, "Undo", configXML, dataLinkXML)
}

var _ eccstate.Client = (*Client)(nil)
