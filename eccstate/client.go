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

// Package eccstate implements the per-ECC state machine: the five-state
// transition graph, the SOAP payloads each transition call requires, and
// the refresh/change-state operations that keep the persistent model in
// sync with the remote ECC server.
//
// The SOAP transport itself is injected as a Client capability, the same
// "depend on a library for the remote wire protocol, don't hand-roll it"
// move mgmt makes for BMC power control (engine/resources/bmc_power.go's
// bmclib.Client, built per-call from a target URL). Tests substitute a fake
// Client returning canned replies.
package eccstate

import "context"

// Reply is the common shape of every ECC SOAP response: an error code (0 =
// success) and message, plus State/Transition which are only meaningful on
// a GetState reply.
type Reply struct {
	ErrorCode    int
	ErrorMessage string
	State        int
	Transition   int
}

// OK reports whether the reply's ErrorCode indicates success.
func (r Reply) OK() bool {
	return r.ErrorCode == 0
}

// Client is the SOAP capability consumed by this package. One Client talks
// to exactly one ECC server endpoint.
type Client interface {
	// GetState queries the ECC's current state and in-flight transition.
	GetState(ctx context.Context) (Reply, error)

	// GetConfigIDs fetches the raw <ConfigIdList> XML body known to this
	// ECC.
	GetConfigIDs(ctx context.Context) ([]byte, error)

	// Describe, Prepare, Configure, Start, Stop, Breakup, and Undo are the
	// seven transition operations. Every one of them takes the same two
	// XML payloads (the selected ConfigId and the DataLinkSet), even the
	// ones that conceptually need no arguments, per the wire contract.
	Describe(ctx context.Context, configXML, dataLinkXML []byte) (Reply, error)
	Prepare(ctx context.Context, configXML, dataLinkXML []byte) (Reply, error)
	Configure(ctx context.Context, configXML, dataLinkXML []byte) (Reply, error)
	Start(ctx context.Context, configXML, dataLinkXML []byte) (Reply, error)
	Stop(ctx context.Context, configXML, dataLinkXML []byte) (Reply, error)
	Breakup(ctx context.Context, configXML, dataLinkXML []byte) (Reply, error)
	Undo(ctx context.Context, configXML, dataLinkXML []byte) (Reply, error)
}
