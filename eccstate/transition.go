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

package eccstate

import (
	"context"

	"github.com/attpc/daqctl/daqerr"
	"github.com/attpc/daqctl/model"
)

// TransitionOp names one of the seven SOAP transition operations.
type TransitionOp int

// The seven transition operations the ECC SOAP interface exposes.
const (
	OpDescribe TransitionOp = iota
	OpPrepare
	OpConfigure
	OpStart
	OpStop
	OpBreakup
	OpUndo
)

// String implements fmt.Stringer.
func (op TransitionOp) String() string {
	switch op {
	case OpDescribe:
		return "Describe"
	case OpPrepare:
		return "Prepare"
	case OpConfigure:
		return "Configure"
	case OpStart:
		return "Start"
	case OpStop:
		return "Stop"
	case OpBreakup:
		return "Breakup"
	case OpUndo:
		return "Undo"
	default:
		return "Unknown"
	}
}

// Invoke calls the SOAP operation this TransitionOp names on client.
func (op TransitionOp) Invoke(ctx context.Context, client Client, configXML, dataLinkXML []byte) (Reply, error) {
	switch op {
	case OpDescribe:
		return client.Describe(ctx, configXML, dataLinkXML)
	case OpPrepare:
		return client.Prepare(ctx, configXML, dataLinkXML)
	case OpConfigure:
		return client.Configure(ctx, configXML, dataLinkXML)
	case OpStart:
		return client.Start(ctx, configXML, dataLinkXML)
	case OpStop:
		return client.Stop(ctx, configXML, dataLinkXML)
	case OpBreakup:
		return client.Breakup(ctx, configXML, dataLinkXML)
	case OpUndo:
		return client.Undo(ctx, configXML, dataLinkXML)
	default:
		panic("eccstate: invalid TransitionOp")
	}
}

// ComputeTransition returns the single legal SOAP operation that moves the
// ECC state machine from current to target, one step at a time:
//
//	IDLE ⇄ DESCRIBED ⇄ PREPARED ⇄ READY ⇄ RUNNING
//
// It fails with KindNoTransitionNeeded when current == target, and with
// KindNonAdjacentStates when the two states are not one step apart.
func ComputeTransition(current, target model.State) (TransitionOp, error) {
	if current == target {
		return 0, daqerr.New(daqerr.KindNoTransitionNeeded, "already in state %s", current)
	}
	diff := int(target) - int(current)
	if diff != 1 && diff != -1 {
		return 0, daqerr.New(daqerr.KindNonAdjacentStates, "cannot move directly from %s to %s", current, target)
	}

	if diff == 1 {
		switch current {
		case model.IDLE:
			return OpDescribe, nil
		case model.DESCRIBED:
			return OpPrepare, nil
		case model.PREPARED:
			return OpConfigure, nil
		case model.READY:
			return OpStart, nil
		}
	}

	// diff == -1, a backward step.
	switch current {
	case model.DESCRIBED, model.PREPARED:
		return OpUndo, nil
	case model.READY:
		return OpBreakup, nil
	case model.RUNNING:
		return OpStop, nil
	}

	return 0, daqerr.New(daqerr.KindNonAdjacentStates, "no transition defined from %s to %s", current, target)
}
