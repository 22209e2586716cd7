// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package mrt

import (
	"time"

	"pim-sm.dev/pimd/internal/clock"
	"pim-sm.dev/pimd/internal/pim/addr"
)

// NewDownstreamIO builds the send/timer surface ReceiveJP and JPBatch.Commit
// need, letting a caller outside this package (node) supply the real
// neighbor-count/override-interval/PruneEcho wiring without this package
// exposing downstreamIO's fields.
func NewDownstreamIO(clk clock.Clock, neighborCount func(vif int) int, overrideInterval func(vif int) time.Duration, sendPruneEcho func(vif int)) downstreamIO {
	return downstreamIO{clock: clk, neighborCount: neighborCount, overrideInterval: overrideInterval, sendPruneEcho: sendPruneEcho}
}

// NewUpstreamIO builds the send/timer surface RecomputeJoinDesired and
// ReceivePeerPrune need.
func NewUpstreamIO(clk clock.Clock, sendJoin, sendPrune func(nbr addr.Addr), overrideInterval time.Duration) upstreamIO {
	return upstreamIO{clock: clk, sendJoin: sendJoin, sendPrune: sendPrune, overrideInterval: overrideInterval}
}

// NewAssertIO builds the send surface the Assert FSM needs.
func NewAssertIO(clk clock.Clock, sendAssert func(vif int, m AssertMetric)) assertIO {
	return assertIO{clock: clk, sendAssert: sendAssert}
}
