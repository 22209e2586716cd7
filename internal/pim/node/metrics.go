// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package node

import (
	"strconv"

	"pim-sm.dev/pimd/internal/pim/mrt"
)

// sampleMetrics refreshes the gauge-shaped collectors after every drain,
// cheap enough to run on every event-loop iteration since it only walks
// already-resident in-memory state (spec §6.3).
func (n *Node) sampleMetrics() {
	if n.metrics == nil {
		return
	}

	for vifIndex, t := range n.nbrs {
		label := n.vifLabel(vifIndex)
		n.metrics.NeighborCount.WithLabelValues(label).Set(float64(t.Count()))
		iAmDR := 0.0
		if t.IAmDR() {
			iAmDR = 1.0
		}
		n.metrics.IAmDR.WithLabelValues(label).Set(iAmDR)
	}

	counts := map[mrt.Kind]int{}
	for _, e := range n.mre.All() {
		counts[e.Key.Kind]++
	}
	for _, k := range []mrt.Kind{mrt.KindRP, mrt.KindWC, mrt.KindSG, mrt.KindSGRpt} {
		n.metrics.MREEntries.WithLabelValues(k.String()).Set(float64(counts[k]))
	}

	n.metrics.TaskQueueDepth.Set(float64(n.tasks.QueueLen()))
	n.metrics.RPSetSize.Set(float64(len(n.rps.Entries())))

	isBSR := 0.0
	for _, z := range n.bsrEng.Zones() {
		if z.BSRAddr == n.localID {
			isBSR = 1.0
			break
		}
	}
	n.metrics.IsBSR.Set(isBSR)
}

func (n *Node) vifLabel(vifIndex int) string {
	if v, ok := n.vifs.Get(vifIndex); ok {
		return v.Name
	}
	return strconv.Itoa(vifIndex)
}
