// Package snowflake generates 63-bit, time-ordered message identifiers:
// 41 bits of milliseconds since a custom epoch, 10 bits of node ID and a
// 12-bit per-millisecond sequence. IDs from one node are strictly
// increasing, which lets the store cluster messages by (channel, id).
package snowflake

import (
	"fmt"
	"sync"
	"time"
)

const (
	nodeBits = 10
	seqBits  = 12

	maxNode = -1 ^ (-1 << nodeBits)
	seqMask = -1 ^ (-1 << seqBits)

	timeShift = nodeBits + seqBits
	nodeShift = seqBits

	// 2024-01-01 00:00:00 UTC
	epoch int64 = 1704067200000
)

type Node struct {
	mu   sync.Mutex
	last int64
	node int64
	seq  int64
}

func NewNode(node int64) (*Node, error) {
	if node < 0 || node > maxNode {
		return nil, fmt.Errorf("snowflake: node %d out of range [0, %d]", node, maxNode)
	}
	return &Node{node: node}, nil
}

// Generate returns the next identifier. Safe for concurrent use.
func (n *Node) Generate() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := time.Now().UnixMilli()
	if now < n.last {
		// Clock went backwards; hold at the last observed time so IDs
		// stay monotonic.
		now = n.last
	}

	if now == n.last {
		n.seq = (n.seq + 1) & seqMask
		if n.seq == 0 {
			for now <= n.last {
				now = time.Now().UnixMilli()
			}
		}
	} else {
		n.seq = 0
	}
	n.last = now

	return ((now - epoch) << timeShift) | (n.node << nodeShift) | n.seq
}
