package directory

import "github.com/tinode/snowflake"

// IDGenerator allocates seq_id values handed to SessionProxy.SubscribeTo,
// distinct per node so a clustered deployment never collides.
type IDGenerator struct {
	node *snowflake.Node
}

// NewIDGenerator constructs a generator for the given cluster node number.
func NewIDGenerator(nodeID int64) (*IDGenerator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, err
	}
	return &IDGenerator{node: node}, nil
}

// Next returns a fresh, monotonically-increasing (within this node) id.
func (g *IDGenerator) Next() uint64 {
	return uint64(g.node.Generate().Int64())
}
