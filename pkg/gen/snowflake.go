package gen

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

var Module = fx.Module("gen", fx.Provide(NewNode))

// NewNode builds the process-wide snowflake ID generator. Single-instance
// deployment, so the node ID is fixed.
func NewNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
