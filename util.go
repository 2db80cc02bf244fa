package anyseg

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

type classSumRes struct {
	In  anydiff.Res
	Out anyvec.Vector
}

// sumClasses sums a channel-last tensor over its voxels,
// producing one total per class.
func sumClasses(in anydiff.Res, classes int) anydiff.Res {
	if in.Output().Len()%classes != 0 {
		panic("class count must divide input size")
	}
	return &classSumRes{
		In:  in,
		Out: anyvec.SumRows(in.Output().Copy(), classes),
	}
}

func (c *classSumRes) Output() anyvec.Vector {
	return c.Out
}

func (c *classSumRes) Vars() anydiff.VarSet {
	return c.In.Vars()
}

func (c *classSumRes) Propagate(u anyvec.Vector, g anydiff.Grad) {
	if v, ok := c.In.(*anydiff.Var); ok {
		if downstream, ok := g[v]; ok {
			anyvec.AddRepeated(downstream, u)
		}
		return
	}
	downstream := u.Creator().MakeVector(c.In.Output().Len())
	anyvec.AddRepeated(downstream, u)
	c.In.Propagate(downstream, g)
}
