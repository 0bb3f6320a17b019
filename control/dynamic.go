package control

import "context"

// DynamicController is reserved for price/forecast-driven scheduling. It is
// not implemented upstream; Run refuses to start rather than silently doing
// nothing.
type DynamicController struct {
	base
}

// NewDynamicController builds a DynamicController. Calling Run on it always
// fails with ErrModeNotImplemented.
func NewDynamicController(deps Deps) *DynamicController {
	return &DynamicController{base: newBase(deps)}
}

func (c *DynamicController) Mode() Mode { return ModeDynamic }

func (c *DynamicController) Status() ControllerStatus {
	s := c.base.Status()
	s.Mode = ModeDynamic
	return s
}

func (c *DynamicController) Run(ctx context.Context) error {
	return ErrModeNotImplemented
}
