package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/masomo-quiz/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind parses `?ordering=field,-other` into DB orderings. fields not in allowed are dropped.
func (ord *Ordering) Bind(ctx echo.Context, allowed core.OrderingFields) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}
	ord.Orderings = allowed.Parse(val)
}
