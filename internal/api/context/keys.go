package context

import (
	"context"

	"github.com/julienschmidt/httprouter"
)

type Key string

const (
	Claims Key = "claims"
	Params Key = "params"
)

// Param reads a path parameter injected by the router.
func Param(ctx context.Context, name string) string {
	ps, ok := ctx.Value(Params).(httprouter.Params)
	if !ok {
		return ""
	}
	return ps.ByName(name)
}
