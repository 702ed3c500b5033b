package contracts

import (
	"context"

	"github.com/julienschmidt/httprouter"
)

// Handler mounts a group of routes on the shared API router.
type Handler interface {
	RegisterRoutes(*httprouter.Router)
}

// Pinger reports whether a backing store can serve requests.
type Pinger interface {
	Ping(ctx context.Context) error
}
