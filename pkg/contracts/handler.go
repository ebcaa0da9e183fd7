package contracts

import "github.com/julienschmidt/httprouter"

type Handler interface {
	RegisterRoutes(*httprouter.Router)
}

// Closer is a resource the application releases on shutdown after the
// HTTP server has drained.
type Closer interface {
	Close() error
}
