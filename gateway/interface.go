package gateway

import (
	"net/http"

	"github.com/TSherpa10/moodzy/component"
)

// Gateway is a request/response component that can also be mounted on an
// existing server through its handler.
type Gateway interface {
	component.LifecycleComponent

	// Handler returns the routed handler. It is valid before Start.
	Handler() http.Handler
}
