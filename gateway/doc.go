// Package gateway holds the configuration and contract shared by moodzy's
// request/response surfaces.
//
// A gateway is a component that answers external requests against in-process
// state. The REST gateway in gateway/http serves the user registry:
//
//	GET    /            hello
//	GET    /users       list, most recently created first
//	POST   /users       create (201)
//	PATCH  /users/:id   partial update
//	DELETE /users/:id   remove (204)
//	DELETE /users       clear all, returns {"cleared": n}
//	GET    /health      aggregated component health (200 or 503)
//
// Gateways differ from outputs: outputs push (the broadcast hub), gateways
// answer.
//
// # Configuration
//
//	{
//	  "port": 3000,
//	  "cors_origins": ["*"],
//	  "max_request_size": 65536
//	}
package gateway
