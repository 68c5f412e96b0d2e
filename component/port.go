package component

// Direction for data flow
type Direction string

// Direction constants for port data flow
const (
	DirectionInput  Direction = "input"
	DirectionOutput Direction = "output"
)

// Port describes one endpoint a component reads from or writes to.
type Port struct {
	Name        string    `json:"name"`
	Direction   Direction `json:"direction"`
	Protocol    string    `json:"protocol"` // "zmq", "nats", "websocket"
	Address     string    `json:"address"`
	Required    bool      `json:"required"`
	Description string    `json:"description"`
}
