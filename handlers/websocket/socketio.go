package websocket

import (
	"dispatch-gateway/hub"

	"github.com/sirupsen/logrus"
	"github.com/zishang520/engine.io/v2/types"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

const maxHttpBufferSize = 1_000_000

// conn is the slice of a Socket.IO socket the hub binding needs.
type conn interface {
	ID() string
	Emit(event string, payload any) error
	On(event string, fn func(args ...any))
	Disconnect()
}

type socketConn struct {
	socket *socketio.Socket
}

func (c *socketConn) ID() string {
	return string(c.socket.Id())
}

func (c *socketConn) Emit(event string, payload any) error {
	return c.socket.Emit(event, payload)
}

func (c *socketConn) On(event string, fn func(args ...any)) {
	c.socket.On(event, fn)
}

func (c *socketConn) Disconnect() {
	c.socket.RemoveAllListeners("")
	c.socket.Disconnect(true)
}

// SetupSocketIO creates the Socket.IO server and binds every connection to h.
func SetupSocketIO(corsOrigin string, h *hub.Hub) *socketio.Server {
	opts := socketio.DefaultServerOptions()
	opts.SetMaxHttpBufferSize(maxHttpBufferSize)
	opts.SetPath("/socket.io")
	opts.SetAllowEIO3(true)
	opts.SetCors(&types.Cors{
		Origin:      corsOrigin,
		Credentials: true,
	})
	ioo := socketio.NewServer(nil, opts)

	ioo.On("connection", func(clients ...any) {
		socket, ok := clients[0].(*socketio.Socket)
		if !ok {
			return
		}
		bind(h, &socketConn{socket: socket})
	})
	return ioo
}

// bind attaches c to the hub and forwards its inbound events until it
// disconnects.
func bind(h *hub.Hub, c conn) *hub.Session {
	log := logrus.WithField("conn_id", c.ID())

	session, err := h.Attach(c)
	if err != nil {
		log.WithError(err).Warn("Failed to attach connection")
		c.Disconnect()
		return nil
	}
	log.Debug("Connection attached")

	for _, kind := range hub.InboundKinds {
		kind := kind
		c.On(kind, func(args ...any) {
			var payload any
			if len(args) > 0 {
				payload = args[0]
			}
			session.Receive(kind, payload)
		})
	}

	c.On("disconnect", func(args ...any) {
		log.WithField("reason", args).Debug("Connection closed")
		c.Disconnect()
		session.Close()
	})
	return session
}
