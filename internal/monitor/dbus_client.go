package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
)

const (
	busInterface = "org.freedesktop.DBus"
	propsGet     = "org.freedesktop.DBus.Properties.Get"

	// players that hang on a property read must not stall signal handling
	callTimeout = 2 * time.Second
)

// DBusClient is the subset of a session bus connection the monitor needs.
//
//go:generate mockgen -destination=mocks/dbus_client_mock.go -package=mocks github.com/genricoloni/medialib/internal/monitor DBusClient
type DBusClient interface {
	Close() error
	AddMatchSignal(options ...dbus.MatchOption) error
	Signal(ch chan<- *dbus.Signal)

	// ListNames returns every name currently on the bus
	ListNames() ([]string, error)

	// GetNameOwner resolves a well-known name such as
	// "org.mpris.MediaPlayer2.spotify" to its unique name (":1.42")
	GetNameOwner(name string) (string, error)

	// GetProperty reads prop ("org.mpris.MediaPlayer2.Player.Metadata") from
	// the object at path on the named peer
	GetProperty(peer, path, prop string) (dbus.Variant, error)
}

// SessionClient is a DBusClient over a private session bus connection, so
// closing it leaves connections held by other components untouched.
type SessionClient struct {
	conn *dbus.Conn
}

// NewSessionClient connects to the session bus
func NewSessionClient() (*SessionClient, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}
	return &SessionClient{conn: conn}, nil
}

func (c *SessionClient) Close() error {
	return c.conn.Close()
}

func (c *SessionClient) AddMatchSignal(options ...dbus.MatchOption) error {
	return c.conn.AddMatchSignal(options...)
}

func (c *SessionClient) Signal(ch chan<- *dbus.Signal) {
	c.conn.Signal(ch)
}

func (c *SessionClient) ListNames() ([]string, error) {
	var names []string
	err := c.call(c.conn.BusObject(), busInterface+".ListNames").Store(&names)
	return names, err
}

func (c *SessionClient) GetNameOwner(name string) (string, error) {
	var owner string
	err := c.call(c.conn.BusObject(), busInterface+".GetNameOwner", name).Store(&owner)
	return owner, err
}

func (c *SessionClient) GetProperty(peer, path, prop string) (dbus.Variant, error) {
	var v dbus.Variant
	if !dbus.ObjectPath(path).IsValid() {
		return v, fmt.Errorf("invalid object path %q", path)
	}

	// Properties.Get takes the interface and the member separately
	iface, member := splitMember(prop)
	obj := c.conn.Object(peer, dbus.ObjectPath(path))
	err := c.call(obj, propsGet, iface, member).Store(&v)
	return v, err
}

func (c *SessionClient) call(obj dbus.BusObject, method string, args ...any) *dbus.Call {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	return obj.CallWithContext(ctx, method, 0, args...)
}

func splitMember(prop string) (string, string) {
	for i := len(prop) - 1; i >= 0; i-- {
		if prop[i] == '.' {
			return prop[:i], prop[i+1:]
		}
	}
	return "", prop
}
