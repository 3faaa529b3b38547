// Package dbusapi exposes the dispatcher as an object on the D-Bus session bus.
package dbusapi

import (
	"context"
	"fmt"

	"github.com/genricoloni/medialib/internal/dispatcher"
	"github.com/genricoloni/medialib/internal/domain"
	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	// Interface is the D-Bus interface carrying the Invoke method
	Interface = "org.genricoloni.MediaLib"
	// ErrorPrefix prefixes the D-Bus error name of every failed call
	ErrorPrefix = Interface + ".Error."

	DefaultBusName    = "org.genricoloni.MediaLib"
	DefaultObjectPath = "/org/genricoloni/MediaLib"
)

const introspectXML = `<node>
	<interface name="` + Interface + `">
		<method name="Invoke">
			<arg name="method" direction="in" type="s"/>
			<arg name="args" direction="in" type="a{sv}"/>
			<arg name="result" direction="out" type="v"/>
		</method>
	</interface>` + introspect.IntrospectDataString + `</node>`

// BusConn is the subset of *dbus.Conn the service needs
//
//go:generate mockgen -destination=mocks/bus_conn_mock.go -package=mocks github.com/genricoloni/medialib/internal/transport/dbusapi BusConn
type BusConn interface {
	Export(v interface{}, path dbus.ObjectPath, iface string) error
	RequestName(name string, flags dbus.RequestNameFlags) (dbus.RequestNameReply, error)
	ReleaseName(name string) (dbus.ReleaseNameReply, error)
	Close() error
}

// Caller runs a single method against the media library
type Caller interface {
	Call(ctx context.Context, method string, args any) (dispatcher.Result, error)
}

// Service owns a well-known bus name and serves Invoke calls on it
type Service struct {
	logger  *zap.Logger
	conn    BusConn
	caller  Caller
	busName string
	path    dbus.ObjectPath

	ctx    context.Context
	cancel context.CancelFunc
}

// ConnectSessionBus opens a private session bus connection the service may close
func ConnectSessionBus() (*dbus.Conn, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("session bus connection failed: %w", err)
	}
	return conn, nil
}

// NewService creates a service. Empty names fall back to the defaults.
func NewService(logger *zap.Logger, conn BusConn, caller Caller, busName, objectPath string) *Service {
	if busName == "" {
		busName = DefaultBusName
	}
	if objectPath == "" {
		objectPath = DefaultObjectPath
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		logger:  logger,
		conn:    conn,
		caller:  caller,
		busName: busName,
		path:    dbus.ObjectPath(objectPath),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start exports the object and claims the bus name
func (s *Service) Start(ctx context.Context) error {
	if !s.path.IsValid() {
		return fmt.Errorf("invalid object path %q", s.path)
	}

	if err := s.conn.Export(&object{svc: s}, s.path, Interface); err != nil {
		return fmt.Errorf("failed to export media library object: %w", err)
	}
	if err := s.conn.Export(introspect.Introspectable(introspectXML), s.path, "org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("failed to export introspection data: %w", err)
	}

	reply, err := s.conn.RequestName(s.busName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("failed to request bus name %s: %w", s.busName, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner && reply != dbus.RequestNameReplyAlreadyOwner {
		return fmt.Errorf("bus name %s is already taken", s.busName)
	}

	s.logger.Info("D-Bus service started",
		zap.String("name", s.busName),
		zap.String("path", string(s.path)))
	return nil
}

// Stop releases the bus name and closes the connection
func (s *Service) Stop(ctx context.Context) error {
	s.cancel()

	var err error
	if _, releaseErr := s.conn.ReleaseName(s.busName); releaseErr != nil {
		err = multierr.Append(err, fmt.Errorf("release name: %w", releaseErr))
	}
	err = multierr.Append(err, s.conn.Export(nil, s.path, Interface))
	err = multierr.Append(err, s.conn.Close())

	s.logger.Info("D-Bus service stopped", zap.Error(err))
	return err
}

// object is the value exported on the bus; its exported methods become
// D-Bus methods of Interface
type object struct {
	svc *Service
}

// Invoke runs method with the given arguments. The reply carries a JSON
// string, or an int32 for authorization status calls.
func (o *object) Invoke(method string, args map[string]dbus.Variant) (dbus.Variant, *dbus.Error) {
	var bag any
	if args != nil {
		bag = unwrapMap(args)
	}

	res, err := o.svc.caller.Call(o.svc.ctx, method, bag)
	if err != nil {
		return dbus.Variant{}, toDBusError(err)
	}
	return dbus.MakeVariant(res.Value()), nil
}

func toDBusError(err error) *dbus.Error {
	ce := domain.ToCallError(err)
	return dbus.NewError(ErrorPrefix+ce.Code, []interface{}{ce.Message})
}

// unwrap turns variants and variant containers into plain Go values
func unwrap(v any) any {
	switch x := v.(type) {
	case dbus.Variant:
		return unwrap(x.Value())
	case map[string]dbus.Variant:
		return unwrapMap(x)
	case []dbus.Variant:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = unwrap(e.Value())
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = unwrap(e)
		}
		return out
	default:
		return v
	}
}

func unwrapMap(m map[string]dbus.Variant) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = unwrap(v.Value())
	}
	return out
}
