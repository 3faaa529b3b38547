// Package auth implements the permission systems that guard the media library.
package auth

import (
	"context"
	"fmt"
	"os"

	"github.com/genricoloni/medialib/internal/domain"
	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

const (
	polkitBusName    = "org.freedesktop.PolicyKit1"
	polkitObjectPath = "/org/freedesktop/PolicyKit1/Authority"
	polkitCheck      = "org.freedesktop.PolicyKit1.Authority.CheckAuthorization"

	// DefaultAction is the polkit action id checked when none is configured
	DefaultAction = "org.genricoloni.medialib.read"

	flagNone                 uint32 = 0
	flagAllowUserInteraction uint32 = 1
)

// Caller is the subset of a D-Bus object the polkit client needs
type Caller interface {
	CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

// subject marshals as the polkit (sa{sv}) subject struct
type subject struct {
	Kind    string
	Details map[string]dbus.Variant
}

// Polkit asks the polkit authority whether this process may read the library
type Polkit struct {
	logger *zap.Logger
	obj    Caller
	action string
	pid    uint32
}

// NewPolkit connects to the polkit authority on the system bus
func NewPolkit(logger *zap.Logger, action string) (*Polkit, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("system bus connection failed: %w", err)
	}
	return NewPolkitWithCaller(logger, conn.Object(polkitBusName, polkitObjectPath), action), nil
}

// NewPolkitWithCaller builds a polkit client over an existing D-Bus object
func NewPolkitWithCaller(logger *zap.Logger, obj Caller, action string) *Polkit {
	if action == "" {
		action = DefaultAction
	}
	return &Polkit{
		logger: logger,
		obj:    obj,
		action: action,
		pid:    uint32(os.Getpid()),
	}
}

// Status checks the grant without prompting. A grant that would need a
// prompt is reported as not determined.
func (p *Polkit) Status(ctx context.Context) (domain.AuthorizationStatus, error) {
	authorized, challenge, err := p.check(ctx, flagNone)
	if err != nil {
		return domain.AuthorizationNotDetermined, err
	}
	switch {
	case authorized:
		return domain.AuthorizationAuthorized, nil
	case challenge:
		return domain.AuthorizationNotDetermined, nil
	default:
		return domain.AuthorizationDenied, nil
	}
}

// Request lets polkit prompt the user through the session agent and blocks
// until the prompt is answered
func (p *Polkit) Request(ctx context.Context) (domain.AuthorizationStatus, error) {
	p.logger.Info("Requesting media library authorization", zap.String("action", p.action))

	authorized, _, err := p.check(ctx, flagAllowUserInteraction)
	if err != nil {
		return domain.AuthorizationNotDetermined, err
	}
	if authorized {
		return domain.AuthorizationAuthorized, nil
	}
	return domain.AuthorizationDenied, nil
}

func (p *Polkit) check(ctx context.Context, flags uint32) (authorized, challenge bool, err error) {
	subj := subject{
		Kind: "unix-process",
		Details: map[string]dbus.Variant{
			"pid":        dbus.MakeVariant(p.pid),
			"start-time": dbus.MakeVariant(uint64(0)),
		},
	}

	var details map[string]string
	call := p.obj.CallWithContext(ctx, polkitCheck, 0, subj, p.action, map[string]string{}, flags, "")
	if err := call.Store(&authorized, &challenge, &details); err != nil {
		return false, false, fmt.Errorf("polkit CheckAuthorization failed: %w", err)
	}

	p.logger.Debug("Polkit answered",
		zap.String("action", p.action),
		zap.Bool("authorized", authorized),
		zap.Bool("challenge", challenge))
	return authorized, challenge, nil
}
