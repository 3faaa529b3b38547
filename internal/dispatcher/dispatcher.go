// Package dispatcher routes a method call with an untyped argument bag to the
// matching query pipeline and returns the encoded response.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/genricoloni/medialib/internal/domain"
	"github.com/genricoloni/medialib/internal/encoder"
	"github.com/genricoloni/medialib/internal/paging"
	"github.com/genricoloni/medialib/internal/projector"
	"github.com/genricoloni/medialib/internal/query"
	"github.com/genricoloni/medialib/internal/request"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// State is the availability of the media library to callers
type State int

const (
	// StateUnavailable means no store is present; every call fails
	StateUnavailable State = iota
	// StateUnauthorized means no grant has been observed yet
	StateUnauthorized
	// StateReady means access was granted
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUnavailable:
		return "unavailable"
	case StateUnauthorized:
		return "unauthorized"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Result is the successful outcome of a call: a JSON document, or an
// authorization status code for authorize and authorizationStatus.
type Result struct {
	JSON   string
	Status *domain.AuthorizationStatus
}

// Value returns the payload carried by the result
func (r Result) Value() any {
	if r.Status != nil {
		return int32(*r.Status)
	}
	return r.JSON
}

// Options tunes dispatcher behaviour
type Options struct {
	// RequireAuthorization rejects query operations until access is granted
	RequireAuthorization bool
}

// Dispatcher is the entry point of the query facade
type Dispatcher struct {
	logger     *zap.Logger
	store      domain.Store
	authorizer domain.Authorizer
	projector  *projector.Projector
	opts       Options

	authorize singleflight.Group
	ready     atomic.Bool
}

// NewDispatcher creates a dispatcher. A nil store puts it in the
// unavailable state.
func NewDispatcher(
	logger *zap.Logger,
	store domain.Store,
	authorizer domain.Authorizer,
	proj *projector.Projector,
	opts Options,
) *Dispatcher {
	return &Dispatcher{
		logger:     logger,
		store:      store,
		authorizer: authorizer,
		projector:  proj,
		opts:       opts,
	}
}

// State reports the current dispatcher state
func (d *Dispatcher) State() State {
	switch {
	case d.store == nil:
		return StateUnavailable
	case d.ready.Load():
		return StateReady
	default:
		return StateUnauthorized
	}
}

// Call runs a single method. Errors are always *domain.CallError.
func (d *Dispatcher) Call(ctx context.Context, method string, args any) (Result, error) {
	start := time.Now()
	logger := d.logger.With(
		zap.String("requestId", uuid.NewString()),
		zap.String("method", method),
	)

	res, err := d.call(ctx, method, args)
	if err != nil {
		ce := domain.ToCallError(err)
		if ce.Code == domain.CodeInternal {
			logger.Error("Call failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		} else {
			logger.Debug("Call rejected", zap.String("code", ce.Code), zap.Error(err))
		}
		return Result{}, ce
	}

	logger.Debug("Call completed", zap.Duration("elapsed", time.Since(start)))
	return res, nil
}

func (d *Dispatcher) call(ctx context.Context, method string, args any) (Result, error) {
	if d.store == nil {
		return Result{}, domain.ErrCapabilityUnavailable
	}

	req, err := request.Parse(method, args)
	if err != nil {
		return Result{}, err
	}

	switch req.(type) {
	case request.Authorize:
		return statusResult(d.requestAuthorization(ctx)), nil
	case request.AuthorizationStatus:
		return statusResult(d.authorizationStatus(ctx)), nil
	}

	if d.opts.RequireAuthorization && !d.authorized(ctx) {
		return Result{}, domain.ErrUnauthorized
	}

	q, err := query.Build(req)
	if err != nil {
		return Result{}, err
	}

	res, err := d.store.Query(ctx, q)
	if err != nil {
		return Result{}, fmt.Errorf("store query %s: %w", q.Kind, err)
	}

	var out any
	switch r := req.(type) {
	case request.GetAlbum:
		out, err = d.getAlbum(ctx, r, res)
	case request.GetArtist:
		out, err = d.getArtist(ctx, r, res)
	case request.GetPlaylistSongs:
		out, err = d.songs(ctx, res.Items, r.Page)
	case request.SearchSongs:
		out, err = d.songs(ctx, res.Items, r.Page)
	case request.SearchAlbums:
		out, err = d.albums(ctx, res.Collections, r.Page)
	case request.SearchArtists:
		out, err = d.artists(ctx, res.Collections, r.Page)
	case request.SearchPlaylists:
		out, err = d.playlists(res.Collections, r.Page)
	case request.GetRecentTracks:
		out, err = d.recentTracks(ctx, res.Items, r)
	default:
		err = fmt.Errorf("%w: %s", domain.ErrUnknownMethod, method)
	}
	if err != nil {
		return Result{}, err
	}

	doc, err := encoder.Encode(out)
	if err != nil {
		return Result{}, err
	}
	return Result{JSON: doc}, nil
}

func (d *Dispatcher) getAlbum(ctx context.Context, r request.GetAlbum, res *domain.QueryResult) (any, error) {
	c, ok := find(res.Collections, r.ID)
	if !ok {
		return nil, fmt.Errorf("%w: album %s", domain.ErrNotFound, r.ID)
	}
	album, ok := d.projector.FullAlbum(ctx, c, c.Items)
	if !ok {
		return nil, fmt.Errorf("%w: album %s lacks a title or artist", domain.ErrNotFound, r.ID)
	}
	return album, nil
}

func (d *Dispatcher) getArtist(ctx context.Context, r request.GetArtist, res *domain.QueryResult) (any, error) {
	c, ok := find(res.Collections, r.ID)
	if !ok {
		return nil, fmt.Errorf("%w: artist %s", domain.ErrNotFound, r.ID)
	}
	artist, ok := d.projector.Artist(ctx, c, domain.TierHigh)
	if !ok {
		return nil, fmt.Errorf("%w: artist %s has no name", domain.ErrNotFound, r.ID)
	}
	return artist, nil
}

func (d *Dispatcher) songs(ctx context.Context, items []domain.MediaItem, p paging.Page) (any, error) {
	page, err := paging.Slice(filter(items, projector.IsSong), p)
	if err != nil {
		return nil, err
	}
	return d.projector.Songs(ctx, page, domain.TierLow), nil
}

func (d *Dispatcher) albums(ctx context.Context, cs []domain.Collection, p paging.Page) (any, error) {
	page, err := paging.Slice(filter(cs, projector.IsAlbum), p)
	if err != nil {
		return nil, err
	}
	return d.projector.Albums(ctx, page, domain.TierLow), nil
}

func (d *Dispatcher) artists(ctx context.Context, cs []domain.Collection, p paging.Page) (any, error) {
	page, err := paging.Slice(filter(cs, projector.IsArtist), p)
	if err != nil {
		return nil, err
	}
	return d.projector.Artists(ctx, page, domain.TierLow), nil
}

func (d *Dispatcher) playlists(cs []domain.Collection, p paging.Page) (any, error) {
	page, err := paging.Slice(filter(cs, projector.IsPlaylist), p)
	if err != nil {
		return nil, err
	}
	return d.projector.Playlists(page), nil
}

// recentTracks keeps played songs newer than the bound, most recent first.
// Ties keep store order.
func (d *Dispatcher) recentTracks(ctx context.Context, items []domain.MediaItem, r request.GetRecentTracks) (any, error) {
	played := filter(items, func(it domain.MediaItem) bool {
		if !projector.IsPlayedSong(it) {
			return false
		}
		return r.After == nil || it.LastPlayed.After(*r.After)
	})
	slices.SortStableFunc(played, func(a, b domain.MediaItem) int {
		return b.LastPlayed.Compare(*a.LastPlayed)
	})

	page, err := paging.Slice(played, r.Page)
	if err != nil {
		return nil, err
	}
	return d.projector.PlayedSongs(ctx, page, domain.TierLow), nil
}

// requestAuthorization prompts once for all concurrent callers. The prompt
// outlives the caller's context; a failure reports restricted.
func (d *Dispatcher) requestAuthorization(ctx context.Context) domain.AuthorizationStatus {
	if d.authorizer == nil {
		return domain.AuthorizationRestricted
	}

	v, _, shared := d.authorize.Do("authorize", func() (any, error) {
		status, err := d.authorizer.Request(context.WithoutCancel(ctx))
		if err != nil {
			d.logger.Warn("Authorization request failed", zap.Error(err))
			return domain.AuthorizationRestricted, nil
		}
		d.logger.Info("Authorization answered", zap.Stringer("status", status))
		return status, nil
	})

	status := v.(domain.AuthorizationStatus)
	if shared {
		d.logger.Debug("Joined in-flight authorization request")
	}
	d.ready.Store(status == domain.AuthorizationAuthorized)
	return status
}

func (d *Dispatcher) authorizationStatus(ctx context.Context) domain.AuthorizationStatus {
	if d.authorizer == nil {
		return domain.AuthorizationRestricted
	}

	status, err := d.authorizer.Status(ctx)
	if err != nil {
		d.logger.Warn("Authorization status unavailable", zap.Error(err))
		return domain.AuthorizationRestricted
	}
	d.ready.Store(status == domain.AuthorizationAuthorized)
	return status
}

// authorized checks the grant, consulting the permission system when no
// grant was observed yet
func (d *Dispatcher) authorized(ctx context.Context) bool {
	if d.ready.Load() {
		return true
	}
	return d.authorizationStatus(ctx) == domain.AuthorizationAuthorized
}

func statusResult(s domain.AuthorizationStatus) Result {
	return Result{Status: &s}
}

func find(cs []domain.Collection, id domain.PersistentID) (domain.Collection, bool) {
	for _, c := range cs {
		if c.ID == id {
			return c, true
		}
	}
	return domain.Collection{}, false
}

func filter[T any](in []T, keep func(T) bool) []T {
	out := make([]T, 0, len(in))
	for _, v := range in {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}

// IsCallError reports whether err carries the given code
func IsCallError(err error, code string) bool {
	var ce *domain.CallError
	return errors.As(err, &ce) && ce.Code == code
}
