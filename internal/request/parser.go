package request

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/genricoloni/medialib/internal/domain"
	"github.com/genricoloni/medialib/internal/paging"
)

// maxMillis is 2^63, the first float64 past the int64 range
const maxMillis = 1 << 63

// Parse builds the typed request for method from its raw arguments.
// args is either nil (no arguments) or a string-keyed map of loosely typed
// values. Failures wrap domain.ErrMalformedRequest, unknown methods wrap
// domain.ErrUnknownMethod.
func Parse(method string, args any) (Request, error) {
	switch method {
	case MethodAuthorize:
		return Authorize{}, nil
	case MethodAuthorizationStatus:
		return AuthorizationStatus{}, nil
	}

	bag, err := asBag(args)
	if err != nil {
		return nil, err
	}

	switch method {
	case MethodGetAlbum:
		id, err := bag.requiredID("id")
		if err != nil {
			return nil, err
		}
		return GetAlbum{ID: id}, nil

	case MethodGetArtist:
		id, err := bag.requiredID("id")
		if err != nil {
			return nil, err
		}
		return GetArtist{ID: id}, nil

	case MethodGetPlaylistSongs:
		// query carries the playlist id for this call
		id, err := bag.requiredID("query")
		if err != nil {
			return nil, err
		}
		page, err := bag.page()
		if err != nil {
			return nil, err
		}
		return GetPlaylistSongs{PlaylistID: id, Page: page}, nil

	case MethodSearchSongs:
		s, err := bag.search(false)
		if err != nil {
			return nil, err
		}
		return SearchSongs{s}, nil

	case MethodSearchAlbums:
		s, err := bag.search(false)
		if err != nil {
			return nil, err
		}
		return SearchAlbums{s}, nil

	case MethodSearchArtists:
		s, err := bag.search(true)
		if err != nil {
			return nil, err
		}
		return SearchArtists{s}, nil

	case MethodSearchPlaylists:
		q, err := bag.requiredString("query")
		if err != nil {
			return nil, err
		}
		page, err := bag.page()
		if err != nil {
			return nil, err
		}
		return SearchPlaylists{Search{Query: &q, Page: page}}, nil

	case MethodGetRecentTracks:
		page, err := bag.page()
		if err != nil {
			return nil, err
		}
		after, err := bag.optionalTime("after")
		if err != nil {
			return nil, err
		}
		return GetRecentTracks{Page: page, After: after}, nil
	}

	return nil, fmt.Errorf("%w: %q", domain.ErrUnknownMethod, method)
}

type bag map[string]any

func asBag(args any) (bag, error) {
	switch m := args.(type) {
	case map[string]any:
		return bag(m), nil
	case bag:
		return m, nil
	case nil:
		return nil, malformed("missing arguments")
	default:
		return nil, malformed("arguments are %T, want a map", args)
	}
}

func malformed(format string, a ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrMalformedRequest, fmt.Sprintf(format, a...))
}

// search parses {query, artistId, limit, page}. Both filter keys must be
// present; a null value disables that filter. With queryRequired the query
// must also be non-null, and artistId may be omitted.
func (b bag) search(queryRequired bool) (Search, error) {
	var s Search

	if queryRequired {
		q, err := b.requiredString("query")
		if err != nil {
			return s, err
		}
		s.Query = &q
	} else {
		q, err := b.nullableString("query")
		if err != nil {
			return s, err
		}
		s.Query = q
	}

	if _, present := b["artistId"]; present || !queryRequired {
		raw, err := b.nullableString("artistId")
		if err != nil {
			return s, err
		}
		if raw != nil {
			id, err := domain.ParsePersistentID(*raw)
			if err != nil {
				return s, malformed("artistId: %v", err)
			}
			s.ArtistID = &id
		}
	}

	page, err := b.page()
	if err != nil {
		return s, err
	}
	s.Page = page
	return s, nil
}

func (b bag) page() (paging.Page, error) {
	limit, err := b.positiveInt("limit")
	if err != nil {
		return paging.Page{}, err
	}
	page, err := b.positiveInt("page")
	if err != nil {
		return paging.Page{}, err
	}
	return paging.Page{Limit: limit, Page: page}, nil
}

func (b bag) requiredString(key string) (string, error) {
	v, ok := b[key]
	if !ok || v == nil {
		return "", malformed("%s is required", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", malformed("%s is %T, want string", key, v)
	}
	return s, nil
}

// nullableString distinguishes a missing key (error) from an explicit null (nil)
func (b bag) nullableString(key string) (*string, error) {
	v, ok := b[key]
	if !ok {
		return nil, malformed("%s is missing", key)
	}
	if v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, malformed("%s is %T, want string or null", key, v)
	}
	return &s, nil
}

func (b bag) requiredID(key string) (domain.PersistentID, error) {
	s, err := b.requiredString(key)
	if err != nil {
		return 0, err
	}
	id, err := domain.ParsePersistentID(s)
	if err != nil {
		return 0, malformed("%s: %v", key, err)
	}
	return id, nil
}

func (b bag) positiveInt(key string) (int, error) {
	v, ok := b[key]
	if !ok || v == nil {
		return 0, malformed("%s is required", key)
	}
	n, ok := toInt(v)
	if !ok {
		return 0, malformed("%s is %v (%T), want integer", key, v, v)
	}
	if n <= 0 {
		return 0, malformed("%s must be positive, got %d", key, n)
	}
	return n, nil
}

// optionalTime reads epoch milliseconds; missing or null means no bound
func (b bag) optionalTime(key string) (*time.Time, error) {
	v, ok := b[key]
	if !ok || v == nil {
		return nil, nil
	}
	ms, ok := toFloat(v)
	if !ok || math.IsNaN(ms) || math.IsInf(ms, 0) {
		return nil, malformed("%s is %v (%T), want epoch milliseconds", key, v, v)
	}
	t := fromMillis(ms)
	return &t, nil
}

// fromMillis converts fractional epoch milliseconds, saturating at the
// int64 millisecond range
func fromMillis(ms float64) time.Time {
	switch {
	case ms >= maxMillis:
		return time.UnixMilli(math.MaxInt64)
	case ms < -maxMillis:
		return time.UnixMilli(math.MinInt64)
	}
	whole := math.Floor(ms)
	return time.UnixMilli(int64(whole)).Add(time.Duration((ms - whole) * float64(time.Millisecond)))
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		if n > math.MaxInt || n < math.MinInt {
			return 0, false
		}
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint:
		if n > math.MaxInt {
			return 0, false
		}
		return int(n), true
	case uint64:
		if n > math.MaxInt {
			return 0, false
		}
		return int(n), true
	case float64:
		if n != math.Trunc(n) || n >= maxMillis || n < -maxMillis {
			return 0, false
		}
		return toInt(int64(n))
	case float32:
		return toInt(float64(n))
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return toInt(i)
		}
		// "10.0" and "1e3" are integral but not valid Int64 syntax
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return toInt(f)
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	if i, ok := toInt(v); ok {
		return float64(i), true
	}
	return 0, false
}
