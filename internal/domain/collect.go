package domain

// GroupItems builds the result of a songs, albums or artists query from the
// matching songs in store order. Albums and artists become one collection per
// distinct id, ordered by first appearance.
func GroupItems(kind Kind, items []MediaItem) *QueryResult {
	res := &QueryResult{Items: items}

	var key func(MediaItem) PersistentID
	switch kind {
	case KindAlbums:
		key = func(it MediaItem) PersistentID { return it.AlbumID }
	case KindArtists:
		key = func(it MediaItem) PersistentID { return it.ArtistID }
	default:
		return res
	}

	index := make(map[PersistentID]int)
	for _, it := range items {
		k := key(it)
		i, ok := index[k]
		if !ok {
			i = len(res.Collections)
			index[k] = i
			res.Collections = append(res.Collections, Collection{ID: k})
		}
		res.Collections[i].Items = append(res.Collections[i].Items, it)
	}
	return res
}

// PlaylistResult builds the result of a playlists query: the matching
// playlists as collections, and all their songs concatenated in order.
func PlaylistResult(playlists []Collection) *QueryResult {
	res := &QueryResult{Collections: playlists}
	for _, p := range playlists {
		res.Items = append(res.Items, p.Items...)
	}
	return res
}
