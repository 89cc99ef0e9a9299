package spotify

// RecentlyPlayedPage is one page of GET /me/player/recently-played
type RecentlyPlayedPage struct {
	Href    string        `json:"href"`
	Items   []PlayHistory `json:"items"`
	Limit   int           `json:"limit"`
	Next    string        `json:"next"`
	Cursors *Cursors      `json:"cursors"`
	Total   int           `json:"total"`
}

// Cursors carries the paging positions, as epoch milliseconds in string form
type Cursors struct {
	After  string `json:"after"`
	Before string `json:"before"`
}

// PlayHistory is one played track. Fields are kept close to the wire format;
// required fields are checked when the item is normalized, not here.
type PlayHistory struct {
	PlayedAt string   `json:"played_at"`
	Track    *Track   `json:"track"`
	Context  *Context `json:"context"`
}

// Context describes what the track was played from (playlist, album, ...)
type Context struct {
	Type string `json:"type"`
	URI  string `json:"uri"`
}

// Track is a full track object
type Track struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	URI        string   `json:"uri"`
	DurationMs int      `json:"duration_ms"`
	Popularity *int     `json:"popularity"`
	Explicit   bool     `json:"explicit"`
	Artists    []Artist `json:"artists"`
	Album      *Album   `json:"album"`
}

// Artist is a simplified artist object
type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// Album is a simplified album object
type Album struct {
	ID                   string   `json:"id"`
	Name                 string   `json:"name"`
	AlbumType            string   `json:"album_type"`
	ReleaseDate          string   `json:"release_date"`
	ReleaseDatePrecision string   `json:"release_date_precision"`
	TotalTracks          int      `json:"total_tracks"`
	Artists              []Artist `json:"artists"`
}

// apiError is the error body the Web API returns on non-2xx responses
type apiError struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}
