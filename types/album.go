package types

// Album is the reshaped catalog search result served to clients.
// Albums live in the external catalog; only the ID is referenced locally.
type Album struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	CoverURL string `json:"cover_url"`
}

// AlbumDetail extends Album with release info and the track listing,
// served by the album detail endpoint.
type AlbumDetail struct {
	Album
	ReleaseDate string       `json:"release_date,omitempty"`
	TotalTracks int          `json:"total_tracks"`
	Tracks      []AlbumTrack `json:"tracks"`
}

// AlbumTrack is a single entry in an album's track listing.
type AlbumTrack struct {
	Number     int    `json:"number"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	DurationMS int    `json:"duration_ms"`
}
