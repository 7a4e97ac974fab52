// Package catalog proxies album search and detail lookups to the Spotify
// Web API, reshaping results into the compact forms the frontend consumes.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/recordshelf/apiserver/config"
	"github.com/recordshelf/apiserver/types"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
)

const defaultSearchLimit = 20

// Client wraps the Spotify API client with reshaping helpers.
type Client struct {
	api *spotify.Client
}

// New constructs a catalog client using the client-credentials flow.
// No user scope is needed; only public catalog data is read.
func New(ctx context.Context, cfg config.SpotifyConfig) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("spotify client id and secret are required")
	}

	creds := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	httpClient := creds.Client(ctx)
	return &Client{api: spotify.New(httpClient, spotify.WithRetry(true))}, nil
}

// SearchAlbums queries the catalog and reshapes matches.
func (c *Client) SearchAlbums(ctx context.Context, query string, limit int) ([]types.Album, error) {
	if limit < 1 || limit > 50 {
		limit = defaultSearchLimit
	}

	result, err := c.api.Search(ctx, query, spotify.SearchTypeAlbum, spotify.Limit(limit))
	if err != nil {
		return nil, fmt.Errorf("searching albums: %w", err)
	}
	if result.Albums == nil {
		return []types.Album{}, nil
	}

	albums := make([]types.Album, 0, len(result.Albums.Albums))
	for _, album := range result.Albums.Albums {
		albums = append(albums, convertAlbum(album))
	}
	return albums, nil
}

// GetAlbum fetches a single album with its track listing.
func (c *Client) GetAlbum(ctx context.Context, id string) (types.AlbumDetail, error) {
	full, err := c.api.GetAlbum(ctx, spotify.ID(id))
	if err != nil {
		return types.AlbumDetail{}, fmt.Errorf("fetching album: %w", err)
	}

	detail := types.AlbumDetail{
		Album:       convertAlbum(full.SimpleAlbum),
		ReleaseDate: full.ReleaseDate,
		TotalTracks: int(full.Tracks.Total),
		Tracks:      make([]types.AlbumTrack, 0, len(full.Tracks.Tracks)),
	}
	for _, track := range full.Tracks.Tracks {
		detail.Tracks = append(detail.Tracks, types.AlbumTrack{
			Number:     int(track.TrackNumber),
			Title:      track.Name,
			Artist:     joinArtists(track.Artists),
			DurationMS: int(track.Duration),
		})
	}
	return detail, nil
}

// convertAlbum reshapes a Spotify album into the client-facing form.
func convertAlbum(album spotify.SimpleAlbum) types.Album {
	coverURL := ""
	if len(album.Images) > 0 {
		coverURL = album.Images[0].URL
	}
	return types.Album{
		ID:       album.ID.String(),
		Title:    album.Name,
		Artist:   joinArtists(album.Artists),
		CoverURL: coverURL,
	}
}

func joinArtists(artists []spotify.SimpleArtist) string {
	names := make([]string, len(artists))
	for i, artist := range artists {
		names[i] = artist.Name
	}
	return strings.Join(names, ", ")
}
