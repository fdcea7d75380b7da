package platform

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ytget/yt-telegram-bot/internal/model"
)

// Timeout constants
const (
	DefaultPlaylistParseTimeout = 30 * time.Second
)

// URL parameters
const (
	PlaylistURLParam       = "list="
	PlaylistParamSeparator = "&"
)

// Default values
const (
	DefaultPlaylistTitle = "Untitled Playlist"
	PlaylistSuffix       = " Playlist"
	MinPrefixLength      = 10
	MaxTitleLength       = 50
	TitleTruncateSuffix  = "..."
)

// PlaylistParserService expands playlist links into their video entries
type PlaylistParserService struct {
	timeout time.Duration
	fetch   PlaylistFetcher
}

// NewPlaylistParserService creates a new playlist parser service. A nil
// fetcher uses FetchPlaylistItems.
func NewPlaylistParserService(fetch PlaylistFetcher) *PlaylistParserService {
	if fetch == nil {
		fetch = FetchPlaylistItems
	}
	return &PlaylistParserService{
		timeout: DefaultPlaylistParseTimeout,
		fetch:   fetch,
	}
}

// SetTimeout sets the timeout for playlist parsing
func (p *PlaylistParserService) SetTimeout(timeout time.Duration) {
	p.timeout = timeout
}

// IsPlaylistURL reports whether url carries a playlist parameter
func IsPlaylistURL(url string) bool {
	return strings.Contains(url, PlaylistURLParam)
}

// ParsePlaylist parses a YouTube playlist URL and returns playlist information
func (p *PlaylistParserService) ParsePlaylist(ctx context.Context, url string) (*model.Playlist, error) {
	if !IsPlaylistURL(url) {
		return nil, fmt.Errorf("invalid playlist URL format: %s", url)
	}

	playlistID, err := ExtractPlaylistID(url)
	if err != nil {
		return nil, err
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	videos, err := p.fetch(ctx, playlistID)
	if err != nil {
		return nil, fmt.Errorf("%w: playlist %s: %w", model.ErrSourceUnavailable, playlistID, err)
	}

	playlist := model.NewPlaylist(url)
	playlist.ID = playlistID
	for _, video := range videos {
		playlist.AddVideo(video)
	}
	playlist.Title = extractPlaylistTitle(playlist.Videos)

	return playlist, nil
}

// ExtractPlaylistID extracts the playlist ID from a YouTube playlist URL.
// Supported forms:
// - https://www.youtube.com/watch?v=VIDEO_ID&list=PLAYLIST_ID&start_radio=1
// - https://www.youtube.com/playlist?list=PLAYLIST_ID
func ExtractPlaylistID(url string) (string, error) {
	_, playlistID, found := strings.Cut(url, PlaylistURLParam)
	if !found {
		return "", fmt.Errorf("URL does not contain playlist parameter")
	}

	playlistID, _, _ = strings.Cut(playlistID, PlaylistParamSeparator)
	if playlistID == "" {
		return "", fmt.Errorf("empty playlist ID")
	}

	return playlistID, nil
}

// extractPlaylistTitle derives a title from the common prefix of the first entries
func extractPlaylistTitle(videos []*model.PlaylistVideo) string {
	if len(videos) == 0 {
		return DefaultPlaylistTitle
	}

	if len(videos) > 1 {
		prefix := findCommonPrefix(videos[0].Title, videos[1].Title)
		if len(prefix) > MinPrefixLength {
			return strings.TrimSpace(prefix) + PlaylistSuffix
		}
	}

	title := []rune(videos[0].Title)
	if len(title) > MaxTitleLength {
		return string(title[:MaxTitleLength]) + TitleTruncateSuffix + PlaylistSuffix
	}
	return string(title) + PlaylistSuffix
}

// findCommonPrefix finds the common prefix between two strings
func findCommonPrefix(s1, s2 string) string {
	minLen := min(len(s1), len(s2))
	for i := 0; i < minLen; i++ {
		if s1[i] != s2[i] {
			return s1[:i]
		}
	}
	return s1[:minLen]
}
