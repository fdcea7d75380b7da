package platform

import (
	"context"
	"fmt"

	"github.com/ytget/ytdlp/v2"

	"github.com/ytget/yt-telegram-bot/internal/model"
)

// URL templates
const (
	YouTubeVideoURLTemplate = "https://www.youtube.com/watch?v=%s"
)

// PlaylistFetcher lists the entries of a playlist id
type PlaylistFetcher func(ctx context.Context, playlistID string) ([]*model.PlaylistVideo, error)

// FetchPlaylistItems lists playlist entries with github.com/ytget/ytdlp/v2
func FetchPlaylistItems(ctx context.Context, playlistID string) ([]*model.PlaylistVideo, error) {
	items, err := ytdlp.New().GetPlaylistItemsAll(ctx, playlistID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to get playlist items: %w", err)
	}

	videos := make([]*model.PlaylistVideo, 0, len(items))
	for _, it := range items {
		if it.VideoID == "" {
			continue
		}
		videos = append(videos, &model.PlaylistVideo{
			ID:    it.VideoID,
			Title: it.Title,
			URL:   fmt.Sprintf(YouTubeVideoURLTemplate, it.VideoID),
		})
	}
	return videos, nil
}
