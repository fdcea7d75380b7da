package model

// PlaylistVideo is a single entry of an expanded playlist
type PlaylistVideo struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Playlist is an expanded playlist link
type Playlist struct {
	ID     string           `json:"id"`
	Title  string           `json:"title"`
	URL    string           `json:"url"`
	Videos []*PlaylistVideo `json:"videos"`
}

// NewPlaylist creates a new playlist instance
func NewPlaylist(url string) *Playlist {
	return &Playlist{
		URL:    url,
		Videos: make([]*PlaylistVideo, 0),
	}
}

// AddVideo adds a video to the playlist
func (p *Playlist) AddVideo(video *PlaylistVideo) {
	p.Videos = append(p.Videos, video)
}

// TotalVideos returns the number of entries
func (p *Playlist) TotalVideos() int {
	return len(p.Videos)
}

// Head returns at most n leading entries
func (p *Playlist) Head(n int) []*PlaylistVideo {
	if n <= 0 || n >= len(p.Videos) {
		return p.Videos
	}
	return p.Videos[:n]
}
