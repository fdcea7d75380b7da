package model

import "testing"

func TestPlaylist_Head(t *testing.T) {
	p := NewPlaylist("https://www.youtube.com/playlist?list=PL1")
	for _, id := range []string{"a", "b", "c"} {
		p.AddVideo(&PlaylistVideo{ID: id})
	}

	if p.TotalVideos() != 3 {
		t.Fatalf("expected 3 videos, got %d", p.TotalVideos())
	}

	tests := []struct {
		n        int
		expected int
	}{
		{0, 3},
		{2, 2},
		{3, 3},
		{10, 3},
	}

	for _, test := range tests {
		if got := len(p.Head(test.n)); got != test.expected {
			t.Errorf("Head(%d) returned %d entries, expected %d", test.n, got, test.expected)
		}
	}
}
