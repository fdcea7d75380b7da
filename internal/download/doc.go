package download

// Package download performs the blocking transfer of the streams named by a
// selection plan. Extraction back ends (yt-dlp through
// github.com/lrstanley/go-ytdlp, or the pure-Go github.com/kkdai/youtube/v2
// client) live in sub-packages behind the Backend interface; the Executor
// enforces the pre-flight size ceiling and folds per-stream progress into one
// byte count.
