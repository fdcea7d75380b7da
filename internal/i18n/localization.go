// Package i18n holds the user-facing texts of the bot
package i18n

import "fmt"

// Supported languages
const (
	LangEnglish = "en"
	LangRussian = "ru"
)

// Key identifies a localized text
type Key string

// Text keys for localization
const (
	KeyStart            Key = "start"
	KeyHelp             Key = "help"
	KeyInvalidURL       Key = "invalid_url"
	KeyFetchingInfo     Key = "fetching_info"
	KeySourceFailed     Key = "source_failed"
	KeyNoFormats        Key = "no_formats"
	KeyChooseFormat     Key = "choose_format"
	KeyButtonVideo      Key = "button_video"
	KeyButtonAudio      Key = "button_audio"
	KeySessionExpired   Key = "session_expired"
	KeyBusy             Key = "busy"
	KeyStartingDownload Key = "starting_download"
	KeyDownloadProgress Key = "download_progress"
	KeyMerging          Key = "merging"
	KeyMergeProgress    Key = "merge_progress"
	KeyConverting       Key = "converting"
	KeyConvertProgress  Key = "convert_progress"
	KeySendingVideo     Key = "sending_video"
	KeySendingAudio     Key = "sending_audio"
	KeySendingParts     Key = "sending_parts"
	KeyVideoSent        Key = "video_sent"
	KeyAudioSent        Key = "audio_sent"
	KeyPartsSent        Key = "parts_sent"
	KeyDegradedSent     Key = "degraded_sent"
	KeyCaptionVideo     Key = "caption_video"
	KeyCaptionAudio     Key = "caption_audio"
	KeyCaptionPart      Key = "caption_part"
	KeyCaptionNoAudio   Key = "caption_no_audio"
	KeyNotFound         Key = "not_found"
	KeyFormatGone       Key = "format_gone"
	KeySizeRejected     Key = "size_rejected"
	KeyMergeFailed      Key = "merge_failed"
	KeyConversionFailed Key = "conversion_failed"
	KeyDeliveryFailed   Key = "delivery_failed"
	KeyUnknownError     Key = "unknown_error"
	KeyPlaylist         Key = "playlist"
	KeyPlaylistFailed   Key = "playlist_failed"
)

// Localization manages text translations
type Localization struct {
	currentLanguage string
	texts           map[string]map[Key]string
}

// NewLocalization creates a localization manager for lang, falling back to English
func NewLocalization(lang string) *Localization {
	l := &Localization{
		currentLanguage: LangEnglish,
		texts:           make(map[string]map[Key]string),
	}

	l.initializeTexts()
	l.SetLanguage(lang)
	return l
}

// SetLanguage sets the current language; unknown languages are ignored
func (l *Localization) SetLanguage(lang string) {
	if _, exists := l.texts[lang]; exists {
		l.currentLanguage = lang
	}
}

// GetText returns localized text for the given key
func (l *Localization) GetText(key Key) string {
	if texts, exists := l.texts[l.currentLanguage]; exists {
		if text, found := texts[key]; found {
			return text
		}
	}

	// Fallback to English
	if texts, exists := l.texts[LangEnglish]; exists {
		if text, found := texts[key]; found {
			return text
		}
	}

	// Final fallback - return key itself
	return string(key)
}

// Sprintf formats the localized text for key with args
func (l *Localization) Sprintf(key Key, args ...any) string {
	return fmt.Sprintf(l.GetText(key), args...)
}

// GetCurrentLanguage returns the current language code
func (l *Localization) GetCurrentLanguage() string {
	return l.currentLanguage
}

// GetAvailableLanguages returns map of available languages with their display names
func (l *Localization) GetAvailableLanguages() map[string]string {
	return map[string]string{
		LangEnglish: "English",
		LangRussian: "Русский",
	}
}

// initializeTexts initializes all text translations
func (l *Localization) initializeTexts() {
	l.texts[LangEnglish] = map[Key]string{
		KeyStart: "Hi, %s!\nSend me a YouTube link and I will download it for you.\n" +
			"You can pick a video quality (MP4) or audio (MP3).",
		KeyHelp: "How to use the bot:\n\n" +
			"1. Send a YouTube video link\n" +
			"2. Pick a quality or MP3 audio\n" +
			"3. Wait for the download and receive the file\n\n" +
			"Formats:\n• MP4 for video\n• MP3 for audio\n\n" +
			"Limits:\n• Files above %s are sent in parts\n• Maximum file size: %s",
		KeyInvalidURL:       "❌ Please send a valid YouTube video link.",
		KeyFetchingInfo:     "🔍 Fetching video info...",
		KeySourceFailed:     "❌ Could not get video info.",
		KeyNoFormats:        "❌ No downloadable formats found.",
		KeyChooseFormat:     "📹 Video: %s\n⏱️ Duration: %s\n👁️ Views: %s\n\nChoose a format:",
		KeyButtonVideo:      "📹 %s",
		KeyButtonAudio:      "🎵 MP3 Audio",
		KeySessionExpired:   "❌ Session expired, send the link again.",
		KeyBusy:             "⏳ A download is already in progress, please wait for it to finish.",
		KeyStartingDownload: "⏬ Starting download...",
		KeyDownloadProgress: "⏬ Downloading: %d%%",
		KeyMerging:          "🔧 Merging video and audio...",
		KeyMergeProgress:    "🔧 Merging: %d%%",
		KeyConverting:       "🎵 Converting to MP3...",
		KeyConvertProgress:  "🎵 Converting: %d%%",
		KeySendingVideo:     "📤 Sending video...",
		KeySendingAudio:     "📤 Sending audio...",
		KeySendingParts:     "📤 Sending file (%d parts)...",
		KeyVideoSent:        "✅ Video sent!",
		KeyAudioSent:        "✅ Audio sent!",
		KeyPartsSent:        "✅ File sent (%d parts)!",
		KeyDegradedSent:     "⚠️ Video sent WITHOUT audio: merging the audio track failed.",
		KeyCaptionVideo:     "📹 %s",
		KeyCaptionAudio:     "🎵 %s",
		KeyCaptionPart:      "📹 %s (part %d/%d)",
		KeyCaptionNoAudio:   "📹 %s (no audio)",
		KeyNotFound:         "❌ The selected quality is not available.",
		KeyFormatGone:       "❌ This format is no longer available, send the link again.",
		KeySizeRejected:     "❌ The file is too large: %s (limit %s).",
		KeyMergeFailed:      "❌ Failed to merge video and audio.",
		KeyConversionFailed: "❌ MP3 conversion failed.",
		KeyDeliveryFailed:   "❌ Failed to send the file.",
		KeyUnknownError:     "❌ An error occurred while downloading.",
		KeyPlaylist:         "📃 %s\nVideos: %d. Send one of these links:\n\n%s",
		KeyPlaylistFailed:   "❌ Could not read the playlist.",
	}

	l.texts[LangRussian] = map[Key]string{
		KeyStart: "Привет, %s!\nОтправь мне ссылку на YouTube видео, и я скачаю его для тебя.\n" +
			"Можешь выбрать формат: видео (MP4) или аудио (MP3).",
		KeyHelp: "Как пользоваться ботом:\n\n" +
			"1. Отправь ссылку на YouTube видео\n" +
			"2. Выбери качество или аудио MP3\n" +
			"3. Дождись загрузки и получи файл\n\n" +
			"Поддерживаемые форматы:\n• MP4 для видео\n• MP3 для аудио\n\n" +
			"Ограничения:\n• Файлы больше %s отправляются частями\n• Максимальный размер файла: %s",
		KeyInvalidURL:       "❌ Пожалуйста, отправь корректную ссылку на YouTube видео.",
		KeyFetchingInfo:     "🔍 Получаю информацию о видео...",
		KeySourceFailed:     "❌ Не удалось получить информацию о видео.",
		KeyNoFormats:        "❌ Не найдено доступных форматов для скачивания.",
		KeyChooseFormat:     "📹 Видео: %s\n⏱️ Длительность: %s\n👁️ Просмотры: %s\n\nВыберите формат для скачивания:",
		KeyButtonVideo:      "📹 %s",
		KeyButtonAudio:      "🎵 MP3 Audio",
		KeySessionExpired:   "❌ Сначала отправь ссылку на видео.",
		KeyBusy:             "⏳ Загрузка уже идёт, дождись её завершения.",
		KeyStartingDownload: "⏬ Начинаю скачивание...",
		KeyDownloadProgress: "⏬ Скачивание: %d%%",
		KeyMerging:          "🔧 Объединяю видео и аудио...",
		KeyMergeProgress:    "🔧 Объединение: %d%%",
		KeyConverting:       "🎵 Конвертирую в MP3...",
		KeyConvertProgress:  "🎵 Конвертация: %d%%",
		KeySendingVideo:     "📤 Отправляю видео...",
		KeySendingAudio:     "📤 Отправляю аудио...",
		KeySendingParts:     "📤 Отправляю файл (%d частей)...",
		KeyVideoSent:        "✅ Видео отправлено!",
		KeyAudioSent:        "✅ Аудио отправлено!",
		KeyPartsSent:        "✅ Файл отправлен (%d частей)!",
		KeyDegradedSent:     "⚠️ Видео отправлено БЕЗ звука: не удалось объединить аудиодорожку.",
		KeyCaptionVideo:     "📹 %s",
		KeyCaptionAudio:     "🎵 %s",
		KeyCaptionPart:      "📹 %s (часть %d/%d)",
		KeyCaptionNoAudio:   "📹 %s (без звука)",
		KeyNotFound:         "❌ Выбранное качество недоступно.",
		KeyFormatGone:       "❌ Этот формат больше недоступен, отправь ссылку ещё раз.",
		KeySizeRejected:     "❌ Файл слишком большой: %s (лимит %s).",
		KeyMergeFailed:      "❌ Не удалось объединить видео и аудио.",
		KeyConversionFailed: "❌ Ошибка при конвертации в MP3.",
		KeyDeliveryFailed:   "❌ Ошибка при отправке файла.",
		KeyUnknownError:     "❌ Произошла ошибка при скачивании.",
		KeyPlaylist:         "📃 %s\nВидео: %d. Отправь одну из ссылок:\n\n%s",
		KeyPlaylistFailed:   "❌ Не удалось прочитать плейлист.",
	}
}
