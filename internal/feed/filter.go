package feed

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"utadex/internal/holodex"
)

// DefaultMusicTopics is the topic filter applied to browse requests
// when the caller specifies none
var DefaultMusicTopics = []string{
	"singing", "Music_Cover", "Original_Song", "music", "mv", "karaoke", "3D_Stream", "concert",
}

var strictCoreMusicTopics = map[string]struct{}{
	"singing":       {},
	"Music_Cover":   {},
	"Original_Song": {},
}

var musicKeywords = []string{
	"cover", "歌ってみた", "song", "singing", "karaoke", "mv", "original song", "original", "music",
	"op/ed", "theme", "曲", "歌枠", "オリジナル曲", "アコースティック", "acoustic", "live", "concert",
	"弾き語り", "音楽", "medley", "arrange", "remix", "instrumental", "bgm", "soundtrack", "ost",
	"vocaloid", "ボカロ", "album", "single", "ギター", "guitar", "piano", "ピアノ", "うた",
	"歌", "ソング", "ミュージック", "official audio", "music video",
}

var channelMusicKeywords = []string{
	"music", "song", "cover", "vsinger", "singer", "utaite", "archive", "records",
	"official channel", "ミュージック", "音楽",
}

// Generic or absent topics where a music-adjacent channel name plus a
// title keyword still qualifies a video.
var genericTopics = map[string]struct{}{
	"3D_Stream": {},
	"FreeChat":  {},
	"雑談":        {},
	"misc":      {},
	"unknown":   {},
	"":          {},
}

var fullWidthPunct = strings.NewReplacer(
	"（", "(", "）", ")",
	"［", "[", "］", "]",
	"｛", "{", "｝", "}",
	"／", "/", "｜", "|",
	"＠", "@", "＃", "#",
	"＄", "$", "％", "%",
	"＆", "&", "＊", "*",
	"＋", "+", "－", "-",
	"＝", "=", "：", ":",
	"；", ";", "！", "!",
	"？", "?", "～", "~",
	"＜", "<", "＞", ">",
	"．", ".", "，", ",",
	"‘", "'", "’", "'",
	"“", `"`, "”", `"`,
	"　", " ",
)

// normalizeTitle folds full-width, stylized, and accented characters
// to plain ASCII so keyword matching works on decorated titles.
// Handles the mathematical alphanumeric blocks, enclosed letters,
// regional indicators, and diacritics.
func normalizeTitle(title string) string {
	s := fullWidthPunct.Replace(title)

	// Decompose accents, then drop the combining marks
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteString(foldStylized(r))
	}
	return b.String()
}

// foldStylized maps one stylized Unicode code point to its ASCII
// letter, or returns it unchanged
func foldStylized(r rune) string {
	cp := int(r)
	switch {
	// Full-width ASCII block
	case cp >= 0xFF01 && cp <= 0xFF5E:
		return string(rune(cp - 0xFEE0))

	// Mathematical alphanumeric blocks, uppercase/lowercase pairs
	case cp >= 0x1D400 && cp <= 0x1D419:
		return string(rune('A' + cp - 0x1D400))
	case cp >= 0x1D41A && cp <= 0x1D433:
		return string(rune('a' + cp - 0x1D41A))
	case cp >= 0x1D434 && cp <= 0x1D44D:
		return string(rune('A' + cp - 0x1D434))
	case cp >= 0x1D44E && cp <= 0x1D467:
		return string(rune('a' + cp - 0x1D44E))
	case cp >= 0x1D468 && cp <= 0x1D481:
		return string(rune('A' + cp - 0x1D468))
	case cp >= 0x1D482 && cp <= 0x1D49B:
		return string(rune('a' + cp - 0x1D482))
	case cp >= 0x1D49C && cp <= 0x1D4B5:
		return string(rune('A' + cp - 0x1D49C))
	case cp >= 0x1D4B6 && cp <= 0x1D4CF:
		return string(rune('a' + cp - 0x1D4B6))
	case cp >= 0x1D4D0 && cp <= 0x1D4E9:
		return string(rune('A' + cp - 0x1D4D0))
	case cp >= 0x1D4EA && cp <= 0x1D503:
		return string(rune('a' + cp - 0x1D4EA))
	case cp >= 0x1D504 && cp <= 0x1D51C:
		return string(rune('A' + cp - 0x1D504))
	case cp >= 0x1D51E && cp <= 0x1D537:
		return string(rune('a' + cp - 0x1D51E))
	case cp >= 0x1D538 && cp <= 0x1D550:
		return string(rune('A' + cp - 0x1D538))
	case cp >= 0x1D552 && cp <= 0x1D56B:
		return string(rune('a' + cp - 0x1D552))
	case cp >= 0x1D56C && cp <= 0x1D585:
		return string(rune('A' + cp - 0x1D56C))
	case cp >= 0x1D586 && cp <= 0x1D59F:
		return string(rune('a' + cp - 0x1D586))
	case cp >= 0x1D5A0 && cp <= 0x1D5B9:
		return string(rune('A' + cp - 0x1D5A0))
	case cp >= 0x1D5BA && cp <= 0x1D5D3:
		return string(rune('a' + cp - 0x1D5BA))
	case cp >= 0x1D5D4 && cp <= 0x1D5ED:
		return string(rune('A' + cp - 0x1D5D4))
	case cp >= 0x1D5EE && cp <= 0x1D607:
		return string(rune('a' + cp - 0x1D5EE))
	case cp >= 0x1D608 && cp <= 0x1D621:
		return string(rune('A' + cp - 0x1D608))
	case cp >= 0x1D622 && cp <= 0x1D63B:
		return string(rune('a' + cp - 0x1D622))
	case cp >= 0x1D63C && cp <= 0x1D655:
		return string(rune('A' + cp - 0x1D63C))
	case cp >= 0x1D656 && cp <= 0x1D66F:
		return string(rune('a' + cp - 0x1D656))
	case cp >= 0x1D670 && cp <= 0x1D689:
		return string(rune('A' + cp - 0x1D670))
	case cp >= 0x1D68A && cp <= 0x1D6A3:
		return string(rune('a' + cp - 0x1D68A))

	// Enclosed and parenthesized letters
	case cp >= 0x24B6 && cp <= 0x24CF:
		return string(rune('A' + cp - 0x24B6))
	case cp >= 0x24D0 && cp <= 0x24E9:
		return string(rune('a' + cp - 0x24D0))
	case cp >= 0x249C && cp <= 0x24B5:
		return string(rune('a' + cp - 0x249C))

	// Squared letters
	case cp >= 0x1F130 && cp <= 0x1F149:
		return string(rune('A' + cp - 0x1F130))
	case cp >= 0x1F170 && cp <= 0x1F189:
		return string(rune('A' + cp - 0x1F170))

	// Regional indicators
	case cp >= 0x1F1E6 && cp <= 0x1F1FF:
		return string(rune('A' + cp - 0x1F1E6))

	default:
		return string(r)
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// IsMusicContent classifies whether a video qualifies as music
// content. Checked in order of signal strength: tagged songs, strict
// music topics, title keywords (on the normalized title), music
// shorts, and finally a channel-name fallback for generic topics.
func IsMusicContent(video *holodex.VideoItem) bool {
	if video.SongCount > 0 {
		return true
	}

	topic := ""
	if video.TopicID != nil {
		topic = *video.TopicID
	}
	if _, ok := strictCoreMusicTopics[topic]; ok {
		return true
	}

	normalizedTitle := strings.ToLower(normalizeTitle(video.Title))
	if containsAny(normalizedTitle, musicKeywords) {
		return true
	}

	// Music shorts: topic "shorts", or short untagged clips
	if topic == "shorts" || (video.Type == "clip" && video.Duration > 0 && video.Duration <= 90 && topic == "") {
		if containsAny(normalizedTitle, musicKeywords) {
			return true
		}
	}

	if _, ok := genericTopics[topic]; ok {
		channelName := strings.ToLower(video.Channel.Name)
		if containsAny(channelName, channelMusicKeywords) && containsAny(normalizedTitle, musicKeywords) {
			return true
		}
	}

	return false
}
