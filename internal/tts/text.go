package tts

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

var sentenceEnders = []rune{'。', '！', '？', '；', '.', '!', '?', '\n'}

// nextSentence 取出文本中的第一个完整句子，没有句末标点时 found 为 false。
func nextSentence(text string) (sentence, rest string, found bool) {
	for i, r := range text {
		for _, ender := range sentenceEnders {
			if r == ender {
				at := i + utf8.RuneLen(r)
				return text[:at], text[at:], true
			}
		}
	}
	return "", text, false
}

// SplitText 按句切分文本并合并为不超过 maxRunes 个字符的段落。
// 单句超长时按字符硬切。maxRunes <= 0 时使用 100。
func SplitText(text string, maxRunes int) []string {
	if maxRunes <= 0 {
		maxRunes = 100
	}

	var (
		chunks  []string
		current strings.Builder
		curLen  int
	)
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			chunks = append(chunks, s)
		}
		current.Reset()
		curLen = 0
	}
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		runes := []rune(s)
		for len(runes) > maxRunes {
			flush()
			chunks = append(chunks, string(runes[:maxRunes]))
			runes = runes[maxRunes:]
		}
		s = string(runes)

		sep := 0
		if curLen > 0 && needsSpace(current.String(), s) {
			sep = 1
		}
		if curLen > 0 && curLen+sep+len(runes) > maxRunes {
			flush()
			sep = 0
		}
		if sep == 1 {
			current.WriteByte(' ')
		}
		current.WriteString(s)
		curLen += sep + len(runes)
	}

	remaining := text
	for {
		sentence, rest, found := nextSentence(remaining)
		if !found {
			add(remaining)
			break
		}
		add(sentence)
		remaining = rest
	}
	flush()
	return chunks
}

// needsSpace 在两段西文之间补回被 TrimSpace 去掉的空格。
func needsSpace(prev, next string) bool {
	last, _ := utf8.DecodeLastRuneInString(prev)
	first, _ := utf8.DecodeRuneInString(next)
	return last < utf8.RuneSelf && first < utf8.RuneSelf
}

func newSessionID() string {
	return uuid.NewString()
}
