package export

import (
	"regexp"
	"strings"
)

var fencedBlock = regexp.MustCompile("(?s)```(.*?)```")

// NormalizeCodeBlocks tidies fenced code blocks in generated text. A block
// whose first line is a language tag keeps the tag on the opening fence, and
// the closing fence is moved onto its own line.
func NormalizeCodeBlocks(text string) string {
	return fencedBlock.ReplaceAllStringFunc(text, func(block string) string {
		body := strings.TrimSuffix(strings.TrimPrefix(block, "```"), "```")
		lang, code, ok := strings.Cut(body, "\n")
		if !ok {
			return block
		}
		lang = strings.TrimSpace(lang)
		if strings.ContainsAny(lang, " \t") {
			// Not a language tag: the first line is code.
			code = body
			lang = ""
		}
		code = strings.TrimLeft(code, "\n")
		if !strings.HasSuffix(code, "\n") {
			code += "\n"
		}
		return "```" + lang + "\n" + code + "```"
	})
}
