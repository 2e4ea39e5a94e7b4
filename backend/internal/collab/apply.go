package collab

import "unicode/utf8"

// ApplyToContent 把单个操作套用到文本上，返回新文本
// 位置和长度一律按 rune 计；越界输入全部钳制到合法区间，绝不 panic
func ApplyToContent(content string, op Operation) string {
	r := []rune(content)
	pos := op.Position
	if pos < 0 {
		pos = 0
	}
	if pos > len(r) {
		pos = len(r)
	}

	switch op.Type {
	case OpInsert:
		ins := []rune(op.Content)
		out := make([]rune, 0, len(r)+len(ins))
		out = append(out, r[:pos]...)
		out = append(out, ins...)
		out = append(out, r[pos:]...)
		return string(out)

	case OpDelete:
		n := op.Length
		if n > len(r)-pos {
			n = len(r) - pos
		}
		if n <= 0 {
			return content
		}
		out := make([]rune, 0, len(r)-n)
		out = append(out, r[:pos]...)
		out = append(out, r[pos+n:]...)
		return string(out)
	}

	// retain 恒等
	return content
}

func contentLen(content string) int {
	return utf8.RuneCountInString(content)
}
