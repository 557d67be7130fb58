package docs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func insertAt(index int, text string) Request {
	return Request{InsertText: &InsertTextRequest{Location: Location{Index: index}, Text: text}}
}

func headingStyle(start, end, level int) Request {
	names := map[int]string{1: "HEADING_1", 2: "HEADING_2", 3: "HEADING_3"}
	return Request{UpdateParagraphStyle: &UpdateParagraphStyleRequest{
		Range:          Range{StartIndex: start, EndIndex: end},
		ParagraphStyle: ParagraphStyle{NamedStyleType: names[level]},
		Fields:         "namedStyleType",
	}}
}

func TestConvert(t *testing.T) {
	md := "# 標題\n\n段落一\n第二行\n\n- a\n- b\n\n1. x\n2. y\n\n```\ncode\n```\n\n> 引用\n\n---\n\n| a | b |\n|---|---|\n| 1 | 2 |\n"

	want := []Request{
		insertAt(1, "標題\n"),
		headingStyle(1, 3, 1),
		insertAt(4, "段落一 第二行\n"),
		insertAt(12, "• a\n"),
		insertAt(16, "• b\n"),
		insertAt(20, "1. x\n"),
		insertAt(25, "2. y\n"),
		insertAt(30, "```\ncode\n```\n"),
		insertAt(43, "> 引用\n"),
		insertAt(48, "---\n"),
		insertAt(52, "a\tb\n"),
		insertAt(56, "1\t2\n"),
	}

	assert.Equal(t, want, Convert(md))
}

func TestConvert_UTF16Indexes(t *testing.T) {
	got := Convert("## 😀 Hi\n\nnext")
	require.Len(t, got, 3)
	assert.Equal(t, headingStyle(1, 6, 2), got[1])
	assert.Equal(t, insertAt(7, "next\n"), got[2])
}

func TestConvert_InlineMarkupIsFlattened(t *testing.T) {
	got := Convert("**決議**：採用 *方案 A*，見 `doc` 與 <https://example.com> <b>x</b>")
	require.Len(t, got, 1)
	assert.Equal(t, "決議：採用 方案 A，見 doc 與 https://example.com x\n", got[0].InsertText.Text)
}

func TestConvert_Lists(t *testing.T) {
	got := Convert("3. three\n4. four\n\n- parent\n  - child\n")
	texts := make([]string, 0, len(got))
	for _, r := range got {
		texts = append(texts, r.InsertText.Text)
	}
	assert.Equal(t, []string{"3. three\n", "4. four\n", "• parent\n", "  • child\n"}, texts)
}

func TestConvert_Empty(t *testing.T) {
	assert.Empty(t, Convert(""))
	assert.Empty(t, Convert("\n\n   \n"))
}
