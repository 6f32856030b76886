package document

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDoc(t *testing.T, content string, lang Language) Document {
	doc, err := NewDocument(content, map[string]string{MetaSource: "test/" + string(lang)}, lang)
	require.NoError(t, err)
	return doc
}

// reconstruct 拼接各分块去掉重叠后的文本
func reconstruct(chunks []Chunk) string {
	var sb strings.Builder
	for _, c := range chunks {
		sb.WriteString(c.NonOverlap())
	}
	return sb.String()
}

// assertOverlapLinked 检查每块都以前一块的结尾开头
func assertOverlapLinked(t *testing.T, chunks []Chunk, overlap int) {
	for i := 1; i < len(chunks); i++ {
		head := chunks[i].Content[:chunks[i].Overlap]
		assert.True(t, strings.HasSuffix(chunks[i-1].Content, head),
			"chunk %d should start with the tail of chunk %d", i, i-1)
		assert.LessOrEqual(t, runeLen(head), overlap)
	}
}

// TestSplitConfigValidation 测试非法分块参数
func TestSplitConfigValidation(t *testing.T) {
	docs := []Document{newTestDoc(t, "hello world", LangText)}

	cases := []struct {
		name    string
		size    int
		overlap int
	}{
		{"overlap equals size", 100, 100},
		{"overlap larger than size", 100, 150},
		{"zero size", 0, 0},
		{"negative overlap", 100, -1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			chunks, err := Split(docs, tc.size, tc.overlap)
			assert.True(t, errors.Is(err, ErrInvalidChunkConfig))
			assert.Nil(t, chunks)
		})
	}

	_, err := NewRecursiveSplitter(DefaultSplitterConfig(), WithChunkOverlap(5000))
	assert.ErrorIs(t, err, ErrInvalidChunkConfig)
}

// TestSplitShortDocument 短文档只产生一个与原文相同的分块
func TestSplitShortDocument(t *testing.T) {
	doc := newTestDoc(t, "A calls B.", LangText)

	chunks, err := Split([]Document{doc}, 100, 10)
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	assert.Equal(t, "A calls B.", chunks[0].Content)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, 0, chunks[0].Overlap)
	assert.Equal(t, "test/text", chunks[0].Source())
}

// TestSplitSentences 普通文本按句子切分
func TestSplitSentences(t *testing.T) {
	doc := newTestDoc(t, "First sentence. Second sentence. Third sentence.", LangText)

	chunks, err := Split([]Document{doc}, 20, 0)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, "First sentence. ", chunks[0].Content)
	assert.Equal(t, "Second sentence. ", chunks[1].Content)
	assert.Equal(t, "Third sentence.", chunks[2].Content)
}

// TestSplitGoCode 代码按函数边界切分
func TestSplitGoCode(t *testing.T) {
	src := "package main\n" +
		"\nfunc a() int {\n\treturn 1\n}\n" +
		"\nfunc b() int {\n\treturn 2\n}\n" +
		"\nfunc c() int {\n\treturn 3\n}\n"
	doc := newTestDoc(t, src, LangGo)

	chunks, err := Split([]Document{doc}, 50, 0)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	for i, c := range chunks {
		t.Logf("分块 %d: %q", i, c.Content)
		assert.LessOrEqual(t, runeLen(c.Content), 50)
		if i > 0 {
			assert.True(t, strings.HasPrefix(c.NonOverlap(), "\nfunc "), "chunk %d should start at a function", i)
		}
	}
	assert.Equal(t, src, reconstruct(chunks))
}

// TestSplitReconstruction 去掉重叠后可还原原文，重叠窗口对齐单词边界
func TestSplitReconstruction(t *testing.T) {
	words := []string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta", "eta", "theta", "iota", "kappa"}
	var parts []string
	for i := 0; i < 40; i++ {
		parts = append(parts, words[i%len(words)])
	}
	content := strings.Join(parts, " ")
	doc := newTestDoc(t, content, LangText)

	chunks, err := Split([]Document{doc}, 30, 10)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	assert.Equal(t, content, reconstruct(chunks))
	assertOverlapLinked(t, chunks, 10)

	for i, c := range chunks {
		assert.LessOrEqual(t, runeLen(c.Content), 30)
		assert.Equal(t, i, c.Index)
		if i > 0 {
			require.Greater(t, c.Overlap, 0, "chunk %d should carry overlap", i)
			assert.True(t, strings.HasPrefix(c.Content, " "), "overlap should start at a word boundary")
		}
	}
}

// TestSplitCharacterFallback 没有任何分隔符的长文本按字符切分
func TestSplitCharacterFallback(t *testing.T) {
	content := strings.Repeat("字", 35)
	doc := newTestDoc(t, content, LangText)

	chunks, err := Split([]Document{doc}, 10, 3)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	assert.Equal(t, content, reconstruct(chunks))
	assertOverlapLinked(t, chunks, 3)
	for _, c := range chunks {
		assert.LessOrEqual(t, runeLen(c.Content), 10)
	}
}

// TestSplitAtomicOverflow 无法拆分的超长单元整体保留
func TestSplitAtomicOverflow(t *testing.T) {
	long := "\n" + strings.Repeat("x", 30)
	doc := newTestDoc(t, "short"+long, LangText)

	splitter, err := NewRecursiveSplitter(SplitterConfig{ChunkSize: 10, ChunkOverlap: 2},
		WithSeparators([]Separator{{Text: "\n"}}))
	require.NoError(t, err)

	chunks, err := splitter.Split([]Document{doc})
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, "short", chunks[0].Content)
	assert.Equal(t, long, chunks[1].Content)
	assert.Equal(t, 0, chunks[1].Overlap)
}

// TestSplitMetadataInherited 分块继承元数据且互不影响
func TestSplitMetadataInherited(t *testing.T) {
	docA, err := NewDocument(strings.Repeat("one two three ", 10), map[string]string{
		MetaSource: "a.txt",
		MetaTitle:  "A",
	}, LangText)
	require.NoError(t, err)
	docB := newTestDoc(t, "tiny", LangText)

	chunks, err := Split([]Document{docA, docB}, 40, 5)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 2)

	last := chunks[len(chunks)-1]
	assert.Equal(t, "test/text", last.Source())
	assert.Equal(t, 0, last.Index, "index restarts for every document")

	for _, c := range chunks[:len(chunks)-1] {
		assert.Equal(t, "a.txt", c.Source())
		assert.Equal(t, "A", c.Title())
	}

	chunks[0].Metadata[MetaTitle] = "changed"
	assert.Equal(t, "A", chunks[1].Title())
	assert.Equal(t, "A", docA.Title())
}

// TestSplitKeep 切分结果拼接后等于原文
func TestSplitKeep(t *testing.T) {
	text := "a\n\n\n\nb\n\nc"
	parts := splitKeep(text, Separator{Text: "\n\n"})
	assert.Equal(t, text, strings.Join(parts, ""))
	assert.Equal(t, []string{"a", "\n\n", "\n\nb", "\n\nc"}, parts)

	parts = splitKeep("Hi. Bye. ", Separator{Text: ". ", Trailing: true})
	assert.Equal(t, []string{"Hi. ", "Bye. "}, parts)
}
