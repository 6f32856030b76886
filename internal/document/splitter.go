package document

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrInvalidChunkConfig 分块参数非法（chunk_size<=0、overlap<0 或 overlap>=chunk_size）
var ErrInvalidChunkConfig = errors.New("invalid chunk configuration")

// Splitter 文档分块器接口
type Splitter interface {
	// Split 将文档切分为有重叠的分块
	Split(docs []Document) ([]Chunk, error)
}

// SplitterConfig 分块配置，长度以字符（rune）计
type SplitterConfig struct {
	ChunkSize    int         // 分块最大长度
	ChunkOverlap int         // 相邻分块的重叠长度
	Separators   []Separator // 自定义分隔符，为空时按文档语言选择
}

// DefaultSplitterConfig 返回默认分块配置
func DefaultSplitterConfig() SplitterConfig {
	return SplitterConfig{
		ChunkSize:    2000,
		ChunkOverlap: 200,
	}
}

// SplitterOption 分块配置选项
type SplitterOption func(*SplitterConfig)

// WithChunkSize 设置分块大小
func WithChunkSize(size int) SplitterOption {
	return func(c *SplitterConfig) {
		c.ChunkSize = size
	}
}

// WithChunkOverlap 设置重叠大小
func WithChunkOverlap(overlap int) SplitterOption {
	return func(c *SplitterConfig) {
		c.ChunkOverlap = overlap
	}
}

// WithSeparators 使用固定的分隔符列表，忽略文档语言
func WithSeparators(seps []Separator) SplitterOption {
	return func(c *SplitterConfig) {
		c.Separators = seps
	}
}

// Validate 检查分块配置
func (c SplitterConfig) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidChunkConfig, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("%w: overlap must not be negative, got %d", ErrInvalidChunkConfig, c.ChunkOverlap)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: overlap %d must be smaller than chunk size %d",
			ErrInvalidChunkConfig, c.ChunkOverlap, c.ChunkSize)
	}
	return nil
}

// RecursiveSplitter 按结构递归分块
// 依次尝试优先级从高到低的分隔符，只有仍然超长的片段才继续使用下一级分隔符
type RecursiveSplitter struct {
	config SplitterConfig
}

// NewRecursiveSplitter 创建分块器，配置非法时返回 ErrInvalidChunkConfig
func NewRecursiveSplitter(cfg SplitterConfig, opts ...SplitterOption) (*RecursiveSplitter, error) {
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &RecursiveSplitter{config: cfg}, nil
}

// Split 按给定参数切分文档
func Split(docs []Document, chunkSize, overlap int) ([]Chunk, error) {
	splitter, err := NewRecursiveSplitter(SplitterConfig{ChunkSize: chunkSize, ChunkOverlap: overlap})
	if err != nil {
		return nil, err
	}
	return splitter.Split(docs)
}

// Config 返回分块配置
func (s *RecursiveSplitter) Config() SplitterConfig {
	return s.config
}

// Split 切分文档
// 每个文档的分块去掉重叠部分后按顺序拼接即为原文；
// 第i块(i>0)以前一块的结尾开头，重叠窗口从分隔符处起始
func (s *RecursiveSplitter) Split(docs []Document) ([]Chunk, error) {
	var chunks []Chunk
	for _, doc := range docs {
		seps := s.config.Separators
		if len(seps) == 0 {
			seps = SeparatorsFor(doc.Language)
		}

		index := 0
		for _, sp := range s.merge(s.pieces(doc.Content, seps), seps) {
			chunks = append(chunks, Chunk{
				Document: Document{
					Content:  sp.text,
					Metadata: copyMetadata(doc.Metadata),
					Language: doc.Language,
				},
				Index:   index,
				Overlap: sp.overlap,
			})
			index++
		}
	}
	return chunks, nil
}

// span 合并后的分块文本，overlap为开头重叠部分的字节数
type span struct {
	text    string
	overlap int
}

// pieces 将文本拆成不超过ChunkSize的原子片段，片段按顺序拼接即为原文
func (s *RecursiveSplitter) pieces(text string, seps []Separator) []string {
	if runeLen(text) <= s.config.ChunkSize {
		return []string{text}
	}

	for i, sep := range seps {
		if sep.Text == "" {
			return s.splitRunes(text)
		}

		parts := splitKeep(text, sep)
		if len(parts) < 2 {
			continue
		}

		var out []string
		for _, part := range parts {
			if runeLen(part) <= s.config.ChunkSize {
				out = append(out, part)
				continue
			}
			out = append(out, s.pieces(part, seps[i+1:])...)
		}
		return out
	}

	// 无法再拆分的超长单元整体保留
	return []string{text}
}

// splitRunes 按字符切分，每段留出重叠的空间
func (s *RecursiveSplitter) splitRunes(text string) []string {
	width := s.config.ChunkSize - s.config.ChunkOverlap
	if width < 1 {
		width = 1
	}

	var out []string
	for len(text) > 0 {
		end, count := 0, 0
		for end < len(text) && count < width {
			_, size := utf8.DecodeRuneInString(text[end:])
			end += size
			count++
		}
		out = append(out, text[:end])
		text = text[end:]
	}
	return out
}

// merge 贪心合并片段，每块结束后把末尾的重叠窗口带入下一块
func (s *RecursiveSplitter) merge(pieces []string, seps []Separator) []span {
	var (
		spans   []span
		buf     strings.Builder
		size    int
		overlap int
	)

	for _, piece := range pieces {
		n := runeLen(piece)
		if buf.Len() > overlap && size+n > s.config.ChunkSize {
			current := buf.String()
			spans = append(spans, span{text: current, overlap: overlap})

			tail := s.overlapTail(current, s.config.ChunkSize-n, seps)
			buf.Reset()
			buf.WriteString(tail)
			size = runeLen(tail)
			overlap = len(tail)
		}
		buf.WriteString(piece)
		size += n
	}

	if buf.Len() > overlap {
		spans = append(spans, span{text: buf.String(), overlap: overlap})
	}
	return spans
}

// overlapTail 返回text末尾不超过ChunkOverlap（且不超过room）的窗口
// 窗口起点取最靠前的分隔符边界；找不到分隔符时才退化为字符边界
func (s *RecursiveSplitter) overlapTail(text string, room int, seps []Separator) string {
	limit := s.config.ChunkOverlap
	if room < limit {
		limit = room
	}
	if limit <= 0 || text == "" {
		return ""
	}

	start := suffixStart(text, limit)
	if start == 0 {
		// 重叠不能覆盖整个上一块
		_, size := utf8.DecodeRuneInString(text)
		start = size
	}

	best := -1
	allowRunes := false
	for _, sep := range seps {
		if sep.Text == "" {
			allowRunes = true
			continue
		}
		if b := boundaryFrom(text, start, sep); b >= 0 && (best < 0 || b < best) {
			best = b
		}
	}
	if best < 0 && allowRunes {
		best = start
	}
	if best < 0 || best >= len(text) {
		return ""
	}
	return text[best:]
}

// boundaryFrom 返回不小于from的第一个分隔符边界，没有则返回-1
func boundaryFrom(text string, from int, sep Separator) int {
	searchFrom := from
	if sep.Trailing {
		searchFrom = from - len(sep.Text)
		if searchFrom < 0 {
			searchFrom = 0
		}
	}

	for searchFrom < len(text) {
		idx := strings.Index(text[searchFrom:], sep.Text)
		if idx < 0 {
			return -1
		}
		idx += searchFrom

		b := idx
		if sep.Trailing {
			b = idx + len(sep.Text)
		}
		if b >= from && b < len(text) {
			return b
		}
		searchFrom = idx + 1
	}
	return -1
}

// splitKeep 按分隔符切分并保留分隔符，拼接结果等于原文
func splitKeep(text string, sep Separator) []string {
	var parts []string
	start, searchFrom := 0, 0

	for searchFrom < len(text) {
		idx := strings.Index(text[searchFrom:], sep.Text)
		if idx < 0 {
			break
		}
		idx += searchFrom

		cut := idx
		if sep.Trailing {
			cut = idx + len(sep.Text)
		}
		if cut > start && cut < len(text) {
			parts = append(parts, text[start:cut])
			start = cut
		}
		searchFrom = idx + len(sep.Text)
	}

	return append(parts, text[start:])
}

// suffixStart 返回末尾n个字符的起始字节位置
func suffixStart(text string, n int) int {
	i := len(text)
	for count := 0; i > 0 && count < n; count++ {
		_, size := utf8.DecodeLastRuneInString(text[:i])
		i -= size
	}
	return i
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
