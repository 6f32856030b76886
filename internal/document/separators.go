package document

// Separator 分块分隔符
type Separator struct {
	Text     string // 分隔文本，空串表示按字符切分
	Trailing bool   // 为true时分隔符留在前一段末尾（句末标点），否则作为后一段的开头
}

func leading(texts ...string) []Separator {
	seps := make([]Separator, 0, len(texts))
	for _, t := range texts {
		seps = append(seps, Separator{Text: t})
	}
	return seps
}

func concat(lists ...[]Separator) []Separator {
	var out []Separator
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

// 代码块、行、单词、字符
var codeTail = leading("\n\n", "\n", " ", "")

// 句末标点
var sentenceEnds = []Separator{
	{Text: ". ", Trailing: true},
	{Text: "! ", Trailing: true},
	{Text: "? ", Trailing: true},
	{Text: "。", Trailing: true},
	{Text: "！", Trailing: true},
	{Text: "？", Trailing: true},
}

var separatorsByLanguage = map[Language][]Separator{
	LangGo: concat(
		leading("\ntype ", "\nfunc ", "\nvar ", "\nconst "),
		codeTail,
	),
	LangPython: concat(
		leading("\nclass ", "\ndef ", "\n\tdef ", "\n    def ", "\nasync def "),
		codeTail,
	),
	LangJavaScript: concat(
		leading("\nclass ", "\nfunction ", "\nexport ", "\nconst ", "\nlet "),
		codeTail,
	),
	LangTypeScript: concat(
		leading("\nclass ", "\ninterface ", "\ntype ", "\nenum ", "\nfunction ", "\nexport ", "\nconst ", "\nlet "),
		codeTail,
	),
	LangJava: concat(
		leading("\nclass ", "\ninterface ", "\nenum ", "\npublic ", "\nprotected ", "\nprivate ",
			"\n    public ", "\n    protected ", "\n    private "),
		codeTail,
	),
	LangMarkdown: concat(
		leading("\n# ", "\n## ", "\n### ", "\n#### ", "\n```"),
		leading("\n\n"),
		sentenceEnds,
		leading("\n", " ", ""),
	),
}

// proseSeparators 段落、句子、行、单词、字符
var proseSeparators = concat(
	leading("\n\n"),
	sentenceEnds,
	leading("\n", " ", ""),
)

// SeparatorsFor 返回语言对应的分隔符列表，未知语言按普通文本处理
func SeparatorsFor(lang Language) []Separator {
	if seps, ok := separatorsByLanguage[lang]; ok {
		return seps
	}
	return proseSeparators
}
