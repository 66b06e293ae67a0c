package entity

// OutlineSection 大纲中的小节条目
type OutlineSection struct {
	Title string `json:"title"`
}

// OutlineChapter 大纲中的章条目
type OutlineChapter struct {
	Title    string           `json:"title"`
	Sections []OutlineSection `json:"sections"`
}

// Outline 教材大纲，由模型生成并在规整后驱动内容生成
type Outline struct {
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	Chapters    []OutlineChapter `json:"chapters"`
}

// Normalize 将大纲规整为可执行形态：
// 章数超出 chapterCount 时截断（不足时保留实际章数），
// 每章小节数截断到 maxSections，缺失的小节列表置为空。
// 操作是幂等的。
func (o *Outline) Normalize(chapterCount, maxSections int) {
	if len(o.Chapters) > chapterCount {
		o.Chapters = o.Chapters[:chapterCount]
	}
	for i := range o.Chapters {
		if o.Chapters[i].Sections == nil {
			o.Chapters[i].Sections = []OutlineSection{}
		}
		if len(o.Chapters[i].Sections) > maxSections {
			o.Chapters[i].Sections = o.Chapters[i].Sections[:maxSections]
		}
	}
}

// TotalSections 统计大纲中的小节总数
func (o *Outline) TotalSections() int {
	total := 0
	for _, ch := range o.Chapters {
		total += len(ch.Sections)
	}
	return total
}
