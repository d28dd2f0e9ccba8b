package notion

// maxTextRunes is the Notion limit for one rich text object.
const maxTextRunes = 2000

// maxChildren is the Notion limit for one append request.
const maxChildren = 100

type textContent struct {
	Content string `json:"content"`
}

type richText struct {
	Type string      `json:"type"`
	Text textContent `json:"text"`
}

type listItem struct {
	RichText []richText `json:"rich_text"`
}

type block struct {
	Object           string    `json:"object"`
	Type             string    `json:"type"`
	BulletedListItem *listItem `json:"bulleted_list_item"`
}

type appendRequest struct {
	Children []block `json:"children"`
}

type updateRequest struct {
	BulletedListItem listItem `json:"bulleted_list_item"`
}

type pageParent struct {
	PageID string `json:"page_id"`
}

type titleProperty struct {
	Title []richText `json:"title"`
}

type createPageRequest struct {
	Parent     pageParent               `json:"parent"`
	Properties map[string]titleProperty `json:"properties"`
}

type objectResponse struct {
	Object string `json:"object"`
	ID     string `json:"id"`
}

type listResponse struct {
	Results []objectResponse `json:"results"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// splitText cuts text into rich text objects under the per-object limit.
func splitText(text string) []richText {
	runes := []rune(text)
	if len(runes) == 0 {
		return []richText{{Type: "text", Text: textContent{Content: ""}}}
	}

	var parts []richText

	for len(runes) > 0 {
		n := min(len(runes), maxTextRunes)
		parts = append(parts, richText{Type: "text", Text: textContent{Content: string(runes[:n])}})
		runes = runes[n:]
	}

	return parts
}

func bulletBlock(text string) block {
	return block{
		Object:           "block",
		Type:             "bulleted_list_item",
		BulletedListItem: &listItem{RichText: splitText(text)},
	}
}
