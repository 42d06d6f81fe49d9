package model

// SlotFill is the generated text for one content slot of a section draft.
type SlotFill struct {
	Slot       string   `json:"slot"`
	Text       string   `json:"text"`
	Citations  []string `json:"citations,omitempty"`
	Assumption bool     `json:"assumption,omitempty"`
}

// ParagraphMeta carries per-paragraph provenance through to the stored
// section content. Assumption marks text generated without grounding.
type ParagraphMeta struct {
	RequirementPath string `json:"requirement_path"`
	Assumption      bool   `json:"assumption,omitempty"`
}

// SectionDraft is the full output of drafting one section.
type SectionDraft struct {
	SectionKey string          `json:"section_key"`
	Slots      []SlotFill      `json:"slot_fills"`
	Markdown   string          `json:"markdown"`
	Paragraphs []ParagraphMeta `json:"paragraphs,omitempty"`
	Fallback   bool            `json:"fallback,omitempty"`
}
