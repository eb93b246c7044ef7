package generator

// Stage names one step of the content pipeline. Prompts carry it so mocks and
// logs can tell the steps apart.
type Stage string

const (
	StagePlan      Stage = "plan"
	StageDraft     Stage = "draft"
	StageVoice     Stage = "voice"
	StagePolish    Stage = "polish"
	StageVisualize Stage = "visualize"
	StageImage     Stage = "image"
	StagePublish   Stage = "publish"
	StageSuggest   Stage = "suggest"
)

// LinkRef is an already published article the planner may link to.
type LinkRef struct {
	Keyword string `json:"keyword"`
	URL     string `json:"url"`
}

// LinkStrategy is one internal link the planner wants in the article.
type LinkStrategy struct {
	AnchorText string `json:"text"`
	URL        string `json:"url"`
	Context    string `json:"context"`
}

// OutlinePlan is the structured result of the planning stage.
type OutlinePlan struct {
	Title           string         `json:"title"`
	MetaDescription string         `json:"meta_description"`
	IsPillar        bool           `json:"is_pillar_page"`
	LinkStrategy    []LinkStrategy `json:"internal_links_strategy"`
	Sections        []string       `json:"outline"`
}

// Brief is the tenant-scoped context each stage may draw on.
type Brief struct {
	Keyword    string
	Knowledge  string
	VoiceGuide string
	Persona    string
	CTAHTML    string
	Inventory  []LinkRef
}
