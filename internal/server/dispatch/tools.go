package dispatch

// Tool is a research capability a query can be routed to.
type Tool struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	SystemPrompt string `json:"-"`

	keywords []string
}

const (
	ToolDomainDiscovery  = "domain_discovery"
	ToolPaperSearch      = "paper_search"
	ToolProfessorLookup  = "professor_lookup"
	ToolDatasetDiscovery = "dataset_discovery"
	ToolCodeSearch       = "code_search"
	ToolModelSearch      = "model_search"
	ToolGeneral          = "general"
)

// catalog is in tie-break order. general must stay last and has no keywords.
var catalog = []Tool{
	{
		Name:        ToolDomainDiscovery,
		Description: "Maps a research field to emerging subfields, trends and open gaps.",
		SystemPrompt: "You are the Domain Discovery Expert. Help researchers find their niche: analyze the " +
			"field and suggest emerging subfields, current trends and gaps where research is lacking.",
		keywords: []string{"domain", "domains", "field", "fields", "area", "areas", "topic", "topics", "subfield", "subfields", "niche", "research gap"},
	},
	{
		Name:        ToolPaperSearch,
		Description: "Finds and summarizes recent papers on a topic.",
		SystemPrompt: "You are the Paper Summarizer. Give concise, accurate summaries of research papers: " +
			"the problem, the main contribution and the limitations, with a TL;DR.",
		keywords: []string{"paper", "papers", "arxiv", "literature", "survey", "summarize", "summary", "publication", "publications", "citation"},
	},
	{
		Name:        ToolProfessorLookup,
		Description: "Suggests professors, labs and advisors working on a topic.",
		SystemPrompt: "You are the Faculty Search Assistant. Suggest researchers, professors and labs known " +
			"for the topic. Avoid fabricating names or links.",
		keywords: []string{"professor", "professors", "faculty", "advisor", "supervisor", "lecturer", "lab", "phd position"},
	},
	{
		Name:        ToolDatasetDiscovery,
		Description: "Finds public datasets and benchmarks for a topic.",
		SystemPrompt: "You are the Dataset Librarian. Suggest datasets from HuggingFace, Kaggle or academic " +
			"repositories and explain size, license and common use.",
		keywords: []string{"dataset", "datasets", "data set", "benchmark", "benchmarks", "corpus", "hf dataset"},
	},
	{
		Name:        ToolCodeSearch,
		Description: "Finds or drafts starter code for a research idea.",
		SystemPrompt: "You are the Research Engineer. Produce commented, reproducible code for data " +
			"preprocessing, training loops, evaluation and visualization.",
		keywords: []string{"code", "snippet", "boilerplate", "implementation", "starter", "github", "repository", "notebook", "colab"},
	},
	{
		Name:        ToolModelSearch,
		Description: "Compares pretrained models suitable for a task.",
		SystemPrompt: "You are the Model Architect. Compare state-of-the-art pretrained models: architecture, " +
			"parameter count, training objective and when to use which.",
		keywords: []string{"model", "models", "pretrained", "checkpoint", "checkpoints", "weights", "huggingface", "hugging face"},
	},
	{
		Name:        ToolGeneral,
		Description: "General research assistance when no specific tool applies.",
		SystemPrompt: "You are PaperClip, a research assistant. Use the conversation context only when it is " +
			"relevant and keep answers concise and actionable.",
	},
}

// Tools returns the catalog in routing order.
func Tools() []Tool {
	out := make([]Tool, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup returns the tool with the given name.
func Lookup(name string) (Tool, bool) {
	for _, t := range catalog {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}
