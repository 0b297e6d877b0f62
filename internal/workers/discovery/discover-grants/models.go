package discovergrants

type Input struct {
	UserID     string `json:"userId"`
	SearchText string `json:"searchText,omitempty"`
	Limit      int    `json:"limit,omitempty"`
	MinScore   int    `json:"minScore,omitempty"`
	SortBy     string `json:"sortBy,omitempty"`
	UseCache   *bool  `json:"useCache,omitempty"`
	UseAI      *bool  `json:"useAI,omitempty"`
	Notify     bool   `json:"notify,omitempty"`
}

type Output struct {
	Grants         []MatchView `json:"grants"`
	Total          int         `json:"total"`
	Outcome        string      `json:"outcome"`
	RelaxedFilters bool        `json:"relaxedFilters"`
	AIEnabled      bool        `json:"aiEnabled"`
	Message        string      `json:"message,omitempty"`
	AlertsSent     int         `json:"alertsSent"`
}

// MatchView is the per-grant payload written back into the process
// variables: display fields plus both scores and their provenance.
type MatchView struct {
	GrantID        string   `json:"grantId"`
	Title          string   `json:"title"`
	Sponsor        string   `json:"sponsor,omitempty"`
	URL            string   `json:"url,omitempty"`
	AmountText     string   `json:"amountText,omitempty"`
	Deadline       string   `json:"deadline,omitempty"`
	Score          int      `json:"score"`
	AIScore        *int     `json:"aiScore,omitempty"`
	CombinedScore  int      `json:"combinedScore"`
	Tier           string   `json:"tier"`
	Confidence     string   `json:"confidence"`
	Urgency        string   `json:"urgency,omitempty"`
	FitSummary     string   `json:"fitSummary,omitempty"`
	MatchReasons   []string `json:"matchReasons,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
	FromCache      bool     `json:"fromCache"`
}
