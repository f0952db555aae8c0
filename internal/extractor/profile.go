package extractor

// Profile tunes extraction for one kind of page.
type Profile struct {
	// Name labels metrics and logs.
	Name string
	// Prune removes boilerplate before any text is read.
	Prune string
	// Candidates are probed in order when <article> is missing or short; the longest wins.
	Candidates []string
	// EarlyAccept is the length at which a stage's text is accepted without probing further.
	EarlyAccept int
	// MinLength is the exclusive success threshold after normalization.
	MinLength int
	// MaxLength caps the output in characters.
	MaxLength int
}

// Listing extracts the body of articles found on the source blog.
var Listing = Profile{
	Name:  "listing",
	Prune: "script, style, nav, header, footer, .sidebar, .menu, .advertisement, .ad",
	Candidates: []string{
		"main",
		".main-content",
		".content",
		".post-content",
		".article-content",
		".blog-content",
		".entry-content",
		`[role="main"]`,
	},
	EarlyAccept: 200,
	MinLength:   100,
	MaxLength:   3000,
}

// Source extracts supporting pages found by the source finder.
var Source = Profile{
	Name:  "source",
	Prune: "script, style, nav, header, footer, iframe, .ad, .advertisement, aside, .sidebar, .comments",
	Candidates: []string{
		"main",
		".main-content",
		".content",
		".post-content",
		".article-content",
		".entry-content",
		".story-body",
		"[role='main']",
		"#main-content",
	},
	EarlyAccept: 300,
	MinLength:   300,
	MaxLength:   6000,
}
