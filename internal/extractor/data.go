package extractor

import "golang.org/x/net/html"

// ExtractionResult holds the content-isolation outcome.
// DocumentRoot is the original parsed HTML document.
// ContentNode is the extracted meaningful content node (semantic container).
type ExtractionResult struct {
	DocumentRoot *html.Node
	ContentNode  *html.Node
}

// ContentScoreMultiplier weights the signals findBestContentContainer sums
// when no semantic or custom-selector container was found.
type ContentScoreMultiplier struct {
	NonWhitespaceDivisor float64
	Paragraphs           float64
	Headings             float64
	CodeBlocks           float64
	ListItems            float64
}

// MeaningfulThreshold gates whether a candidate node is worth returning at
// all, independent of how it scored against its siblings.
type MeaningfulThreshold struct {
	MinNonWhitespace    int
	MinHeadings         int
	MinParagraphsOrCode int
	MaxLinkDensity      float64
}

// ExtractParam tunes the content-isolation heuristic. The defaults were
// picked empirically against a mix of blog, documentation, and marketing
// pages; operators targeting a single site shape may want to loosen or
// tighten them via config.
type ExtractParam struct {
	BodySpecificityBias  float64
	LinkDensityThreshold float64
	ScoreMultiplier      ContentScoreMultiplier
	Threshold            MeaningfulThreshold
}

func DefaultExtractParam() ExtractParam {
	return ExtractParam{
		BodySpecificityBias:  0.75,
		LinkDensityThreshold: 0.80,
		ScoreMultiplier: ContentScoreMultiplier{
			NonWhitespaceDivisor: 50.0,
			Paragraphs:           5.0,
			Headings:             10.0,
			CodeBlocks:           15.0,
			ListItems:            2.0,
		},
		Threshold: MeaningfulThreshold{
			MinNonWhitespace:    50,
			MinHeadings:         0,
			MinParagraphsOrCode: 1,
			MaxLinkDensity:      0.8,
		},
	}
}
