package extractor

// KnownContentSelectors contains platform-specific main-content container
// selectors. Used as Layer 2 of the content-isolation heuristic when the
// semantic containers (Layer 1: main/article/[role=main]) aren't present —
// common on older CMS themes and site builders that never adopted HTML5
// sectioning elements.
//
//nolint:gochecknoglobals // This is a static lookup table that must be global
var KnownContentSelectors = map[string][]string{
	"generic": {
		".content",
		"#content",
		".page-content",
		".entry-content",
		".post-content",
	},
	"wordpress": {
		".entry-content",
		".post-content",
		"#content .entry",
	},
	"drupal": {
		".field--name-body",
		".node__content",
	},
	"ghost": {
		".post-content",
		".gh-content",
	},
	"shopify": {
		".rte",
		".product-description",
	},
	"squarespace": {
		".sqs-block-content",
	},
	"webflow": {
		".w-richtext",
	},
}

// getAllSelectors returns a flattened, prioritized list of all known
// platform selectors. Order matters: generic selectors are checked first,
// then platform-specific in priority order.
func getAllSelectors() []string {
	platformOrder := []string{
		"generic",
		"wordpress",
		"drupal",
		"ghost",
		"shopify",
		"squarespace",
		"webflow",
	}

	var allSelectors []string
	seen := make(map[string]bool)

	for _, platform := range platformOrder {
		for _, selector := range KnownContentSelectors[platform] {
			if !seen[selector] {
				seen[selector] = true
				allSelectors = append(allSelectors, selector)
			}
		}
	}

	return allSelectors
}

// mergeSelectors combines default selectors with user-provided custom selectors,
// deduplicating to ensure each selector appears only once.
func mergeSelectors(defaultSelectors, customSelectors []string) []string {
	seen := make(map[string]bool)
	var merged []string

	for _, selector := range defaultSelectors {
		if !seen[selector] {
			seen[selector] = true
			merged = append(merged, selector)
		}
	}

	for _, selector := range customSelectors {
		if !seen[selector] {
			seen[selector] = true
			merged = append(merged, selector)
		}
	}

	return merged
}
