package extractor

import (
	"net/url"

	"github.com/mascanho/seocrawl/pkg/failure"
)

// Extractor isolates the main content of an already-fetched HTML document.
// Implementations never perform I/O themselves; htmlByte is the body the
// caller already retrieved.
type Extractor interface {
	SetExtractParam(params ExtractParam)
	Extract(sourceUrl url.URL, htmlByte []byte) (ExtractionResult, failure.ClassifiedError)
}

var _ Extractor = (*DomExtractor)(nil)
