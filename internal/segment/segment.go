package segment

import (
	"bytes"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/joseph-ayodele/auctions-etl/internal/common"
)

// ListingText is one auction notice's text span within a source document.
// Listings are indexed by their position in the segmented text; concatenating
// a document's listings in index order reproduces the scanned span.
type ListingText struct {
	DocID string
	Index int
	Text  string
}

// terminatingMarker ends the relevant gazette section. Pages from the first
// one containing it onward are unrelated content.
const terminatingMarker = "PAUC"

// Segmenter extracts listing texts from gazette PDFs.
type Segmenter struct {
	skipPages int
	logger    *slog.Logger
}

func NewSegmenter(skipPages int, logger *slog.Logger) *Segmenter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Segmenter{skipPages: skipPages, logger: logger}
}

// Segment renders the PDF's relevant page range to text and splits it into
// listings. An unparseable document returns ErrExtraction; a readable document
// with no delimiter matches returns an empty slice and nil error.
func (s *Segmenter) Segment(docID string, raw []byte) ([]ListingText, error) {
	r, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		s.logger.Error("segment.pdf_unreadable", "doc_id", docID, "error", err)
		return nil, common.NewAppError("PDF_UNREADABLE", "cannot parse pdf "+docID, common.ErrExtraction)
	}

	totalPages := r.NumPage()
	startPage := 1
	if totalPages > s.skipPages {
		startPage = s.skipPages + 1
	}

	var sb strings.Builder
	for i := startPage; i <= totalPages; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		pageText, err := p.GetPlainText(nil)
		if err != nil {
			s.logger.Warn("segment.page_text_error", "doc_id", docID, "page", i, "error", err)
			continue
		}
		if strings.Contains(strings.ToUpper(pageText), terminatingMarker) {
			s.logger.Info("segment.stop_marker", "doc_id", docID, "page", i)
			break
		}
		sb.WriteString(pageText)
		sb.WriteString("\n")
	}

	cleaned := CleanText(sb.String())
	listings := SplitListings(docID, cleaned)

	s.logger.Info("segment.split",
		"doc_id", docID,
		"total_pages", totalPages,
		"start_page", startPage,
		"cleaned_len", len(cleaned),
		"listings", len(listings),
	)
	return listings, nil
}
