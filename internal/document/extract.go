package document

import (
	"bytes"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/net/html"
)

const (
	// MaxPDFPages limits the number of pages to process
	MaxPDFPages = 100

	// MaxExtractedTextSize limits the extracted text size (1MB)
	MaxExtractedTextSize = 1024 * 1024
)

// ExtractText converts an uploaded knowledge file into plain text ready
// for chunking. The format is chosen by file extension; unknown
// extensions are treated as plain text.
func ExtractText(filename string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".pdf":
		return extractPDF(data)
	case ".xlsx", ".xlsm":
		return extractXLSX(data)
	case ".md", ".markdown":
		return extractMarkdown(data)
	case ".html", ".htm":
		return extractHTML(data)
	default:
		return cleanText(string(data)), nil
	}
}

// extractPDF pulls plain text out of a PDF, page by page. Pages that
// fail extraction are skipped rather than failing the whole document.
func extractPDF(data []byte) (string, error) {
	reader := bytes.NewReader(data)
	pdfReader, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}

	totalPages := pdfReader.NumPage()
	if totalPages == 0 {
		return "", fmt.Errorf("PDF has no pages")
	}
	if totalPages > MaxPDFPages {
		return "", fmt.Errorf("PDF has too many pages (%d), max allowed is %d", totalPages, MaxPDFPages)
	}

	var textBuilder strings.Builder
	skipped := 0

	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		page := pdfReader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			skipped++
			continue
		}

		cleaned := cleanText(text)
		if cleaned != "" {
			textBuilder.WriteString(cleaned)
			textBuilder.WriteString("\n\n")
		}

		if textBuilder.Len() > MaxExtractedTextSize {
			break
		}
	}

	if skipped > 0 {
		log.Printf("⚠️  [DOCUMENT] Skipped %d unextractable PDF pages", skipped)
	}

	return truncate(strings.TrimSpace(textBuilder.String())), nil
}

// extractXLSX joins spreadsheet cells row-wise, sheet by sheet, so
// tabular knowledge (price lists, FAQs) chunks reasonably.
func extractXLSX(data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheetNames := f.GetSheetList()
	if len(sheetNames) == 0 {
		return "", fmt.Errorf("no sheets found in workbook")
	}

	var textBuilder strings.Builder
	for _, sheet := range sheetNames {
		rows, err := f.GetRows(sheet)
		if err != nil {
			log.Printf("⚠️  [DOCUMENT] Skipping unreadable sheet %q: %v", sheet, err)
			continue
		}
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, " | "))
			if line == "" || strings.Trim(line, "| ") == "" {
				continue
			}
			textBuilder.WriteString(line)
			textBuilder.WriteString("\n")
		}
		textBuilder.WriteString("\n")

		if textBuilder.Len() > MaxExtractedTextSize {
			break
		}
	}

	return truncate(strings.TrimSpace(textBuilder.String())), nil
}

// extractMarkdown renders markdown to HTML with GFM extensions and
// strips the markup, which flattens tables and lists into plain lines.
func extractMarkdown(data []byte) (string, error) {
	var htmlBuf bytes.Buffer
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
		),
	)
	if err := md.Convert(data, &htmlBuf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return extractHTML(htmlBuf.Bytes())
}

// extractHTML walks the document tree and collects text nodes, skipping
// script and style subtrees.
func extractHTML(data []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	var textBuilder strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				textBuilder.WriteString(text)
				textBuilder.WriteString("\n")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return truncate(cleanText(textBuilder.String())), nil
}

// cleanText removes null bytes and collapses runs of whitespace while
// preserving line breaks.
func cleanText(text string) string {
	text = strings.ReplaceAll(text, "\x00", "")

	var result strings.Builder
	lastWasSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			if r == '\n' {
				result.WriteRune('\n')
				lastWasSpace = false
			} else if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
		} else {
			result.WriteRune(r)
			lastWasSpace = false
		}
	}

	return strings.TrimSpace(result.String())
}

func truncate(text string) string {
	if len(text) <= MaxExtractedTextSize {
		return text
	}
	return text[:MaxExtractedTextSize]
}
