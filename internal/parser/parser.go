package parser

import (
	"archive/zip"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"

	"form-rag/internal/models"
)

// Parse extracts plain text from the file at path, dispatching on the
// extension. Unrecognized extensions fail with ErrUnsupportedFormat.
func Parse(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".pdf":
		return parsePDF(path)
	case ".txt":
		return parseText(path)
	case ".md":
		return parseMarkdown(path)
	case ".csv":
		return parseCSV(path, ',')
	case ".tsv":
		return parseCSV(path, '\t')
	case ".docx":
		return parseDOCX(path)
	case ".pptx":
		return parsePPTX(path)
	case ".xls", ".xlsx":
		return parseXLSX(path)
	case ".doc", ".ppt":
		// legacy OLE containers, not zip archives; the docx/pptx
		// readers cannot open them
		return "", fmt.Errorf("%w: %s", models.ErrUnsupportedFormat, ext)
	case ".ods":
		return parseODS(path)
	default:
		return "", fmt.Errorf("%w: %s", models.ErrUnsupportedFormat, ext)
	}
}

func parsePDF(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return "", err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return "", err
	}

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		pageText, err := reader.Page(i).GetPlainText(nil)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(pageText) != "" {
			pages = append(pages, pageText)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}

func parseText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// parseMarkdown walks the goldmark AST and keeps only the text content,
// so headings and emphasis markers don't end up in chunks.
func parseMarkdown(path string) (string, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	root := goldmark.New().Parser().Parse(gmtext.NewReader(source))
	var b strings.Builder
	err = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := n.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte('\n')
			}
		case *ast.Paragraph, *ast.Heading, *ast.ListItem:
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}

// parseCSV renders each record as "header: value" pairs, one row per
// line, so column meaning survives chunking.
func parseCSV(path string, comma rune) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = comma
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", nil
	}

	headers := records[0]
	var b strings.Builder
	for _, row := range records[1:] {
		var pairs []string
		for i, field := range row {
			if i < len(headers) {
				pairs = append(pairs, headers[i]+": "+field)
			} else {
				pairs = append(pairs, field)
			}
		}
		b.WriteString(strings.Join(pairs, ", "))
		b.WriteString("\n")
	}
	return b.String(), nil
}

func parseDOCX(path string) (string, error) {
	r, err := docx.ReadDocxFile(path)
	if err != nil {
		return "", err
	}
	defer r.Close()

	content := r.Editable().GetContent()
	return extractTaggedText(content, "<w:t", "</w:t>", "\n"), nil
}

func parsePPTX(path string) (string, error) {
	f, err := zip.OpenReader(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var slides []string
	for _, file := range f.File {
		if !strings.HasPrefix(file.Name, "ppt/slides/slide") {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}
		slideText := extractTaggedText(string(data), "<a:t", "</a:t>", " ")
		if strings.TrimSpace(slideText) != "" {
			slides = append(slides, slideText)
		}
	}
	return strings.Join(slides, "\n\n"), nil
}

func parseXLSX(path string) (string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, sheet := range f.Sheets {
		b.WriteString(fmt.Sprintf("Sheet: %s\n", sheet.Name))
		for _, row := range sheet.Rows {
			for _, cell := range row.Cells {
				b.WriteString(cell.String() + "\t")
			}
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}

func parseODS(path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var b strings.Builder
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			continue
		}
		b.WriteString(fmt.Sprintf("Sheet: %s\n", sheetName))
		for _, row := range rows {
			for _, cell := range row {
				b.WriteString(cell + "\t")
			}
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}

// extractTaggedText pulls the text between occurrences of an XML tag,
// tolerating attributes on the opening tag.
func extractTaggedText(content, openPrefix, closeTag, sep string) string {
	var parts []string
	for {
		start := strings.Index(content, openPrefix)
		if start < 0 {
			break
		}
		content = content[start+len(openPrefix):]
		// skip longer tag names sharing the prefix (<w:tbl>) and
		// self-closing empty tags (<w:t/>)
		if content == "" || (content[0] != '>' && content[0] != ' ') {
			continue
		}
		gt := strings.Index(content, ">")
		if gt < 0 {
			break
		}
		content = content[gt+1:]
		end := strings.Index(content, closeTag)
		if end < 0 {
			break
		}
		if text := content[:end]; text != "" {
			parts = append(parts, text)
		}
		content = content[end+len(closeTag):]
	}
	return strings.Join(parts, sep)
}
