package ops

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/klistr-labs/fedgatewayd/internal/adapters"
	"github.com/klistr-labs/fedgatewayd/internal/model"
)

// ExportFormat is one of the three export output formats named in §4.8
// export.
type ExportFormat string

const (
	ExportJSON     ExportFormat = "json"
	ExportMarkdown ExportFormat = "markdown"
	ExportCSV      ExportFormat = "csv"
)

// exportCSVHeader is the fixed column order §4.8 requires for CSV export.
var exportCSVHeader = []string{"id", "published", "author", "visibility", "content_text", "url"}

// Export fetches every page of identifier's timeline (following NextCursor
// until exhausted) and renders the collected posts in format. §4.8 export.
func (o *Operations) Export(ctx context.Context, caller, identifier string, format ExportFormat) (string, error) {
	var posts []model.Post
	err := o.instrument("export", func() error {
		b := adapters.Bounds{Limit: 40}
		for {
			page, err := o.FetchAccountStatuses(ctx, caller, identifier, b)
			if err != nil {
				return err
			}
			posts = append(posts, page.Items...)
			if !page.HasMore || page.NextCursor == "" {
				break
			}
			b = adapters.Bounds{Limit: 40, Cursor: page.NextCursor}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	switch format {
	case ExportJSON:
		return renderJSON(posts)
	case ExportMarkdown:
		return renderMarkdown(posts), nil
	case ExportCSV:
		return renderCSV(posts)
	default:
		return "", fmt.Errorf("export: unsupported format %q", format)
	}
}

func renderJSON(posts []model.Post) (string, error) {
	if posts == nil {
		posts = []model.Post{}
	}
	b, err := json.MarshalIndent(posts, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func renderMarkdown(posts []model.Post) string {
	var sb strings.Builder
	for _, p := range posts {
		fmt.Fprintf(&sb, "### %s\n\n", p.PublishedAt.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(&sb, "**%s** (%s)\n\n", p.Author.Acct, p.Visibility)
		sb.WriteString(p.ContentText)
		sb.WriteString("\n\n")
		if p.URL != "" {
			fmt.Fprintf(&sb, "[%s](%s)\n\n", p.URL, p.URL)
		}
		sb.WriteString("---\n\n")
	}
	return sb.String()
}

func renderCSV(posts []model.Post) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportCSVHeader); err != nil {
		return "", err
	}
	for _, p := range posts {
		row := []string{
			p.ID,
			p.PublishedAt.Format("2006-01-02T15:04:05Z07:00"),
			p.Author.Acct,
			string(p.Visibility),
			p.ContentText,
			p.URL,
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
