package evidence

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type Format int

const (
	FormatText Format = iota
	FormatMarkdown
)

func newTable(f Format, title string) table.Writer {
	w := table.NewWriter()
	if f == FormatText {
		w.SetStyle(table.StyleLight)
	}
	w.SetTitle(title)
	return w
}

func renderTable(w table.Writer, f Format) string {
	if f == FormatMarkdown {
		return w.RenderMarkdown()
	}
	return w.Render()
}

// Render writes the report tables followed by the verdict lines.
func Render(out io.Writer, r Report, s Summary, f Format) error {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s  root %s  variants %s\n\n", r.RunID, r.ServerRoot, joinVariants(r.Variants))

	if c := r.Connectivity; c != nil {
		t := newTable(f, "Connectivity")
		t.AppendHeader(table.Row{"Host", "DNS", "Reachable", "HTTP", "Latency", "Message"})
		t.AppendRow(table.Row{c.Host, c.DNSClass, c.Reachable, status(c.HTTPStatus), c.Latency.Round(time.Millisecond), c.Message})
		t.SetColumnConfigs([]table.ColumnConfig{{Number: 6, WidthMax: 60}})
		b.WriteString(renderTable(t, f))
		b.WriteString("\n\n")
	}

	t := newTable(f, "Strategies")
	t.AppendHeader(table.Row{"Strategy", "Variant", "Result", "Error", "HTTP", "Attempts", "Bytes", "Duration", "SHA-256", "Diagnostic"})
	for _, o := range r.Outcomes {
		t.AppendRow(table.Row{
			o.Strategy, o.Target.Variant, o.Kind, o.ErrorKind, status(o.HTTPStatus),
			o.Attempts, o.Size, o.Duration.Round(time.Millisecond), short(o.SHA256), o.Diagnostic,
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
		{Number: 10, WidthMax: 60},
	})
	b.WriteString(renderTable(t, f))
	b.WriteString("\n\n")

	t = newTable(f, "Existence")
	t.AppendHeader(table.Row{"Role", "Key", "Variant", "Class", "Method", "Status", "URL"})
	for _, row := range r.Existence {
		e := row.Result
		line := e.StatusLine
		if line == "" {
			line = e.Diagnostic
		}
		t.AppendRow(table.Row{row.Role, e.Key, e.Variant, e.Class, e.Method, line, e.URL})
	}
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 6, WidthMax: 48}})
	b.WriteString(renderTable(t, f))
	b.WriteString("\n\n")

	for _, l := range s.Lines() {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	_, err := io.WriteString(out, b.String())
	return err
}

// Lines restates the summary as plain text, one marker per line.
func (s Summary) Lines() []string {
	var out []string
	out = append(out, "host: "+string(s.Host))
	out = append(out, "succeeded: "+list(s.Succeeded))
	out = append(out, "failed: "+list(s.Failed))
	out = append(out, "served variants: "+orNone(joinVariants(s.ServedVariants)))
	out = append(out, "index key variants: "+orNone(joinVariants(s.IndexKeyVariants)))
	verdict := "MISMATCH"
	if s.IndexConventionMatches {
		verdict = "OK"
	}
	out = append(out, fmt.Sprintf("index convention: %s (%s)", verdict, s.IndexConvention))
	if s.Attribution != "" {
		out = append(out, "attribution: "+s.Attribution)
	}
	for _, w := range s.Warnings {
		out = append(out, "WARNING: "+w)
	}
	return out
}

func list(xs []string) string { return orNone(strings.Join(xs, ", ")) }

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func status(code int) string {
	if code == 0 {
		return "-"
	}
	return fmt.Sprint(code)
}

func short(sum string) string {
	if len(sum) > 12 {
		return sum[:12]
	}
	return sum
}
