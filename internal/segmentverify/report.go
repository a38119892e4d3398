package segmentverify

import (
	"encoding/json"
	"fmt"
	"io"
	"text/template"
)

// ReportFormat selects how WriteReport renders a Report.
type ReportFormat string

const (
	FormatText     ReportFormat = "text"
	FormatJSON     ReportFormat = "json"
	FormatMarkdown ReportFormat = "markdown"
)

// WriteReport renders report in the requested format to w.
func WriteReport(report *Report, format ReportFormat, w io.Writer) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case FormatMarkdown:
		return writeMarkdown(report, w)
	case FormatText, "":
		return writeText(report, w)
	default:
		return fmt.Errorf("segmentverify: unknown report format %q", format)
	}
}

func writeText(report *Report, w io.Writer) error {
	fmt.Fprintln(w, "segment verification report")
	fmt.Fprintf(w, "segments: %d  schema_ok: %d  sig_ok: %d  chain_ok: %d  decrypt_ok: %d\n",
		report.Total, report.SchemaOK, report.SigOK, report.ChainOK, report.DecryptOK)
	fmt.Fprintln(w)
	for _, s := range report.Segments {
		status := "ok"
		if !s.SchemaOK || !s.SigOK || len(s.Errors) > 0 {
			status = "FAIL"
		}
		fmt.Fprintf(w, "[%s] seq=%d session=%s schema=%v sig=%v chain=%v decrypt=%v\n",
			status, s.Seq, s.Session, s.SchemaOK, s.SigOK, s.ChainOK, s.DecryptOK)
		for _, e := range s.Errors {
			fmt.Fprintf(w, "    %s\n", e)
		}
	}
	return nil
}

const markdownTemplate = `# Segment Verification Report

| Segments | Schema OK | Signature OK | Chain OK | Decrypt OK |
|---|---|---|---|---|
| {{.Total}} | {{.SchemaOK}} | {{.SigOK}} | {{.ChainOK}} | {{.DecryptOK}} |

| Seq | Session | Schema | Sig | Chain | Decrypt | Errors |
|---|---|---|---|---|---|---|
{{range .Segments}}| {{.Seq}} | {{.Session}} | {{.SchemaOK}} | {{.SigOK}} | {{.ChainOK}} | {{.DecryptOK}} | {{range .Errors}}{{.}}; {{end}} |
{{end}}`

func writeMarkdown(report *Report, w io.Writer) error {
	t, err := template.New("report").Parse(markdownTemplate)
	if err != nil {
		return err
	}
	return t.Execute(w, report)
}
