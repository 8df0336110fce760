package table

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	appErrors "github.com/unclebandit/mailblast-backend/internal/errors"
	"github.com/unclebandit/mailblast-backend/internal/model"
)

func TestDecodeCSV(t *testing.T) {
	src := "Email,Name,City\nann@example.com,Ann,Nairobi\n\nbob@example.com,,Mombasa\ncid@example.com,Cid\n"

	tbl, err := DecodeCSV(strings.NewReader(src))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := strings.Join(tbl.Headers, ","); got != "Email,Name,City" {
		t.Errorf("headers = %q", got)
	}
	if len(tbl.Rows) != 3 {
		t.Fatalf("expected 3 rows (blank line skipped), got %d", len(tbl.Rows))
	}
	if tbl.Rows[0]["Name"] != "Ann" {
		t.Errorf("row 0 name = %v", tbl.Rows[0]["Name"])
	}
	if tbl.Rows[1]["Name"] != nil {
		t.Errorf("empty cell should be nil, got %v", tbl.Rows[1]["Name"])
	}
	if v, ok := tbl.Rows[2]["City"]; !ok || v != nil {
		t.Errorf("short row should have nil City, got %v (present=%v)", v, ok)
	}
}

func TestDecodeXLSX(t *testing.T) {
	f := excelize.NewFile()
	rows := [][]interface{}{
		{"Email", "Name"},
		{"ann@example.com", "Ann"},
		{"bob@example.com", ""},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}

	tbl, err := DecodeXLSX(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tbl.Rows) != 2 || tbl.Headers[0] != "Email" {
		t.Fatalf("unexpected table %+v", tbl)
	}
	if tbl.Rows[0]["Name"] != "Ann" || tbl.Rows[1]["Name"] != nil {
		t.Errorf("unexpected rows %v", tbl.Rows)
	}

	if _, err := DecodeXLSX(strings.NewReader("not a workbook")); !errors.Is(err, appErrors.ErrDecode) {
		t.Errorf("expected ErrDecode, got %v", err)
	}
}

func TestDecodeCSVRejectsBadHeaders(t *testing.T) {
	cases := map[string]string{
		"empty":     "",
		"duplicate": "email,Name,name\na,b,c\n",
		"blank":     "email,,Name\na,b,c\n",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeCSV(strings.NewReader(src))
			if !errors.Is(err, appErrors.ErrDecode) {
				t.Errorf("expected ErrDecode, got %v", err)
			}
		})
	}
}

func TestRowLookupIgnoresCase(t *testing.T) {
	row := Row{"Email": " ann@example.com ", "name": nil}

	if got := row.String("EMAIL"); got != "ann@example.com" {
		t.Errorf("String(EMAIL) = %q", got)
	}
	if got := row.String("Name"); got != "" {
		t.Errorf("nil cell should read as empty, got %q", got)
	}
	if _, ok := row.Lookup("missing"); ok {
		t.Error("missing key reported as present")
	}
}

func TestApplyMappings(t *testing.T) {
	tbl := &Table{
		Headers: []string{"email", "Full Name"},
		Rows:    []Row{{"email": "a@x.io", "Full Name": "Ann"}},
	}

	out, err := ApplyMappings(tbl, []model.TagMapping{{TemplateTag: "name", TableHeader: "full name"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if out.Headers[1] != "name" {
		t.Errorf("header not renamed: %v", out.Headers)
	}
	if out.Rows[0]["name"] != "Ann" {
		t.Errorf("row value not carried over: %v", out.Rows[0])
	}
	if tbl.Headers[1] != "Full Name" {
		t.Error("input table was modified")
	}
}

func TestApplyMappingsRejectsCollisions(t *testing.T) {
	tbl := &Table{
		Headers: []string{"email", "Name", "Full Name"},
		Rows:    []Row{{"email": "a@x.io", "Name": "Nickname", "Full Name": "Ann Lee"}},
	}

	cases := map[string][]model.TagMapping{
		"onto unmapped header": {{TemplateTag: "name", TableHeader: "Full Name"}},
		"two onto one tag": {
			{TemplateTag: "who", TableHeader: "Name"},
			{TemplateTag: "WHO", TableHeader: "Full Name"},
		},
	}
	for name, mappings := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ApplyMappings(tbl, mappings); !errors.Is(err, appErrors.ErrDecode) {
				t.Errorf("expected ErrDecode, got %v", err)
			}
		})
	}

	// swapping two columns is fine
	out, err := ApplyMappings(tbl, []model.TagMapping{
		{TemplateTag: "name", TableHeader: "Full Name"},
		{TemplateTag: "nickname", TableHeader: "Name"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Rows[0]["name"] != "Ann Lee" || out.Rows[0]["nickname"] != "Nickname" {
		t.Errorf("unexpected row %v", out.Rows[0])
	}
}

func TestBuildPreview(t *testing.T) {
	tbl := &Table{Headers: []string{"email"}}
	for i := 0; i < 8; i++ {
		tbl.Rows = append(tbl.Rows, Row{"email": "x"})
	}

	p := BuildPreview(tbl, SampleSize)
	if len(p.SampleRows) != SampleSize || p.TotalRows != 8 {
		t.Errorf("preview = %d sample rows, %d total", len(p.SampleRows), p.TotalRows)
	}

	small := BuildPreview(&Table{Headers: []string{"email"}, Rows: []Row{{"email": "x"}}}, SampleSize)
	if len(small.SampleRows) != 1 {
		t.Errorf("expected 1 sample row, got %d", len(small.SampleRows))
	}
}

func TestFileDecoder(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "list.csv"), []byte("email,name\na@x.io,Ann\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	d := &FileDecoder{Dir: dir}

	tbl, err := d.Decode(context.Background(), "file://list.csv")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(tbl.Rows) != 1 {
		t.Errorf("expected 1 row, got %d", len(tbl.Rows))
	}

	for _, ref := range []string{"", "../etc/passwd", "/etc/passwd", "missing.csv", "list.pdf"} {
		if _, err := d.Decode(context.Background(), ref); !errors.Is(err, appErrors.ErrDecode) {
			t.Errorf("ref %q: expected ErrDecode, got %v", ref, err)
		}
	}
}

func TestFileDecoderSaveRoundTrip(t *testing.T) {
	d := &FileDecoder{Dir: filepath.Join(t.TempDir(), "uploads")}

	ref, err := d.Save(strings.NewReader("email,name\na@x.io,Ann\nb@x.io,Bo\n"), "Contacts.CSV")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !strings.HasPrefix(ref, "file://") || !strings.HasSuffix(ref, ".csv") {
		t.Errorf("unexpected ref %q", ref)
	}

	tbl, err := d.Decode(context.Background(), ref)
	if err != nil {
		t.Fatalf("decode saved upload: %v", err)
	}
	if len(tbl.Rows) != 2 {
		t.Errorf("expected 2 rows, got %d", len(tbl.Rows))
	}

	if _, err := d.Save(strings.NewReader("x"), "notes.pdf"); !errors.Is(err, appErrors.ErrDecode) {
		t.Errorf("expected ErrDecode for pdf upload, got %v", err)
	}
}

func TestParseSheetsRef(t *testing.T) {
	id, rng, err := parseSheetsRef("sheets://abc123/Recipients!A1:D")
	if err != nil || id != "abc123" || rng != "Recipients!A1:D" {
		t.Errorf("got %q %q %v", id, rng, err)
	}

	_, rng, _ = parseSheetsRef("sheets://abc123")
	if rng != defaultSheetsRange {
		t.Errorf("default range = %q", rng)
	}

	if _, _, err := parseSheetsRef("sheets://"); !errors.Is(err, appErrors.ErrDecode) {
		t.Errorf("expected ErrDecode, got %v", err)
	}
}

func TestMuxWithoutSheets(t *testing.T) {
	m := &Mux{}
	if _, err := m.Decode(context.Background(), "sheets://abc"); !errors.Is(err, appErrors.ErrDecode) {
		t.Errorf("expected ErrDecode, got %v", err)
	}
}
