package table

// SampleSize is how many rows a preview shows.
const SampleSize = 5

// Preview is a side-effect free summary of a table.
type Preview struct {
	Headers    []string `json:"headers"`
	SampleRows []Row    `json:"sample_rows"`
	TotalRows  int      `json:"total_rows"`
}

func BuildPreview(t *Table, n int) Preview {
	if n < 0 || n > len(t.Rows) {
		n = len(t.Rows)
	}
	sample := make([]Row, n)
	copy(sample, t.Rows[:n])
	return Preview{
		Headers:    t.Headers,
		SampleRows: sample,
		TotalRows:  len(t.Rows),
	}
}
