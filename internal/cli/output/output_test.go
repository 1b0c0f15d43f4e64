package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{"json", FormatJSON, false},
		{"JSON", FormatJSON, false},
		{"yaml", FormatYAML, false},
		{"yml", FormatYAML, false},
		{" yaml ", FormatYAML, false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	err := PrintJSON(&buf, map[string]string{"status": "ok"})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"status\": \"ok\"\n}\n", buf.String())
}

func TestPrintYAML(t *testing.T) {
	var buf bytes.Buffer
	err := PrintYAML(&buf, map[string]int{"count": 3})
	require.NoError(t, err)
	assert.Equal(t, "count: 3\n", buf.String())
}

func TestPrint(t *testing.T) {
	t.Run("table renderer", func(t *testing.T) {
		table := NewTableData("NAME", "REALM")
		table.AddRow("corp", "CORP.EXAMPLE.COM")

		var buf bytes.Buffer
		require.NoError(t, Print(&buf, FormatTable, table))
		assert.Contains(t, buf.String(), "CORP.EXAMPLE.COM")
	})

	t.Run("table falls back to JSON for plain values", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Print(&buf, FormatTable, map[string]string{"a": "b"}))
		assert.Contains(t, buf.String(), `"a": "b"`)
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Print(&buf, FormatYAML, map[string]string{"a": "b"}))
		assert.Equal(t, "a: b\n", buf.String())
	})

	t.Run("unknown format", func(t *testing.T) {
		err := Print(&bytes.Buffer{}, Format("csv"), nil)
		assert.Error(t, err)
	})
}

func TestPrintTable(t *testing.T) {
	table := NewTableData("SLUG", "ENABLED")
	table.AddRow("corp", "yes")
	table.AddRow("lab", "no")

	var buf bytes.Buffer
	require.NoError(t, PrintTable(&buf, table))

	out := buf.String()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "SLUG")
	assert.Contains(t, lines[1], "corp")
	assert.Contains(t, lines[2], "lab")
}
