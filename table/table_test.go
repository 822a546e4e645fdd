package table

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/teranos/xalq/errors"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_CSV(t *testing.T) {
	path := writeFile(t, "clients.csv",
		"Carimbo de data/hora,Nome da Empresa,Modelo de atuação\n"+
			"2024-01-01,Acme,revenue\n"+
			"2024-01-02,Globex,operations\n")

	rs, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"Carimbo de data/hora", "Nome da Empresa", "Modelo de atuação"}, rs.Columns)
	require.Equal(t, 2, rs.Len())
	assert.Equal(t, "Nome da Empresa", rs.IdentifierColumn)
	assert.Equal(t, 0, rs.Rows[0].Index)
	assert.Equal(t, 1, rs.Rows[1].Index)
	assert.Equal(t, []string{"0: Acme", "1: Globex"}, rs.Labels())

	v, ok := rs.Rows[1].Get("modelo de ATUAÇÃO")
	require.True(t, ok)
	assert.Equal(t, "operations", v)
}

func TestLoad_SemicolonWithBOM(t *testing.T) {
	path := writeFile(t, "clients.csv",
		"\xEF\xBB\xBFEmpresa;Setor;Observação\n"+
			"\"Acme; Ltda\";Varejo;ok\n")

	rs, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Empresa", rs.Columns[0], "BOM is stripped from the first header")
	v, _ := rs.Rows[0].Get("empresa")
	assert.Equal(t, "Acme; Ltda", v)
	v, _ = rs.Rows[0].Get("setor")
	assert.Equal(t, "Varejo", v)
}

func TestLoad_TabDelimited(t *testing.T) {
	path := writeFile(t, "clients.csv", "company\tcountry\nInitech\tUS\n")

	rs, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"company", "country"}, rs.Columns)
	assert.Equal(t, "Initech", rs.Rows[0].Values["company"])
}

func TestLoad_SkipsBlankRowsAndPadsShortOnes(t *testing.T) {
	path := writeFile(t, "clients.csv", "empresa,modelo,extra\nAcme,revenue\n,,\n\nGlobex,operations,x\n")

	rs, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 2, rs.Len())
	assert.Equal(t, "", rs.Rows[0].Values["extra"])
	assert.Equal(t, "Globex", rs.Rows[1].Values["empresa"])
	assert.Equal(t, 1, rs.Rows[1].Index, "indices count data rows only")
}

func TestLoad_DuplicateAndBlankHeaders(t *testing.T) {
	path := writeFile(t, "clients.csv", "empresa,,empresa\nA,B,C\n")

	rs, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"empresa", "Unnamed: 1", "empresa.1"}, rs.Columns)
	assert.Equal(t, "C", rs.Rows[0].Values["empresa.1"])
}

func TestLoad_Errors(t *testing.T) {
	t.Run("unsupported extension", func(t *testing.T) {
		path := writeFile(t, "clients.pdf", "x")
		_, err := Load(path)
		assert.True(t, errors.Is(err, errors.ErrUnsupportedFormat))
	})

	t.Run("header only", func(t *testing.T) {
		path := writeFile(t, "clients.csv", "empresa,modelo\n")
		_, err := Load(path)
		assert.True(t, errors.Is(err, errors.ErrEmptyDataset))
	})

	t.Run("empty file", func(t *testing.T) {
		path := writeFile(t, "clients.csv", "")
		_, err := Load(path)
		assert.True(t, errors.Is(err, errors.ErrEmptyDataset))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.csv"))
		require.Error(t, err)
		assert.False(t, errors.Is(err, errors.ErrEmptyDataset))
	})
}

func TestLoad_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clients.xlsx")

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"Timestamp", "Cliente", "Modelo"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"2024-01-01", "Acme", "revenue"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]interface{}{"2024-01-02", "Globex", 42}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	rs, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Cliente", rs.IdentifierColumn)
	assert.Equal(t, []string{"0: Acme", "1: Globex"}, rs.Labels())
	assert.Equal(t, "42", rs.Rows[1].Values["Modelo"])
}

func TestLoad_XLSXHeaderOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clients.xlsx")

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"empresa"}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	_, err := Load(path)
	assert.True(t, errors.Is(err, errors.ErrEmptyDataset))
}

func TestIdentifierColumn(t *testing.T) {
	tests := []struct {
		name    string
		columns []string
		want    string
	}{
		{"exact beats earlier substring", []string{"Nome do contato", "Empresa"}, "Empresa"},
		{"candidate order for exact", []string{"Company", "Nome da empresa"}, "Nome da empresa"},
		{"substring match", []string{"Timestamp", "Razão Social do cliente"}, "Razão Social do cliente"},
		{"skip date columns", []string{"Carimbo de data/hora", "Setor", "Receita"}, "Setor"},
		{"all date columns", []string{"Date", "Hora"}, "Date"},
		{"empty", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IdentifierColumn(tt.columns))
		})
	}
}

func TestParseLabel(t *testing.T) {
	idx, err := ParseLabel("3: Acme Corp: Brasil")
	require.NoError(t, err)
	assert.Equal(t, 3, idx)

	idx, err = ParseLabel("7")
	require.NoError(t, err)
	assert.Equal(t, 7, idx)

	_, err = ParseLabel("Acme")
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = ParseLabel("-1: x")
	assert.Error(t, err)
}

func TestRowFormat(t *testing.T) {
	row := Row{
		Columns: []string{"Empresa", "Setor"},
		Values:  map[string]string{"Empresa": "Acme", "Setor": "Varejo"},
	}
	assert.Equal(t, "Empresa: Acme\nSetor: Varejo", row.Format())

	col, ok := row.FirstColumnContaining("setor")
	assert.True(t, ok)
	assert.Equal(t, "Setor", col)
}
