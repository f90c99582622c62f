package upstream

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTemplateStore_BuildSubstitutesAnchors(t *testing.T) {
	dir := t.TempDir()
	tmpl := `<ENVELOPE><COMPANY>SVCURRENTCOMPANY</COMPANY>` +
		`<FROM>SVFROMDATE</FROM><TO>SVTODATE</TO>` +
		`<FILTER>PLACEHOLDER_ALTER_ID</FILTER></ENVELOPE>`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sales.xml"), []byte(tmpl), 0o644))

	store := NewTemplateStore(dir)
	body, err := store.Build("sales", RequestParams{
		CompanyName: "Acme Co",
		FromDate:    "20240401",
		ToDate:      "20240630",
		AlterID:     42,
	})
	require.NoError(t, err)

	got := string(body)
	require.Contains(t, got, "<COMPANY>Acme Co</COMPANY>")
	require.Contains(t, got, "<FROM>20240401</FROM>")
	require.Contains(t, got, "<TO>20240630</TO>")
	require.Contains(t, got, "$$Number:$AlterID > 42")
}

func TestTemplateStore_MissingTemplate(t *testing.T) {
	store := NewTemplateStore(t.TempDir())
	_, err := store.Build("nonexistent", RequestParams{})
	require.ErrorIs(t, err, ErrTemplateMissing)
}

func TestTemplateStore_ClonesBeforeMutating(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "k.xml"), []byte("SVCURRENTCOMPANY"), 0o644))

	store := NewTemplateStore(dir)
	_, err := store.Build("k", RequestParams{CompanyName: "First"})
	require.NoError(t, err)

	body, err := store.Build("k", RequestParams{CompanyName: "Second"})
	require.NoError(t, err)
	require.Equal(t, "Second", string(body))
}
