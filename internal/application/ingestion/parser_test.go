package ingestion_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assortlab/noos-go/internal/application/ingestion"
)

func TestParseTSV_HappyPath(t *testing.T) {
	// Arrange
	content := "branch\tcity\n" +
		"BLR01\tBangalore\n" +
		"DEL02\tDelhi\n"

	// Act
	parsed, err := ingestion.ParseTSV(strings.NewReader(content), ingestion.StoresHeaders, 100)

	// Assert
	require.NoError(t, err)
	require.Len(t, parsed.Rows, 2)
	assert.Equal(t, 2, parsed.Rows[0].Number, "data starts on physical line 2")
	assert.Equal(t, "BLR01", parsed.Rows[0].Value("branch"))
	assert.Equal(t, "Delhi", parsed.Rows[1].Value("city"))
}

func TestParseTSV_HeaderMismatch(t *testing.T) {
	// Arrange - right names, wrong order
	content := "city\tbranch\nBangalore\tBLR01\n"

	// Act
	_, err := ingestion.ParseTSV(strings.NewReader(content), ingestion.StoresHeaders, 100)

	// Assert
	var mismatch *ingestion.ErrHeaderMismatch
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, ingestion.StoresHeaders, mismatch.Want)
	assert.Equal(t, []string{"city", "branch"}, mismatch.Got)
}

func TestParseTSV_HeaderIsCaseSensitive(t *testing.T) {
	// Arrange
	content := "Branch\tCity\nBLR01\tBangalore\n"

	// Act
	_, err := ingestion.ParseTSV(strings.NewReader(content), ingestion.StoresHeaders, 100)

	// Assert
	var mismatch *ingestion.ErrHeaderMismatch
	assert.ErrorAs(t, err, &mismatch)
}

func TestParseTSV_EmptyFile(t *testing.T) {
	// Act
	_, err := ingestion.ParseTSV(strings.NewReader(""), ingestion.StoresHeaders, 100)

	// Assert
	assert.ErrorIs(t, err, ingestion.ErrEmptyFile)

	// Whitespace-only counts as empty too
	_, err = ingestion.ParseTSV(strings.NewReader("\n  \n\n"), ingestion.StoresHeaders, 100)
	assert.ErrorIs(t, err, ingestion.ErrEmptyFile)
}

func TestParseTSV_HeaderOnlyYieldsNoRows(t *testing.T) {
	// Act
	parsed, err := ingestion.ParseTSV(strings.NewReader("branch\tcity\n"), ingestion.StoresHeaders, 100)

	// Assert
	require.NoError(t, err)
	assert.Empty(t, parsed.Rows)
}

func TestParseTSV_RowLimit(t *testing.T) {
	// Arrange
	content := "branch\tcity\nA01\tX\nB02\tY\nC03\tZ\n"

	// Act
	_, err := ingestion.ParseTSV(strings.NewReader(content), ingestion.StoresHeaders, 2)

	// Assert
	var tooLarge *ingestion.ErrFileTooLarge
	require.ErrorAs(t, err, &tooLarge)
	assert.Equal(t, 2, tooLarge.Limit)
}

func TestParseTSV_ShortLinesPadEmpty(t *testing.T) {
	// A short line becomes empty cells so field validation reports the
	// specific missing column instead of the parse aborting.

	// Arrange
	content := "branch\tcity\nBLR01\n"

	// Act
	parsed, err := ingestion.ParseTSV(strings.NewReader(content), ingestion.StoresHeaders, 100)

	// Assert
	require.NoError(t, err)
	require.Len(t, parsed.Rows, 1)
	assert.Equal(t, "BLR01", parsed.Rows[0].Value("branch"))
	assert.Equal(t, "", parsed.Rows[0].Value("city"))
	assert.Zero(t, parsed.Rows[0].Extra)
}

func TestParseTSV_ExtraColumnsCounted(t *testing.T) {
	// Arrange
	content := "branch\tcity\nBLR01\tBangalore\tsurplus\textra\n"

	// Act
	parsed, err := ingestion.ParseTSV(strings.NewReader(content), ingestion.StoresHeaders, 100)

	// Assert
	require.NoError(t, err)
	require.Len(t, parsed.Rows, 1)
	assert.Equal(t, 2, parsed.Rows[0].Extra)
}

func TestParseTSV_SkipsBlankLinesAndTrimsCRLF(t *testing.T) {
	// Arrange - Windows line endings and an interior blank line
	content := "branch\tcity\r\n\r\nBLR01\tBangalore\r\n"

	// Act
	parsed, err := ingestion.ParseTSV(strings.NewReader(content), ingestion.StoresHeaders, 100)

	// Assert
	require.NoError(t, err)
	require.Len(t, parsed.Rows, 1)
	assert.Equal(t, "Bangalore", parsed.Rows[0].Value("city"))
	assert.Equal(t, 3, parsed.Rows[0].Number, "blank lines still advance the physical line number")
}

func TestParseTSV_TrimsCellWhitespace(t *testing.T) {
	// Arrange
	content := "branch\tcity\n  BLR01  \t Bangalore \n"

	// Act
	parsed, err := ingestion.ParseTSV(strings.NewReader(content), ingestion.StoresHeaders, 100)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "BLR01", parsed.Rows[0].Value("branch"))
	assert.Equal(t, "Bangalore", parsed.Rows[0].Value("city"))
}

func TestNormalizeKey(t *testing.T) {
	// Act / Assert
	assert.Equal(t, "SKU001", ingestion.NormalizeKey("sku001"))
	assert.Equal(t, "SKU001", ingestion.NormalizeKey("  Sku001 "))
	assert.Equal(t, "", ingestion.NormalizeKey("   "))
}
