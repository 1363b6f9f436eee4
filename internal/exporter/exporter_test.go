package exporter

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"licensepanel/pkg/contracts/domain"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleLicenses() []domain.License {
	past := now.Add(-time.Hour)
	return []domain.License{
		{
			Key:          "LF-AAAA-BBBB-CCCC-DDDD",
			ProductID:    "p1",
			DiscordID:    "111",
			Status:       domain.LicenseStatusActive,
			AllowedIPs:   []string{"1.1.1.1", "2.2.2.2"},
			MaxIPs:       domain.Capped(3),
			MaxHWIDs:     domain.Unlimited(),
			Validations:  7,
			Source:       domain.SourceManual,
			CreatedAt:    now.Add(-48 * time.Hour),
			AllowedHWIDs: []string{},
		},
		{
			Key:       "LF-EEEE-FFFF-GGGG-HHHH",
			ProductID: "gone",
			DiscordID: "222",
			Status:    domain.LicenseStatusActive,
			ExpiresAt: &past,
			MaxIPs:    domain.Disabled(),
			Source:    domain.SourceVoucher,
		},
	}
}

func TestLicenseTable(t *testing.T) {
	table := LicenseTable(sampleLicenses(), map[string]string{"p1": "Shop Plugin"}, now)

	require.Len(t, table.Rows, 2)
	assert.Len(t, table.Rows[0], len(table.Headers))

	first := table.Rows[0]
	assert.Equal(t, "Shop Plugin", first[1])
	assert.Equal(t, "active", first[4])
	assert.Equal(t, "Lifetime", first[5])
	assert.Equal(t, "1.1.1.1, 2.2.2.2", first[6])
	assert.Equal(t, "3", first[7])
	assert.Equal(t, "Unlimited", first[9])
	assert.Equal(t, "7", first[10])

	second := table.Rows[1]
	assert.Equal(t, "gone", second[1], "unknown product falls back to the id")
	assert.Equal(t, "expired", second[4], "status is derived, not stored")
	assert.Equal(t, "Disabled", second[7])
}

func TestValidationLogTable(t *testing.T) {
	table := ValidationLogTable([]domain.ValidationLog{
		{Timestamp: now, LicenseKey: "N/A", IP: "unknown", Status: domain.LogFailure, Reason: "No license key provided"},
		{Timestamp: now, LicenseKey: "LF-1", IP: "8.8.8.8", Status: domain.LogSuccess, Location: &domain.Location{Country: "US", City: "Mountain View"}},
	})

	require.Len(t, table.Rows, 2)
	assert.Equal(t, []string{"2025-03-01T12:00:00Z", "N/A", "failure", "No license key provided", "unknown", "", "", "", "", "", ""}, table.Rows[0])
	assert.Equal(t, "US", table.Rows[1][8])
	assert.Equal(t, "Mountain View", table.Rows[1][10])
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatXLSX, false},
		{"XLSX", FormatXLSX, false},
		{" csv ", FormatCSV, false},
		{"pdf", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	licenses := LicenseTable(sampleLicenses(), nil, now)
	bots := BotLogTable([]domain.BotLog{{Timestamp: now, Command: "redeem", DiscordID: "111", Success: true}})

	require.NoError(t, Write(&buf, FormatXLSX, licenses, bots))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Licenses", "Bot Logs"}, f.GetSheetList())

	rows, err := f.GetRows("Licenses")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Key", rows[0][0])
	assert.Equal(t, "LF-AAAA-BBBB-CCCC-DDDD", rows[1][0])

	botRows, err := f.GetRows("Bot Logs")
	require.NoError(t, err)
	require.Len(t, botRows, 2)
	assert.Equal(t, "redeem", botRows[1][1])
	assert.Equal(t, "yes", botRows[1][3])
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	table := Table{Sheet: "x", Headers: []string{"a", "b"}, Rows: [][]string{{"1", "two, three"}}}

	require.NoError(t, Write(&buf, FormatCSV, table))
	require.True(t, bytes.HasPrefix(buf.Bytes(), []byte{0xEF, 0xBB, 0xBF}))

	records, err := csv.NewReader(bytes.NewReader(buf.Bytes()[3:])).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b"}, {"1", "two, three"}}, records)

	assert.Error(t, Write(&buf, FormatCSV, table, table))
	assert.Error(t, Write(&buf, FormatXLSX))
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "licenses-20250301-120000.xlsx", FormatXLSX.Filename("licenses", now))
	assert.Equal(t, "text/csv; charset=utf-8", FormatCSV.ContentType())
}
