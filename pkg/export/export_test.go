package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rosterDataset() Dataset {
	return Dataset{
		Headers: []string{"email", "full_name", "group"},
		Rows: []map[string]string{
			{"email": "an.tran@example.com", "full_name": "An Tran", "group": "K21A"},
			{"email": "binh.le@example.com", "full_name": "Binh Le"},
		},
	}
}

func TestCSVRenderRoundTrips(t *testing.T) {
	payload, err := NewCSVExporter().Render(rosterDataset())
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(payload)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"email", "full_name", "group"}, records[0])
	assert.Equal(t, "An Tran", records[1][1])
	assert.Equal(t, "", records[2][2])
}

func TestCSVRenderRequiresColumns(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
}

func TestPDFRenderProducesDocument(t *testing.T) {
	payload, err := NewPDFExporter().Render(rosterDataset(), "roster-season-3")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(payload, []byte("%PDF")))
}

func TestHeaderLabel(t *testing.T) {
	assert.Equal(t, "Full Name", headerLabel("full_name"))
	assert.Equal(t, "Email", headerLabel("email"))
	assert.Equal(t, "Filed At", headerLabel("filed_at"))
}
