package repositories

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearpath-health/intake-engine/pkg/models"
)

func strPtr(s string) *string { return &s }

func TestMarshalExtraction_EmptyMarksCompletion(t *testing.T) {
	// A parse that found nothing must still be observable as completed:
	// all four columns hold empty objects, never NULL next to a set
	// parsed_at.
	insurance, contact, demographics, pathology, err := marshalExtraction(models.Extraction{})
	require.NoError(t, err)

	for name, data := range map[string][]byte{
		"insurance":    insurance,
		"contact":      contact,
		"demographics": demographics,
		"pathology":    pathology,
	} {
		assert.Equal(t, "{}", string(data), "%s must not be NULL", name)
	}

	ext, err := unmarshalExtraction(insurance, contact, demographics, pathology)
	require.NoError(t, err)
	assert.NotNil(t, ext.Insurance)
	assert.NotNil(t, ext.Contact)
	assert.NotNil(t, ext.Demographics)
	assert.NotNil(t, ext.Pathology)
}

func TestMarshalExtraction_PartialKeepsAbsentGroupsNull(t *testing.T) {
	insurance, contact, demographics, pathology, err := marshalExtraction(models.Extraction{
		Insurance: &models.Insurance{Provider: strPtr("Aetna")},
	})
	require.NoError(t, err)

	assert.Contains(t, string(insurance), "Aetna")
	assert.Nil(t, contact)
	assert.Nil(t, demographics)
	assert.Nil(t, pathology)

	ext, err := unmarshalExtraction(insurance, contact, demographics, pathology)
	require.NoError(t, err)
	require.NotNil(t, ext.Insurance)
	assert.Equal(t, "Aetna", *ext.Insurance.Provider)
	assert.Nil(t, ext.Pathology)
}
