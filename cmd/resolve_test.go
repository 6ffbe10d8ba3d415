package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/crossref-sync/internal/model"
	"github.com/sells-group/crossref-sync/internal/reconcile"
	"github.com/sells-group/crossref-sync/internal/resolver"
	"github.com/sells-group/crossref-sync/pkg/pure"
)

func TestParseAsOf(t *testing.T) {
	now, err := parseAsOf("")
	require.NoError(t, err)
	assert.Nil(t, now)

	now, err = parseAsOf("2024-02-29")
	require.NoError(t, err)
	require.NotNil(t, now)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), now())

	_, err = parseAsOf("29/02/2024")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--as-of")

	_, err = parseAsOf("2024-02")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "full date")
}

func TestResolutionView(t *testing.T) {
	t.Run("open license", func(t *testing.T) {
		view := resolutionView(resolver.Resolution{
			DOI:    "10.1000/xyz",
			Status: model.ResolveOK,
			Agency: "crossref",
			Result: model.CrossRefResult{LicenseURL: "http://creativecommons.org/licenses/by/4.0/"},
		})
		assert.Equal(t, model.AccessOpen, view.Access)
		assert.Equal(t, "crossref", view.Agency)
	})

	t.Run("embargoed license", func(t *testing.T) {
		end := &model.PartialDate{Year: 2031, Month: 1, Day: 1, Precision: model.PrecisionDay}
		view := resolutionView(resolver.Resolution{
			DOI:    "10.1000/xyz",
			Status: model.ResolveOK,
			Result: model.CrossRefResult{LicenseURL: "http://creativecommons.org/licenses/by/4.0/", LicenseStart: end, EmbargoEnd: end},
		})
		assert.Equal(t, model.AccessEmbargoed, view.Access)
	})

	t.Run("no license leaves access unset", func(t *testing.T) {
		view := resolutionView(resolver.Resolution{
			DOI:    "10.1000/xyz",
			Status: model.ResolveNotCrossRef,
			Agency: "datacite",
			Skips:  []model.SkipReason{model.SkipNotCrossRef},
		})
		assert.Empty(t, view.Access)

		var buf bytes.Buffer
		require.NoError(t, writeJSON(&buf, view))
		assert.NotContains(t, buf.String(), `"access"`)
		assert.Contains(t, buf.String(), `"not_crossref"`)
	})
}

func TestDecisionView(t *testing.T) {
	res := resolver.Resolution{DOI: "10.1000/xyz", Status: model.ResolveOK}

	t.Run("unchanged omits payload", func(t *testing.T) {
		view := decisionView(res, reconcile.Decision{
			Payload: pure.UpdatePayload{Version: json.RawMessage(`"v1"`)},
			Skips:   []model.SkipReason{model.SkipNoEpubDate},
		})
		assert.False(t, view.Changed)
		assert.Nil(t, view.Payload)
		assert.Equal(t, []model.SkipReason{model.SkipNoEpubDate}, view.Skips)
	})

	t.Run("changed carries payload", func(t *testing.T) {
		view := decisionView(res, reconcile.Decision{
			Payload:        pure.UpdatePayload{Version: json.RawMessage(`"v1"`)},
			LicenseClass:   model.LicenseCCBY,
			LicenseChanged: true,
		})
		assert.True(t, view.Changed)
		assert.Equal(t, model.LicenseCCBY, view.LicenseClass)
		assert.JSONEq(t, `{"version":"v1"}`, string(view.Payload))
		assert.False(t, view.Applied)
	})
}

func TestWriteJSON_Indented(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, map[string]int{"a": 1}))
	assert.Equal(t, "{\n  \"a\": 1\n}\n", buf.String())
}
