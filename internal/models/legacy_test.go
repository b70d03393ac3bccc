package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeV1Log(t *testing.T) {
	raw := []byte(`{"status":"driving","start_ts":1770000000,"end_ts":1770003600,"duration":60,"lat":41.88,"lng":-87.63,"odometer":119000,"note":"morning run"}`)

	log, err := NormalizeDutyLog(raw)

	require.NoError(t, err)
	assert.Equal(t, StatusDriving, log.Type)
	assert.Equal(t, time.Unix(1770000000, 0).UTC(), log.StartTime)
	require.NotNil(t, log.EndTime)
	assert.Equal(t, time.Unix(1770003600, 0).UTC(), *log.EndTime)
	require.NotNil(t, log.DurationMinutes)
	assert.Equal(t, 60.0, *log.DurationMinutes)
	require.NotNil(t, log.StartLocation)
	assert.Equal(t, 41.88, log.StartLocation.Latitude)
	require.NotNil(t, log.OdometerStart)
	assert.Equal(t, 119000.0, *log.OdometerStart)
	assert.Equal(t, "morning run", log.Notes)
	assert.Equal(t, log.StartTime.Format("2006-01-02"), log.Date)
}

func TestNormalizeV1StatusAliases(t *testing.T) {
	cases := []struct {
		alias string
		want  DutyStatus
	}{
		{"on-duty", StatusOnDuty},
		{"onduty", StatusOnDuty},
		{"off-duty", StatusOffDuty},
		{"offduty", StatusOffDuty},
		{"sleeper", StatusSleeperBerth},
		{"driving", StatusDriving},
	}

	for _, tc := range cases {
		t.Run(tc.alias, func(t *testing.T) {
			raw := []byte(`{"status":"` + tc.alias + `","start_ts":1770000000}`)
			log, err := NormalizeDutyLog(raw)
			require.NoError(t, err)
			assert.Equal(t, tc.want, log.Type)
		})
	}
}

func TestNormalizeV1OpenLog(t *testing.T) {
	raw := []byte(`{"status":"driving","start_ts":1770000000}`)

	log, err := NormalizeDutyLog(raw)

	require.NoError(t, err)
	assert.True(t, log.Open())
	assert.Nil(t, log.DurationMinutes)
}

func TestNormalizeV1Errors(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"unknown status", `{"status":"parked","start_ts":1770000000}`},
		{"missing start", `{"status":"driving"}`},
		{"negative start", `{"status":"driving","start_ts":-5}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NormalizeDutyLog([]byte(tc.raw))
			assert.Error(t, err)
		})
	}
}

func TestNormalizeV2Log(t *testing.T) {
	raw := []byte(`{
		"schema_version": 2,
		"id": "log-1",
		"type": "sleeper_berth",
		"start_time": "2026-03-10T06:00:00Z",
		"end_time": "2026-03-10T14:00:00Z",
		"duration_minutes": 480
	}`)

	log, err := NormalizeDutyLog(raw)

	require.NoError(t, err)
	assert.Equal(t, "log-1", log.ID)
	assert.Equal(t, StatusSleeperBerth, log.Type)
	require.NotNil(t, log.DurationMinutes)
	assert.Equal(t, 480.0, *log.DurationMinutes)
}

func TestNormalizeV2UnknownStatus(t *testing.T) {
	raw := []byte(`{"schema_version":2,"type":"parked","start_time":"2026-03-10T06:00:00Z"}`)

	_, err := NormalizeDutyLog(raw)

	assert.Error(t, err)
}

func TestNormalizeUnsupportedVersion(t *testing.T) {
	_, err := NormalizeDutyLog([]byte(`{"schema_version":9}`))

	assert.ErrorContains(t, err, "unsupported log schema version")
}

func TestNormalizeMalformedPayload(t *testing.T) {
	_, err := NormalizeDutyLog([]byte(`not json`))

	assert.Error(t, err)
}
