package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnknownCommandRejected(t *testing.T) {
	_, err := ParseCommandPayload("SELF_DESTRUCT", nil)
	require.ErrorIs(t, err, ErrUnknownCommand)
	assert.Equal(t, "unknown_command", ErrorCode(err))
}

func TestBareCommandsAcceptEmptyPayload(t *testing.T) {
	for _, name := range []string{CmdPing, CmdDeployAntenna, CmdSystemHealthCheck} {
		p, err := ParseCommandPayload(name, nil)
		require.NoError(t, err, name)
		assert.Nil(t, p)

		p, err = ParseCommandPayload(name, json.RawMessage(`{}`))
		require.NoError(t, err, name)
		assert.Nil(t, p)
	}
}

func TestAdjustAltitudeRange(t *testing.T) {
	p, err := ParseCommandPayload(CmdAdjustAltitude, json.RawMessage(`{"target_km": 415}`))
	require.NoError(t, err)
	assert.Equal(t, 415.0, p.(AdjustAltitudePayload).TargetKm)

	_, err = ParseCommandPayload(CmdAdjustAltitude, json.RawMessage(`{"target_km": 2500}`))
	require.ErrorIs(t, err, ErrInvalidPayload)

	_, err = ParseCommandPayload(CmdAdjustAltitude, json.RawMessage(`{"target_km": -1}`))
	require.ErrorIs(t, err, ErrInvalidPayload)
}

func TestPointToTargetModes(t *testing.T) {
	_, err := ParseCommandPayload(CmdPointToTarget, json.RawMessage(`{"mode":"nadir"}`))
	require.NoError(t, err)

	_, err = ParseCommandPayload(CmdPointToTarget, json.RawMessage(`{"mode":"target"}`))
	require.ErrorIs(t, err, ErrInvalidPayload, "target mode requires coordinates")

	p, err := ParseCommandPayload(CmdPointToTarget,
		json.RawMessage(`{"mode":"target","coordinates":{"roll_deg":10,"pitch_deg":0,"yaw_deg":-5}}`))
	require.NoError(t, err)
	assert.Equal(t, 10.0, p.(PointToTargetPayload).Coordinates.RollDeg)

	_, err = ParseCommandPayload(CmdPointToTarget, json.RawMessage(`{"mode":"retrograde"}`))
	require.ErrorIs(t, err, ErrInvalidPayload)
}

func TestToggleRequiresOn(t *testing.T) {
	_, err := ParseCommandPayload(CmdActivateHeater, json.RawMessage(`{}`))
	require.ErrorIs(t, err, ErrInvalidPayload)

	p, err := ParseCommandPayload(CmdToggleBatteryCharge, json.RawMessage(`{"on":false}`))
	require.NoError(t, err)
	assert.False(t, *p.(TogglePayload).On)
}

func TestScheduleDownlinkValidation(t *testing.T) {
	_, err := ParseCommandPayload(CmdScheduleDownlink, json.RawMessage(`{"volume_mb":0,"priority":"high"}`))
	require.ErrorIs(t, err, ErrInvalidPayload)

	_, err = ParseCommandPayload(CmdScheduleDownlink, json.RawMessage(`{"volume_mb":100,"priority":"urgent"}`))
	require.ErrorIs(t, err, ErrInvalidPayload)

	p, err := ParseCommandPayload(CmdScheduleDownlink, json.RawMessage(`{"volume_mb":100,"priority":"normal"}`))
	require.NoError(t, err)
	assert.Equal(t, 100.0, p.(ScheduleDownlinkPayload).VolumeMB)
}

func TestRequestTelemetryDefaultsToAll(t *testing.T) {
	p, err := ParseCommandPayload(CmdRequestTelemetry, json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Equal(t, "all", p.(RequestTelemetryPayload).PacketType)

	_, err = ParseCommandPayload(CmdRequestTelemetry, json.RawMessage(`{"packet_type":"everything"}`))
	require.ErrorIs(t, err, ErrInvalidPayload)
}

func TestSessionTerminal(t *testing.T) {
	s := &Session{Status: StatusInProgress}
	assert.False(t, s.Terminal())
	for _, st := range []string{StatusCompleted, StatusFailed, StatusAbandoned} {
		s.Status = st
		assert.True(t, s.Terminal())
	}
}
