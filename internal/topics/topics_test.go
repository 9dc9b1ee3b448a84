package topics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSegments(t *testing.T) {
	topic := "hydroplant/command/floor_1/stage_2/climate_node/LED"

	assert.Equal(t, "floor_1", Floor(topic))
	assert.Equal(t, "stage_2", Stage(topic))
	assert.Equal(t, "climate_node", Node(topic))
	assert.Equal(t, "LED", Part(topic))
}

func TestParseLogicControllerTopic(t *testing.T) {
	topic := "hydroplant/command/floor_1/plant_mover_node/plant_mover"

	assert.Equal(t, "floor_1", Floor(topic))
	assert.Equal(t, "", Stage(topic))
	assert.Equal(t, "plant_mover_node", Node(topic))
	assert.Equal(t, "plant_mover", Part(topic))
}

func TestUniqueID(t *testing.T) {
	tests := []struct {
		topic string
		want  string
	}{
		{"hydroplant/command/floor_1/stage_1/climate_node/LED", "floor_1/stage_1/climate_node/LED"},
		{"hydroplant/gui_command/floor_1/stage_1/climate_node/LED", "floor_1/stage_1/climate_node/LED"},
		{"hydroplant/command/floor_2/plant_mover_node/plant_mover", "floor_2/plant_mover_node/plant_mover"},
		{"floor_3/stage_3/water_node/VALVE", "floor_3/stage_3/water_node/VALVE"},
	}
	for _, tc := range tests {
		got, err := UniqueID(tc.topic)
		require.NoError(t, err, tc.topic)
		assert.Equal(t, tc.want, got)
	}
}

func TestUniqueIDWithoutFloorFails(t *testing.T) {
	_, err := UniqueID("hydroplant/gui/sync")
	require.ErrorIs(t, err, ErrMalformedTopic)
}

func TestSynthesisRoundTrip(t *testing.T) {
	uniqueID := "floor_1/stage_1/climate_node/LED"

	command := CommandTopic(uniqueID)
	receipt := ReceiptTopic(uniqueID)
	gui := GUICommandTopic(uniqueID)

	assert.Equal(t, "hydroplant/command/floor_1/stage_1/climate_node/LED", command)
	assert.Equal(t, command+"/receipt", receipt)
	assert.Equal(t, "hydroplant/gui_command/floor_1/stage_1/climate_node/LED", gui)

	for _, topic := range []string{command, gui, StripReceipt(receipt)} {
		got, err := UniqueID(topic)
		require.NoError(t, err)
		assert.Equal(t, uniqueID, got)
	}
}

func TestIsReceiptMatchesSuffixOnly(t *testing.T) {
	assert.True(t, IsReceipt("hydroplant/command/floor_1/stage_1/climate_node/LED/receipt"))
	assert.False(t, IsReceipt("hydroplant/command/floor_1/receipt/climate_node/LED"))
	assert.False(t, IsReceipt("hydroplant/command/floor_1/stage_1/climate_node/LED"))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		topic string
		want  Kind
	}{
		{Device, KindDeviceAnnounce},
		{AutonomyToggle, KindAutonomyToggle},
		{IsReady, KindIsReady},
		{DisconnectedDevice, KindDisconnectDevice},
		{DisconnectedMaster, KindDisconnectMaster},
		{Log, KindLog},
		{"hydroplant/log/climate_node/LED", KindLog},
		{"hydroplant/gui_command/floor_1/stage_1/climate_node/LED", KindGUICommand},
		{"hydroplant/command/floor_1/stage_1/climate_node/LED/receipt", KindReceipt},
		{"hydroplant/measurement/floor_1/stage_1/water_node/ph", KindMeasurement},
		{"hydroplant/command/floor_1/stage_1/climate_node/LED", KindOther},
		{"somebody/else", KindOther},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Classify(tc.topic), tc.topic)
	}
}
